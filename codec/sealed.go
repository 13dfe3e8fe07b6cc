package codec

import (
	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/ecc"
)

// SealedMessage is the encrypted envelope delivered over a session
// channel
type SealedMessage struct {
	From       ecc.PublicKey
	Nonce      uint64
	Ciphertext []byte
	Checksum   uint32
}

// EncodeSealedMessage serializes msg
func EncodeSealedMessage(msg *SealedMessage) []byte {
	var w Writer
	w.WriteUint8(uint8(msg.From.Type()))
	w.WriteRaw(msg.From.Data[:])
	w.WriteUint64(msg.Nonce)
	w.WriteBytes(msg.Ciphertext)
	w.WriteUint32(msg.Checksum)
	return w.Bytes()
}

// DecodeSealedMessage deserializes a sealed message. Trailing bytes
// are rejected
func DecodeSealedMessage(b []byte) (*SealedMessage, error) {
	msg, err := decodeSealedMessage(b)
	if err != nil {
		return nil, malformed(stderr.Wrap(err, "invalid sealed message"))
	}

	return msg, nil
}

func decodeSealedMessage(b []byte) (*SealedMessage, error) {
	r := NewReader(b)

	keyType, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if ecc.KeyType(keyType) != ecc.KeyTypeK1 {
		return nil, stderr.Errorf("unsupported key type %d", keyType)
	}

	data, err := r.ReadRaw(len(ecc.PublicKey{}.Data))
	if err != nil {
		return nil, err
	}

	msg := &SealedMessage{}
	if msg.From, err = ecc.PublicKeyFromBytes(data); err != nil {
		return nil, err
	}
	if msg.Nonce, err = r.ReadUint64(); err != nil {
		return nil, err
	}
	if msg.Ciphertext, err = r.ReadBytes(); err != nil {
		return nil, err
	}
	if msg.Checksum, err = r.ReadUint32(); err != nil {
		return nil, err
	}

	if r.Remaining() != 0 {
		return nil, stderr.Errorf("%d trailing bytes", r.Remaining())
	}

	return msg, nil
}
