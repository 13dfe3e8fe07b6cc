// Package seal encrypts and decrypts the messages exchanged over a
// session channel. The key of every message is agreed through ECDH
// between the session key of one party and the public key of the
// other, and combined with a per message nonce
package seal

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/errors"
)

const (
	keyLen = 32
	ivLen  = aes.BlockSize
)

// SymmetricKey is the key material derived for a single message
type SymmetricKey struct {
	Key [keyLen]byte
	IV  [ivLen]byte

	hash [sha512.Size]byte
}

// Checksum binds the key material and the ciphertext. Any change to
// either of them changes the checksum
func (k *SymmetricKey) Checksum(ciphertext []byte) uint32 {
	h := sha256.New()
	_, _ = h.Write(k.hash[:])
	_, _ = h.Write(ciphertext)
	return binary.LittleEndian.Uint32(h.Sum(nil)[:4])
}

// DeriveSharedSecret computes the symmetric key for the message with
// the provided nonce exchanged between priv and pub
func DeriveSharedSecret(priv *ecc.PrivateKey, pub ecc.PublicKey, nonce uint64) (*SymmetricKey, error) {
	point, err := pub.Key()
	if err != nil {
		return nil, stderr.Wrap(err, "invalid public key")
	}

	shared := sha512.Sum512(btcec.GenerateSharedSecret(priv.Key(), point))

	var material [8 + sha512.Size]byte
	binary.LittleEndian.PutUint64(material[:8], nonce)
	copy(material[8:], shared[:])
	hash := sha512.Sum512(material[:])

	var key SymmetricKey
	copy(key.Key[:], hash[:keyLen])
	copy(key.IV[:], hash[keyLen:keyLen+ivLen])
	key.hash = hash
	return &key, nil
}

// NewNonce returns a random nonce
func NewNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, stderr.Wrap(err, "failed to read random nonce")
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

// GenerateSessionKey creates a new ephemeral key for a session. The
// key is independent of any signing key
func GenerateSessionKey() (*ecc.PrivateKey, error) {
	return ecc.NewPrivateKey()
}

// Encrypt seals message from priv to pub
func Encrypt(priv *ecc.PrivateKey, pub ecc.PublicKey, message []byte, nonce uint64) (*codec.SealedMessage, error) {
	key, err := DeriveSharedSecret(priv, pub, nonce)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key.Key[:])
	if err != nil {
		return nil, stderr.WithStack(err)
	}

	plaintext := pad(message)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, key.IV[:]).CryptBlocks(ciphertext, plaintext)

	return &codec.SealedMessage{
		From:       priv.PublicKey(),
		Nonce:      nonce,
		Ciphertext: ciphertext,
		Checksum:   key.Checksum(ciphertext),
	}, nil
}

// Decrypt opens a message sent to the holder of priv
func Decrypt(msg *codec.SealedMessage, priv *ecc.PrivateKey) (string, error) {
	key, err := DeriveSharedSecret(priv, msg.From, msg.Nonce)
	if err != nil {
		return "", errors.New(errors.ErrDecryptionFailed, err)
	}

	if key.Checksum(msg.Ciphertext) != msg.Checksum {
		return "", errors.Newf(errors.ErrDecryptionFailed, "checksum mismatch")
	}

	if len(msg.Ciphertext) == 0 || len(msg.Ciphertext)%aes.BlockSize != 0 {
		return "", errors.Newf(errors.ErrDecryptionFailed, "invalid ciphertext length %d", len(msg.Ciphertext))
	}

	block, err := aes.NewCipher(key.Key[:])
	if err != nil {
		return "", errors.New(errors.ErrDecryptionFailed, err)
	}

	plaintext := make([]byte, len(msg.Ciphertext))
	cipher.NewCBCDecrypter(block, key.IV[:]).CryptBlocks(plaintext, msg.Ciphertext)

	message, err := unpad(plaintext)
	if err != nil {
		return "", errors.New(errors.ErrDecryptionFailed, err)
	}

	return string(message), nil
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, stderr.New("invalid padding")
	}

	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, stderr.New("invalid padding")
		}
	}

	return b[:len(b)-n], nil
}
