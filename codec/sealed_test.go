package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/errors"
)

func sealedMessage(t *testing.T) *SealedMessage {
	key, err := ecc.NewPrivateKey()
	require.NoError(t, err)

	return &SealedMessage{
		From:       key.PublicKey(),
		Nonce:      42,
		Ciphertext: []byte("0123456789abcdef"),
		Checksum:   0xdeadbeef,
	}
}

func TestSealedMessageRoundTrip(t *testing.T) {
	msg := sealedMessage(t)
	b := EncodeSealedMessage(msg)

	// type, key, nonce, length, ciphertext, checksum
	assert.Len(t, b, 1+33+8+1+16+4)

	decoded, err := DecodeSealedMessage(b)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestDecodeSealedMessageStrict(t *testing.T) {
	b := EncodeSealedMessage(sealedMessage(t))

	_, err := DecodeSealedMessage(append(b, 0))
	assert.True(t, errors.Is(err, errors.ErrMalformedRequest))

	_, err = DecodeSealedMessage(b[:len(b)-1])
	assert.True(t, errors.Is(err, errors.ErrMalformedRequest))

	corrupted := append([]byte{}, b...)
	corrupted[0] = 1
	_, err = DecodeSealedMessage(corrupted)
	assert.True(t, errors.Is(err, errors.ErrMalformedRequest))
}
