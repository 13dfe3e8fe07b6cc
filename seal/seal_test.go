package seal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/errors"
)

func keyPair(t *testing.T) (*ecc.PrivateKey, *ecc.PrivateKey) {
	a, err := GenerateSessionKey()
	require.NoError(t, err)
	b, err := GenerateSessionKey()
	require.NoError(t, err)
	return a, b
}

func TestSharedSecretIsSymmetric(t *testing.T) {
	a, b := keyPair(t)

	k1, err := DeriveSharedSecret(a, b.PublicKey(), 7)
	require.NoError(t, err)
	k2, err := DeriveSharedSecret(b, a.PublicKey(), 7)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := DeriveSharedSecret(a, b.PublicKey(), 8)
	require.NoError(t, err)
	assert.NotEqual(t, k1.Key, k3.Key)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sender, receiver := keyPair(t)

	for _, size := range []int{0, 1, 15, 16, 17, 255, 1024} {
		message := make([]byte, size)
		for i := range message {
			message[i] = byte(i * 7)
		}

		nonce, err := NewNonce()
		require.NoError(t, err)

		msg, err := Encrypt(sender, receiver.PublicKey(), message, nonce)
		require.NoError(t, err)
		assert.Equal(t, sender.PublicKey(), msg.From)
		assert.Equal(t, 0, len(msg.Ciphertext)%16)

		// the envelope survives the wire encoding
		decoded, err := codec.DecodeSealedMessage(codec.EncodeSealedMessage(msg))
		require.NoError(t, err)

		plaintext, err := Decrypt(decoded, receiver)
		require.NoError(t, err)
		assert.Equal(t, string(message), plaintext)
	}
}

func TestDecryptCorruptedCiphertext(t *testing.T) {
	sender, receiver := keyPair(t)

	msg, err := Encrypt(sender, receiver.PublicKey(), []byte("esr:gmNgZGBY1mTC_MoglIGBIVzX5uxZRqAQGMBoExgDAjRKfwA"), 99)
	require.NoError(t, err)

	// corrupting the last block breaks the padding
	corrupted := *msg
	corrupted.Ciphertext = append([]byte{}, msg.Ciphertext...)
	corrupted.Ciphertext[len(corrupted.Ciphertext)-1] ^= 0x01
	_, err = Decrypt(&corrupted, receiver)
	assert.True(t, errors.Is(err, errors.ErrDecryptionFailed))

	// a truncated ciphertext is not a whole number of blocks
	corrupted.Ciphertext = msg.Ciphertext[:len(msg.Ciphertext)-1]
	_, err = Decrypt(&corrupted, receiver)
	assert.True(t, errors.Is(err, errors.ErrDecryptionFailed))
}

func TestDecryptCorruptedChecksum(t *testing.T) {
	sender, receiver := keyPair(t)

	msg, err := Encrypt(sender, receiver.PublicKey(), []byte("hello"), 1)
	require.NoError(t, err)

	for bit := uint(0); bit < 32; bit += 8 {
		corrupted := *msg
		corrupted.Checksum ^= 1 << bit
		_, err = Decrypt(&corrupted, receiver)
		assert.True(t, errors.Is(err, errors.ErrDecryptionFailed))
	}
}

func TestDecryptWrongKey(t *testing.T) {
	sender, receiver := keyPair(t)
	other, _ := keyPair(t)

	msg, err := Encrypt(sender, receiver.PublicKey(), []byte("hello"), 1)
	require.NoError(t, err)

	_, err = Decrypt(msg, other)
	assert.True(t, errors.Is(err, errors.ErrDecryptionFailed))
}

func TestDecryptCorruptedAnyByte(t *testing.T) {
	sender, receiver := keyPair(t)

	msg, err := Encrypt(sender, receiver.PublicKey(), []byte("esr:a request spanning a few cipher blocks"), 5)
	require.NoError(t, err)

	for i := range msg.Ciphertext {
		corrupted := *msg
		corrupted.Ciphertext = append([]byte{}, msg.Ciphertext...)
		corrupted.Ciphertext[i] ^= 0x80

		_, err := Decrypt(&corrupted, receiver)
		assert.True(t, errors.Is(err, errors.ErrDecryptionFailed), "byte %d", i)
	}
}
