package ecc

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	stderr "github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"
)

// KeyType identifies the curve of a key or signature. Only K1
// (secp256k1) is supported
type KeyType byte

const (
	KeyTypeK1 KeyType = 0

	publicKeyLen  = 33
	privateKeyLen = 32
	signatureLen  = 65

	legacyPublicKeyPrefix = "EOS"
)

func (t KeyType) String() string {
	switch t {
	case KeyTypeK1:
		return "K1"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

func ripemd160Checksum(data []byte, suffix string) []byte {
	h := ripemd160.New()
	_, _ = h.Write(data)
	_, _ = h.Write([]byte(suffix))
	return h.Sum(nil)[:4]
}

func encodeKeyString(prefix string, data []byte) string {
	check := ripemd160Checksum(data, "K1")
	return prefix + base58.Encode(append(append([]byte{}, data...), check...))
}

func decodeKeyString(s, prefix string, size int) ([]byte, error) {
	raw := base58.Decode(strings.TrimPrefix(s, prefix))
	if len(raw) != size+4 {
		return nil, stderr.Errorf("invalid key length %d", len(raw))
	}

	data, check := raw[:size], raw[size:]
	if !bytes.Equal(check, ripemd160Checksum(data, "K1")) {
		return nil, stderr.New("invalid key checksum")
	}

	return data, nil
}

// PublicKey is a compressed secp256k1 public key
type PublicKey struct {
	Data [publicKeyLen]byte
}

// ParsePublicKey parses both the PUB_K1_ and the legacy EOS string
// formats
func ParsePublicKey(s string) (PublicKey, error) {
	var pub PublicKey

	switch {
	case strings.HasPrefix(s, "PUB_K1_"):
		data, err := decodeKeyString(s, "PUB_K1_", publicKeyLen)
		if err != nil {
			return pub, err
		}
		copy(pub.Data[:], data)

	case strings.HasPrefix(s, legacyPublicKeyPrefix):
		raw := base58.Decode(strings.TrimPrefix(s, legacyPublicKeyPrefix))
		if len(raw) != publicKeyLen+4 {
			return pub, stderr.Errorf("invalid key length %d", len(raw))
		}
		if !bytes.Equal(raw[publicKeyLen:], ripemd160Checksum(raw[:publicKeyLen], "")) {
			return pub, stderr.New("invalid key checksum")
		}
		copy(pub.Data[:], raw[:publicKeyLen])

	default:
		return pub, stderr.Errorf("unrecognized public key format %q", s)
	}

	if _, err := btcec.ParsePubKey(pub.Data[:]); err != nil {
		return pub, stderr.Wrap(err, "invalid public key point")
	}

	return pub, nil
}

// PublicKeyFromBytes creates a PublicKey from its compressed form
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pub PublicKey
	if len(b) != publicKeyLen {
		return pub, stderr.Errorf("invalid public key length %d", len(b))
	}
	if _, err := btcec.ParsePubKey(b); err != nil {
		return pub, stderr.Wrap(err, "invalid public key point")
	}

	copy(pub.Data[:], b)
	return pub, nil
}

// NewPublicKey creates a PublicKey from a parsed curve point
func NewPublicKey(key *btcec.PublicKey) PublicKey {
	var pub PublicKey
	copy(pub.Data[:], key.SerializeCompressed())
	return pub
}

// Type of the key
func (k PublicKey) Type() KeyType {
	return KeyTypeK1
}

// IsZero returns true for the zero value
func (k PublicKey) IsZero() bool {
	return k.Data == [publicKeyLen]byte{}
}

// Key returns the curve point of the key
func (k PublicKey) Key() (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(k.Data[:])
}

func (k PublicKey) String() string {
	return encodeKeyString("PUB_K1_", k.Data[:])
}

// LegacyString returns the key in the EOS prefixed format
func (k PublicKey) LegacyString() string {
	check := ripemd160Checksum(k.Data[:], "")
	return legacyPublicKeyPrefix + base58.Encode(append(append([]byte{}, k.Data[:]...), check...))
}

// PrivateKey is a secp256k1 private key
type PrivateKey struct {
	key *btcec.PrivateKey
}

// NewPrivateKey generates a new random private key
func NewPrivateKey() (*PrivateKey, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, stderr.Wrap(err, "failed to generate private key")
	}

	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a private key from its 32 byte scalar
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != privateKeyLen {
		return nil, stderr.Errorf("invalid private key length %d", len(b))
	}

	key, _ := btcec.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// ParsePrivateKey parses both the PVT_K1_ and the legacy WIF string
// formats
func ParsePrivateKey(s string) (*PrivateKey, error) {
	if strings.HasPrefix(s, "PVT_K1_") {
		data, err := decodeKeyString(s, "PVT_K1_", privateKeyLen)
		if err != nil {
			return nil, err
		}
		return PrivateKeyFromBytes(data)
	}

	raw := base58.Decode(s)
	if len(raw) != 1+privateKeyLen+4 || raw[0] != 0x80 {
		return nil, stderr.New("unrecognized private key format")
	}

	first := sha256.Sum256(raw[:1+privateKeyLen])
	second := sha256.Sum256(first[:])
	if !bytes.Equal(second[:4], raw[1+privateKeyLen:]) {
		return nil, stderr.New("invalid key checksum")
	}

	return PrivateKeyFromBytes(raw[1 : 1+privateKeyLen])
}

// Bytes returns the 32 byte scalar of the key
func (k *PrivateKey) Bytes() []byte {
	return k.key.Serialize()
}

// Key returns the underlying curve key
func (k *PrivateKey) Key() *btcec.PrivateKey {
	return k.key
}

// PublicKey derives the public key
func (k *PrivateKey) PublicKey() PublicKey {
	return NewPublicKey(k.key.PubKey())
}

func (k *PrivateKey) String() string {
	return encodeKeyString("PVT_K1_", k.key.Serialize())
}
