package ecc

import (
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	stderr "github.com/pkg/errors"
)

// Signature is a compact recoverable secp256k1 signature laid out as
// recovery header, r and s
type Signature struct {
	Data [signatureLen]byte
}

// ParseSignature parses a SIG_K1_ string
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	if !strings.HasPrefix(s, "SIG_K1_") {
		return sig, stderr.Errorf("unrecognized signature format %q", s)
	}

	data, err := decodeKeyString(s, "SIG_K1_", signatureLen)
	if err != nil {
		return sig, err
	}

	copy(sig.Data[:], data)
	return sig, nil
}

func (s Signature) String() string {
	return encodeKeyString("SIG_K1_", s.Data[:])
}

// IsZero returns true for the zero value
func (s Signature) IsZero() bool {
	return s.Data == [signatureLen]byte{}
}

// IsCanonical returns true if neither r nor s has its high bit set or
// a superfluous leading zero byte
func (s Signature) IsCanonical() bool {
	d := s.Data
	return d[1]&0x80 == 0 && !(d[1] == 0 && d[2]&0x80 == 0) &&
		d[33]&0x80 == 0 && !(d[33] == 0 && d[34]&0x80 == 0)
}

// RecoverPublicKey returns the public key that produced the signature
// over digest
func (s Signature) RecoverPublicKey(digest []byte) (PublicKey, error) {
	// go-ethereum expects r || s || v with v in [0, 3]
	raw := make([]byte, signatureLen)
	copy(raw, s.Data[1:])
	raw[64] = s.Data[0] - 31

	key, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return PublicKey{}, stderr.Wrap(err, "failed to recover public key")
	}

	return PublicKeyFromBytes(crypto.CompressPubkey(key))
}
