package ecc

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
	stderr "github.com/pkg/errors"
)

// maxSignAttempts bounds the search for a canonical signature. Each
// attempt is canonical with a probability of about 1/4
const maxSignAttempts = 256

// Signer produces signatures over 32 byte digests. Implementations
// are never handed the transaction, only the digest to sign
type Signer interface {
	Sign(digest []byte) (Signature, error)
	PublicKey() PublicKey
}

// KeySigner signs with a private key held in memory
type KeySigner struct {
	key *PrivateKey
}

// NewKeySigner creates a Signer for the private key
func NewKeySigner(key *PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

// Sign implementation of Signer for KeySigner. Only canonical
// signatures are returned, nodes reject the others
func (s *KeySigner) Sign(digest []byte) (Signature, error) {
	var sig Signature
	if len(digest) != 32 {
		return sig, stderr.Errorf("digest must be 32 bytes, got %d", len(digest))
	}

	priv, err := crypto.ToECDSA(s.key.Bytes())
	if err != nil {
		return sig, stderr.Wrap(err, "invalid private key")
	}

	raw, err := crypto.Sign(digest, priv)
	if err != nil {
		return sig, stderr.Wrap(err, "failed to sign digest")
	}

	// r || s || v to compressed recovery header || r || s
	sig.Data[0] = raw[64] + 27 + 4
	copy(sig.Data[1:], raw[:64])

	// the deterministic nonce is perturbed with a counter until the
	// signature is canonical
	var extra [32]byte
	for attempt := uint32(1); !sig.IsCanonical(); attempt++ {
		if attempt == maxSignAttempts {
			return Signature{}, stderr.New("failed to produce a canonical signature")
		}

		binary.BigEndian.PutUint32(extra[28:], attempt)
		sig = signWithExtra(s.key.Key(), digest, extra[:])
	}

	return sig, nil
}

// PublicKey implementation of Signer for KeySigner
func (s *KeySigner) PublicKey() PublicKey {
	return s.key.PublicKey()
}

// signWithExtra is RFC6979 ECDSA with extra data mixed into the nonce.
// s is normalized to the lower half of the order
func signWithExtra(key *btcec.PrivateKey, digest []byte, extra []byte) Signature {
	var privBytes [32]byte
	key.Key.PutBytes(&privBytes)

	var sig Signature
	for iteration := uint32(0); ; iteration++ {
		k := btcec.NonceRFC6979(privBytes[:], digest, extra, nil, iteration)

		var kG btcec.JacobianPoint
		btcec.ScalarBaseMultNonConst(k, &kG)
		kG.ToAffine()

		var x [32]byte
		kG.X.PutBytes(&x)

		var r btcec.ModNScalar
		overflow := r.SetBytes(&x)
		if r.IsZero() {
			continue
		}
		recovery := byte(overflow<<1) | byte(kG.Y.IsOddBit())

		var e btcec.ModNScalar
		e.SetByteSlice(digest)

		kInv := new(btcec.ModNScalar).InverseValNonConst(k)
		sv := new(btcec.ModNScalar).Mul2(&key.Key, &r).Add(&e).Mul(kInv)
		if sv.IsZero() {
			continue
		}
		if sv.IsOverHalfOrder() {
			sv.Negate()
			recovery ^= 0x01
		}

		sig.Data[0] = recovery + 27 + 4
		r.PutBytesUnchecked(sig.Data[1:33])
		sv.PutBytesUnchecked(sig.Data[33:65])
		return sig
	}
}
