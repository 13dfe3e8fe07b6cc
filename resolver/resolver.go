// Package resolver turns decoded signing requests into transactions
// ready to be signed by an account
package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/abi"
	"github.com/oasislabs/signing-gateway/chain"
	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/errors"
)

// DefaultExpiration is added to the head block time to compute the
// expiration of transactions that need tapos
const DefaultExpiration = 60 * time.Second

// IdentityAction is the name of the action of identity transactions
var IdentityAction = codec.MustName("identity")

// ResolvedRequest is a request with a concrete transaction for a
// specific signer
type ResolvedRequest struct {
	Request     *codec.Request
	Transaction *codec.Transaction
	Signer      codec.PermissionLevel
	Summaries   []Summary

	// ID is the transaction id and Digest is what the signer signs.
	// Digest commits to the chain id so signatures cannot be replayed
	// on another chain
	ID     [32]byte
	Digest [32]byte

	packed []byte
}

// TransactionID returns the hex representation of the transaction id
func (r *ResolvedRequest) TransactionID() string {
	return hex.EncodeToString(r.ID[:])
}

// Packed returns the serialized transaction
func (r *ResolvedRequest) Packed() []byte {
	return r.packed
}

// Sign signs the transaction digest
func (r *ResolvedRequest) Sign(signer ecc.Signer) (ecc.Signature, error) {
	sig, err := signer.Sign(r.Digest[:])
	if err != nil {
		return ecc.Signature{}, errors.New(errors.ErrSignFailed, err)
	}

	return sig, nil
}

// PackedTransaction returns the transaction with its signatures in
// the form accepted by the chain
func (r *ResolvedRequest) PackedTransaction(sigs ...ecc.Signature) *chain.PackedTransaction {
	return &chain.PackedTransaction{
		Signatures: sigs,
		PackedTrx:  r.packed,
	}
}

// Resolve builds the transaction for req signed by signer. abis must
// hold the ABI of every contract referenced by the request and info
// is required whenever the transaction needs tapos. The deny list is
// checked before anything else
func Resolve(req *codec.Request, abis map[codec.Name]*abi.ABI, info *chain.Info, signer codec.PermissionLevel) (*ResolvedRequest, error) {
	if err := CheckPolicy(req); err != nil {
		return nil, err
	}

	resolved := &ResolvedRequest{
		Request:     req,
		Transaction: &codec.Transaction{},
		Signer:      signer,
	}

	if req.IsIdentity() {
		resolved.Transaction.Actions = []codec.Action{identityAction(req, signer)}
		resolved.seal()
		return resolved, nil
	}

	if err := abi.CheckComplete(req.ReferencedContracts(), abis); err != nil {
		return nil, err
	}

	for _, action := range req.Actions {
		concrete, summary := resolveAction(action, abis[action.Account], signer)
		resolved.Transaction.Actions = append(resolved.Transaction.Actions, concrete)
		resolved.Summaries = append(resolved.Summaries, summary)
	}

	if req.Header != nil {
		resolved.Transaction.TransactionHeader = *req.Header
	}

	if NeedsTapos(req) {
		if err := applyTapos(&resolved.Transaction.TransactionHeader, req, info); err != nil {
			return nil, err
		}
	}

	resolved.seal()
	return resolved, nil
}

func (r *ResolvedRequest) seal() {
	r.packed = r.Transaction.Pack()
	r.ID = sha256.Sum256(r.packed)

	h := sha256.New()
	h.Write(r.Request.ChainID[:])
	h.Write(r.packed)
	h.Write(make([]byte, 32))
	copy(r.Digest[:], h.Sum(nil))
}

// NeedsTapos returns true if the transaction of req takes its
// expiration and reference block from the chain head
func NeedsTapos(req *codec.Request) bool {
	return req.Broadcast || req.Header == nil || req.Header.IsZero()
}

func applyTapos(header *codec.TransactionHeader, req *codec.Request, info *chain.Info) error {
	if info == nil {
		return errors.New(errors.ErrInternal, stderr.New("chain info is required to set tapos"))
	}

	expiration := DefaultExpiration
	if v, ok := req.InfoValue(codec.InfoExpireSeconds); ok {
		seconds, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return errors.Newf(errors.ErrMalformedRequest, "invalid %s %q", codec.InfoExpireSeconds, v)
		}
		expiration = time.Duration(seconds) * time.Second
	}

	header.Expiration = uint32(info.HeadBlockTime.Add(expiration).Unix())
	header.RefBlockNum = info.LastIrreversibleBlockID.RefBlockNum()
	header.RefBlockPrefix = info.LastIrreversibleBlockID.RefBlockPrefix()
	return nil
}

func resolveName(n codec.Name, signer codec.PermissionLevel) codec.Name {
	switch n {
	case codec.PlaceholderActor:
		return signer.Actor
	case codec.PlaceholderPermission:
		return signer.Permission
	default:
		return n
	}
}

func resolveAuthorization(levels []codec.PermissionLevel, signer codec.PermissionLevel) []codec.PermissionLevel {
	resolved := make([]codec.PermissionLevel, 0, len(levels))
	for _, level := range levels {
		if level.Actor == codec.PlaceholderActor {
			level.Actor = signer.Actor
		}
		if level.Permission.IsPlaceholder() {
			level.Permission = signer.Permission
		}
		resolved = append(resolved, level)
	}
	return resolved
}

// resolveAction substitutes placeholders in the authorization and in
// the top level name fields of the payload, and classifies the action
func resolveAction(action codec.Action, contract *abi.ABI, signer codec.PermissionLevel) (codec.Action, Summary) {
	summary := Summary{
		Contract:       action.Account,
		Action:         action.Name,
		Classification: Custom,
	}

	resolved := codec.Action{
		Account:       action.Account,
		Name:          action.Name,
		Authorization: resolveAuthorization(action.Authorization, signer),
		Data:          append([]byte(nil), action.Data...),
	}

	typ, ok := contract.ActionType(action.Name)
	if !ok {
		return resolved, summary
	}

	fields, complete, err := abi.DecodeFields(contract, typ, resolved.Data)
	if err != nil {
		return resolved, summary
	}

	for i, f := range fields {
		name, ok := f.Value.(codec.Name)
		if !ok || !name.IsPlaceholder() {
			continue
		}

		name = resolveName(name, signer)
		var w codec.Writer
		w.WriteName(name)
		copy(resolved.Data[f.Offset:f.Offset+f.Size], w.Bytes())
		fields[i].Value = name
	}

	summary.Fields = fields
	summary.Classification = classify(fields, complete)
	return resolved, summary
}

// identityAction builds the single action of an identity transaction.
// Its payload is the optional permission that is being identified
func identityAction(req *codec.Request, signer codec.PermissionLevel) codec.Action {
	permission := signer
	if req.IdentityPermission != nil {
		permission = resolveAuthorization([]codec.PermissionLevel{*req.IdentityPermission}, signer)[0]
	}

	var w codec.Writer
	w.WriteBool(true)
	w.WriteName(permission.Actor)
	w.WriteName(permission.Permission)

	return codec.Action{
		Name:          IdentityAction,
		Authorization: []codec.PermissionLevel{signer},
		Data:          w.Bytes(),
	}
}
