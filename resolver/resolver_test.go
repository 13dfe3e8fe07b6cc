package resolver

import (
	"crypto/sha256"
	"testing"

	stderr "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasislabs/signing-gateway/abi"
	"github.com/oasislabs/signing-gateway/abi/abitest"
	"github.com/oasislabs/signing-gateway/chain/chaintest"
	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/errors"
)

var (
	alice = codec.PermissionLevel{
		Actor:      codec.MustName("alice"),
		Permission: codec.MustName("active"),
	}

	tokenContract  = codec.MustName("eosio.token")
	customContract = codec.MustName("custom")

	tokenAbis = map[codec.Name]*abi.ABI{tokenContract: abitest.Token}
)

type failingSigner struct {
	ecc.Signer
}

func (failingSigner) Sign(digest []byte) (ecc.Signature, error) {
	return ecc.Signature{}, stderr.New("device unavailable")
}

func transferRequest(actions ...codec.Action) *codec.Request {
	return &codec.Request{
		ChainID: chaintest.ChainID,
		Kind:    codec.KindActions,
		Actions: actions,
	}
}

func TestResolveTransfer(t *testing.T) {
	req := transferRequest(abitest.TransferAction("bob", 10000, "hi"))

	resolved, err := Resolve(req, tokenAbis, chaintest.Info, alice)
	require.NoError(t, err)

	require.Len(t, resolved.Transaction.Actions, 1)
	action := resolved.Transaction.Actions[0]
	assert.Equal(t, []codec.PermissionLevel{alice}, action.Authorization)
	assert.Equal(t, abitest.TransferData(alice.Actor, codec.MustName("bob"), 10000, abitest.Symbol(4, "EOS"), "hi"), action.Data)

	require.Len(t, resolved.Summaries, 1)
	summary := resolved.Summaries[0]
	assert.Equal(t, TokenTransfer, summary.Classification)
	from, ok := summary.Field("from")
	assert.True(t, ok)
	assert.Equal(t, alice.Actor, from)
	quantity, _ := summary.Field("quantity")
	assert.Equal(t, "1.0000 EOS", quantity.(abi.Asset).String())

	// the template is left untouched
	assert.Equal(t, codec.PlaceholderActor, req.Actions[0].Authorization[0].Actor)
}

func TestResolveTapos(t *testing.T) {
	req := transferRequest(abitest.TransferAction("bob", 1, ""))

	resolved, err := Resolve(req, tokenAbis, chaintest.Info, alice)
	require.NoError(t, err)

	header := resolved.Transaction.TransactionHeader
	assert.Equal(t, uint32(chaintest.Info.HeadBlockTime.Unix()+60), header.Expiration)
	assert.Equal(t, uint16(990), header.RefBlockNum)
	assert.Equal(t, uint32(0xddccbbaa), header.RefBlockPrefix)
}

func TestResolveExpireSeconds(t *testing.T) {
	req := transferRequest(abitest.TransferAction("bob", 1, ""))
	req.Info = map[string]string{codec.InfoExpireSeconds: "3600"}

	resolved, err := Resolve(req, tokenAbis, chaintest.Info, alice)
	require.NoError(t, err)
	assert.Equal(t, uint32(chaintest.Info.HeadBlockTime.Unix()+3600), resolved.Transaction.Expiration)

	req.Info[codec.InfoExpireSeconds] = "soon"
	_, err = Resolve(req, tokenAbis, chaintest.Info, alice)
	assert.True(t, errors.Is(err, errors.ErrMalformedRequest))
}

func TestResolveTaposRequiresInfo(t *testing.T) {
	req := transferRequest(abitest.TransferAction("bob", 1, ""))

	_, err := Resolve(req, tokenAbis, nil, alice)
	assert.True(t, errors.Is(err, errors.ErrInternal))
}

func TestResolveTransactionHeaderKept(t *testing.T) {
	header := codec.TransactionHeader{
		Expiration:     1600000000,
		RefBlockNum:    7,
		RefBlockPrefix: 42,
		DelaySec:       3,
	}
	req := transferRequest(abitest.TransferAction("bob", 1, ""))
	req.Kind = codec.KindTransaction
	req.Header = &header

	resolved, err := Resolve(req, tokenAbis, nil, alice)
	require.NoError(t, err)
	assert.Equal(t, header, resolved.Transaction.TransactionHeader)
}

func TestResolveBroadcastOverridesHeader(t *testing.T) {
	header := codec.TransactionHeader{Expiration: 1600000000, RefBlockNum: 7, DelaySec: 3}
	req := transferRequest(abitest.TransferAction("bob", 1, ""))
	req.Kind = codec.KindTransaction
	req.Header = &header
	req.Broadcast = true

	resolved, err := Resolve(req, tokenAbis, chaintest.Info, alice)
	require.NoError(t, err)
	assert.Equal(t, uint16(990), resolved.Transaction.RefBlockNum)
	assert.Equal(t, uint32(3), resolved.Transaction.DelaySec)
}

func TestResolveMissingAbi(t *testing.T) {
	req := transferRequest(
		abitest.TransferAction("bob", 1, ""),
		codec.Action{Account: customContract, Name: codec.MustName("vote")},
	)

	_, err := Resolve(req, tokenAbis, chaintest.Info, alice)
	assert.True(t, errors.Is(err, errors.ErrMissingAbi))
	assert.Contains(t, err.Error(), "custom")
}

func TestResolveDisallowedAction(t *testing.T) {
	for _, name := range []string{"updateauth", "linkauth", "setcode", "newaccount"} {
		req := transferRequest(
			abitest.TransferAction("bob", 1, ""),
			codec.Action{Account: codec.MustName("eosio"), Name: codec.MustName(name)},
		)

		// the deny list wins even though the system ABI is missing
		_, err := Resolve(req, tokenAbis, chaintest.Info, alice)
		assert.True(t, errors.Is(err, errors.ErrDisallowedAction), name)
		assert.Contains(t, err.Error(), name)
	}
}

func TestResolveCustomAction(t *testing.T) {
	var w codec.Writer
	w.WriteName(codec.PlaceholderActor)
	w.WriteVarUint32(1)
	w.WriteName(codec.MustName("producer1"))

	req := transferRequest(codec.Action{
		Account: customContract,
		Name:    codec.MustName("vote"),
		Data:    w.Bytes(),
	})

	resolved, err := Resolve(req, map[codec.Name]*abi.ABI{customContract: abitest.Custom}, chaintest.Info, alice)
	require.NoError(t, err)

	summary := resolved.Summaries[0]
	assert.Equal(t, Custom, summary.Classification)
	user, _ := summary.Field("user")
	assert.Equal(t, alice.Actor, user)
	assert.Equal(t, alice.Actor.String(), mustReadName(t, resolved.Transaction.Actions[0].Data))
}

func TestResolveUndecodablePayload(t *testing.T) {
	req := transferRequest(codec.Action{
		Account: tokenContract,
		Name:    codec.MustName("transfer"),
		Data:    []byte{1, 2},
	})

	resolved, err := Resolve(req, tokenAbis, chaintest.Info, alice)
	require.NoError(t, err)
	assert.Equal(t, Custom, resolved.Summaries[0].Classification)
	assert.Empty(t, resolved.Summaries[0].Fields)
	assert.Equal(t, []byte{1, 2}, resolved.Transaction.Actions[0].Data)
}

func TestResolveIdentity(t *testing.T) {
	req := &codec.Request{ChainID: chaintest.ChainID, Kind: codec.KindIdentity}

	resolved, err := Resolve(req, nil, nil, alice)
	require.NoError(t, err)

	assert.True(t, resolved.Transaction.TransactionHeader.IsZero())
	require.Len(t, resolved.Transaction.Actions, 1)

	action := resolved.Transaction.Actions[0]
	assert.Equal(t, codec.Name(0), action.Account)
	assert.Equal(t, IdentityAction, action.Name)
	assert.Equal(t, []codec.PermissionLevel{alice}, action.Authorization)

	r := codec.NewReader(action.Data)
	present, _ := r.ReadBool()
	actor, _ := r.ReadName()
	permission, _ := r.ReadName()
	assert.True(t, present)
	assert.Equal(t, alice.Actor, actor)
	assert.Equal(t, alice.Permission, permission)
	assert.Empty(t, resolved.Summaries)
}

func TestResolveDigestBindsChain(t *testing.T) {
	req := transferRequest(abitest.TransferAction("bob", 1, ""))
	resolved, err := Resolve(req, tokenAbis, chaintest.Info, alice)
	require.NoError(t, err)

	other := *req
	other.ChainID = codec.MustChainID("1064487b3cd1a897ce03ae5b6a865651747e2e152090f99c1d19d44e01aea5a4")
	resolvedOther, err := Resolve(&other, tokenAbis, chaintest.Info, alice)
	require.NoError(t, err)

	assert.Equal(t, resolved.ID, resolvedOther.ID)
	assert.NotEqual(t, resolved.Digest, resolvedOther.Digest)

	assert.Equal(t, sha256.Sum256(resolved.Packed()), resolved.ID)
	assert.Len(t, resolved.TransactionID(), 64)
}

func TestResolvedRequestSign(t *testing.T) {
	key, err := ecc.ParsePrivateKey("5KQwrPbwdL6PhXujxW37FSSQZ1JiwsST4cqQzDeyXtP79zkvFD3")
	require.NoError(t, err)
	signer := ecc.NewKeySigner(key)

	resolved, err := Resolve(transferRequest(abitest.TransferAction("bob", 1, "")), tokenAbis, chaintest.Info, alice)
	require.NoError(t, err)

	sig, err := resolved.Sign(signer)
	require.NoError(t, err)

	recovered, err := sig.RecoverPublicKey(resolved.Digest[:])
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey(), recovered)

	packed := resolved.PackedTransaction(sig)
	assert.Equal(t, resolved.Packed(), packed.PackedTrx)
	assert.Equal(t, []ecc.Signature{sig}, packed.Signatures)

	_, err = resolved.Sign(failingSigner{})
	assert.True(t, errors.Is(err, errors.ErrSignFailed))
}

func mustReadName(t *testing.T, data []byte) string {
	name, err := codec.NewReader(data).ReadName()
	require.NoError(t, err)
	return name.String()
}
