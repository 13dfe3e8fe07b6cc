package codec

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasislabs/signing-gateway/errors"
)

var eosChainID = MustChainID("aca376f206b8fc25a6ed44dbdc66547c36c6c33e3a119ffbeaef943642f0e906")

func transferRequest() *Request {
	return &Request{
		ChainID: eosChainID,
		Kind:    KindAction,
		Actions: []Action{{
			Account: MustName("eosio.token"),
			Name:    MustName("transfer"),
			Authorization: []PermissionLevel{{
				Actor:      PlaceholderActor,
				Permission: PlaceholderPermission,
			}},
			Data: []byte{0, 1, 2, 3, 4, 5, 6, 7},
		}},
		Broadcast:  true,
		Background: true,
		Callback:   "https://example.com/cb?tx={{tx}}",
		Info: map[string]string{
			InfoReturnPath: "https://example.com/return",
			InfoReqAccount: "alice",
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, compress := range []bool{true, false} {
		req := transferRequest()
		uri, err := Encode(req, "esr", compress)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(uri, "esr:"))

		decoded, err := Decode(uri, DefaultSchemes)
		require.NoError(t, err)
		assert.Equal(t, req, decoded)
	}
}

func TestDecodeRoundTripAllKinds(t *testing.T) {
	custom := MustChainID("0000000000000000000000000000000000000000000000000000000000000001")
	permission := &PermissionLevel{Actor: MustName("bob"), Permission: MustName("active")}

	requests := []*Request{
		{ChainID: custom, Kind: KindIdentity},
		{ChainID: eosChainID, Kind: KindIdentity, IdentityPermission: permission, Background: true, Callback: "https://cb"},
		{ChainID: eosChainID, Kind: KindActions, Actions: append(transferRequest().Actions, Action{
			Account: MustName("foo"),
			Name:    MustName("bar"),
			Data:    []byte{},
		})},
		{ChainID: eosChainID, Kind: KindTransaction, Header: &TransactionHeader{Expiration: 10, DelaySec: 300}, Actions: transferRequest().Actions},
	}

	for _, req := range requests {
		uri, err := Encode(req, "web+esr", true)
		require.NoError(t, err)

		decoded, err := Decode(uri, DefaultSchemes)
		require.NoError(t, err)
		assert.Equal(t, req.Kind, decoded.Kind)
		assert.Equal(t, req.ChainID, decoded.ChainID)
		assert.Equal(t, len(req.Actions), len(decoded.Actions))
		assert.Equal(t, req.IdentityPermission, decoded.IdentityPermission)
		assert.Equal(t, req.Header, decoded.Header)
		assert.Equal(t, req.Callback, decoded.Callback)
	}
}

func TestDecodeSchemeWithSlashes(t *testing.T) {
	uri, err := Encode(transferRequest(), "esr", true)
	require.NoError(t, err)

	_, err = Decode(strings.Replace(uri, "esr:", "ESR://", 1), DefaultSchemes)
	assert.NoError(t, err)
}

func TestDecodeUnrecognizedScheme(t *testing.T) {
	uri, err := Encode(transferRequest(), "other", true)
	require.NoError(t, err)

	_, err = Decode(uri, DefaultSchemes)
	assert.True(t, errors.Is(err, errors.ErrUnrecognizedScheme))

	_, err = Decode("no-scheme-at-all", DefaultSchemes)
	assert.True(t, errors.Is(err, errors.ErrUnrecognizedScheme))
}

func TestDecodeChecksumMismatch(t *testing.T) {
	uri, err := Encode(transferRequest(), "esr", false)
	require.NoError(t, err)

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(uri, "esr:"))
	require.NoError(t, err)

	for _, i := range []int{5, len(data) - 1} {
		corrupted := append([]byte{}, data...)
		corrupted[i] ^= 0x01

		_, err = Decode("esr:"+base64.RawURLEncoding.EncodeToString(corrupted), DefaultSchemes)
		assert.True(t, errors.Is(err, errors.ErrMalformedRequest), "byte %d", i)
	}
}

func TestDecodeMalformedCompression(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte{ProtocolVersion | compressedFlag, 0xff, 0xff, 0xff, 0xff})
	_, err := Decode("esr:"+payload, DefaultSchemes)
	assert.True(t, errors.Is(err, errors.ErrMalformedRequest))
}

func TestDecodeMalformedPayloads(t *testing.T) {
	for _, payload := range []string{
		"",
		"!!!",
		base64.RawURLEncoding.EncodeToString([]byte{1}),
		base64.RawURLEncoding.EncodeToString([]byte{ProtocolVersion, 1, 2}),
	} {
		_, err := Decode("esr:"+payload, DefaultSchemes)
		assert.True(t, errors.Is(err, errors.ErrMalformedRequest), payload)
	}
}

func TestDecodeUnknownChainAlias(t *testing.T) {
	body := []byte{chainIDAlias, 99}
	_, err := decodeBody(body)
	assert.Error(t, err)
}

func TestDecodeBodyTrailingBytes(t *testing.T) {
	body, err := encodeBody(transferRequest())
	require.NoError(t, err)

	_, err = decodeBody(append(body, 0))
	assert.Error(t, err)
}

func TestReferencedContracts(t *testing.T) {
	req := transferRequest()
	req.Actions = append(req.Actions,
		Action{Account: MustName("foo"), Name: MustName("a")},
		Action{Account: MustName("eosio.token"), Name: MustName("b")},
	)

	assert.Equal(t, []Name{MustName("eosio.token"), MustName("foo")}, req.ReferencedContracts())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "identity", KindIdentity.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
