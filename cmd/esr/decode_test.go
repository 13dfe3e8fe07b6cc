package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/ecc"
)

const eosChainID = "aca376f206b8fc25a6ed44dbdc66547c36c6c33e3a119ffbeaef943642f0e906"

func TestEncodeIdentityDecodes(t *testing.T) {
	key, err := ecc.NewPrivateKey()
	require.NoError(t, err)

	uri, err := runEncodeIdentity(encodeIdentityProps{
		ChainID:    eosChainID,
		Callback:   "https://dapp.example.com/id",
		Background: true,
		LinkKey:    key.PublicKey().String(),
		Compress:   true,
	})
	require.NoError(t, err)

	req, err := codec.Decode(uri, codec.DefaultSchemes)
	require.NoError(t, err)

	view := viewRequest(req)
	assert.Equal(t, eosChainID, view.ChainID)
	assert.Equal(t, "identity", view.Kind)
	assert.True(t, view.Background)
	assert.Equal(t, "https://dapp.example.com/id", view.Callback)
	assert.Equal(t, key.PublicKey().String(), view.Info[codec.InfoLinkKey])
	assert.Empty(t, view.Actions)
}

func TestEncodeIdentityInvalidLinkKey(t *testing.T) {
	_, err := runEncodeIdentity(encodeIdentityProps{ChainID: eosChainID, LinkKey: "PUB_K1_nope"})
	assert.Error(t, err)
}

func TestViewRequestActions(t *testing.T) {
	view := viewRequest(&codec.Request{
		Kind: codec.KindAction,
		Actions: []codec.Action{{
			Account: codec.MustName("eosio.token"),
			Name:    codec.MustName("transfer"),
			Authorization: []codec.PermissionLevel{{
				Actor:      codec.MustName("alice"),
				Permission: codec.MustName("active"),
			}},
			Data: []byte{0x01, 0xff},
		}},
	})

	require.Len(t, view.Actions, 1)
	assert.Equal(t, "action", view.Kind)
	assert.Equal(t, []string{"alice@active"}, view.Actions[0].Authorization)
	assert.Equal(t, "01ff", view.Actions[0].Data)
}
