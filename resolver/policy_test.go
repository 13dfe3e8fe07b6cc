package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/errors"
)

func TestIsDisallowed(t *testing.T) {
	assert.True(t, IsDisallowed(codec.MustName("updateauth")))
	assert.True(t, IsDisallowed(codec.MustName("setabi")))
	assert.False(t, IsDisallowed(codec.MustName("transfer")))
}

func TestCheckPolicyReportsFirst(t *testing.T) {
	req := &codec.Request{Actions: []codec.Action{
		{Name: codec.MustName("transfer")},
		{Name: codec.MustName("deleteauth")},
		{Name: codec.MustName("setcode")},
	}}

	err := CheckPolicy(req)
	assert.True(t, errors.Is(err, errors.ErrDisallowedAction))
	assert.Contains(t, err.Error(), "deleteauth")
	assert.NotContains(t, err.Error(), "setcode")
}

func TestCheckPolicyIdentity(t *testing.T) {
	assert.NoError(t, CheckPolicy(&codec.Request{Kind: codec.KindIdentity}))
}
