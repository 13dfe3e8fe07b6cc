package resolver

import (
	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/errors"
)

// disallowed are actions that change the permissions, keys or code
// of an account. A request that contains any of them is never signed
var disallowed = map[codec.Name]struct{}{
	codec.MustName("updateauth"):  {},
	codec.MustName("deleteauth"):  {},
	codec.MustName("linkauth"):    {},
	codec.MustName("unlinkauth"):  {},
	codec.MustName("canceldelay"): {},
	codec.MustName("setcode"):     {},
	codec.MustName("setabi"):      {},
	codec.MustName("newaccount"):  {},
	codec.MustName("setpriv"):     {},
	codec.MustName("setalimits"):  {},
	codec.MustName("setparams"):   {},
}

// IsDisallowed returns true if an action with the provided name can
// never be part of a signed request
func IsDisallowed(name codec.Name) bool {
	_, ok := disallowed[name]
	return ok
}

// CheckPolicy returns DisallowedAction for the first action in the
// request whose name is on the deny list
func CheckPolicy(req *codec.Request) error {
	for _, action := range req.Actions {
		if IsDisallowed(action.Name) {
			return errors.Newf(errors.ErrDisallowedAction, "%s", action.Name)
		}
	}

	return nil
}
