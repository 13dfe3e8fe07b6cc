package codec

import (
	"strings"

	stderr "github.com/pkg/errors"
)

const nameCharset = ".12345abcdefghijklmnopqrstuvwxyz"

// Name is an account, contract, action or permission name encoded in
// 64 bits. Names hold up to 12 characters of the set a-z, 1-5 and
// `.`, plus an optional 13th character of the set a-j, 1-5 and `.`
type Name uint64

const (
	// PlaceholderActor resolves to the account of the signer
	PlaceholderActor Name = 1

	// PlaceholderPermission resolves to the permission of the signer
	PlaceholderPermission Name = 2
)

func charValue(c byte) (uint64, bool) {
	i := strings.IndexByte(nameCharset, c)
	if i < 0 {
		return 0, false
	}
	return uint64(i), true
}

// ParseName encodes s into a Name
func ParseName(s string) (Name, error) {
	if len(s) > 13 {
		return 0, stderr.Errorf("name %q is longer than 13 characters", s)
	}

	var value uint64
	for i := 0; i < len(s); i++ {
		c, ok := charValue(s[i])
		if !ok {
			return 0, stderr.Errorf("name %q has invalid character %q", s, s[i])
		}

		if i < 12 {
			value |= (c & 0x1f) << uint(64-5*(i+1))
		} else {
			if c > 0x0f {
				return 0, stderr.Errorf("name %q has invalid 13th character %q", s, s[i])
			}
			value |= c & 0x0f
		}
	}

	return Name(value), nil
}

// MustName is like ParseName but panics on invalid names
func MustName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Name) String() string {
	var out [13]byte
	value := uint64(n)

	for i := 0; i <= 12; i++ {
		var c uint64
		if i == 0 {
			c = value & 0x0f
			value >>= 4
		} else {
			c = value & 0x1f
			value >>= 5
		}
		out[12-i] = nameCharset[c]
	}

	return strings.TrimRight(string(out[:]), ".")
}

// IsPlaceholder returns true if the name resolves to the signer
func (n Name) IsPlaceholder() bool {
	return n == PlaceholderActor || n == PlaceholderPermission
}
