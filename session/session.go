// Package session keeps the sessions established with requesters and
// the push channel connections through which they send new requests
package session

import (
	"time"

	stderr "github.com/pkg/errors"
	ugorji "github.com/ugorji/go/codec"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/ecc"
)

var cborHandle = &ugorji.CborHandle{}

// Session is an established relationship with a requester. ID is the
// string form of the requester's long term public key. Key is the
// session key used to decrypt messages pushed by the requester and
// it is never used to sign transactions
type Session struct {
	ID          string
	Account     codec.Name
	Permission  codec.Name
	ChainID     codec.ChainID
	CallbackURL string
	Key         *ecc.PrivateKey
	ChannelURL  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OpenRequest holds the fields of a session that is opened or
// refreshed after an identity request is accepted
type OpenRequest struct {
	ID          string
	Account     codec.Name
	Permission  codec.Name
	ChainID     codec.ChainID
	CallbackURL string
	Key         *ecc.PrivateKey
	ChannelURL  string
}

// Signer returns the permission the session was established for
func (s *Session) Signer() codec.PermissionLevel {
	return codec.PermissionLevel{Actor: s.Account, Permission: s.Permission}
}

// record is the stored form of a session
type record struct {
	ID          string `codec:"id"`
	Account     string `codec:"account"`
	Permission  string `codec:"permission"`
	ChainID     []byte `codec:"chain_id"`
	CallbackURL string `codec:"callback_url"`
	Key         []byte `codec:"key"`
	ChannelURL  string `codec:"channel_url"`
	CreatedAt   int64  `codec:"created_at"`
	UpdatedAt   int64  `codec:"updated_at"`
}

// Marshal serializes the session to the blob kept by a Store
func (s *Session) Marshal() ([]byte, error) {
	r := record{
		ID:          s.ID,
		Account:     s.Account.String(),
		Permission:  s.Permission.String(),
		ChainID:     s.ChainID[:],
		CallbackURL: s.CallbackURL,
		ChannelURL:  s.ChannelURL,
		CreatedAt:   s.CreatedAt.Unix(),
		UpdatedAt:   s.UpdatedAt.Unix(),
	}
	if s.Key != nil {
		r.Key = s.Key.Bytes()
	}

	var b []byte
	if err := ugorji.NewEncoderBytes(&b, cborHandle).Encode(&r); err != nil {
		return nil, stderr.Wrap(err, "failed to encode session")
	}

	return b, nil
}

// Unmarshal is the inverse of Session.Marshal
func Unmarshal(b []byte) (*Session, error) {
	var r record
	if err := ugorji.NewDecoderBytes(b, cborHandle).Decode(&r); err != nil {
		return nil, stderr.Wrap(err, "failed to decode session")
	}

	if len(r.ID) == 0 {
		return nil, stderr.New("session has no id")
	}
	if len(r.ChainID) != len(codec.ChainID{}) {
		return nil, stderr.Errorf("session %s has invalid chain id", r.ID)
	}

	s := &Session{
		ID:          r.ID,
		CallbackURL: r.CallbackURL,
		ChannelURL:  r.ChannelURL,
		CreatedAt:   time.Unix(r.CreatedAt, 0),
		UpdatedAt:   time.Unix(r.UpdatedAt, 0),
	}
	copy(s.ChainID[:], r.ChainID)

	var err error
	if s.Account, err = codec.ParseName(r.Account); err != nil {
		return nil, stderr.Wrapf(err, "session %s has invalid account", r.ID)
	}
	if s.Permission, err = codec.ParseName(r.Permission); err != nil {
		return nil, stderr.Wrapf(err, "session %s has invalid permission", r.ID)
	}
	if len(r.Key) > 0 {
		if s.Key, err = ecc.PrivateKeyFromBytes(r.Key); err != nil {
			return nil, stderr.Wrapf(err, "session %s has invalid key", r.ID)
		}
	}

	return s, nil
}

func (s *Session) clone() *Session {
	c := *s
	return &c
}
