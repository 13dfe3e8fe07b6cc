package engine

import (
	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/resolver"
)

// Account is the account that signs requests on a chain
type Account struct {
	ChainID    codec.ChainID
	Actor      codec.Name
	Permission codec.Name
}

// PermissionLevel returns the permission the account signs with
func (a Account) PermissionLevel() codec.PermissionLevel {
	return codec.PermissionLevel{Actor: a.Actor, Permission: a.Permission}
}

// ApprovalRequest is a request waiting for the user to accept or
// decline it
type ApprovalRequest struct {
	ID string

	// URI is the encoded request as received
	URI string

	// RequesterKey is the long term public key of the requester, if
	// it is known
	RequesterKey string

	// SessionID is the session through which the request arrived
	SessionID string

	// RequestedAccount is the account the requester asked for, if any
	RequestedAccount codec.Name

	Account  Account
	Request  *codec.Request
	Resolved *resolver.ResolvedRequest

	// Summaries classify the actions for display. Identity requests
	// have none
	Summaries []resolver.Summary

	ReturnPath string
}

// IsIdentity returns true if the request asks for an identity
func (r *ApprovalRequest) IsIdentity() bool {
	return r.Request.IsIdentity()
}
