// Package callback delivers the results of signing requests to the
// requesters that made them
package callback

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/resolver"
)

// Payload keys sent to the requester
const (
	KeySignature   = "sig"
	KeyTransaction = "tx"
	KeyRefBlockNum = "rbn"
	KeyRefBlockID  = "rid"
	KeyExpiration  = "ex"
	KeyRequest     = "req"
	KeyActor       = "sa"
	KeyPermission  = "sp"
	KeyChainID     = "cid"
	KeyBlockNum    = "block_num"
	KeyRejected    = "rejected"
	KeySessionID   = "sid"
	KeyLinkKey     = "link_key"
	KeyLinkChannel = "link_ch"
	KeyLinkName    = "link_name"
)

const expirationFormat = "2006-01-02T15:04:05"

var placeholder = regexp.MustCompile(`{{([a-z0-9_]+)}}`)

// Payload is the set of fields delivered to the requester
type Payload map[string]string

// With returns a copy of the payload with the extra fields added
func (p Payload) With(extra map[string]string) Payload {
	merged := make(Payload, len(p)+len(extra))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// ResolvedCallback is the destination of the result of a request
type ResolvedCallback struct {
	// URL is the callback of the request. For foreground callbacks
	// it is a template expanded with the payload
	URL string

	// Background callbacks are POSTed by the wallet. Foreground ones
	// are returned to the caller to be opened
	Background bool

	uri      string
	resolved *resolver.ResolvedRequest
}

// Resolve returns the callback of a resolved request, or nil if the
// request has none. uri is the encoded request echoed back to the
// requester
func Resolve(uri string, resolved *resolver.ResolvedRequest) *ResolvedCallback {
	if len(resolved.Request.Callback) == 0 {
		return nil
	}

	return &ResolvedCallback{
		URL:        resolved.Request.Callback,
		Background: resolved.Request.Background,
		uri:        uri,
		resolved:   resolved,
	}
}

// Payload builds the fields of the callback for the provided
// signatures. blockNum is only included when it is not zero, which
// is the case once the transaction has been broadcast
func (c *ResolvedCallback) Payload(sigs []ecc.Signature, blockNum uint32) Payload {
	tx := c.resolved.Transaction
	p := Payload{
		KeyTransaction: c.resolved.TransactionID(),
		KeyRefBlockNum: strconv.FormatUint(uint64(tx.RefBlockNum), 10),
		KeyRefBlockID:  strconv.FormatUint(uint64(tx.RefBlockPrefix), 10),
		KeyExpiration:  time.Unix(int64(tx.Expiration), 0).UTC().Format(expirationFormat),
		KeyRequest:     c.uri,
		KeyActor:       c.resolved.Signer.Actor.String(),
		KeyPermission:  c.resolved.Signer.Permission.String(),
		KeyChainID:     c.resolved.Request.ChainID.String(),
	}

	for i, sig := range sigs {
		if i == 0 {
			p[KeySignature] = sig.String()
			continue
		}
		p[fmt.Sprintf("%s%d", KeySignature, i)] = sig.String()
	}

	if blockNum > 0 {
		p[KeyBlockNum] = strconv.FormatUint(uint64(blockNum), 10)
	}

	return p
}

// ExpandURL replaces the {{key}} placeholders of the callback url with
// the escaped payload values. Unknown keys expand to nothing
func (c *ResolvedCallback) ExpandURL(payload Payload) string {
	return placeholder.ReplaceAllStringFunc(c.URL, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		return url.QueryEscape(payload[key])
	})
}
