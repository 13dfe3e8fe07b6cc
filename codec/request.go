package codec

import (
	"encoding/hex"
	"sort"

	"github.com/iancoleman/strcase"
	stderr "github.com/pkg/errors"
)

// Kind is the type of payload a signing request carries
type Kind uint8

const (
	KindAction Kind = iota
	KindActions
	KindTransaction
	KindIdentity
)

var kindNames = map[Kind]string{
	KindAction:      "Action",
	KindActions:     "Actions",
	KindTransaction: "Transaction",
	KindIdentity:    "Identity",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return strcase.ToSnake(s)
	}
	return "unknown"
}

// Info keys understood by the engine
const (
	InfoReturnPath    = "return_path"
	InfoLinkKey       = "link_key"
	InfoSessionID     = "sid"
	InfoReqAccount    = "req_account"
	InfoExpireSeconds = "expire_seconds"
)

const (
	FlagBroadcast  uint8 = 1 << 0
	FlagBackground uint8 = 1 << 1
)

// ChainID is the checksum256 identifier of a chain
type ChainID [32]byte

// ParseChainID parses the hex representation of a chain id
func ParseChainID(s string) (ChainID, error) {
	var id ChainID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, stderr.Wrap(err, "invalid chain id")
	}
	if len(b) != len(id) {
		return id, stderr.Errorf("invalid chain id length %d", len(b))
	}

	copy(id[:], b)
	return id, nil
}

// MustChainID is like ParseChainID but panics on failure
func MustChainID(s string) ChainID {
	id, err := ParseChainID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ChainID) String() string {
	return hex.EncodeToString(id[:])
}

// Well known chains that a request may reference by alias
var chainAliases = map[uint8]ChainID{
	1:  MustChainID("aca376f206b8fc25a6ed44dbdc66547c36c6c33e3a119ffbeaef943642f0e906"),
	2:  MustChainID("4667b205c6838ef70ff7988f6e8257e8be0e1284a2f59699054a018f743b1d11"),
	3:  MustChainID("e70aaab8997e1dfce58fbfac80cbbb8fecec7b99cf982a9444273cbc64c41473"),
	4:  MustChainID("5fff1dae8dc8e2fc4d5b23b2c7665c97f9e9d8edf2b6485a86ba311c25639191"),
	10: MustChainID("1064487b3cd1a897ce03ae5b6a865651747e2e152090f99c1d19d44e01aea5a4"),
}

func chainAlias(id ChainID) (uint8, bool) {
	for alias, known := range chainAliases {
		if known == id {
			return alias, true
		}
	}
	return 0, false
}

// PermissionLevel is an actor and the permission it authorizes with
type PermissionLevel struct {
	Actor      Name
	Permission Name
}

// Action is a contract call. Data is the binary payload of the call
// which is only interpreted through the contract ABI
type Action struct {
	Account       Name
	Name          Name
	Authorization []PermissionLevel
	Data          []byte
}

// TransactionHeader carries the expiration and reference block of a
// transaction
type TransactionHeader struct {
	Expiration       uint32
	RefBlockNum      uint16
	RefBlockPrefix   uint32
	MaxNetUsageWords uint32
	MaxCPUUsageMs    uint8
	DelaySec         uint32
}

// IsZero returns true if no header field is set. A zero header
// means the request leaves tapos to the wallet
func (h TransactionHeader) IsZero() bool {
	return h == TransactionHeader{}
}

// Request is a decoded signing request. It is not modified once
// decoded
type Request struct {
	ChainID            ChainID
	Kind               Kind
	Actions            []Action
	Header             *TransactionHeader
	IdentityPermission *PermissionLevel
	Broadcast          bool
	Background         bool
	Callback           string
	Info               map[string]string
}

// IsIdentity returns true for identity requests
func (r *Request) IsIdentity() bool {
	return r.Kind == KindIdentity
}

// InfoValue returns the metadata value for key
func (r *Request) InfoValue(key string) (string, bool) {
	if r.Info == nil {
		return "", false
	}
	v, ok := r.Info[key]
	return v, ok
}

// ReferencedContracts returns the distinct contracts whose ABIs are
// needed to resolve the request, in order of first appearance
func (r *Request) ReferencedContracts() []Name {
	var contracts []Name
	seen := make(map[Name]bool)

	for _, action := range r.Actions {
		if seen[action.Account] {
			continue
		}
		seen[action.Account] = true
		contracts = append(contracts, action.Account)
	}

	return contracts
}

// infoKeys returns the metadata keys in a deterministic order
func (r *Request) infoKeys() []string {
	keys := make([]string, 0, len(r.Info))
	for key := range r.Info {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
