// Package abitest provides contract interfaces and payloads for tests
package abitest

import (
	"github.com/oasislabs/signing-gateway/abi"
	"github.com/oasislabs/signing-gateway/codec"
)

// Token is the interface of a token contract
var Token = &abi.ABI{
	Version: "eosio::abi/1.1",
	Types:   []abi.TypeDef{{NewTypeName: "account_name", Type: "name"}},
	Structs: []abi.Struct{
		{
			Name: "transfer",
			Fields: []abi.Field{
				{Name: "from", Type: "account_name"},
				{Name: "to", Type: "name"},
				{Name: "quantity", Type: "asset"},
				{Name: "memo", Type: "string"},
			},
		},
		{
			Name: "open",
			Fields: []abi.Field{
				{Name: "owner", Type: "name"},
				{Name: "symbol", Type: "symbol"},
				{Name: "ram_payer", Type: "name"},
			},
		},
	},
	Actions: []abi.Action{
		{Name: codec.MustName("transfer"), Type: "transfer"},
		{Name: codec.MustName("open"), Type: "open"},
	},
}

// Custom is the interface of a contract with an action whose payload
// has types that are not decoded
var Custom = &abi.ABI{
	Version: "eosio::abi/1.1",
	Structs: []abi.Struct{
		{Name: "base", Fields: []abi.Field{{Name: "user", Type: "name"}}},
		{
			Name: "vote",
			Base: "base",
			Fields: []abi.Field{
				{Name: "producers", Type: "name[]"},
			},
		},
	},
	Actions: []abi.Action{
		{Name: codec.MustName("vote"), Type: "vote"},
	},
}

// TokenRaw returns the binary form of Token
func TokenRaw() []byte {
	return abi.Encode(Token)
}

// CustomRaw returns the binary form of Custom
func CustomRaw() []byte {
	return abi.Encode(Custom)
}

// Symbol encodes a symbol of the provided precision and code
func Symbol(precision uint8, code string) uint64 {
	v := uint64(precision)
	for i := 0; i < len(code); i++ {
		v |= uint64(code[i]) << uint(8*(i+1))
	}
	return v
}

// TransferData encodes the payload of a transfer action
func TransferData(from, to codec.Name, amount int64, symbol uint64, memo string) []byte {
	var w codec.Writer
	w.WriteName(from)
	w.WriteName(to)
	w.WriteUint64(uint64(amount))
	w.WriteUint64(symbol)
	w.WriteString(memo)
	return w.Bytes()
}

// TransferAction returns a transfer from the signer placeholder
func TransferAction(to string, amount int64, memo string) codec.Action {
	return codec.Action{
		Account: codec.MustName("eosio.token"),
		Name:    codec.MustName("transfer"),
		Authorization: []codec.PermissionLevel{{
			Actor:      codec.PlaceholderActor,
			Permission: codec.PlaceholderPermission,
		}},
		Data: TransferData(codec.PlaceholderActor, codec.MustName(to), amount, Symbol(4, "EOS"), memo),
	}
}
