package resolver

import (
	"github.com/oasislabs/signing-gateway/abi"
	"github.com/oasislabs/signing-gateway/codec"
)

// Classification is the display category of an action
type Classification string

const (
	TokenTransfer Classification = "token_transfer"
	Custom        Classification = "custom"
)

// Summary describes a resolved action for display
type Summary struct {
	Contract       codec.Name
	Action         codec.Name
	Classification Classification

	// Fields are the top level fields of the payload that could be
	// decoded. It is empty if the payload does not match its ABI
	Fields []abi.FieldValue
}

// Field returns the decoded value of the field with the provided name
func (s *Summary) Field(name string) (interface{}, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

var transferShape = []abi.Field{
	{Name: "from", Type: "name"},
	{Name: "to", Type: "name"},
	{Name: "quantity", Type: "asset"},
	{Name: "memo", Type: "string"},
}

func classify(fields []abi.FieldValue, complete bool) Classification {
	if !complete || len(fields) != len(transferShape) {
		return Custom
	}

	for i, f := range fields {
		if f.Name != transferShape[i].Name || f.Type != transferShape[i].Type {
			return Custom
		}
	}

	return TokenTransfer
}
