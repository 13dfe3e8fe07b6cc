package abi

import (
	"strings"

	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/codec"
)

// TypeDef aliases a type name
type TypeDef struct {
	NewTypeName string
	Type        string
}

// Field is a named member of a struct
type Field struct {
	Name string
	Type string
}

// Struct is a struct definition. Base, when set, is the name of a
// struct whose fields precede the fields of this one
type Struct struct {
	Name   string
	Base   string
	Fields []Field
}

// Action maps an action name to the struct of its payload
type Action struct {
	Name              codec.Name
	Type              string
	RicardianContract string
}

// ABI is the interface of a contract. Only the sections needed to
// interpret action payloads are kept
type ABI struct {
	Version string
	Types   []TypeDef
	Structs []Struct
	Actions []Action
}

// Decode parses a binary ABI. Sections after the action definitions
// are ignored
func Decode(b []byte) (*ABI, error) {
	r := codec.NewReader(b)
	abi := &ABI{}

	var err error
	if abi.Version, err = r.ReadString(); err != nil {
		return nil, stderr.Wrap(err, "failed to read abi version")
	}
	if !strings.HasPrefix(abi.Version, "eosio::abi/1.") {
		return nil, stderr.Errorf("unsupported abi version %q", abi.Version)
	}

	count, err := r.ReadVarUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var t TypeDef
		if t.NewTypeName, err = r.ReadString(); err != nil {
			return nil, err
		}
		if t.Type, err = r.ReadString(); err != nil {
			return nil, err
		}
		abi.Types = append(abi.Types, t)
	}

	if count, err = r.ReadVarUint32(); err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var s Struct
		if s.Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		if s.Base, err = r.ReadString(); err != nil {
			return nil, err
		}

		fields, err := r.ReadVarUint32()
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < fields; j++ {
			var f Field
			if f.Name, err = r.ReadString(); err != nil {
				return nil, err
			}
			if f.Type, err = r.ReadString(); err != nil {
				return nil, err
			}
			s.Fields = append(s.Fields, f)
		}
		abi.Structs = append(abi.Structs, s)
	}

	if count, err = r.ReadVarUint32(); err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var a Action
		if a.Name, err = r.ReadName(); err != nil {
			return nil, err
		}
		if a.Type, err = r.ReadString(); err != nil {
			return nil, err
		}
		if a.RicardianContract, err = r.ReadString(); err != nil {
			return nil, err
		}
		abi.Actions = append(abi.Actions, a)
	}

	return abi, nil
}

// Encode serializes the ABI sections this package knows about,
// followed by empty tables, ricardian clauses, error messages and
// extensions
func Encode(abi *ABI) []byte {
	var w codec.Writer

	w.WriteString(abi.Version)
	w.WriteVarUint32(uint32(len(abi.Types)))
	for _, t := range abi.Types {
		w.WriteString(t.NewTypeName)
		w.WriteString(t.Type)
	}

	w.WriteVarUint32(uint32(len(abi.Structs)))
	for _, s := range abi.Structs {
		w.WriteString(s.Name)
		w.WriteString(s.Base)
		w.WriteVarUint32(uint32(len(s.Fields)))
		for _, f := range s.Fields {
			w.WriteString(f.Name)
			w.WriteString(f.Type)
		}
	}

	w.WriteVarUint32(uint32(len(abi.Actions)))
	for _, a := range abi.Actions {
		w.WriteName(a.Name)
		w.WriteString(a.Type)
		w.WriteString(a.RicardianContract)
	}

	for i := 0; i < 4; i++ {
		w.WriteVarUint32(0)
	}

	return w.Bytes()
}

// ResolveType follows type aliases until a non aliased type is found
func (a *ABI) ResolveType(name string) string {
	for i := 0; i < len(a.Types)+1; i++ {
		found := false
		for _, t := range a.Types {
			if t.NewTypeName == name {
				name = t.Type
				found = true
				break
			}
		}
		if !found {
			return name
		}
	}

	return name
}

// ActionType returns the struct name of the payload of the action
func (a *ABI) ActionType(name codec.Name) (string, bool) {
	for _, action := range a.Actions {
		if action.Name == name {
			return a.ResolveType(action.Type), true
		}
	}

	return "", false
}

// Struct returns the struct with the provided name with the fields of
// its bases flattened in front of its own fields
func (a *ABI) Struct(name string) (*Struct, bool) {
	name = a.ResolveType(name)

	var chain []*Struct
	seen := make(map[string]bool)
	for current := name; len(current) > 0; {
		if seen[current] {
			return nil, false
		}
		seen[current] = true

		s := a.findStruct(current)
		if s == nil {
			return nil, false
		}
		chain = append(chain, s)
		current = a.ResolveType(s.Base)
	}

	if len(chain) == 0 {
		return nil, false
	}

	flat := &Struct{Name: chain[0].Name}
	for i := len(chain) - 1; i >= 0; i-- {
		flat.Fields = append(flat.Fields, chain[i].Fields...)
	}

	return flat, true
}

func (a *ABI) findStruct(name string) *Struct {
	for i := range a.Structs {
		if a.Structs[i].Name == name {
			return &a.Structs[i]
		}
	}
	return nil
}
