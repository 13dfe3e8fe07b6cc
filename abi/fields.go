package abi

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/oasislabs/signing-gateway/codec"
)

// Symbol is a token symbol with its precision
type Symbol struct {
	Precision uint8
	Code      string
}

func newSymbol(v uint64) Symbol {
	s := Symbol{Precision: uint8(v & 0xff)}

	var code strings.Builder
	for v >>= 8; v > 0; v >>= 8 {
		code.WriteByte(byte(v & 0xff))
	}
	s.Code = code.String()
	return s
}

func (s Symbol) String() string {
	return fmt.Sprintf("%d,%s", s.Precision, s.Code)
}

// Asset is a token amount
type Asset struct {
	Amount int64
	Symbol Symbol
}

func (a Asset) String() string {
	amount := a.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	s := fmt.Sprintf("%d", amount)
	if p := int(a.Symbol.Precision); p > 0 {
		if len(s) <= p {
			s = strings.Repeat("0", p-len(s)+1) + s
		}
		s = s[:len(s)-p] + "." + s[len(s)-p:]
	}

	return fmt.Sprintf("%s%s %s", sign, s, a.Symbol.Code)
}

// FieldValue is a decoded top level field of an action payload
type FieldValue struct {
	Name  string
	Type  string
	Value interface{}

	// Offset and Size locate the encoded value in the payload
	Offset int
	Size   int
}

// decodeField decodes a value of a builtin type. ok is false for
// types that are not supported
func decodeField(r *codec.Reader, typ string) (value interface{}, ok bool, err error) {
	switch typ {
	case "bool":
		value, err = r.ReadBool()
	case "int8":
		var v uint8
		v, err = r.ReadUint8()
		value = int8(v)
	case "uint8":
		value, err = r.ReadUint8()
	case "int16":
		var v uint16
		v, err = r.ReadUint16()
		value = int16(v)
	case "uint16":
		value, err = r.ReadUint16()
	case "int32":
		var v uint32
		v, err = r.ReadUint32()
		value = int32(v)
	case "uint32":
		value, err = r.ReadUint32()
	case "int64":
		var v uint64
		v, err = r.ReadUint64()
		value = int64(v)
	case "uint64":
		value, err = r.ReadUint64()
	case "varuint32":
		value, err = r.ReadVarUint32()
	case "name":
		value, err = r.ReadName()
	case "string":
		value, err = r.ReadString()
	case "bytes":
		value, err = r.ReadBytes()
	case "symbol":
		var v uint64
		v, err = r.ReadUint64()
		value = newSymbol(v)
	case "symbol_code":
		var v uint64
		v, err = r.ReadUint64()
		value = newSymbol(v << 8).Code
	case "asset":
		var amount, symbol uint64
		if amount, err = r.ReadUint64(); err == nil {
			symbol, err = r.ReadUint64()
		}
		value = Asset{Amount: int64(amount), Symbol: newSymbol(symbol)}
	case "checksum256":
		var b []byte
		b, err = r.ReadRaw(32)
		value = hex.EncodeToString(b)
	default:
		return nil, false, nil
	}

	return value, true, err
}

// DecodeFields decodes the top level fields of the struct structName
// from data. Decoding stops at the first field of a type that is not
// supported, and the fields decoded until then are returned. complete
// is true only if every field was decoded and data was fully consumed
func DecodeFields(abi *ABI, structName string, data []byte) (fields []FieldValue, complete bool, err error) {
	s, ok := abi.Struct(structName)
	if !ok {
		return nil, false, fmt.Errorf("struct %q is not defined", structName)
	}

	r := codec.NewReader(data)
	for _, f := range s.Fields {
		typ := abi.ResolveType(f.Type)
		offset := len(data) - r.Remaining()

		value, ok, err := decodeField(r, typ)
		if !ok {
			return fields, false, nil
		}
		if err != nil {
			return fields, false, fmt.Errorf("failed to decode field %q: %s", f.Name, err.Error())
		}

		fields = append(fields, FieldValue{
			Name:   f.Name,
			Type:   typ,
			Value:  value,
			Offset: offset,
			Size:   len(data) - r.Remaining() - offset,
		})
	}

	return fields, r.Remaining() == 0, nil
}
