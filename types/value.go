// Package types defines the dynamically typed key/value representation used
// by the storage core. Document fields are an open union (string, number,
// boolean, big integer, binary, nested JSON object); Value carries one
// variant with a total ordering and a lossless tagged JSON codec so that
// keys survive serialization with their order intact.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"
)

type Kind uint8

const (
	KindBool Kind = iota
	KindNumber
	KindBigInt
	KindString
	KindBytes
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindBigInt:
		return "bigint"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a single tagged variant. The zero Value is the boolean false.
type Value struct {
	kind Kind
	b    bool
	num  float64
	big  *big.Int
	str  string
	raw  []byte          // KindBytes payload
	obj  json.RawMessage // KindObject payload, as given
}

func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func String(s string) Value  { return Value{kind: KindString, str: s} }

func Bytes(b []byte) Value {
	return Value{kind: KindBytes, raw: append([]byte(nil), b...)}
}

func BigInt(i *big.Int) Value {
	return Value{kind: KindBigInt, big: new(big.Int).Set(i)}
}

// Object wraps a raw JSON document. The bytes must be valid JSON; they are
// compared byte-wise, so callers that need stable ordering across encoders
// should canonicalize first.
func Object(raw json.RawMessage) Value {
	return Value{kind: KindObject, obj: append(json.RawMessage(nil), raw...)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() bool              { return v.b }
func (v Value) AsNumber() float64         { return v.num }
func (v Value) AsString() string          { return v.str }
func (v Value) AsBytes() []byte           { return v.raw }
func (v Value) AsBigInt() *big.Int        { return v.big }
func (v Value) AsObject() json.RawMessage { return v.obj }

// Size reports the approximate encoded size in bytes. Used to enforce the
// storage backend's maximum key size.
func (v Value) Size() int {
	switch v.kind {
	case KindBool:
		return 1
	case KindNumber:
		return 8
	case KindBigInt:
		return len(v.big.Bytes()) + 1
	case KindString:
		return len(v.str)
	case KindBytes:
		return len(v.raw)
	case KindObject:
		return len(v.obj)
	}
	return 0
}

// Compare is a total order over all variants: values of different kinds
// order by kind rank, values of the same kind order by their payload.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		}
		return 1
	case KindNumber:
		// NaN gets a fixed rank below every other number so the order stays
		// total; IEEE comparisons alone would make NaN unequal to itself.
		aNaN, bNaN := math.IsNaN(a.num), math.IsNaN(b.num)
		switch {
		case aNaN && bNaN:
			return 0
		case aNaN:
			return -1
		case bNaN:
			return 1
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case KindBigInt:
		return a.big.Cmp(b.big)
	case KindString:
		return strings.Compare(a.str, b.str)
	case KindBytes:
		return bytes.Compare(a.raw, b.raw)
	case KindObject:
		return bytes.Compare(a.obj, b.obj)
	}
	return 0
}

func (v Value) Equal(o Value) bool { return Compare(v, o) == 0 }

// String renders the value for debugging and the inspect tool.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindNumber:
		return fmt.Sprintf("%g", v.num)
	case KindBigInt:
		return v.big.String() + "n"
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindBytes:
		return fmt.Sprintf("0x%x", v.raw)
	case KindObject:
		return string(v.obj)
	}
	return "?"
}
