package types

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Wire form: {"t":"str","v":"hello"}. The tag distinguishes variants that
// JSON alone would conflate (number vs bigint, string vs binary); []byte
// round-trips through JSON's base64 encoding.
type taggedValue struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v"`
}

const (
	tagBool   = "bool"
	tagNumber = "num"
	tagBigInt = "big"
	tagString = "str"
	tagBytes  = "bin"
	tagObject = "obj"
)

func (v Value) MarshalJSON() ([]byte, error) {
	var tag string
	var payload any
	switch v.kind {
	case KindBool:
		tag, payload = tagBool, v.b
	case KindNumber:
		tag, payload = tagNumber, v.num
	case KindBigInt:
		tag, payload = tagBigInt, v.big.String()
	case KindString:
		tag, payload = tagString, v.str
	case KindBytes:
		tag, payload = tagBytes, v.raw
	case KindObject:
		tag, payload = tagObject, v.obj
	default:
		return nil, fmt.Errorf("marshal value: unknown kind %d", v.kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s value: %w", tag, err)
	}
	return json.Marshal(taggedValue{T: tag, V: raw})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var tv taggedValue
	if err := json.Unmarshal(data, &tv); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	switch tv.T {
	case tagBool:
		var b bool
		if err := json.Unmarshal(tv.V, &b); err != nil {
			return fmt.Errorf("unmarshal bool value: %w", err)
		}
		*v = Bool(b)
	case tagNumber:
		var f float64
		if err := json.Unmarshal(tv.V, &f); err != nil {
			return fmt.Errorf("unmarshal number value: %w", err)
		}
		*v = Number(f)
	case tagBigInt:
		var s string
		if err := json.Unmarshal(tv.V, &s); err != nil {
			return fmt.Errorf("unmarshal bigint value: %w", err)
		}
		i, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return fmt.Errorf("unmarshal bigint value: bad digits %q", s)
		}
		*v = Value{kind: KindBigInt, big: i}
	case tagString:
		var s string
		if err := json.Unmarshal(tv.V, &s); err != nil {
			return fmt.Errorf("unmarshal string value: %w", err)
		}
		*v = String(s)
	case tagBytes:
		var b []byte
		if err := json.Unmarshal(tv.V, &b); err != nil {
			return fmt.Errorf("unmarshal binary value: %w", err)
		}
		*v = Value{kind: KindBytes, raw: b}
	case tagObject:
		*v = Value{kind: KindObject, obj: append(json.RawMessage(nil), tv.V...)}
	default:
		return fmt.Errorf("unmarshal value: unknown tag %q", tv.T)
	}
	return nil
}
