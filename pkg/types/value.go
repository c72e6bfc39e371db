package types

import (
	"encoding/json"
	"fmt"
)

// Value is a weakly-typed, JSON-round-trippable payload container. Step
// inputs/outputs and action payloads are Values: scalars, sequences, and
// mappings all serialize to the UI and persistence collaborators without a
// schema. The zero Value marshals as null.
type Value struct {
	raw json.RawMessage
}

// NewValue builds a Value from any JSON-marshalable Go value.
func NewValue(v any) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("encode value: %w", err)
	}
	return Value{raw: data}, nil
}

// ValueOf builds a Value from v, falling back to v's string form when v does
// not marshal. Used at call boundaries where an encode error has nowhere to go.
func ValueOf(v any) Value {
	val, err := NewValue(v)
	if err != nil {
		val, _ = NewValue(fmt.Sprint(v))
	}
	return val
}

// StringValue builds a Value holding a JSON string.
func StringValue(s string) Value {
	data, _ := json.Marshal(s)
	return Value{raw: data}
}

// RawValue wraps pre-encoded JSON without re-encoding it.
func RawValue(data json.RawMessage) Value {
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Value{raw: raw}
}

// IsZero reports whether the Value holds nothing (marshals as null).
func (v Value) IsZero() bool {
	return len(v.raw) == 0
}

// Raw returns the underlying JSON encoding, nil for the zero Value.
func (v Value) Raw() json.RawMessage {
	return v.raw
}

// Decode unmarshals the Value into dst. Decoding the zero Value is a no-op.
func (v Value) Decode(dst any) error {
	if len(v.raw) == 0 {
		return nil
	}
	return json.Unmarshal(v.raw, dst)
}

// Map returns the Value as a generic mapping. ok is false when the Value is
// zero or not a JSON object.
func (v Value) Map() (m map[string]any, ok bool) {
	if err := v.Decode(&m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// Text renders the Value for display: JSON strings are unquoted, everything
// else is the compact JSON encoding. The zero Value renders as "".
func (v Value) Text() string {
	if len(v.raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.raw, &s); err == nil {
		return s
	}
	return string(v.raw)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		v.raw = nil
		return nil
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	v.raw = raw
	return nil
}
