package store

import (
	"encoding/json"
	"fmt"
)

// ValueKind discriminates the two payload shapes a record can hold.
type ValueKind int

const (
	// KindStructured is a JSON object payload.
	KindStructured ValueKind = iota + 1
	// KindRaw is a free-form string payload.
	KindRaw
)

// Value is a tagged variant: either a structured map or a raw string.
// The zero Value is invalid and rejected by Put.
type Value struct {
	kind       ValueKind
	structured map[string]any
	raw        string
}

// Structured wraps a map payload.
func Structured(m map[string]any) Value {
	return Value{kind: KindStructured, structured: m}
}

// Raw wraps a free-form string payload.
func Raw(s string) Value {
	return Value{kind: KindRaw, raw: s}
}

// Kind reports which variant the value holds. Zero for the zero Value.
func (v Value) Kind() ValueKind { return v.kind }

// Map returns the structured payload, or false for raw/zero values.
func (v Value) Map() (map[string]any, bool) {
	if v.kind != KindStructured {
		return nil, false
	}
	return v.structured, true
}

// Text returns the raw payload, or false for structured/zero values.
func (v Value) Text() (string, bool) {
	if v.kind != KindRaw {
		return "", false
	}
	return v.raw, true
}

// MarshalJSON encodes structured values as JSON objects and raw values
// as JSON strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindStructured:
		if v.structured == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.structured)
	case KindRaw:
		return json.Marshal(v.raw)
	default:
		return nil, fmt.Errorf("store: cannot encode zero Value")
	}
}

// UnmarshalJSON decodes a JSON object into a structured value and a
// JSON string into a raw value. Any other shape is an error.
func (v *Value) UnmarshalJSON(data []byte) error {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch p := probe.(type) {
	case map[string]any:
		*v = Structured(p)
		return nil
	case string:
		*v = Raw(p)
		return nil
	default:
		return fmt.Errorf("store: payload is neither object nor string (got %T)", probe)
	}
}

// encodeValue serializes a value for storage, rejecting the zero Value.
func encodeValue(v Value) (string, error) {
	if v.kind == 0 {
		return "", fmt.Errorf("value is required")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeValue deserializes a stored payload.
func decodeValue(data string) (Value, error) {
	var v Value
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return Value{}, err
	}
	return v, nil
}
