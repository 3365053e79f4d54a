package migration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ValueKind is the variant held by a payload Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	// KindOther holds nested arrays/objects as compact JSON text.
	KindOther
)

// Value is one scalar of a legacy payload.
type Value struct {
	Kind ValueKind
	// Text is the string content, the number literal, "true"/"false",
	// or the compact JSON of a nested value.
	Text string
}

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{Kind: KindString, Text: s} }

// NumberValue returns a number Value from its literal.
func NumberValue(literal string) Value { return Value{Kind: KindNumber, Text: literal} }

// NullValue returns the null Value.
func NullValue() Value { return Value{Kind: KindNull} }

// String renders the value the way legacy exports stringify it; null is "null"
// and numbers are written in plain decimal form ("1e3" is "1000").
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindNumber:
		if d, err := decimal.NewFromString(v.Text); err == nil {
			return d.String()
		}
	}
	return v.Text
}

// Truthy reports whether the value counts as present for field detection:
// non-empty strings, non-zero numbers, true, and nested values.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindString:
		return v.Text != ""
	case KindNumber:
		f, err := strconv.ParseFloat(v.Text, 64)
		return err == nil && f != 0
	case KindBool:
		return v.Text == "true"
	case KindOther:
		return true
	default:
		return false
	}
}

// Payload is an open, string-keyed record that remembers key order.
type Payload struct {
	keys   []string
	values map[string]Value
}

// NewPayload returns an empty payload.
func NewPayload() Payload {
	return Payload{values: make(map[string]Value)}
}

// Set stores a value. A repeated key keeps its first position.
func (p *Payload) Set(key string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Get returns the value stored under key.
func (p Payload) Get(key string) (Value, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (p Payload) Keys() []string {
	return p.keys
}

// Len returns the number of keys.
func (p Payload) Len() int {
	return len(p.keys)
}

// MarshalJSON encodes the payload as a JSON object in key order.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		v := p.values[key]
		switch v.Kind {
		case KindNull:
			buf.WriteString("null")
		case KindString:
			s, err := json.Marshal(v.Text)
			if err != nil {
				return nil, err
			}
			buf.Write(s)
		default:
			buf.WriteString(v.Text)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrInvalidJSONShape
	}

	*p = NewPayload()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := valueFromJSON(raw)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		p.Set(key, v)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// ParsePayload decodes a stored raw_payload.
func ParsePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("invalid raw payload: %w", err)
	}
	return p, nil
}

func valueFromJSON(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Value{}, fmt.Errorf("empty value")
	}

	switch trimmed[0] {
	case 'n':
		return NullValue(), nil
	case 't', 'f':
		return Value{Kind: KindBool, Text: string(trimmed)}, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindOther, Text: buf.String()}, nil
	default:
		return NumberValue(string(trimmed)), nil
	}
}
