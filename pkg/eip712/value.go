package eip712

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

// String returns the JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a node of the domain or message tree. It is a closed union over
// the JSON shapes a typed-data document can carry; numbers keep their
// literal text so no precision is lost before coercion.
type Value struct {
	kind  Kind
	text  string
	flag  bool
	items []Value
	attrs map[string]Value
}

// NullValue returns the null value.
func NullValue() Value { return Value{kind: KindNull} }

// StringValue wraps a JSON string.
func StringValue(s string) Value { return Value{kind: KindString, text: s} }

// NumberValue wraps a JSON number literal.
func NumberValue(n json.Number) Value { return Value{kind: KindNumber, text: n.String()} }

// BoolValue wraps a JSON boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, flag: b} }

// ArrayValue wraps an ordered list of values.
func ArrayValue(items ...Value) Value { return Value{kind: KindArray, items: items} }

// ObjectValue wraps a mapping from field name to value.
func ObjectValue(attrs map[string]Value) Value {
	if attrs == nil {
		attrs = map[string]Value{}
	}
	return Value{kind: KindObject, attrs: attrs}
}

// NewValue converts a decoded Go value into a Value. It understands the
// shapes produced by encoding/json (with or without UseNumber) plus a few
// native integer types.
func NewValue(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case string:
		return StringValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case float64:
		return NumberValue(json.Number(strconv.FormatFloat(t, 'f', -1, 64))), nil
	case int:
		return NumberValue(json.Number(strconv.Itoa(t))), nil
	case int64:
		return NumberValue(json.Number(strconv.FormatInt(t, 10))), nil
	case uint64:
		return NumberValue(json.Number(strconv.FormatUint(t, 10))), nil
	case *big.Int:
		if t == nil {
			return NullValue(), nil
		}
		return NumberValue(json.Number(t.String())), nil
	case bool:
		return BoolValue(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := NewValue(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ArrayValue(items...), nil
	case map[string]any:
		attrs := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := NewValue(item)
			if err != nil {
				return Value{}, err
			}
			attrs[k] = v
		}
		return ObjectValue(attrs), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.text, v.kind == KindString }

// Number returns the number literal and whether v is a number.
func (v Value) Number() (json.Number, bool) { return json.Number(v.text), v.kind == KindNumber }

// Bool returns the boolean payload and whether v is a boolean.
func (v Value) Bool() (bool, bool) { return v.flag, v.kind == KindBool }

// Items returns the elements and whether v is an array.
func (v Value) Items() ([]Value, bool) { return v.items, v.kind == KindArray }

// Field returns the named member of an object value.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.attrs[name]
	return f, ok
}

// Keys returns the member names of an object value in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.attrs))
	for k := range v.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnmarshalJSON decodes any JSON value, keeping numbers as literals.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}
	parsed, err := NewValue(x)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON encodes v back to JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.text)
	case KindNumber:
		return []byte(v.text), nil
	case KindBool:
		return json.Marshal(v.flag)
	case KindArray:
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	case KindObject:
		return json.Marshal(v.attrs)
	default:
		return []byte("null"), nil
	}
}
