package authz

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the variants of Value.
type ValueKind uint8

const (
	KindAbsent ValueKind = iota // zero Value: no attribute present
	KindString
	KindNumber
	KindBool
	KindArray
)

// Value is a tagged variant holding one loosely-typed attribute value.
// Stored attribute values are JSON; representing them as a closed variant
// lets the condition evaluator pattern-match instead of comparing interface
// values dynamically.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	arr  []Value
}

func StringValue(s string) Value  { return Value{kind: KindString, str: s} }
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }

// ArrayValue builds a sequence value. The elements keep their own kinds.
func ArrayValue(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }

func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether this is the zero Value, i.e. the attribute was
// never set for the principal.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Equal is structural equality: kinds must match and contents compare
// element-wise for arrays. Absent values equal nothing, including each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.kind == KindAbsent {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Number returns the numeric content; ok is false for non-numeric kinds.
func (v Value) Number() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Array returns the sequence content; ok is false for non-array kinds.
func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// Text returns the string content; ok is false for non-string kinds.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Bool returns the boolean content; ok is false for non-bool kinds.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// String renders the value for traces and logs.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindArray:
		parts := make([]string, 0, len(v.arr))
		for _, it := range v.arr {
			parts = append(parts, it.String())
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return "<absent>"
}

// Interface converts back to the loose representation used by JSON and YAML.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindArray:
		out := make([]any, 0, len(v.arr))
		for _, it := range v.arr {
			out = append(out, it.Interface())
		}
		return out
	}
	return nil
}

// ValueFrom converts a loosely-typed value (as produced by encoding/json or
// yaml.v3 decoding into any) into a tagged Value. Integers of every width and
// floats collapse into KindNumber. Nested maps are rejected: attribute values
// are flat scalars or arrays of scalars.
func ValueFrom(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return NumberValue(t), nil
	case float32:
		return NumberValue(float64(t)), nil
	case int:
		return NumberValue(float64(t)), nil
	case int32:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case uint64:
		return NumberValue(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("numeric value %q: %w", t.String(), err)
		}
		return NumberValue(f), nil
	case []any:
		items := make([]Value, 0, len(t))
		for i, it := range t {
			v, err := ValueFrom(it)
			if err != nil {
				return Value{}, fmt.Errorf("array element %d: %w", i, err)
			}
			items = append(items, v)
		}
		return ArrayValue(items...), nil
	case []string:
		items := make([]Value, 0, len(t))
		for _, s := range t {
			items = append(items, StringValue(s))
		}
		return ArrayValue(items...), nil
	default:
		return Value{}, fmt.Errorf("unsupported attribute value type %T", x)
	}
}

// MarshalJSON writes the loose JSON form; absent values encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts any flat JSON value (or array of flat values).
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueFrom(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
