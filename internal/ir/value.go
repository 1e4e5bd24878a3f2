package ir

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf16"
)

// Value is a sealed interface representing the attribute value kinds a
// record can hold. Only Null, String, Int, Float, Bool and Time implement it.
type Value interface {
	// Type reports the attribute type this value satisfies.
	// Null reports TypeNull and satisfies every attribute type.
	Type() AttributeType

	attrValue() // Sealed - only these types implement it
}

// Null represents an absent attribute value.
type Null struct{}

func (Null) attrValue()          {}
func (Null) Type() AttributeType { return TypeNull }

// String represents a string attribute value.
type String string

func (String) attrValue()          {}
func (String) Type() AttributeType { return TypeString }

// Int represents an integer attribute value.
type Int int64

func (Int) attrValue()          {}
func (Int) Type() AttributeType { return TypeInt }

// Float represents a floating point attribute value.
type Float float64

func (Float) attrValue()          {}
func (Float) Type() AttributeType { return TypeFloat }

// Bool represents a boolean attribute value.
type Bool bool

func (Bool) attrValue()          {}
func (Bool) Type() AttributeType { return TypeBool }

// Time represents an instant as UTC unix nanoseconds.
// Stored and compared as an integer so SQL and in-memory ordering agree.
type Time int64

func (Time) attrValue()          {}
func (Time) Type() AttributeType { return TypeTime }

// NewTime converts a time.Time to a Time value.
func NewTime(t time.Time) Time {
	return Time(t.UTC().UnixNano())
}

// Std returns the value as a UTC time.Time.
func (t Time) Std() time.Time {
	return time.Unix(0, int64(t)).UTC()
}

// Object is an entity's attribute map.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

// Clone returns a shallow copy. Values are immutable so a shallow copy is a
// full copy.
func (obj Object) Clone() Object {
	if obj == nil {
		return nil
	}
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// WithoutNulls returns a copy of obj with Null attributes dropped. Stores
// use it before encoding: an absent key reads back as Null.
func (obj Object) WithoutNulls() Object {
	out := make(Object, len(obj))
	for k, v := range obj {
		if v == nil || v.Type() == TypeNull {
			continue
		}
		out[k] = v
	}
	return out
}

// Apply overwrites obj's attributes with those in patch and returns obj.
// A nil obj is allocated.
func (obj Object) Apply(patch Object) Object {
	if obj == nil {
		obj = make(Object, len(patch))
	}
	for k, v := range patch {
		obj[k] = v
	}
	return obj
}

// Get returns the attribute value, or Null when the attribute is absent.
func (obj Object) Get(key string) Value {
	if v, ok := obj[key]; ok && v != nil {
		return v
	}
	return Null{}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings orders by UTF-8 bytes, which differs outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// String renders the object for diagnostics, keys in canonical order.
func (obj Object) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", k, Format(obj[k]))
	}
	b.WriteByte('}')
	return b.String()
}

// Format renders a single value for diagnostics and CLI text output.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return fmt.Sprintf("%q", string(val))
	case Int:
		return fmt.Sprintf("%d", int64(val))
	case Float:
		return fmt.Sprintf("%g", float64(val))
	case Bool:
		return fmt.Sprintf("%t", bool(val))
	case Time:
		return val.Std().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FromAny converts a Go native value (as produced by yaml or json decoding)
// into a Value. Integral float64 values become Int; other floats become Float.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return Int(int64(val)), nil
		}
		return Float(val), nil
	case float32:
		return Float(val), nil
	case time.Time:
		return NewTime(val), nil
	default:
		return nil, fmt.Errorf("unsupported attribute value type: %T", v)
	}
}

// Coerce converts v to the given attribute type where the conversion is
// lossless: Int to Float, Int to Time (unix nanoseconds), RFC 3339 String to
// Time. Null passes through. Any other mismatch is an error.
func Coerce(v Value, t AttributeType) (Value, error) {
	if v == nil {
		return Null{}, nil
	}
	if _, isNull := v.(Null); isNull || v.Type() == t {
		return v, nil
	}

	switch t {
	case TypeFloat:
		if i, ok := v.(Int); ok {
			return Float(float64(i)), nil
		}
	case TypeTime:
		switch val := v.(type) {
		case Int:
			return Time(val), nil
		case String:
			parsed, err := time.Parse(time.RFC3339Nano, string(val))
			if err != nil {
				return nil, fmt.Errorf("parse time %q: %w", string(val), err)
			}
			return NewTime(parsed), nil
		}
	}

	return nil, fmt.Errorf("cannot use %s value as %s", v.Type(), t)
}
