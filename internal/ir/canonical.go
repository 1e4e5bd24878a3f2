package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalObject produces canonical JSON for an attribute map. This is the
// encoding stored by every backend.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (RFC 8785)
//  2. No HTML escaping (< > & are not escaped)
//  3. Strings are NFC normalized
//  4. Time is encoded as integer unix nanoseconds
//  5. NaN and infinities are rejected
func MarshalObject(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalValue produces canonical JSON for a single value.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return marshalCanonicalString(string(val))
	case Int:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case Time:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite float %v cannot be stored", f)
		}
		return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
	case Bool:
		return strconv.AppendBool(nil, bool(val)), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// Normalize returns v in the form it takes once stored: strings are NFC
// normalized, nil becomes Null. Other values are returned unchanged.
func Normalize(v Value) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case String:
		return String(norm.NFC.String(string(val)))
	default:
		return v
	}
}

// marshalCanonicalString produces a JSON string with NFC normalization and
// without HTML escaping. U+2028 and U+2029 are left literal.
func marshalCanonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators turns the encoder's \u2028 and \u2029 escapes back
// into literal characters. An escape preceded by an odd number of
// backslashes is literal text and is kept.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			slashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				slashes++
			}
			if slashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

// UnmarshalObject decodes canonical JSON into an attribute map. When schema is
// non-nil, numbers are decoded according to the declared attribute type
// (float, time, bool); otherwise integral numbers become Int and the rest
// Float. Large integers never pass through float64.
func UnmarshalObject(data []byte, schema *EntitySchema) (Object, error) {
	if len(data) == 0 {
		return Object{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}

	obj := make(Object, len(raw))
	for k, rv := range raw {
		var declared AttributeType
		if schema != nil {
			declared = schema.Attributes[k]
		}
		v, err := decodeValue(rv, declared)
		if err != nil {
			return nil, fmt.Errorf("unmarshal object key %q: %w", k, err)
		}
		obj[k] = v
	}
	return obj, nil
}

func decodeValue(raw any, declared AttributeType) (Value, error) {
	switch val := raw.(type) {
	case nil:
		return Null{}, nil
	case string:
		return Coerce(String(val), typeOr(declared, TypeString))
	case bool:
		return Bool(val), nil
	case json.Number:
		switch declared {
		case TypeFloat:
			f, err := val.Float64()
			if err != nil {
				return nil, err
			}
			return Float(f), nil
		case TypeTime:
			n, err := val.Int64()
			if err != nil {
				return nil, fmt.Errorf("time must be integer nanoseconds: %s", val)
			}
			return Time(n), nil
		case TypeBool:
			n, err := val.Int64()
			if err != nil {
				return nil, err
			}
			return Bool(n != 0), nil
		}
		if n, err := val.Int64(); err == nil {
			return Int(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, err
		}
		return Float(f), nil
	default:
		return nil, fmt.Errorf("unsupported JSON value %T", raw)
	}
}

func typeOr(t, fallback AttributeType) AttributeType {
	if t == "" {
		return fallback
	}
	return t
}
