package ir

import (
	"cmp"
	"strings"
)

// Compare orders two values. The boolean result is false when the values
// belong to kinds that cannot be ordered against each other (for example a
// String and a Bool).
//
// Ordering follows SQLite's rules for json_extract results so in-memory
// sorting agrees with the SQL backend:
//   - Null sorts before every other value
//   - Int, Float and Time compare numerically with each other
//   - Bool compares as 0/1
//   - Strings compare by bytes (BINARY collation)
func Compare(a, b Value) (int, bool) {
	aNull, bNull := isNull(a), isNull(b)
	switch {
	case aNull && bNull:
		return 0, true
	case aNull:
		return -1, true
	case bNull:
		return 1, true
	}

	if as, ok := a.(String); ok {
		bs, ok := b.(String)
		if !ok {
			return 0, false
		}
		return strings.Compare(string(as), string(bs)), true
	}

	an, aInt, aok := numeric(a)
	bn, bInt, bok := numeric(b)
	if !aok || !bok {
		return 0, false
	}
	if aInt && bInt {
		return cmp.Compare(integral(a), integral(b)), true
	}
	return cmp.Compare(an, bn), true
}

// Equal reports whether two values are equal under Compare.
// Incomparable values are never equal.
func Equal(a, b Value) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

func isNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// numeric returns the float form of a numeric-like value and whether it is
// integral (so it can be compared exactly as int64).
func numeric(v Value) (float64, bool, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true, true
	case Time:
		return float64(val), true, true
	case Bool:
		if val {
			return 1, true, true
		}
		return 0, true, true
	case Float:
		return float64(val), false, true
	default:
		return 0, false, false
	}
}

func integral(v Value) int64 {
	switch val := v.(type) {
	case Int:
		return int64(val)
	case Time:
		return int64(val)
	case Bool:
		if val {
			return 1
		}
		return 0
	default:
		return 0
	}
}
