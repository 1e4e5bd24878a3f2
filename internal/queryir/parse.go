package queryir

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/datastack/internal/ir"
)

// condition operators, longest first so "<=" wins over "<".
var conditionOps = []Op{OpLe, OpGe, OpNe, OpEq, OpLt, OpGt}

// ParseCondition parses a textual comparison such as "age>=21",
// "name=Ada" or "nickname!=null" against an entity schema. The value is
// read according to the attribute's declared type; the literal null
// compares against NULL. String values may be double-quoted.
func ParseCondition(es *ir.EntitySchema, expr string) (Compare, error) {
	field, op, raw, ok := splitCondition(expr)
	if !ok {
		return Compare{}, fmt.Errorf("condition %q: expected <field><op><value> with op one of = != < <= > >=", expr)
	}

	declared, ok := es.Attributes[field]
	if !ok {
		return Compare{}, fmt.Errorf("condition %q: %s has no attribute %q", expr, es.Name, field)
	}

	v, err := ParseLiteral(raw, declared)
	if err != nil {
		return Compare{}, fmt.Errorf("condition %q: %w", expr, err)
	}
	return Compare{Field: field, Op: op, Value: v}, nil
}

// ParseConditions parses each expression and joins them with And. No
// expressions yields a nil predicate.
func ParseConditions(es *ir.EntitySchema, exprs []string) (Predicate, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	preds := make([]Predicate, 0, len(exprs))
	for _, expr := range exprs {
		c, err := ParseCondition(es, expr)
		if err != nil {
			return nil, err
		}
		preds = append(preds, c)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return AllOf(preds...), nil
}

func splitCondition(expr string) (field string, op Op, value string, ok bool) {
	best := -1
	for i := range expr {
		for _, candidate := range conditionOps {
			if strings.HasPrefix(expr[i:], string(candidate)) {
				best = i
				op = candidate
				break
			}
		}
		if best >= 0 {
			break
		}
	}
	if best <= 0 {
		return "", "", "", false
	}
	field = strings.TrimSpace(expr[:best])
	value = strings.TrimSpace(expr[best+len(op):])
	return field, op, value, field != ""
}

// ParseLiteral reads raw as a value of type t. "null" is ir.Null for every
// type.
func ParseLiteral(raw string, t ir.AttributeType) (ir.Value, error) {
	if raw == "null" {
		return ir.Null{}, nil
	}

	switch t {
	case ir.TypeString:
		if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
			s, err := strconv.Unquote(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid quoted string %s: %w", raw, err)
			}
			return ir.String(s), nil
		}
		return ir.String(raw), nil
	case ir.TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q", raw)
		}
		return ir.Int(n), nil
	case ir.TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q", raw)
		}
		return ir.Float(f), nil
	case ir.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", raw)
		}
		return ir.Bool(b), nil
	case ir.TypeTime:
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid time %q: want RFC 3339", raw)
		}
		return ir.NewTime(ts), nil
	default:
		return nil, fmt.Errorf("unsupported attribute type %q", t)
	}
}

// ParseSort parses "key", "key:asc" or "key:desc".
func ParseSort(s string) (SortDescriptor, error) {
	key, dir, hasDir := strings.Cut(s, ":")
	key = strings.TrimSpace(key)
	if !ir.ValidName(key) {
		return SortDescriptor{}, fmt.Errorf("sort %q: invalid key", s)
	}
	if !hasDir {
		return Asc(key), nil
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "asc":
		return Asc(key), nil
	case "desc":
		return Desc(key), nil
	default:
		return SortDescriptor{}, fmt.Errorf("sort %q: direction must be asc or desc", s)
	}
}
