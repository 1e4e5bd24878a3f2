package queryir

import (
	"slices"
	"sort"
	"strings"

	"github.com/roach88/datastack/internal/ir"
)

// truth is a three-valued logic result.
type truth int8

const (
	unknown truth = iota
	falsy
	truthy
)

// Match reports whether values satisfy p. A nil predicate matches
// everything. Rows whose predicate evaluates to unknown do not match.
func Match(p Predicate, values ir.Object) bool {
	if p == nil {
		return true
	}
	return eval(p, values) == truthy
}

func eval(p Predicate, values ir.Object) truth {
	switch pred := p.(type) {
	case Compare:
		return evalCompare(pred, values)
	case *Compare:
		return evalCompare(*pred, values)
	case And:
		return evalAnd(pred.Predicates, values)
	case *And:
		return evalAnd(pred.Predicates, values)
	case Or:
		return evalOr(pred.Predicates, values)
	case *Or:
		return evalOr(pred.Predicates, values)
	case Not:
		return evalNot(pred.Predicate, values)
	case *Not:
		return evalNot(pred.Predicate, values)
	default:
		return unknown
	}
}

func evalCompare(c Compare, values ir.Object) truth {
	field := values.Get(c.Field)
	_, fieldNull := field.(ir.Null)

	if c.Value == nil || c.Value.Type() == ir.TypeNull {
		switch c.Op {
		case OpEq:
			return boolTruth(fieldNull)
		case OpNe:
			return boolTruth(!fieldNull)
		default:
			return unknown
		}
	}
	if fieldNull {
		return unknown
	}

	cmp, ok := ir.Compare(field, c.Value)
	if !ok {
		return unknown
	}
	switch c.Op {
	case OpEq:
		return boolTruth(cmp == 0)
	case OpNe:
		return boolTruth(cmp != 0)
	case OpLt:
		return boolTruth(cmp < 0)
	case OpLe:
		return boolTruth(cmp <= 0)
	case OpGt:
		return boolTruth(cmp > 0)
	case OpGe:
		return boolTruth(cmp >= 0)
	default:
		return unknown
	}
}

func evalAnd(preds []Predicate, values ir.Object) truth {
	result := truthy
	for _, p := range preds {
		switch eval(p, values) {
		case falsy:
			return falsy
		case unknown:
			result = unknown
		}
	}
	return result
}

func evalOr(preds []Predicate, values ir.Object) truth {
	result := falsy
	for _, p := range preds {
		switch eval(p, values) {
		case truthy:
			return truthy
		case unknown:
			result = unknown
		}
	}
	return result
}

func evalNot(p Predicate, values ir.Object) truth {
	switch eval(p, values) {
	case truthy:
		return falsy
	case falsy:
		return truthy
	default:
		return unknown
	}
}

func boolTruth(b bool) truth {
	if b {
		return truthy
	}
	return falsy
}

// MatchRecord reports whether rec belongs to the result of req, ignoring
// sort and limit.
func MatchRecord(req FetchRequest, rec ir.Record) bool {
	if rec.Entity != req.Entity {
		return false
	}
	if len(req.IDs) > 0 && !slices.Contains(req.IDs, rec.ID) {
		return false
	}
	return Match(req.Predicate, rec.Values)
}

// SortRecords orders records by the sort descriptors, then by seq and id
// ascending. The tie-break keeps every backend's order identical.
func SortRecords(records []ir.Record, descriptors []SortDescriptor) {
	sort.SliceStable(records, func(i, j int) bool {
		return compareRecords(records[i], records[j], descriptors) < 0
	})
}

func compareRecords(a, b ir.Record, descriptors []SortDescriptor) int {
	for _, d := range descriptors {
		c, ok := ir.Compare(a.Values.Get(d.Key), b.Values.Get(d.Key))
		if !ok || c == 0 {
			continue
		}
		if !d.Ascending {
			c = -c
		}
		return c
	}
	if a.Seq != b.Seq {
		if a.Seq < b.Seq {
			return -1
		}
		return 1
	}
	return strings.Compare(string(a.ID), string(b.ID))
}

// Apply evaluates req over records in memory: filter, sort, limit. The
// input slice is not modified.
func Apply(req FetchRequest, records []ir.Record) []ir.Record {
	out := make([]ir.Record, 0, len(records))
	for _, rec := range records {
		if MatchRecord(req, rec) {
			out = append(out, rec)
		}
	}
	SortRecords(out, req.Sort)
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out
}
