package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/datastack/internal/ir"
)

// Validate checks a request against the model and returns a copy whose
// predicate values are coerced to the declared attribute types and
// normalized the way stored values are.
//
// Rules:
//  1. The entity must exist in the model
//  2. Predicate fields and sort keys must be declared attributes
//  3. Operators must be known; NULL only compares with = and !=
//  4. Values must be convertible to the attribute type
//  5. Limit and BatchSize must not be negative
//
// Every violation is reported, joined into one error.
func Validate(model *ir.Model, req FetchRequest) (FetchRequest, error) {
	entity, ok := model.Entity(req.Entity)
	if !ok {
		return req, fmt.Errorf("unknown entity %q", req.Entity)
	}

	v := &validator{entity: entity}
	out := req
	if req.Predicate != nil {
		out.Predicate = v.predicate(req.Predicate)
	}

	for _, s := range req.Sort {
		if _, ok := entity.Attributes[s.Key]; !ok {
			v.addError("sort key %q is not an attribute of %s", s.Key, entity.Name)
		}
	}
	if req.Limit < 0 {
		v.addError("limit must not be negative, got %d", req.Limit)
	}
	if req.BatchSize < 0 {
		v.addError("batch size must not be negative, got %d", req.BatchSize)
	}

	if len(v.errs) > 0 {
		return req, errors.Join(v.errs...)
	}
	return out, nil
}

// validator accumulates errors during traversal.
type validator struct {
	entity *ir.EntitySchema
	errs   []error
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

// predicate validates p and returns its coerced value form.
func (v *validator) predicate(p Predicate) Predicate {
	switch pred := p.(type) {
	case Compare:
		return v.compare(pred)
	case *Compare:
		return v.compare(*pred)
	case And:
		return And{Predicates: v.list(pred.Predicates)}
	case *And:
		return And{Predicates: v.list(pred.Predicates)}
	case Or:
		return Or{Predicates: v.list(pred.Predicates)}
	case *Or:
		return Or{Predicates: v.list(pred.Predicates)}
	case Not:
		return Not{Predicate: v.inner(pred.Predicate)}
	case *Not:
		return Not{Predicate: v.inner(pred.Predicate)}
	case nil:
		v.addError("nil predicate")
		return p
	default:
		v.addError("unknown predicate type: %T", p)
		return p
	}
}

func (v *validator) inner(p Predicate) Predicate {
	if p == nil {
		v.addError("not: missing predicate")
		return nil
	}
	return v.predicate(p)
}

func (v *validator) list(preds []Predicate) []Predicate {
	out := make([]Predicate, len(preds))
	for i, p := range preds {
		out[i] = v.predicate(p)
	}
	return out
}

func (v *validator) compare(c Compare) Predicate {
	declared, ok := v.entity.Attributes[c.Field]
	if !ok {
		v.addError("field %q is not an attribute of %s", c.Field, v.entity.Name)
		return c
	}
	if !validOps[c.Op] {
		v.addError("field %q: unknown operator %q", c.Field, c.Op)
		return c
	}

	value := ir.Normalize(c.Value)
	if _, isNull := value.(ir.Null); isNull {
		if c.Op != OpEq && c.Op != OpNe {
			v.addError("field %q: null only compares with = or !=", c.Field)
		}
		return Compare{Field: c.Field, Op: c.Op, Value: value}
	}

	coerced, err := ir.Coerce(value, declared)
	if err != nil {
		v.addError("field %q: %v", c.Field, err)
		return c
	}
	return Compare{Field: c.Field, Op: c.Op, Value: ir.Normalize(coerced)}
}
