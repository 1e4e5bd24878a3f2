package stack

import (
	"context"
	"fmt"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/queryir"
)

// Object is an entity instance registered in one context.
//
// All state is guarded by the owning context's mutex. An object fetched
// without property values is a fault: its values load from the context on
// first Get or Values.
type Object struct {
	id     ir.ObjectID
	entity string
	ctx    *Context

	values  ir.Object // nil while faulted
	fault   bool
	deleted bool
}

// ID returns the object's stable identifier.
func (o *Object) ID() ir.ObjectID { return o.id }

// Entity returns the object's entity name.
func (o *Object) Entity() string { return o.entity }

// Context returns the context the object is registered in.
func (o *Object) Context() *Context { return o.ctx }

// IsFault reports whether the object's values have not been loaded.
func (o *Object) IsFault() bool {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.fault
}

// IsDeleted reports whether the object has been deleted in its context
// (or promoted into it from a child).
func (o *Object) IsDeleted() bool {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.deleted
}

// Get returns an attribute value, or ir.Null when unset.
func (o *Object) Get(key string) ir.Value {
	values := o.Values()
	return values.Get(key)
}

// Values returns a copy of the object's attributes, firing the fault first
// if needed. A fault that cannot be loaded is logged and yields no values.
func (o *Object) Values() ir.Object {
	o.ctx.mu.Lock()
	if !o.fault {
		v := o.values.Clone()
		o.ctx.mu.Unlock()
		return v
	}
	o.ctx.mu.Unlock()

	if err := o.ctx.fireFault(o); err != nil {
		o.ctx.stack.logError(err)
		return ir.Object{}
	}

	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.values.Clone()
}

// Set records an attribute change in the object's context. The value is
// converted with ir.FromAny and coerced to the declared type where possible;
// schema violations surface when the context is saved.
func (o *Object) Set(key string, value any) error {
	v, err := ir.FromAny(value)
	if err != nil {
		return validationError("set", o.entity, fmt.Errorf("attribute %s: %w", key, err))
	}
	if es, ok := o.ctx.stack.model.Entity(o.entity); ok {
		if declared, ok := es.Attributes[key]; ok {
			if coerced, err := ir.Coerce(v, declared); err == nil {
				v = coerced
			}
		}
	}
	v = ir.Normalize(v)

	c := o.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.deleted {
		return validationError("set", o.entity, fmt.Errorf("object %s is deleted", o.id))
	}
	if !o.fault {
		o.values[key] = v
	}
	c.recordSet(o.id, o.entity, ir.Object{key: v})
	return nil
}

// String returns a short description for logs and traces.
func (o *Object) String() string {
	return fmt.Sprintf("%s(%s)", o.entity, o.id)
}

// fireFault loads a faulted object's values through the context chain.
func (c *Context) fireFault(o *Object) error {
	req := queryir.NewFetchRequest(o.entity)
	req.IDs = []ir.ObjectID{o.id}
	objs, err := c.Fetch(context.Background(), req)
	if err != nil {
		return err
	}
	if len(objs) == 0 {
		return queryError(o.entity, fmt.Errorf("object %s no longer exists", o.id))
	}
	return nil
}
