package stack

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/store"
)

// ConcurrencyType describes which queue a context's work runs on.
type ConcurrencyType int

const (
	// PrivateQueue contexts run work on their own background queue.
	PrivateQueue ConcurrencyType = iota

	// ForegroundQueue marks the application-facing context. It still owns a
	// serial queue; the type only labels its role.
	ForegroundQueue
)

func (t ConcurrencyType) String() string {
	switch t {
	case ForegroundQueue:
		return "foreground"
	default:
		return "private"
	}
}

// pendingUpdate is an accumulated patch for an object this context did not
// insert.
type pendingUpdate struct {
	entity string
	patch  ir.Object
}

// Context is a unit-of-work scope over its parent, or over the backend for
// the root context.
//
// Insert, Fetch and Save lock the context's mutex and are safe from any
// goroutine. Perform and PerformAndWait run closures on the context's serial
// queue. A save locks the saving context and then its parent, so locks are
// always taken leaf to root.
type Context struct {
	name        string
	stack       *Stack
	parent      *Context
	concurrency ConcurrencyType
	queue       *serialQueue

	mu         sync.Mutex
	registered map[ir.ObjectID]*Object
	inserted   map[ir.ObjectID]ir.Record
	updated    map[ir.ObjectID]*pendingUpdate
	deleted    map[ir.ObjectID]string // id -> entity
}

func newContext(s *Stack, name string, parent *Context, concurrency ConcurrencyType) *Context {
	return &Context{
		name:        name,
		stack:       s,
		parent:      parent,
		concurrency: concurrency,
		queue:       newSerialQueue(),
		registered:  make(map[ir.ObjectID]*Object),
		inserted:    make(map[ir.ObjectID]ir.Record),
		updated:     make(map[ir.ObjectID]*pendingUpdate),
		deleted:     make(map[ir.ObjectID]string),
	}
}

// Name returns the context's name: "root", "foreground" or "child-N".
func (c *Context) Name() string { return c.name }

// Parent returns the parent context, nil for the root.
func (c *Context) Parent() *Context { return c.parent }

// ConcurrencyType returns the context's concurrency type.
func (c *Context) ConcurrencyType() ConcurrencyType { return c.concurrency }

// HasChanges reports whether the context holds unsaved inserts, updates or
// deletes.
func (c *Context) HasChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasChangesLocked()
}

func (c *Context) hasChangesLocked() bool {
	return len(c.inserted) > 0 || len(c.updated) > 0 || len(c.deleted) > 0
}

// Perform schedules fn on the context's queue and returns immediately.
// Returns false if the stack is closed; fn is then dropped.
func (c *Context) Perform(fn func()) bool {
	return c.queue.Enqueue(fn)
}

// PerformAndWait runs fn on the context's queue and blocks until it returns.
// Returns false, without running fn, if the stack is closed. Calling it from
// work already running on the same context deadlocks.
func (c *Context) PerformAndWait(fn func()) bool {
	return c.queue.EnqueueAndWait(fn)
}

// Insert registers a new object of entity in the context. Values are
// converted with ir.FromAny and coerced to the declared attribute types
// where possible; undeclared attributes and type mismatches are reported
// when the context is saved.
func (c *Context) Insert(entity string, values map[string]any) (*Object, error) {
	es, ok := c.stack.model.Entity(entity)
	if !ok {
		return nil, validationError("insert", entity, fmt.Errorf("unknown entity %q", entity))
	}

	obj := make(ir.Object, len(values))
	for key, raw := range values {
		v, err := ir.FromAny(raw)
		if err != nil {
			return nil, validationError("insert", entity, fmt.Errorf("attribute %s: %w", key, err))
		}
		if declared, ok := es.Attributes[key]; ok {
			if coerced, err := ir.Coerce(v, declared); err == nil {
				v = coerced
			}
		}
		obj[key] = ir.Normalize(v)
	}

	rec := ir.Record{
		ID:     c.stack.ids.Generate(),
		Entity: entity,
		Seq:    c.stack.clock.Next(),
		Values: obj,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.inserted[rec.ID] = ir.Record{ID: rec.ID, Entity: entity, Seq: rec.Seq, Values: obj.Clone()}
	o := &Object{id: rec.ID, entity: entity, ctx: c, values: obj}
	c.registered[rec.ID] = o
	return o, nil
}

// Rollback discards the context's unsaved changes. Registered objects turn
// into faults and reload on next access.
func (c *Context) Rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.inserted {
		if o, ok := c.registered[id]; ok {
			o.deleted = true
			delete(c.registered, id)
		}
	}
	for _, o := range c.registered {
		o.values = nil
		o.fault = true
		o.deleted = false
	}
	c.clearLocked()
}

func (c *Context) clearLocked() {
	c.inserted = make(map[ir.ObjectID]ir.Record)
	c.updated = make(map[ir.ObjectID]*pendingUpdate)
	c.deleted = make(map[ir.ObjectID]string)
}

// recordSet merges patch into the pending state for id. Callers hold c.mu.
func (c *Context) recordSet(id ir.ObjectID, entity string, patch ir.Object) {
	if rec, ok := c.inserted[id]; ok {
		rec.Values = rec.Values.Clone().Apply(patch)
		c.inserted[id] = rec
		return
	}
	if _, ok := c.deleted[id]; ok {
		return
	}
	u, ok := c.updated[id]
	if !ok {
		u = &pendingUpdate{entity: entity, patch: make(ir.Object, len(patch))}
		c.updated[id] = u
	}
	u.patch.Apply(patch)
}

// recordDelete marks id deleted. An object inserted in this context simply
// disappears. Callers hold c.mu.
func (c *Context) recordDelete(id ir.ObjectID, entity string) {
	if o, ok := c.registered[id]; ok {
		o.deleted = true
	}
	if _, ok := c.inserted[id]; ok {
		delete(c.inserted, id)
		return
	}
	delete(c.updated, id)
	c.deleted[id] = entity
}

// resolve returns the object registered in c for id, registering a fault
// when c has not seen it yet.
func (c *Context) resolve(id ir.ObjectID, entity string) *Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.registered[id]; ok {
		return o
	}
	o := &Object{id: id, entity: entity, ctx: c, fault: true}
	c.registered[id] = o
	return o
}

// delete marks o, which must be registered in c, deleted.
func (c *Context) delete(o *Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordDelete(o.id, o.entity)
}

// Save validates the context's changes and pushes them one level up: into
// the parent for a child context, into the backend for the root. On failure
// the context keeps its changes. Saving a context without changes is a
// no-op.
func (c *Context) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasChangesLocked() {
		return nil
	}
	if err := c.validateLocked(); err != nil {
		return saveError(err)
	}

	if c.parent == nil {
		return c.commitLocked(ctx)
	}

	p := c.parent
	p.mu.Lock()
	inserted, updated, deleted := len(c.inserted), len(c.updated), len(c.deleted)
	c.promoteLocked(p)
	p.mu.Unlock()

	c.clearLocked()
	c.stack.logger.Debug("context saved",
		"context", c.name,
		"parent", p.name,
		"inserted", inserted,
		"updated", updated,
		"deleted", deleted)
	return nil
}

func (c *Context) validateLocked() error {
	model := c.stack.model
	for _, rec := range c.sortedInserts() {
		es, ok := model.Entity(rec.Entity)
		if !ok {
			return validationError("save", rec.Entity, fmt.Errorf("unknown entity %q", rec.Entity))
		}
		if err := es.Validate(rec.Values); err != nil {
			return validationError("save", rec.Entity, err)
		}
	}
	for _, id := range sortedIDs(c.updated) {
		u := c.updated[id]
		es, ok := model.Entity(u.entity)
		if !ok {
			return validationError("save", u.entity, fmt.Errorf("unknown entity %q", u.entity))
		}
		if err := es.Validate(u.patch); err != nil {
			return validationError("save", u.entity, err)
		}
	}
	return nil
}

// promoteLocked moves c's changes into p. Callers hold both mutexes.
func (c *Context) promoteLocked(p *Context) {
	for _, rec := range c.sortedInserts() {
		p.inserted[rec.ID] = ir.Record{ID: rec.ID, Entity: rec.Entity, Seq: rec.Seq, Values: rec.Values.Clone()}
		if o, ok := p.registered[rec.ID]; ok && !o.fault {
			o.values = rec.Values.Clone()
		}
	}
	for _, id := range sortedIDs(c.updated) {
		u := c.updated[id]
		p.recordSet(id, u.entity, u.patch)
		if o, ok := p.registered[id]; ok && !o.fault {
			o.values.Apply(u.patch)
		}
	}
	for _, id := range sortedIDs(c.deleted) {
		p.recordDelete(id, c.deleted[id])
	}
}

// commitLocked writes the root's changes to the backend in one transaction.
func (c *Context) commitLocked(ctx context.Context) error {
	cs := c.changeSetLocked()
	if err := c.stack.backend.Commit(ctx, cs); err != nil {
		return saveError(fmt.Errorf("commit %d changes: %w", cs.Len(), err))
	}
	c.clearLocked()
	c.stack.logger.Debug("context committed",
		"context", c.name,
		"inserted", len(cs.Inserts),
		"updated", len(cs.Updates),
		"deleted", len(cs.Deletes))
	return nil
}

func (c *Context) changeSetLocked() store.ChangeSet {
	var cs store.ChangeSet
	for _, rec := range c.sortedInserts() {
		cs.Inserts = append(cs.Inserts, ir.Record{ID: rec.ID, Entity: rec.Entity, Seq: rec.Seq, Values: rec.Values.Clone()})
	}
	for _, id := range sortedIDs(c.updated) {
		u := c.updated[id]
		cs.Updates = append(cs.Updates, store.Update{ID: id, Entity: u.entity, Patch: u.patch.Clone()})
	}
	for _, id := range sortedIDs(c.deleted) {
		cs.Deletes = append(cs.Deletes, store.Delete{ID: id, Entity: c.deleted[id]})
	}
	return cs
}

// sortedInserts returns pending inserts in seq order.
func (c *Context) sortedInserts() []ir.Record {
	out := make([]ir.Record, 0, len(c.inserted))
	for _, rec := range c.inserted {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func sortedIDs[V any](m map[ir.ObjectID]V) []ir.ObjectID {
	ids := make([]ir.ObjectID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
