package stack

import (
	"context"
	"fmt"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/queryir"
)

// levelChanges is one context's pending changes for a single entity, copied
// out under that context's lock.
type levelChanges struct {
	inserts []ir.Record
	updates map[ir.ObjectID]ir.Object
	deletes map[ir.ObjectID]bool
}

func (l levelChanges) empty() bool {
	return len(l.inserts) == 0 && len(l.updates) == 0 && len(l.deletes) == 0
}

func (c *Context) changesFor(entity string) levelChanges {
	c.mu.Lock()
	defer c.mu.Unlock()

	l := levelChanges{
		updates: make(map[ir.ObjectID]ir.Object),
		deletes: make(map[ir.ObjectID]bool),
	}
	for _, rec := range c.sortedInserts() {
		if rec.Entity == entity {
			l.inserts = append(l.inserts, ir.Record{ID: rec.ID, Entity: rec.Entity, Seq: rec.Seq, Values: rec.Values.Clone()})
		}
	}
	for id, u := range c.updated {
		if u.entity == entity {
			l.updates[id] = u.patch.Clone()
		}
	}
	for id, e := range c.deleted {
		if e == entity {
			l.deletes[id] = true
		}
	}
	return l
}

// Fetch returns the objects matching req as seen from this context: the
// store overlaid with every ancestor's unsaved changes and then this
// context's own. Objects already registered in the context are returned
// as the same *Object.
//
// With IncludesPropertyValues false, newly registered objects are faults.
func (c *Context) Fetch(ctx context.Context, req queryir.FetchRequest) ([]*Object, error) {
	validated, err := queryir.Validate(c.stack.model, req)
	if err != nil {
		return nil, queryError(req.Entity, err)
	}
	req = validated

	// Leaf to root.
	var levels []levelChanges
	pending := false
	for cur := c; cur != nil; cur = cur.parent {
		l := cur.changesFor(req.Entity)
		pending = pending || !l.empty()
		levels = append(levels, l)
	}

	var records []ir.Record
	if !pending {
		records, err = c.stack.backend.Fetch(ctx, req)
		if err != nil {
			return nil, queryError(req.Entity, fmt.Errorf("backend fetch: %w", err))
		}
	} else {
		// Pending changes can move records in or out of the result, so the
		// backend only narrows by entity and IDs and the rest runs here.
		base := queryir.FetchRequest{
			Entity:                 req.Entity,
			IDs:                    req.IDs,
			BatchSize:              req.BatchSize,
			IncludesPropertyValues: req.IncludesPropertyValues || req.Predicate != nil || len(req.Sort) > 0,
		}
		stored, err := c.stack.backend.Fetch(ctx, base)
		if err != nil {
			return nil, queryError(req.Entity, fmt.Errorf("backend fetch: %w", err))
		}
		records = queryir.Apply(req, overlay(stored, levels))
	}

	c.stack.logger.Debug("fetched",
		"context", c.name,
		"entity", req.Entity,
		"count", len(records),
		"overlay", pending)

	return c.register(records, req.IncludesPropertyValues), nil
}

// overlay applies levels (ordered leaf to root) onto stored, root first.
func overlay(stored []ir.Record, levels []levelChanges) []ir.Record {
	byID := make(map[ir.ObjectID]ir.Record, len(stored))
	order := make([]ir.ObjectID, 0, len(stored))
	for _, rec := range stored {
		byID[rec.ID] = rec
		order = append(order, rec.ID)
	}

	for i := len(levels) - 1; i >= 0; i-- {
		l := levels[i]
		for id := range l.deletes {
			delete(byID, id)
		}
		for _, rec := range l.inserts {
			if _, seen := byID[rec.ID]; !seen {
				order = append(order, rec.ID)
			}
			byID[rec.ID] = rec
		}
		for id, patch := range l.updates {
			rec, ok := byID[id]
			if !ok {
				continue
			}
			if rec.Values != nil {
				rec.Values = rec.Values.Clone().Apply(patch)
			}
			byID[id] = rec
		}
	}

	out := make([]ir.Record, 0, len(byID))
	for _, id := range order {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
			delete(byID, id) // an ID re-added after a delete appears once
		}
	}
	return out
}

// register maps records to objects registered in c, reusing existing ones.
func (c *Context) register(records []ir.Record, withValues bool) []*Object {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Object, 0, len(records))
	for _, rec := range records {
		o, ok := c.registered[rec.ID]
		if !ok {
			o = &Object{id: rec.ID, entity: rec.Entity, ctx: c, fault: true}
			c.registered[rec.ID] = o
		}
		if withValues && rec.Values != nil {
			o.values = rec.Values.Clone()
			o.fault = false
		}
		out = append(out, o)
	}
	return out
}

// FetchOption adjusts the request built by FetchMany and FetchOne.
type FetchOption func(*queryir.FetchRequest)

// Where filters by predicate.
func Where(p queryir.Predicate) FetchOption {
	return func(r *queryir.FetchRequest) { r.Predicate = p }
}

// SortBy orders results by the given descriptors, first one most
// significant.
func SortBy(descriptors ...queryir.SortDescriptor) FetchOption {
	return func(r *queryir.FetchRequest) { r.Sort = append(r.Sort, descriptors...) }
}

// Limit caps the number of results.
func Limit(n int) FetchOption {
	return func(r *queryir.FetchRequest) { r.Limit = n }
}

// IDsOnly fetches without property values; new objects are faults.
func IDsOnly() FetchOption {
	return func(r *queryir.FetchRequest) { r.IncludesPropertyValues = false }
}

// NewRequest builds the request FetchMany and FetchOne would run for entity,
// carrying the stack's batch size hint. Pass it to Context.Fetch to get
// the error instead of an empty result.
func (s *Stack) NewRequest(entity string, opts ...FetchOption) queryir.FetchRequest {
	req := queryir.NewFetchRequest(entity)
	req.BatchSize = s.batchSize
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// FetchMany returns every object of entity matching opts in c. It never
// returns nil and never returns an error: failures are logged through the
// error logger and produce an empty slice.
func (s *Stack) FetchMany(ctx context.Context, c *Context, entity string, opts ...FetchOption) []*Object {
	objs, err := c.Fetch(ctx, s.NewRequest(entity, opts...))
	if err != nil {
		s.logError(err)
		return []*Object{}
	}
	return objs
}

// FetchOne returns the first object of entity matching opts in c, or nil
// when there is none or the fetch failed (failures are logged).
func (s *Stack) FetchOne(ctx context.Context, c *Context, entity string, opts ...FetchOption) *Object {
	req := s.NewRequest(entity, opts...)
	req.Limit = 1
	objs, err := c.Fetch(ctx, req)
	if err != nil {
		s.logError(err)
		return nil
	}
	if len(objs) == 0 {
		return nil
	}
	return objs[0]
}
