package stack

import (
	"context"

	"github.com/roach88/datastack/internal/queryir"
)

// Delete marks each object deleted in c. Objects registered in another
// context are resolved into c by ID. Nothing is saved.
func (s *Stack) Delete(c *Context, objects ...*Object) {
	for _, o := range objects {
		if o == nil {
			continue
		}
		target := o
		if o.ctx != c {
			target = c.resolve(o.id, o.entity)
		}
		c.delete(target)
	}
}

// DeleteAll marks every instance of every entity deleted in the foreground
// context, entity by entity in name order. Instances are fetched as IDs
// only. A failure for one entity is logged and that entity is skipped; the
// others are still processed. Nothing is saved.
func (s *Stack) DeleteAll(ctx context.Context) {
	fg := s.foreground
	for _, entity := range s.model.EntityNames() {
		req := queryir.FetchRequest{Entity: entity, BatchSize: s.batchSize}
		objs, err := fg.Fetch(ctx, req)
		if err != nil {
			s.logError(err)
			continue
		}
		s.Delete(fg, objs...)
		s.logger.Debug("deleted all", "entity", entity, "count", len(objs))
	}
}
