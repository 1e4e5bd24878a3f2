// Package stack layers unit-of-work contexts over a store backend.
//
// A Stack owns two well-known contexts. The root context is bound to the
// backend and is the only one that writes to it. The foreground context is
// the root's child and is where application code inserts, fetches and
// deletes objects. Child contexts can be stacked on either.
//
//	fg := s.Foreground()
//	p, _ := fg.Insert("Person", map[string]any{"name": "Ada"})
//	people := s.FetchMany(ctx, fg, "Person", stack.SortBy(queryir.Asc("name")))
//	s.Persist(ctx, true, func(err error) { ... })
//
// Saving a child promotes its changes into the parent; saving the root
// commits them to the backend in one transaction. A fetch in any context
// sees the store overlaid with the unsaved changes of the context and all
// its ancestors.
//
// Each context owns a serial queue for Perform and PerformAndWait. Insert,
// Fetch and Save are guarded by a per-context mutex and may be called from
// any goroutine.
package stack
