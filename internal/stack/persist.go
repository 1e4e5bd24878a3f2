package stack

import "context"

// Persist saves the foreground context into the root and then the root into
// the backend.
//
// The foreground save always runs synchronously on the foreground queue.
// If it fails, completion receives the error and Persist stops. The root
// save then runs on the root queue: Persist waits for it when synchronous
// is true and returns right away otherwise. completion receives the root
// save's result. When neither context has changes, completion is not called.
//
// Scheduled root saves are not cancelled with ctx. completion may be nil;
// for asynchronous persists it runs on the root queue's goroutine.
func (s *Stack) Persist(ctx context.Context, synchronous bool, completion func(error)) {
	done := func(err error) {
		if completion != nil {
			completion(err)
		}
	}

	fg := s.foreground
	if fg.HasChanges() {
		var err error
		if !fg.PerformAndWait(func() { err = fg.Save(ctx) }) {
			err = saveError(ErrClosed)
		}
		if err != nil {
			done(err)
			return
		}
	}

	root := s.root
	if !root.HasChanges() {
		return
	}

	if synchronous {
		var err error
		if !root.PerformAndWait(func() { err = root.Save(ctx) }) {
			err = saveError(ErrClosed)
		}
		done(err)
		return
	}

	detached := context.WithoutCancel(ctx)
	if !root.Perform(func() { done(root.Save(detached)) }) {
		done(saveError(ErrClosed))
	}
}
