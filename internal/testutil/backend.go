package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/queryir"
	"github.com/roach88/datastack/internal/store"
)

// ErrInjected is the default error returned by a FaultyBackend.
var ErrInjected = errors.New("injected backend failure")

// FaultyBackend wraps a store.Backend and fails Fetch or Commit on demand.
// It also counts calls so tests can assert on how often the backend was
// reached.
//
// Thread-safety: safe for concurrent use.
type FaultyBackend struct {
	store.Backend

	mu          sync.Mutex
	fetchErr    error
	commitErr   error
	failEntity  string
	fetchCalls  int
	commitCalls int
}

// NewFaultyBackend wraps b. Until a failure is armed it behaves exactly
// like b.
func NewFaultyBackend(b store.Backend) *FaultyBackend {
	return &FaultyBackend{Backend: b}
}

// FailFetch makes every Fetch return err (ErrInjected when err is nil).
func (f *FaultyBackend) FailFetch(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = orInjected(err)
	f.failEntity = ""
}

// FailFetchFor makes Fetch fail only for entity.
func (f *FaultyBackend) FailFetchFor(entity string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = orInjected(err)
	f.failEntity = entity
}

// FailCommit makes every Commit return err (ErrInjected when err is nil).
func (f *FaultyBackend) FailCommit(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitErr = orInjected(err)
}

// Heal disarms every failure.
func (f *FaultyBackend) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = nil
	f.commitErr = nil
	f.failEntity = ""
}

// FetchCalls returns the number of Fetch calls, failed ones included.
func (f *FaultyBackend) FetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

// CommitCalls returns the number of Commit calls, failed ones included.
func (f *FaultyBackend) CommitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commitCalls
}

func (f *FaultyBackend) Fetch(ctx context.Context, req queryir.FetchRequest) ([]ir.Record, error) {
	f.mu.Lock()
	f.fetchCalls++
	err := f.fetchErr
	if f.failEntity != "" && f.failEntity != req.Entity {
		err = nil
	}
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return f.Backend.Fetch(ctx, req)
}

func (f *FaultyBackend) Commit(ctx context.Context, cs store.ChangeSet) error {
	f.mu.Lock()
	f.commitCalls++
	err := f.commitErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return f.Backend.Commit(ctx, cs)
}

func orInjected(err error) error {
	if err == nil {
		return ErrInjected
	}
	return err
}
