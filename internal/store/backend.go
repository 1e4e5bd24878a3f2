package store

import (
	"context"
	"errors"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/queryir"
)

// ErrNotFound is returned when an update targets a record that does not
// exist.
var ErrNotFound = errors.New("record not found")

// Backend is the persistent storage capability a root context is bound to.
type Backend interface {
	// Fetch returns the records matching req, ordered by its sort
	// descriptors then seq and id. Records carry nil Values when
	// req.IncludesPropertyValues is false. Returns an empty slice, not nil.
	Fetch(ctx context.Context, req queryir.FetchRequest) ([]ir.Record, error)

	// Commit applies every change in cs atomically.
	Commit(ctx context.Context, cs ChangeSet) error

	// MaxSeq returns the highest seq ever stored, 0 for an empty store.
	MaxSeq(ctx context.Context) (int64, error)

	Close() error
}

// Update is a patch of changed attributes for one record.
type Update struct {
	ID     ir.ObjectID
	Entity string
	Patch  ir.Object
}

// Delete removes one record.
type Delete struct {
	ID     ir.ObjectID
	Entity string
}

// ChangeSet is the unit of work a root context commits.
type ChangeSet struct {
	Inserts []ir.Record // full values, seq assigned
	Updates []Update
	Deletes []Delete
}

// IsEmpty reports whether the change set carries no changes.
func (cs ChangeSet) IsEmpty() bool {
	return len(cs.Inserts) == 0 && len(cs.Updates) == 0 && len(cs.Deletes) == 0
}

// Len returns the number of changes.
func (cs ChangeSet) Len() int {
	return len(cs.Inserts) + len(cs.Updates) + len(cs.Deletes)
}
