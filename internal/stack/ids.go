package stack

import (
	"github.com/google/uuid"

	"github.com/roach88/datastack/internal/ir"
)

// IDGenerator generates object IDs.
// Implemented by UUIDv7Generator (production) and
// testutil.SequentialIDGenerator (tests).
type IDGenerator interface {
	Generate() ir.ObjectID
}

// UUIDv7Generator generates time-sortable UUIDv7 object IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() ir.ObjectID {
	return ir.ObjectID(uuid.Must(uuid.NewV7()).String())
}
