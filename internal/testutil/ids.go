package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/datastack/internal/ir"
)

// SequentialIDGenerator generates predictable object IDs: "<prefix>-0001",
// "<prefix>-0002", and so on.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with a fresh generator produces byte-identical traces,
// and the zero-padded IDs sort in generation order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator. An empty prefix means "obj".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "obj"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements stack.IDGenerator.
func (g *SequentialIDGenerator) Generate() ir.ObjectID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return ir.ObjectID(fmt.Sprintf("%s-%04d", g.prefix, g.n))
}

// Count returns how many IDs have been generated.
func (g *SequentialIDGenerator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts the sequence.
//
// Used for test reuse. After Reset(), the next ID is "<prefix>-0001".
func (g *SequentialIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
