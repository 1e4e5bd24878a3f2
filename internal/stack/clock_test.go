package stack

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_ResumesFromStart(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next())
	assert.Equal(t, int64(43), c.Next())
	assert.Equal(t, int64(43), c.Current())
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClockAt(0)

	const goroutines, perGoroutine = 8, 100
	results := make(chan int64, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				results <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for seq := range results {
		require.False(t, seen[seq], "duplicate seq %d", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
	assert.Equal(t, int64(goroutines*perGoroutine), c.Current())
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(string(a))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
