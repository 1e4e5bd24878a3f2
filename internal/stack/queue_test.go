package stack

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialQueue_RunsInOrder(t *testing.T) {
	q := newSerialQueue()
	defer q.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, q.Enqueue(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.True(t, q.EnqueueAndWait(func() {}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestSerialQueue_LazyWorker(t *testing.T) {
	q := newSerialQueue()
	q.mu.Lock()
	running := q.running
	q.mu.Unlock()
	assert.False(t, running, "worker must not start before first enqueue")

	q.EnqueueAndWait(func() {})

	q.mu.Lock()
	running = q.running
	q.mu.Unlock()
	assert.True(t, running)
	q.Close()
}

func TestSerialQueue_EnqueueAndWaitBlocks(t *testing.T) {
	q := newSerialQueue()
	defer q.Close()

	ran := false
	ok := q.EnqueueAndWait(func() {
		time.Sleep(10 * time.Millisecond)
		ran = true
	})
	assert.True(t, ok)
	assert.True(t, ran)
}

func TestSerialQueue_CloseDrains(t *testing.T) {
	q := newSerialQueue()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 10; i++ {
		q.Enqueue(func() {
			time.Sleep(time.Millisecond)
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	q.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
	assert.Equal(t, 0, q.Len())
}

func TestSerialQueue_ClosedRejects(t *testing.T) {
	q := newSerialQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(func() {}))
	ran := false
	assert.False(t, q.EnqueueAndWait(func() { ran = true }))
	assert.False(t, ran)
}

func TestSerialQueue_OneTaskAtATime(t *testing.T) {
	q := newSerialQueue()
	defer q.Close()

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.EnqueueAndWait(func() {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
}
