package stack

import "sync"

// serialQueue runs closures one at a time, in FIFO order, on a dedicated
// goroutine.
//
// The queue is unbounded so Perform never blocks the caller. The worker
// goroutine starts on the first Enqueue; a context that never performs
// work never owns a goroutine.
//
// The queue uses a channel for signaling, buffered to 1 so multiple
// enqueues between wakeups coalesce.
type serialQueue struct {
	mu      sync.Mutex
	tasks   []func()
	closed  bool
	running bool
	signal  chan struct{} // Signals task availability (buffered, size 1)
	done    chan struct{} // Closed when the worker exits
}

func newSerialQueue() *serialQueue {
	return &serialQueue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue adds a task to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *serialQueue) Enqueue(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, fn)
	if !q.running {
		q.running = true
		go q.run()
	}

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// EnqueueAndWait runs fn on the queue and blocks until it returns.
// Returns false, without running fn, if the queue is closed.
//
// Calling it from a task already running on the same queue deadlocks.
func (q *serialQueue) EnqueueAndWait(fn func()) bool {
	finished := make(chan struct{})
	if !q.Enqueue(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	<-finished
	return true
}

func (q *serialQueue) run() {
	defer close(q.done)
	for {
		if fn, ok := q.tryDequeue(); ok {
			fn()
			continue
		}

		q.mu.Lock()
		if q.closed && len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		<-q.signal
	}
}

func (q *serialQueue) tryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}

	fn := q.tasks[0]
	q.tasks[0] = nil // release the closure for GC
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return fn, true
}

// Len returns the number of tasks waiting to run.
func (q *serialQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops accepting tasks, lets the worker drain what is queued and
// waits for it to exit. Safe to call more than once.
func (q *serialQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.doneIfStarted()
		return
	}
	q.closed = true
	close(q.signal)
	q.mu.Unlock()

	<-q.doneIfStarted()
}

// doneIfStarted returns the worker's done channel, or a closed channel when
// no worker was ever started.
func (q *serialQueue) doneIfStarted() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return q.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}
