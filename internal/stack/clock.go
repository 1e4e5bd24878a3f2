package stack

import "sync/atomic"

// Clock is the monotonic logical clock that stamps inserted records.
//
// Seq values order records deterministically (no wall-clock races) and break
// sort ties. The clock resumes from the backend's highest stored seq.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClockAt creates a new clock whose first Next returns start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
