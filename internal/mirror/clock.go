package mirror

import "sync/atomic"

// Clock is a Lamport clock for op ordering.
//
// Every recorded op is stamped with a strictly increasing seq number. Wall
// time is never used for ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), even
// though a Doc only ever calls it from its owning goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used when a document is restored from a stored snapshot.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Observe moves the clock forward to seq if it is behind, so ops recorded
// after integrating a remote op sort after it.
func (c *Clock) Observe(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
