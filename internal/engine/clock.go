package engine

import "sync/atomic"

// Clock hands out turn sequence numbers: 1, 2, 3 and so on, one per
// processed event. Traces compare across runs because no wall time is
// involved.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock that has issued nothing yet.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt resumes numbering after start, typically the highest seq already
// in a journal.
func NewClockAt(start int64) *Clock {
	var c Clock
	c.last.Store(start)
	return &c
}

// Next issues the following sequence number.
func (c *Clock) Next() int64 { return c.last.Add(1) }

// Current is the most recently issued number, or the start value if Next
// was never called.
func (c *Clock) Current() int64 { return c.last.Load() }
