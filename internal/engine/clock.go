package engine

import "sync/atomic"

// Sequencer numbers tracking events. Numbers must increase strictly across
// every scope that shares the sequencer.
type Sequencer interface {
	// Next issues the next number.
	Next() int64
	// Current is the last number issued, or the starting point if none was.
	Current() int64
}

// Clock is the default Sequencer: a logical counter, never wall time, so a
// replayed transformation yields the same trace.
//
// One Clock may be shared by the checkers of several functions to order
// their events against each other; it is safe for concurrent use.
type Clock struct {
	n atomic.Int64
}

// NewClock returns a clock whose first number is 1.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt returns a clock whose first number is start+1, for resuming
// the numbering of an earlier run.
func NewClockAt(start int64) *Clock {
	var c Clock
	c.n.Store(start)
	return &c
}

func (c *Clock) Next() int64    { return c.n.Add(1) }
func (c *Clock) Current() int64 { return c.n.Load() }
