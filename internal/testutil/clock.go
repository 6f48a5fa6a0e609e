package testutil

import (
	"slices"
	"sync"
)

// DeterministicClock is an engine.Sequencer that remembers what it issued.
//
// Reset rewinds it to its starting point, so a scenario replayed after Reset
// is stamped with exactly the numbers of the first run, and Issued lets a
// test compare a trace against them.
type DeterministicClock struct {
	mu     sync.Mutex
	start  int64
	issued []int64
}

// NewDeterministicClock returns a clock whose first number is 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(0)
}

// NewDeterministicClockAt returns a clock whose first number is start+1.
func NewDeterministicClockAt(start int64) *DeterministicClock {
	return &DeterministicClock{start: start}
}

func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.start + int64(len(c.issued)) + 1
	c.issued = append(c.issued, n)
	return n
}

func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start + int64(len(c.issued))
}

// Issued returns every number issued since the last Reset, in order.
func (c *DeterministicClock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.issued)
}

// Reset forgets the issued numbers; the next one is start+1 again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued = c.issued[:0]
}
