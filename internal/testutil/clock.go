// Package testutil provides deterministic collaborators and fixtures for tests.
package testutil

import "sync"

// BaseID is the first id a DeterministicClock hands out by default:
// 2023-11-14T22:13:20.000Z in milliseconds.
const BaseID int64 = 1_700_000_000_000

// DeterministicClock hands out surrogate ids in a fixed sequence.
//
// It satisfies model.IDSource. Unlike model.Clock it ignores wall time and
// can be reset, so the same scenario produces identical ids on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start int64
	seq   int64
}

// NewDeterministicClock creates a clock whose first Next() returns BaseID.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(BaseID)
}

// NewDeterministicClockAt creates a clock whose first Next() returns first.
func NewDeterministicClockAt(first int64) *DeterministicClock {
	return &DeterministicClock{start: first - 1, seq: first - 1}
}

// Next increments and returns the next id.
//
// Monotonic: always returns seq+1, never decreases.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last id handed out without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock. After Reset(), Next() returns the first id again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = c.start
}
