package model

import (
	"sync/atomic"
	"time"
)

// IDSource hands out surrogate ids for rows and images.
type IDSource interface {
	Next() int64
}

// Clock derives surrogate ids from wall-clock milliseconds.
//
// Ids are strictly increasing even when several are taken within the same
// millisecond or the wall clock steps backwards: each call returns
// max(now, previous+1).
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	last atomic.Int64
	now  func() time.Time
}

// NewClock creates a clock reading time.Now.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockAt creates a clock that never returns an id at or below start.
// Used when reopening a session over rows created by an earlier run.
func NewClockAt(start int64) *Clock {
	c := NewClock()
	c.last.Store(start)
	return c
}

// Next returns the next id.
func (c *Clock) Next() int64 {
	for {
		prev := c.last.Load()
		next := c.now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if c.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Current returns the last id handed out, or the start value.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
