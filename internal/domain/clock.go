package domain

import (
	"sync"
	"time"
)

// Clock hands out millisecond timestamps for use as board, note and todo ids.
// Consecutive calls never return the same value: when two ids are requested
// within the same millisecond the later one is bumped past the earlier.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockAt returns a Clock reading time from now. Used by tests to pin ids.
func NewClockAt(now func() time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) NextID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.now().UnixMilli()
	if id <= c.last {
		id = c.last + 1
	}
	c.last = id
	return id
}
