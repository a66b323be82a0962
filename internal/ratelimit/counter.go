// Package ratelimit provides a lightweight counter for throttling repeated
// log emission, such as per-row degradation notices during a dataset load.
package ratelimit

import (
	"sync/atomic"
	"time"
)

// Counter tracks a running total and the last time an emission was allowed.
// Safe for concurrent use.
type Counter struct {
	interval time.Duration
	lastEmit atomic.Int64
	total    atomic.Uint64
}

// NewCounter constructs a Counter that allows one emission per interval.
// A zero or negative interval disables throttling.
func NewCounter(interval time.Duration) *Counter {
	return &Counter{interval: interval}
}

// Inc increments the total and reports whether the caller may emit now.
func (c *Counter) Inc() (uint64, bool) {
	if c == nil {
		return 0, false
	}
	total := c.total.Add(1)
	if c.interval <= 0 {
		return total, true
	}
	now := time.Now().UTC().UnixNano()
	last := c.lastEmit.Load()
	if now-last < c.interval.Nanoseconds() {
		return total, false
	}
	if c.lastEmit.CompareAndSwap(last, now) {
		return total, true
	}
	return total, false
}

// Total returns the number of increments seen so far.
func (c *Counter) Total() uint64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}
