// Package buffer provides a lock-free ring buffer holding the most recent
// log lines so the web log view can read a tail without blocking writers.
// Each slot stores an atomic pointer, so readers either see a complete line
// or the previous one, never a partially written entry.
package buffer

import (
	"sync/atomic"
)

type entry struct {
	seq  uint64
	text string
}

// LineRing is a thread-safe circular buffer of recent log lines. Writers
// atomically publish completed entries, and readers walk backwards from the
// newest index to gather a snapshot.
type LineRing struct {
	// Each slot is an atomic pointer so writers can publish a line in one step.
	// Combined with the monotonic sequence counter, this removes the need for a mutex.
	slots    []atomic.Pointer[entry]
	capacity int
	total    atomic.Uint64 // total lines added (may exceed capacity)
}

// NewLineRing allocates a ring retaining the last capacity lines.
func NewLineRing(capacity int) *LineRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &LineRing{
		slots:    make([]atomic.Pointer[entry], capacity),
		capacity: capacity,
	}
}

// Append publishes a line, assigning a monotonic sequence number so readers
// can skip entries overwritten after wraparound.
func (r *LineRing) Append(line string) {
	seq := r.total.Add(1)
	idx := (seq - 1) % uint64(r.capacity)
	r.slots[idx].Store(&entry{seq: seq, text: line})
}

// Tail returns up to n of the most recent lines in chronological order.
func (r *LineRing) Tail(n int) []string {
	if n <= 0 {
		return []string{}
	}

	total := r.total.Load()
	available := int(total)
	if available > r.capacity {
		available = r.capacity
	}
	if n > available {
		n = available
	}

	newest := make([]string, 0, n)
	if total == 0 {
		return newest
	}
	minSeq := total - uint64(available)
	for seq := total; seq > minSeq && len(newest) < n; {
		seq--
		slot := seq % uint64(r.capacity)
		// Sequence check skips slots that have been overwritten after wraparound.
		if e := r.slots[slot].Load(); e != nil && e.seq == seq+1 {
			newest = append(newest, e.text)
		}
	}

	// Walked newest-first; flip so callers read top to bottom.
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}
	return newest
}

// Len returns the number of lines currently retained.
func (r *LineRing) Len() int {
	total := r.total.Load()
	if total > uint64(r.capacity) {
		return r.capacity
	}
	return int(total)
}

// Total returns the number of lines ever appended (may exceed capacity).
func (r *LineRing) Total() uint64 {
	return r.total.Load()
}
