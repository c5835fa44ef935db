// Package logstore holds bounded, in-memory log buffers for supervised processes.
package logstore

import (
	"sync"
	"time"
)

// Entry is a single captured output line.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Ring is a fixed-capacity FIFO of log entries. When full, appending
// evicts the oldest entry. Append and eviction happen under one lock, so
// readers never observe more than Cap entries.
type Ring struct {
	mu       sync.RWMutex
	buf      []Entry
	start    int // index of the oldest entry once the buffer has wrapped
	capacity int
	total    uint64
}

// NewRing creates a ring holding at most capacity entries (minimum 1).
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		buf:      make([]Entry, 0, min(capacity, 256)),
		capacity: capacity,
	}
}

// Append stores an entry, dropping the oldest one if the ring is full.
func (r *Ring) Append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total++
	if len(r.buf) < r.capacity {
		r.buf = append(r.buf, e)
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % r.capacity
}

// AppendLine stores message with the current time.
func (r *Ring) AppendLine(message string) {
	r.Append(Entry{Timestamp: time.Now().UTC(), Message: message})
}

// Len returns the number of retained entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buf)
}

// Cap returns the maximum number of retained entries.
func (r *Ring) Cap() int {
	return r.capacity
}

// Total returns how many entries were ever appended.
func (r *Ring) Total() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Dropped returns how many entries were evicted.
func (r *Ring) Dropped() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total - uint64(len(r.buf))
}

// Tail returns a copy of the most recent n entries in arrival order.
// n <= 0 returns every retained entry.
func (r *Ring) Tail(n int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := len(r.buf)
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Entry, n)
	// Logical index i maps to physical (start+i) % size.
	first := size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+first+i)%size]
	}
	return out
}

// Snapshot returns a copy of every retained entry in arrival order.
func (r *Ring) Snapshot() []Entry {
	return r.Tail(0)
}
