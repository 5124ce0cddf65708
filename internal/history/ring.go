// Package history keeps the bounded command history of a worker.
package history

// DefaultCapacity is the number of commands a worker remembers.
const DefaultCapacity = 64

// Ring is a fixed-capacity FIFO of command strings.
// Once full, every insert evicts the oldest entry.
// Not safe for concurrent use: a ring belongs to exactly one worker loop.
type Ring struct {
	entries []string // Backing array, len == capacity once full
	start   int      // Index of the oldest entry
	count   int      // Number of stored entries
}

// NewRing creates an empty ring. A capacity below one is raised to one.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{entries: make([]string, capacity)}
}

// Push appends cmd, dropping the oldest entry when the ring is full
func (r *Ring) Push(cmd string) {
	capacity := len(r.entries)
	if r.count < capacity {
		r.entries[(r.start+r.count)%capacity] = cmd
		r.count++
		return
	}
	r.entries[r.start] = cmd
	r.start = (r.start + 1) % capacity
}

// Entries returns the stored commands, oldest first.
// The returned slice is a copy.
func (r *Ring) Entries() []string {
	out := make([]string, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.entries[(r.start+i)%len(r.entries)]
	}
	return out
}

// Len returns the number of stored commands
func (r *Ring) Len() int {
	return r.count
}

// Cap returns the ring capacity
func (r *Ring) Cap() int {
	return len(r.entries)
}
