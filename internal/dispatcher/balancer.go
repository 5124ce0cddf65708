package dispatcher

import "github.com/dreamware/rexec/internal/cluster"

// RoundRobin picks workers in strict rotation over the worker ranks
// 1..workers. It has no notion of load or affinity: the n-th forwarded
// command always goes to worker 1 + (n mod workers).
type RoundRobin struct {
	workers int
	cursor  int
}

// NewRoundRobin creates a balancer over workers ranks. The first pick is
// rank 1.
func NewRoundRobin(workers int) *RoundRobin {
	if workers < 1 {
		workers = 1
	}
	return &RoundRobin{workers: workers}
}

// Next returns the worker for the next command and advances the cursor.
func (b *RoundRobin) Next() cluster.Rank {
	w := cluster.Rank(1 + b.cursor%b.workers)
	b.cursor++
	return w
}

// Cursor returns how many workers have been picked so far.
func (b *RoundRobin) Cursor() int {
	return b.cursor
}
