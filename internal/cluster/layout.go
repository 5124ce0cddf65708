package cluster

import (
	"errors"
	"fmt"
)

// MinGroupSize is one dispatcher, one worker and one client.
const MinGroupSize = 3

var (
	// ErrGroupTooSmall is returned when the group cannot hold every role.
	ErrGroupTooSmall = errors.New("group too small")

	// ErrWorkerCount is returned when an explicit worker count leaves no
	// room for a client or is not positive.
	ErrWorkerCount = errors.New("invalid worker count")
)

// Usage is printed by the dispatcher rank when the group is misconfigured.
const Usage = `Please run with at least 3 processes.
Example (scripted):    rexec local --size 4
Example (interactive): rexec local --size 4 interactive
`

// Role is the part a rank plays in the group.
type Role int

const (
	RoleDispatcher Role = iota
	RoleWorker
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleDispatcher:
		return "dispatcher"
	case RoleWorker:
		return "worker"
	case RoleClient:
		return "client"
	}
	return "unknown"
}

// Layout partitions a group of Size ranks: rank 0 is the dispatcher, ranks
// 1..Workers are workers and the remaining ranks are clients.
type Layout struct {
	Size    int
	Workers int
}

// PlanLayout validates the group size and picks the worker count. A
// workers value of zero selects the default policy: one worker, two once
// the group has at least five ranks, never more than size-2.
func PlanLayout(size, workers int) (Layout, error) {
	if size < MinGroupSize {
		return Layout{}, fmt.Errorf("%w: have %d ranks, need at least %d", ErrGroupTooSmall, size, MinGroupSize)
	}
	if workers == 0 {
		workers = 1
		if size >= 5 {
			workers = 2
		}
		if workers > size-2 {
			workers = size - 2
		}
	}
	if workers < 1 || workers > size-2 {
		return Layout{}, fmt.Errorf("%w: %d workers in a group of %d", ErrWorkerCount, workers, size)
	}
	return Layout{Size: size, Workers: workers}, nil
}

// RoleOf returns the role played by rank r.
func (l Layout) RoleOf(r Rank) Role {
	switch {
	case r == DispatcherRank:
		return RoleDispatcher
	case l.IsWorker(r):
		return RoleWorker
	default:
		return RoleClient
	}
}

// IsWorker reports whether r is in the worker block.
func (l Layout) IsWorker(r Rank) bool {
	return int(r) >= 1 && int(r) <= l.Workers
}

// IsClient reports whether r is in the client block.
func (l Layout) IsClient(r Rank) bool {
	return int(r) > l.Workers && int(r) < l.Size
}

// WorkerRanks lists the worker ranks in ascending order.
func (l Layout) WorkerRanks() []Rank {
	ranks := make([]Rank, 0, l.Workers)
	for r := 1; r <= l.Workers; r++ {
		ranks = append(ranks, Rank(r))
	}
	return ranks
}

// ClientRanks lists the client ranks in ascending order.
func (l Layout) ClientRanks() []Rank {
	ranks := make([]Rank, 0, l.Clients())
	for r := l.Workers + 1; r < l.Size; r++ {
		ranks = append(ranks, Rank(r))
	}
	return ranks
}

// Clients is the number of client ranks.
func (l Layout) Clients() int {
	return l.Size - 1 - l.Workers
}

// FirstClient is the lowest client rank.
func (l Layout) FirstClient() Rank {
	return Rank(l.Workers + 1)
}
