// Package dispatcher implements the coordinating tier of a rexec group.
// See doc.go for complete package documentation.
package dispatcher

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dreamware/rexec/internal/cluster"
)

// Registry tracks which client ranks still have an open session with the
// dispatcher, serving as the authoritative answer to the __clients control
// command and as the dispatcher loop's termination condition.
//
// Every client rank assigned at startup is active from the beginning; a
// session is joined implicitly by sending the first command. Leaving is
// explicit: an exit command marks the rank inactive, exactly once.
//
// Concurrency Model:
//   - Owned by the single dispatcher loop
//   - No locking: nothing else reads or writes it
//
// Example:
//
//	reg := NewRegistry(layout.ClientRanks())
//	reg.Leave(3)
//	fmt.Print(reg.Describe()) // "Active clients: 2 \n"
type Registry struct {
	// active maps every client rank assigned at startup to its state.
	// Ranks are never removed, only flipped to false.
	active map[cluster.Rank]bool

	// remaining counts the ranks still marked active.
	remaining int
}

// NewRegistry creates a registry in which every given rank is active.
//
// Parameters:
//   - clients: The client ranks of the group; duplicates count once
//
// Returns:
//   - Registry with all clients active
func NewRegistry(clients []cluster.Rank) *Registry {
	r := &Registry{active: make(map[cluster.Rank]bool, len(clients))}
	for _, c := range clients {
		if !r.active[c] {
			r.active[c] = true
			r.remaining++
		}
	}
	return r
}

// Leave marks a client inactive.
//
// Behavior:
//   - First call for an active rank decrements the active count
//   - Repeated calls, or calls for unknown ranks, change nothing
//
// Returns:
//   - true if the rank was active before the call
func (r *Registry) Leave(client cluster.Rank) bool {
	if !r.active[client] {
		return false
	}
	r.active[client] = false
	r.remaining--
	return true
}

// IsActive reports whether client still has an open session.
func (r *Registry) IsActive(client cluster.Rank) bool {
	return r.active[client]
}

// Remaining returns the number of active clients.
// The dispatcher loop ends when it reaches zero.
func (r *Registry) Remaining() int {
	return r.remaining
}

// Active returns the active client ranks in ascending order.
func (r *Registry) Active() []cluster.Rank {
	ranks := make([]cluster.Rank, 0, r.remaining)
	for c, ok := range r.active {
		if ok {
			ranks = append(ranks, c)
		}
	}
	slices.Sort(ranks)
	return ranks
}

// Describe renders the reply to the __clients control command: every active
// rank followed by a space, then a newline.
//
// Example output:
//
//	Active clients: 2 3 4
func (r *Registry) Describe() string {
	var b strings.Builder
	b.WriteString("Active clients: ")
	for _, c := range r.Active() {
		fmt.Fprintf(&b, "%d ", int(c))
	}
	b.WriteString("\n")
	return b.String()
}
