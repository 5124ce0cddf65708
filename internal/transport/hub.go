package transport

import (
	"context"
	"fmt"

	"github.com/dreamware/rexec/internal/cluster"
)

// Hub connects every rank of a group that runs inside one process.
type Hub struct {
	boxes []*Mailbox
}

// NewHub creates mailboxes for ranks 0..size-1.
func NewHub(size int) *Hub {
	boxes := make([]*Mailbox, size)
	for i := range boxes {
		boxes[i] = NewMailbox()
	}
	return &Hub{boxes: boxes}
}

// Size returns the number of ranks served by the hub.
func (h *Hub) Size() int {
	return len(h.boxes)
}

// Endpoint returns the transport used by rank r.
func (h *Hub) Endpoint(r cluster.Rank) *Endpoint {
	return &Endpoint{hub: h, self: r}
}

// Close closes every mailbox.
func (h *Hub) Close() {
	for _, b := range h.boxes {
		b.Close()
	}
}

func (h *Hub) box(r cluster.Rank) (*Mailbox, error) {
	if int(r) < 0 || int(r) >= len(h.boxes) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRank, int(r))
	}
	return h.boxes[r], nil
}

// Endpoint is one rank's view of a Hub.
type Endpoint struct {
	hub  *Hub
	self cluster.Rank
}

// Rank returns the rank this endpoint sends as.
func (e *Endpoint) Rank() cluster.Rank {
	return e.self
}

// Send delivers payload to dest's mailbox.
func (e *Endpoint) Send(ctx context.Context, payload []byte, dest cluster.Rank, tag cluster.Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	box, err := e.hub.box(dest)
	if err != nil {
		return err
	}
	return box.Put(e.self, tag, payload)
}

// Recv waits on the endpoint's own mailbox.
func (e *Endpoint) Recv(ctx context.Context, tag cluster.Tag, source cluster.Rank) ([]byte, cluster.Rank, error) {
	box, err := e.hub.box(e.self)
	if err != nil {
		return nil, 0, err
	}
	return box.Take(ctx, tag, source)
}
