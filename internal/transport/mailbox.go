package transport

import (
	"context"
	"sync"

	"github.com/dreamware/rexec/internal/cluster"
)

type message struct {
	source  cluster.Rank
	tag     cluster.Tag
	payload []byte
}

// Mailbox is the receive queue of one rank. Put never blocks; Take blocks
// until a matching message arrives, the context ends or the mailbox closes.
type Mailbox struct {
	mu     sync.Mutex
	queue  []message
	wake   chan struct{} // closed and replaced on every Put
	closed bool
}

// NewMailbox creates an empty, open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{wake: make(chan struct{})}
}

// Put enqueues a copy of payload.
func (m *Mailbox) Put(source cluster.Rank, tag cluster.Tag, payload []byte) error {
	data := make([]byte, len(payload))
	copy(data, payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.queue = append(m.queue, message{source: source, tag: tag, payload: data})
	close(m.wake)
	m.wake = make(chan struct{})
	return nil
}

// Take removes and returns the oldest message matching tag and source.
func (m *Mailbox) Take(ctx context.Context, tag cluster.Tag, source cluster.Rank) ([]byte, cluster.Rank, error) {
	for {
		m.mu.Lock()
		for i, msg := range m.queue {
			if msg.tag != tag || (source != cluster.AnySource && msg.source != source) {
				continue
			}
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.mu.Unlock()
			return msg.payload, msg.source, nil
		}
		if m.closed {
			m.mu.Unlock()
			return nil, 0, ErrClosed
		}
		wake := m.wake
		m.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
}

// Pending returns the number of queued messages.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close wakes every blocked Take. Messages still queued can be taken.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.wake)
}
