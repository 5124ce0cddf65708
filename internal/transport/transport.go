package transport

import (
	"context"
	"errors"

	"github.com/dreamware/rexec/internal/cluster"
)

var (
	// ErrClosed is returned by operations on a closed mailbox or hub.
	ErrClosed = errors.New("transport closed")

	// ErrUnknownRank is returned when a message is addressed outside the group.
	ErrUnknownRank = errors.New("unknown rank")
)

// Transport moves tagged byte payloads between ranks.
//
// Send blocks until the payload has been handed to the destination's
// mailbox. Recv blocks until a message with the given tag from source
// (or from anyone, with cluster.AnySource) is available and returns it
// together with the actual sender. Messages from one sender on one tag are
// received in the order they were sent.
type Transport interface {
	Send(ctx context.Context, payload []byte, dest cluster.Rank, tag cluster.Tag) error
	Recv(ctx context.Context, tag cluster.Tag, source cluster.Rank) ([]byte, cluster.Rank, error)
}

// Stopped reports whether err only says that the transport was closed or
// the caller's context was cancelled, as happens on an orderly shutdown.
func Stopped(err error) bool {
	return err == nil || errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled)
}
