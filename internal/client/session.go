package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/rexec/internal/cluster"
	"github.com/dreamware/rexec/internal/obfuscate"
	"github.com/dreamware/rexec/internal/transport"
)

// Session is one client's conversation with the dispatcher. Every Exec is a
// full round trip: the command goes out masked, the reply comes back masked,
// and nothing else can be in flight for this client in between. A Session
// is not safe for concurrent use.
type Session struct {
	rank   cluster.Rank
	tr     transport.Transport
	key    byte
	log    *zap.Logger
	closed bool

	commands int64
	received int64
}

// NewSession creates a session for the client at rank.
func NewSession(rank cluster.Rank, tr transport.Transport, key byte, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{rank: rank, tr: tr, key: key, log: logger}
}

// Rank returns the client rank.
func (s *Session) Rank() cluster.Rank {
	return s.rank
}

// Closed reports whether an exit command has been acknowledged.
func (s *Session) Closed() bool {
	return s.closed
}

// Commands returns the number of completed round trips.
func (s *Session) Commands() int64 {
	return s.commands
}

// BytesReceived returns the total length of the results seen so far.
func (s *Session) BytesReceived() int64 {
	return s.received
}

// Exec sends cmd to the dispatcher and waits for its result. Commands longer
// than cluster.MaxCommand-1 bytes are cut.
func (s *Session) Exec(ctx context.Context, cmd string) (string, error) {
	cmd = cluster.Bound(cmd, cluster.MaxCommand)
	start := time.Now()

	buf := obfuscate.Seal(cmd, cluster.MaxCommand, s.key)
	if err := s.tr.Send(ctx, buf, cluster.DispatcherRank, cluster.TagClientCommand); err != nil {
		return "", fmt.Errorf("client %d send: %w", int(s.rank), err)
	}
	reply, _, err := s.tr.Recv(ctx, cluster.TagClientResult, cluster.DispatcherRank)
	if err != nil {
		return "", fmt.Errorf("client %d receive: %w", int(s.rank), err)
	}
	res := obfuscate.Open(reply, s.key)

	s.commands++
	s.received += int64(len(res))
	if cluster.IsExit(cmd) {
		s.closed = true
	}
	s.log.Debug("round trip",
		zap.String("cmd", cmd),
		zap.Int("bytes", len(res)),
		zap.Duration("took", time.Since(start)))
	return res, nil
}
