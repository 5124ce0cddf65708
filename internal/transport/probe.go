package transport

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/dreamware/rexec/internal/cluster"
)

// PeerProbe waits until every rank of a group answers its health endpoint.
// Ranks start in any order; the probe lets a rank hold back its role loop
// until the whole group is reachable.
type PeerProbe struct {
	peers     Peers
	interval  time.Duration
	checkFunc func(ctx context.Context, url string) error
	log       *zap.Logger
}

// NewPeerProbe creates a probe polling every interval.
func NewPeerProbe(peers Peers, interval time.Duration, logger *zap.Logger) *PeerProbe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeerProbe{
		peers:     peers,
		interval:  interval,
		checkFunc: cluster.Get,
		log:       logger,
	}
}

// SetCheckFunction overrides the health check, mainly for tests.
func (p *PeerProbe) SetCheckFunction(fn func(ctx context.Context, url string) error) {
	p.checkFunc = fn
}

// Wait blocks until every peer has answered once, or ctx ends.
func (p *PeerProbe) Wait(ctx context.Context) error {
	all := make([]cluster.Rank, 0, p.peers.Size())
	for r := 0; r < p.peers.Size(); r++ {
		all = append(all, cluster.Rank(r))
	}
	return p.WaitFor(ctx, all)
}

// WaitFor blocks until each of ranks has answered once, or ctx ends.
func (p *PeerProbe) WaitFor(ctx context.Context, ranks []cluster.Rank) error {
	pending := slices.Clone(ranks)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		pending = slices.DeleteFunc(pending, func(r cluster.Rank) bool {
			base, err := p.peers.URL(r)
			if err != nil {
				return false
			}
			return p.checkFunc(ctx, base+"/health") == nil
		})
		if len(pending) == 0 {
			p.log.Info("all peers reachable", zap.Int("attempts", attempt))
			return nil
		}
		p.log.Debug("waiting for peers", zap.Int("attempt", attempt), zap.Any("pending", pending))

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("waiting for ranks %v: %w", pending, ctx.Err())
		}
	}
}
