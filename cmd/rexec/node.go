package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/rexec/internal/cluster"
	"github.com/dreamware/rexec/internal/node"
	"github.com/dreamware/rexec/internal/transport"
)

const (
	probeInterval   = 200 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

func newNodeCmd(flags *runFlags) *cobra.Command {
	var (
		rank      int
		peersFile string
	)

	cmd := &cobra.Command{
		Use:   "node --rank R [interactive]",
		Short: "Run one rank of a multi-process group",
		Long: "node runs the role of a single rank. Every rank of the group lists the same peers file; " +
			"rank R listens on the R-th address and reaches the others over HTTP.",
		Args: interactiveArgs(flags),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if peersFile == "" {
				peersFile = cfg.Transport.PeersFile
			}
			peers, err := transport.LoadPeers(peersFile)
			if err != nil {
				return err
			}

			self := cluster.Rank(rank)
			layout, err := planLayout(peers.Size(), cfg.Group.Workers, self, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if rank < 0 || rank >= layout.Size {
				return fmt.Errorf("rank %d outside group of %d", rank, layout.Size)
			}

			log := newLogger(cfg)
			defer func() { _ = log.Sync() }()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			tr := transport.NewHTTP(self, peers, log.Named("transport"))
			if err := tr.Start(); err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := tr.Shutdown(sctx); err != nil {
					log.Warn("transport shutdown", zap.Error(err))
				}
			}()

			// Only the dispatcher talks to every rank; the others need rank 0.
			probe := transport.NewPeerProbe(peers, probeInterval, log.Named("probe"))
			if self == cluster.DispatcherRank {
				err = probe.Wait(ctx)
			} else {
				err = probe.WaitFor(ctx, []cluster.Rank{cluster.DispatcherRank})
			}
			if err != nil {
				return err
			}
			log.Info("group ready",
				zap.Int("rank", rank),
				zap.Stringer("role", layout.RoleOf(self)),
				zap.Int("size", layout.Size))

			return node.Run(ctx, self, tr, node.Options{
				Config: cfg,
				Layout: layout,
				In:     cmd.InOrStdin(),
				Out:    cmd.OutOrStdout(),
				Logger: log,
			})
		},
	}
	cmd.Flags().IntVar(&rank, "rank", -1, "rank of this process")
	cmd.Flags().StringVar(&peersFile, "peers", "", "peers file (overrides transport.peers_file)")
	_ = cmd.MarkFlagRequired("rank")
	return cmd
}
