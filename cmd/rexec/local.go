package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/rexec/internal/cluster"
	"github.com/dreamware/rexec/internal/node"
)

func newLocalCmd(flags *runFlags) *cobra.Command {
	var size, workers int

	cmd := &cobra.Command{
		Use:   "local [interactive]",
		Short: "Run a whole group in this process",
		Long: "local starts every rank of the group as a goroutine connected by an in-memory transport. " +
			"With \"interactive\" the first client reads commands from stdin; the others run their scripts.",
		Args: interactiveArgs(flags),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("size") {
				cfg.Group.Size = size
			}
			if cmd.Flags().Changed("workers") {
				cfg.Group.Workers = workers
			}

			layout, err := planLayout(cfg.Group.Size, cfg.Group.Workers, cluster.DispatcherRank, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			log := newLogger(cfg)
			defer func() { _ = log.Sync() }()
			log.Info("starting local group",
				zap.Int("size", layout.Size),
				zap.Int("workers", layout.Workers),
				zap.Bool("interactive", cfg.Client.Interactive))

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return node.RunGroup(ctx, node.Options{
				Config: cfg,
				Layout: layout,
				In:     cmd.InOrStdin(),
				Out:    cmd.OutOrStdout(),
				Logger: log,
			})
		},
	}
	cmd.Flags().IntVar(&size, "size", 0, "number of ranks (overrides group.size)")
	cmd.Flags().IntVar(&workers, "workers", 0, "number of workers, 0 for the default policy")
	return cmd
}
