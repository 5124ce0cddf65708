package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/rexec/internal/cluster"
	"github.com/dreamware/rexec/internal/config"
	"github.com/dreamware/rexec/internal/logger"
)

const interactiveArg = "interactive"

// runFlags are shared by the run commands.
type runFlags struct {
	configPath  string
	interactive bool
}

func newRootCmd() *cobra.Command {
	flags := &runFlags{}

	rootCmd := &cobra.Command{
		Use:           "rexec",
		Short:         "Remote command execution over a dispatcher and worker pool",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "TOML or YAML config file")
	rootCmd.PersistentFlags().BoolVar(&flags.interactive, "interactive", false, "read client commands from stdin")

	rootCmd.AddCommand(
		newLocalCmd(flags),
		newNodeCmd(flags),
		newConfigCmd(),
	)
	return rootCmd
}

// interactiveArgs accepts an optional positional "interactive".
func interactiveArgs(flags *runFlags) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		switch {
		case len(args) == 0:
			return nil
		case len(args) == 1 && args[0] == interactiveArg:
			flags.interactive = true
			return nil
		}
		return fmt.Errorf("unexpected arguments %q, only %q is accepted", args, interactiveArg)
	}
}

func loadConfig(flags *runFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.interactive {
		cfg.Client.Interactive = true
	}
	return cfg, nil
}

// planLayout validates the group. Only rank 0 prints the usage text so a
// multi-process group shows it once.
func planLayout(size, workers int, rank cluster.Rank, errOut io.Writer) (cluster.Layout, error) {
	layout, err := cluster.PlanLayout(size, workers)
	if err != nil {
		if rank == cluster.DispatcherRank {
			fmt.Fprint(errOut, cluster.Usage)
		}
		return cluster.Layout{}, err
	}
	return layout, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	return logger.New(cfg.Log)
}

// signalContext ends on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
