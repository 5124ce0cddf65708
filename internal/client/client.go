// Package client implements the client tier of a rexec group: a Session
// that performs masked round trips with the dispatcher, and the scripted,
// interactive and benchmark drivers built on it.
package client

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/dreamware/rexec/internal/cluster"
)

// Options selects and configures the driver of one client rank.
type Options struct {
	Interactive bool

	// First marks the first client rank of the group, which gets the
	// richer default script and runs the benchmark.
	First bool

	// ScriptDir holds script_<rank>.txt files.
	ScriptDir string

	// Benchmark is the iteration count for the first client; 0 disables it.
	Benchmark int

	In     io.Reader
	Out    io.Writer
	Logger *zap.Logger
}

// Run drives s to completion: interactively when opts.Interactive is set,
// otherwise from the rank's script followed, on the first client, by a
// benchmark. Every path ends with the session closed so the dispatcher can
// account for the client leaving.
func Run(ctx context.Context, s *Session, opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.Interactive {
		if opts.In == nil {
			opts.In = os.Stdin
		}
		d := &Interactive{In: opts.In, Out: opts.Out}
		return d.Run(ctx, s)
	}

	cmds, err := LoadScript(opts.ScriptDir, s.Rank(), opts.First)
	if err != nil {
		opts.Logger.Warn("script unavailable, using defaults", zap.Error(err))
		cmds = DefaultScript(opts.First)
	}
	if !slices.ContainsFunc(cmds, cluster.IsExit) {
		cmds = append(cmds, cluster.CmdExit)
	}

	d := &Scripted{Commands: cmds, Out: opts.Out}
	if opts.First && opts.Benchmark > 0 {
		d.BeforeExit = func(ctx context.Context) error {
			rep, err := Benchmark(ctx, s, opts.Benchmark, opts.Out)
			if err != nil {
				return err
			}
			opts.Logger.Info("benchmark finished",
				zap.Int("iterations", rep.Iterations),
				zap.Duration("elapsed", rep.Elapsed),
				zap.Float64("throughput", rep.Throughput()))
			return nil
		}
	}
	if err := d.Run(ctx, s); err != nil {
		return err
	}

	opts.Logger.Info("session finished",
		zap.Int64("commands", s.Commands()),
		zap.Int64("bytes", s.BytesReceived()))
	return nil
}
