// Package node starts the role that belongs to a rank: dispatcher, worker
// or client. Run drives one rank over any transport; RunGroup launches a
// whole group inside one process over an in-memory hub.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/dreamware/rexec/internal/audit"
	"github.com/dreamware/rexec/internal/client"
	"github.com/dreamware/rexec/internal/cluster"
	"github.com/dreamware/rexec/internal/config"
	"github.com/dreamware/rexec/internal/dispatcher"
	"github.com/dreamware/rexec/internal/logger"
	"github.com/dreamware/rexec/internal/transport"
	"github.com/dreamware/rexec/internal/worker"
)

// Audit file names inside the configured audit directory.
const (
	DispatcherLog = "dispatcher_log.txt"
	DispatcherCSV = "dispatcher_log.csv"
)

// WorkerLog returns the audit file name of a worker rank.
func WorkerLog(rank cluster.Rank) string {
	return fmt.Sprintf("worker_%d_log.txt", int(rank))
}

// Options carries what every role needs besides its transport.
type Options struct {
	Config *config.Config
	Layout cluster.Layout

	// Interactive overrides Config.Client.Interactive for this rank.
	Interactive bool

	// Executor replaces the shell for worker ranks; nil uses /bin/sh or
	// the configured shell.
	Executor worker.Executor

	In     io.Reader
	Out    io.Writer
	Logger *zap.Logger
}

// Run executes the role of rank until it finishes or ctx ends.
func Run(ctx context.Context, rank cluster.Rank, tr transport.Transport, opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	role := opts.Layout.RoleOf(rank)
	log := logger.ForRank(opts.Logger, role.String(), int(rank))

	switch role {
	case cluster.RoleDispatcher:
		aopts := audit.Options{TextPath: filepath.Join(cfg.Audit.Dir, DispatcherLog)}
		if cfg.Audit.CSV {
			aopts.CSVPath = filepath.Join(cfg.Audit.Dir, DispatcherCSV)
		}
		d := dispatcher.New(opts.Layout, tr, dispatcher.Options{
			Key:    cfg.Key(),
			Audit:  audit.Open(aopts, log),
			Logger: log,
		})
		return d.Run(ctx)

	case cluster.RoleWorker:
		exec := opts.Executor
		if exec == nil {
			exec = worker.ShellExecutor{Shell: cfg.Worker.Shell, Stderr: os.Stderr}
		}
		w := worker.New(rank, tr, worker.Options{
			HistorySize: cfg.Limits.History,
			OutputSize:  cfg.Limits.MaxOutput,
			Executor:    exec,
			Audit:       audit.Open(audit.Options{TextPath: filepath.Join(cfg.Audit.Dir, WorkerLog(rank))}, log),
			Logger:      log,
		})
		return w.Run(ctx)

	default:
		s := client.NewSession(rank, tr, cfg.Key(), log)
		return client.Run(ctx, s, client.Options{
			Interactive: opts.Interactive || cfg.Client.Interactive,
			First:       rank == opts.Layout.FirstClient(),
			ScriptDir:   cfg.Client.ScriptDir,
			Benchmark:   cfg.Client.BenchmarkIterations,
			In:          opts.In,
			Out:         opts.Out,
			Logger:      log,
		})
	}
}

// RunGroup runs every rank of layout as a goroutine over a shared hub and
// waits for all of them. Only the first client is interactive when
// opts.Interactive is set, since the group shares one input. The first role
// error cancels the rest.
func RunGroup(ctx context.Context, opts Options) error {
	if opts.Config == nil {
		d := config.Default()
		opts.Config = &d
	}
	interactive := opts.Interactive || opts.Config.Client.Interactive
	scripted := *opts.Config
	scripted.Client.Interactive = false
	opts.Config = &scripted
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	opts.Out = &lockedWriter{w: opts.Out}

	hub := transport.NewHub(opts.Layout.Size)
	defer hub.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for r := 0; r < opts.Layout.Size; r++ {
		rank := cluster.Rank(r)
		ropts := opts
		ropts.Interactive = interactive && rank == opts.Layout.FirstClient()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := Run(ctx, rank, hub.Endpoint(rank), ropts); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("rank %d: %w", int(rank), err))
				mu.Unlock()
				cancel()
			}
		}()
	}
	wg.Wait()

	return firstCause(errs)
}

// firstCause drops the cancellations that a failing rank caused in the
// others so the root error is reported alone.
func firstCause(errs []error) error {
	var rest []error
	for _, err := range errs {
		if !transport.Stopped(err) {
			rest = append(rest, err)
		}
	}
	if len(rest) == 0 {
		return errors.Join(errs...)
	}
	return errors.Join(rest...)
}

// lockedWriter serialises writes from the client goroutines of a group.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
