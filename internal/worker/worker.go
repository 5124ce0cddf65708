// Package worker implements the executing tier of a rexec group.
//
// A worker waits for jobs from the dispatcher, records each one in its audit
// log and command history, applies the security policy, answers the worker
// control commands itself and hands everything else to the local shell. It
// stops when it receives the shutdown job.
//
// A worker owns its history ring and audit log outright; its loop is the
// only code that touches them, so neither needs a lock.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dreamware/rexec/internal/audit"
	"github.com/dreamware/rexec/internal/cluster"
	"github.com/dreamware/rexec/internal/history"
	"github.com/dreamware/rexec/internal/policy"
	"github.com/dreamware/rexec/internal/transport"
)

// Options configures a Worker. Zero values select the defaults.
type Options struct {
	HistorySize int
	OutputSize  int
	Executor    Executor

	// Audit is the worker's own log; nil disables the audit trail.
	Audit  *audit.Log
	Logger *zap.Logger
}

// Worker executes jobs for one worker rank.
type Worker struct {
	rank       cluster.Rank
	tr         transport.Transport
	history    *history.Ring
	audit      *audit.Log
	exec       Executor
	outputSize int
	log        *zap.Logger
}

// New creates the worker for rank, talking to the dispatcher over tr.
func New(rank cluster.Rank, tr transport.Transport, opts Options) *Worker {
	if opts.HistorySize <= 0 {
		opts.HistorySize = history.DefaultCapacity
	}
	if opts.OutputSize <= 0 {
		opts.OutputSize = cluster.MaxOutput
	}
	if opts.Executor == nil {
		opts.Executor = ShellExecutor{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Worker{
		rank:       rank,
		tr:         tr,
		history:    history.NewRing(opts.HistorySize),
		audit:      opts.Audit,
		exec:       opts.Executor,
		outputSize: opts.OutputSize,
		log:        opts.Logger.With(zap.Int("rank", int(rank))),
	}
}

// History returns the commands currently remembered, oldest first.
func (w *Worker) History() []string {
	return w.history.Entries()
}

// Run serves jobs until the shutdown job arrives or ctx ends. The audit log
// is closed on return.
func (w *Worker) Run(ctx context.Context) error {
	defer func() {
		if err := w.audit.Close(); err != nil {
			w.log.Warn("closing audit log", zap.Error(err))
		}
	}()
	w.log.Info("worker started")

	for {
		payload, _, err := w.tr.Recv(ctx, cluster.TagWorkerJob, cluster.DispatcherRank)
		if err != nil {
			return fmt.Errorf("worker %d receive: %w", int(w.rank), err)
		}
		var job cluster.Job
		if err := json.Unmarshal(payload, &job); err != nil {
			w.log.Error("dropping malformed job", zap.Error(err))
			continue
		}
		if job.IsShutdown() {
			w.log.Info("received shutdown")
			return nil
		}

		res := w.Handle(ctx, job)
		out, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("worker %d encode result: %w", int(w.rank), err)
		}
		if err := w.tr.Send(ctx, out, cluster.DispatcherRank, cluster.TagWorkerResult); err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return fmt.Errorf("worker %d reply: %w", int(w.rank), err)
			}
			w.log.Error("reply not delivered",
				zap.Int("client", int(res.Originator)),
				zap.Error(err))
		}
	}
}

// Handle processes one job and returns the reply for its originator. It
// never fails: policy rejections and execution problems become result text.
func (w *Worker) Handle(ctx context.Context, job cluster.Job) cluster.JobResult {
	cmd := cluster.Bound(job.Text, cluster.MaxCommand)

	w.audit.Record(job.Originator, cmd)
	if cmd != "" && !cluster.IsExit(cmd) {
		w.history.Push(cmd)
	}
	w.log.Info("handling command", zap.Int("client", int(job.Originator)), zap.String("cmd", cmd))

	return cluster.JobResult{
		Originator: job.Originator,
		Text:       cluster.Bound(w.dispatch(ctx, cmd), w.outputSize),
	}
}

func (w *Worker) dispatch(ctx context.Context, cmd string) string {
	if rule, blocked := policy.Check(cmd); blocked {
		w.log.Warn("command blocked", zap.String("rule", rule), zap.String("cmd", cmd))
		return policy.BlockedMessage
	}

	switch cmd {
	case cluster.CmdHistory:
		return w.historyDump()
	case cluster.CmdServerInfo:
		return w.serverInfo(ctx)
	}
	if path, ok := cluster.GetFileArg(cmd); ok {
		if path == "" {
			return GetUsage
		}
		return w.readFile(path)
	}
	if cmd == cluster.CmdHelp {
		return HelpText
	}
	return w.runShell(ctx, cmd)
}
