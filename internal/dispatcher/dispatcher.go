package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dreamware/rexec/internal/audit"
	"github.com/dreamware/rexec/internal/cluster"
	"github.com/dreamware/rexec/internal/obfuscate"
	"github.com/dreamware/rexec/internal/transport"
)

// Options configures a Dispatcher.
type Options struct {
	// Key is the obfuscation mask byte shared with the clients.
	Key byte

	// Audit receives one entry per client command; nil disables it.
	Audit  *audit.Log
	Logger *zap.Logger
}

// Dispatcher serves client commands one at a time until every client has
// left, then shuts the workers down.
type Dispatcher struct {
	layout   cluster.Layout
	tr       transport.Transport
	registry *Registry
	balancer *RoundRobin
	audit    *audit.Log
	key      byte
	log      *zap.Logger
}

// New creates the dispatcher of a group laid out as layout.
func New(layout cluster.Layout, tr transport.Transport, opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Dispatcher{
		layout:   layout,
		tr:       tr,
		registry: NewRegistry(layout.ClientRanks()),
		balancer: NewRoundRobin(layout.Workers),
		audit:    opts.Audit,
		key:      opts.Key,
		log:      opts.Logger,
	}
}

// Registry exposes the client registry, mainly for inspection in tests.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Run is the dispatcher loop. It returns nil once every client has sent an
// exit command and every worker has been sent the shutdown job. The audit
// log is closed on return.
//
// The loop is strictly sequential: a command forwarded to a worker blocks
// the dispatcher, and so every other client, until that worker replies.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer func() {
		if err := d.audit.Close(); err != nil {
			d.log.Warn("closing audit log", zap.Error(err))
		}
	}()
	d.log.Info("dispatcher started",
		zap.Int("workers", d.layout.Workers),
		zap.Int("clients", d.registry.Remaining()))

	for d.registry.Remaining() > 0 {
		if err := d.step(ctx); err != nil {
			return err
		}
	}

	d.log.Info("all clients disconnected, shutting down workers")
	return d.shutdownWorkers(ctx)
}

// step receives one client command and answers it. Only a receive that
// fails because the transport or ctx stopped ends the loop.
func (d *Dispatcher) step(ctx context.Context) error {
	buf, client, err := d.tr.Recv(ctx, cluster.TagClientCommand, cluster.AnySource)
	if err != nil {
		return fmt.Errorf("dispatcher receive: %w", err)
	}
	cmd := cluster.Bound(obfuscate.Open(buf, d.key), cluster.MaxCommand)

	if !d.layout.IsClient(client) {
		d.log.Warn("ignoring command from non-client rank", zap.Int("rank", int(client)))
		return nil
	}

	d.audit.Record(client, cmd)
	d.log.Info("received command", zap.Int("client", int(client)), zap.String("cmd", cmd))

	switch {
	case cluster.IsExit(cmd):
		if err := d.reply(ctx, client, fmt.Sprintf("Client %d disconnected.\n", int(client))); err != nil {
			return err
		}
		d.registry.Leave(client)
		d.log.Info("client left", zap.Int("client", int(client)), zap.Int("remaining", d.registry.Remaining()))
		return nil

	case cmd == cluster.CmdClients:
		return d.reply(ctx, client, d.registry.Describe())
	}

	res, err := d.forward(ctx, cluster.Job{Originator: client, Text: cmd})
	if err != nil {
		if stopped(ctx, err) {
			return err
		}
		d.log.Error("forward failed", zap.Int("client", int(client)), zap.Error(err))
		return d.reply(ctx, client, fmt.Sprintf("Failed to run command: %s\n", cmd))
	}
	return d.reply(ctx, res.Originator, res.Text)
}

// forward sends job to the next worker in rotation and waits for its reply.
func (d *Dispatcher) forward(ctx context.Context, job cluster.Job) (cluster.JobResult, error) {
	worker := d.balancer.Next()

	payload, err := json.Marshal(job)
	if err != nil {
		return cluster.JobResult{}, fmt.Errorf("encode job: %w", err)
	}
	if err := d.tr.Send(ctx, payload, worker, cluster.TagWorkerJob); err != nil {
		return cluster.JobResult{}, fmt.Errorf("forward to worker %d: %w", int(worker), err)
	}
	d.log.Debug("forwarded", zap.Int("worker", int(worker)), zap.Int("client", int(job.Originator)))

	reply, _, err := d.tr.Recv(ctx, cluster.TagWorkerResult, worker)
	if err != nil {
		return cluster.JobResult{}, fmt.Errorf("await worker %d: %w", int(worker), err)
	}
	var res cluster.JobResult
	if err := json.Unmarshal(reply, &res); err != nil {
		return cluster.JobResult{}, fmt.Errorf("decode result from worker %d: %w", int(worker), err)
	}
	if res.Originator != job.Originator {
		return cluster.JobResult{}, fmt.Errorf("worker %d answered for client %d, want %d",
			int(worker), int(res.Originator), int(job.Originator))
	}
	res.Text = cluster.Bound(res.Text, cluster.MaxOutput)
	return res, nil
}

// reply masks text and sends it to client. A client that cannot be reached
// is dropped from the registry so the loop can still finish; only a stopped
// transport or context is returned.
func (d *Dispatcher) reply(ctx context.Context, client cluster.Rank, text string) error {
	buf := obfuscate.Seal(text, cluster.MaxOutput, d.key)
	err := d.tr.Send(ctx, buf, client, cluster.TagClientResult)
	if err == nil {
		return nil
	}
	if stopped(ctx, err) {
		return fmt.Errorf("reply to client %d: %w", int(client), err)
	}
	d.registry.Leave(client)
	d.log.Error("client unreachable, dropping it",
		zap.Int("client", int(client)),
		zap.Int("remaining", d.registry.Remaining()),
		zap.Error(err))
	return nil
}

// shutdownWorkers sends the shutdown job to every worker rank. A worker that
// cannot be reached is logged and skipped.
func (d *Dispatcher) shutdownWorkers(ctx context.Context) error {
	payload, err := json.Marshal(cluster.ShutdownJob())
	if err != nil {
		return fmt.Errorf("encode shutdown: %w", err)
	}
	for _, w := range d.layout.WorkerRanks() {
		err := d.tr.Send(ctx, payload, w, cluster.TagWorkerJob)
		switch {
		case err == nil:
		case stopped(ctx, err):
			return fmt.Errorf("shutdown worker %d: %w", int(w), err)
		default:
			d.log.Error("shutdown not delivered", zap.Int("worker", int(w)), zap.Error(err))
		}
	}
	return nil
}

// stopped reports whether err comes from ctx ending or the transport closing.
func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, transport.ErrClosed)
}
