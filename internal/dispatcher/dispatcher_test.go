package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/rexec/internal/audit"
	"github.com/dreamware/rexec/internal/cluster"
	"github.com/dreamware/rexec/internal/obfuscate"
	"github.com/dreamware/rexec/internal/transport"
)

const testKey = obfuscate.DefaultKey

type auditBuffer struct {
	strings.Builder
}

func (a *auditBuffer) Close() error { return nil }

// fakeWorker answers every job with "w<rank>:<text>" and records the
// shutdown job when it arrives
type fakeWorker struct {
	ep       *transport.Endpoint
	mu       sync.Mutex
	jobs     []cluster.Job
	shutdown bool
}

func (f *fakeWorker) run(ctx context.Context) {
	for {
		buf, _, err := f.ep.Recv(ctx, cluster.TagWorkerJob, cluster.DispatcherRank)
		if err != nil {
			return
		}
		var job cluster.Job
		if err := json.Unmarshal(buf, &job); err != nil {
			return
		}
		f.mu.Lock()
		if job.IsShutdown() {
			f.shutdown = true
			f.mu.Unlock()
			return
		}
		f.jobs = append(f.jobs, job)
		f.mu.Unlock()

		res := cluster.JobResult{
			Originator: job.Originator,
			Text:       fmt.Sprintf("w%d:%s", int(f.ep.Rank()), job.Text),
		}
		out, _ := json.Marshal(res)
		if err := f.ep.Send(ctx, out, cluster.DispatcherRank, cluster.TagWorkerResult); err != nil {
			return
		}
	}
}

func (f *fakeWorker) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, j := range f.jobs {
		out = append(out, j.Text)
	}
	return out
}

func (f *fakeWorker) gotShutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdown
}

// flakyTransport fails the first send to dest on tag and passes everything
// else through.
type flakyTransport struct {
	transport.Transport
	dest   cluster.Rank
	tag    cluster.Tag
	mu     sync.Mutex
	failed bool
}

var errUnreachable = errors.New("connection refused")

func (f *flakyTransport) Send(ctx context.Context, payload []byte, dest cluster.Rank, tag cluster.Tag) error {
	f.mu.Lock()
	fail := !f.failed && dest == f.dest && tag == f.tag
	if fail {
		f.failed = true
	}
	f.mu.Unlock()
	if fail {
		return errUnreachable
	}
	return f.Transport.Send(ctx, payload, dest, tag)
}

type group struct {
	hub        *transport.Hub
	workers    []*fakeWorker
	audit      *auditBuffer
	dispatcher *Dispatcher
	done       chan error
	wg         sync.WaitGroup
}

func startGroup(t *testing.T, size, workers int) *group {
	t.Helper()
	return startGroupWith(t, size, workers, nil)
}

// startGroupWith is startGroup with the dispatcher's transport passed
// through wrap first.
func startGroupWith(t *testing.T, size, workers int, wrap func(transport.Transport) transport.Transport) *group {
	t.Helper()
	layout, err := cluster.PlanLayout(size, workers)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	g := &group{
		hub:   transport.NewHub(size),
		audit: &auditBuffer{},
		done:  make(chan error, 1),
	}
	t.Cleanup(func() {
		cancel()
		g.hub.Close()
		g.wg.Wait()
	})

	for _, r := range layout.WorkerRanks() {
		w := &fakeWorker{ep: g.hub.Endpoint(r)}
		g.workers = append(g.workers, w)
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			w.run(ctx)
		}()
	}

	var tr transport.Transport = g.hub.Endpoint(cluster.DispatcherRank)
	if wrap != nil {
		tr = wrap(tr)
	}
	g.dispatcher = New(layout, tr, Options{
		Key:   testKey,
		Audit: audit.New(g.audit, nil, nil),
	})
	go func() { g.done <- g.dispatcher.Run(ctx) }()
	return g
}

func (g *group) exec(t *testing.T, client cluster.Rank, cmd string) string {
	t.Helper()
	ep := g.hub.Endpoint(client)
	ctx := context.Background()
	require.NoError(t, ep.Send(ctx, obfuscate.Seal(cmd, cluster.MaxCommand, testKey), cluster.DispatcherRank, cluster.TagClientCommand))
	buf, from, err := ep.Recv(ctx, cluster.TagClientResult, cluster.DispatcherRank)
	require.NoError(t, err)
	assert.Equal(t, cluster.DispatcherRank, from)
	assert.Len(t, buf, cluster.MaxOutput)
	return obfuscate.Open(buf, testKey)
}

func (g *group) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-g.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not finish")
		return nil
	}
}

func (g *group) auditTexts() []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(g.audit.String()), "\n") {
		if _, rest, ok := strings.Cut(line, "] "); ok {
			out = append(out, rest)
		}
	}
	return out
}

// TestDispatcherRoundRobin tests that forwarded commands rotate across
// workers and results return to the originating client
func TestDispatcherRoundRobin(t *testing.T) {
	g := startGroup(t, 5, 2)

	assert.Equal(t, "w1:a", g.exec(t, 3, "a"))
	assert.Equal(t, "w2:b", g.exec(t, 4, "b"))
	assert.Equal(t, "w1:c", g.exec(t, 3, "c"))
	assert.Equal(t, "w2:d", g.exec(t, 3, "d"))
	assert.Equal(t, "Client 3 disconnected.\n", g.exec(t, 3, "exit"))
	assert.Equal(t, "Client 4 disconnected.\n", g.exec(t, 4, "quit"))

	require.NoError(t, g.wait(t))

	assert.Equal(t, []string{"a", "c"}, g.workers[0].texts())
	assert.Equal(t, []string{"b", "d"}, g.workers[1].texts())

	g.wg.Wait()
	for _, w := range g.workers {
		assert.True(t, w.gotShutdown(), "worker %d shutdown", int(w.ep.Rank()))
	}
}

// TestDispatcherClients tests the local client listing
func TestDispatcherClients(t *testing.T) {
	g := startGroup(t, 5, 2)

	assert.Equal(t, "Active clients: 3 4 \n", g.exec(t, 4, "__clients"))
	assert.Equal(t, "Client 3 disconnected.\n", g.exec(t, 3, "exit"))
	assert.Equal(t, "Active clients: 4 \n", g.exec(t, 4, "__clients"))
	assert.Equal(t, "Client 4 disconnected.\n", g.exec(t, 4, "exit"))

	require.NoError(t, g.wait(t))
	for _, w := range g.workers {
		assert.Empty(t, w.texts(), "__clients is never forwarded")
	}
}

// TestDispatcherAudit tests that every client command is recorded in
// receive order, control and exit commands included
func TestDispatcherAudit(t *testing.T) {
	g := startGroup(t, 4, 1)

	g.exec(t, 2, "pwd")
	g.exec(t, 3, "whoami")
	g.exec(t, 2, "__clients")
	g.exec(t, 2, "exit")
	g.exec(t, 3, "exit")
	require.NoError(t, g.wait(t))

	assert.Equal(t, []string{
		"client 2: pwd",
		"client 3: whoami",
		"client 2: __clients",
		"client 2: exit",
		"client 3: exit",
	}, g.auditTexts())
}

// TestDispatcherIgnoresNonClients tests that commands from worker or
// dispatcher ranks are dropped without a reply or audit entry
func TestDispatcherIgnoresNonClients(t *testing.T) {
	g := startGroup(t, 4, 1)

	// rank 1 is a worker; the fake worker never reads its own result tag
	intruder := g.hub.Endpoint(1)
	require.NoError(t, intruder.Send(context.Background(),
		obfuscate.Seal("rm -rf /", cluster.MaxCommand, testKey),
		cluster.DispatcherRank, cluster.TagClientCommand))

	assert.Equal(t, "Client 2 disconnected.\n", g.exec(t, 2, "exit"))
	assert.Equal(t, "Client 3 disconnected.\n", g.exec(t, 3, "exit"))
	require.NoError(t, g.wait(t))

	assert.Equal(t, []string{"client 2: exit", "client 3: exit"}, g.auditTexts())
	assert.Empty(t, g.workers[0].texts())
}

// TestDispatcherBoundsCommand tests that an oversized command is cut before
// it reaches a worker
func TestDispatcherBoundsCommand(t *testing.T) {
	g := startGroup(t, 3, 1)

	long := "echo " + strings.Repeat("x", 400)
	res := g.exec(t, 2, long)
	assert.Equal(t, "w1:"+long[:cluster.MaxCommand-1], res)

	g.exec(t, 2, "exit")
	require.NoError(t, g.wait(t))
}

// TestDispatcherMalformedResult tests that an undecodable worker reply is
// reported to the client and the loop keeps serving
func TestDispatcherMalformedResult(t *testing.T) {
	layout, err := cluster.PlanLayout(3, 1)
	require.NoError(t, err)
	hub := transport.NewHub(3)
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		ep := hub.Endpoint(1)
		if _, _, err := ep.Recv(ctx, cluster.TagWorkerJob, cluster.DispatcherRank); err != nil {
			return
		}
		_ = ep.Send(ctx, []byte("not json"), cluster.DispatcherRank, cluster.TagWorkerResult)
	}()

	done := make(chan error, 1)
	go func() {
		done <- New(layout, hub.Endpoint(cluster.DispatcherRank), Options{Key: testKey}).Run(ctx)
	}()

	client := hub.Endpoint(2)
	ask := func(cmd string) string {
		require.NoError(t, client.Send(ctx, obfuscate.Seal(cmd, cluster.MaxCommand, testKey), cluster.DispatcherRank, cluster.TagClientCommand))
		buf, _, err := client.Recv(ctx, cluster.TagClientResult, cluster.DispatcherRank)
		require.NoError(t, err)
		return obfuscate.Open(buf, testKey)
	}
	assert.Equal(t, "Failed to run command: ls\n", ask("ls"))
	assert.Equal(t, "Client 2 disconnected.\n", ask("exit"))
	require.NoError(t, <-done)
}

// TestDispatcherUnreachableClient tests that a reply that cannot be
// delivered drops that client and the others are still served
func TestDispatcherUnreachableClient(t *testing.T) {
	g := startGroupWith(t, 4, 1, func(tr transport.Transport) transport.Transport {
		return &flakyTransport{Transport: tr, dest: 2, tag: cluster.TagClientResult}
	})

	// client 2 never gets its answer, so do not wait for one
	require.NoError(t, g.hub.Endpoint(2).Send(context.Background(),
		obfuscate.Seal("a", cluster.MaxCommand, testKey),
		cluster.DispatcherRank, cluster.TagClientCommand))

	assert.Equal(t, "w1:b", g.exec(t, 3, "b"))
	assert.Equal(t, "Client 3 disconnected.\n", g.exec(t, 3, "exit"))
	require.NoError(t, g.wait(t))

	assert.False(t, g.dispatcher.Registry().IsActive(2))
	assert.ElementsMatch(t, []string{"a", "b"}, g.workers[0].texts())
	g.wg.Wait()
	assert.True(t, g.workers[0].gotShutdown())
}

// TestDispatcherUnreachableWorker tests that a job that cannot be handed to
// a worker fails that command only
func TestDispatcherUnreachableWorker(t *testing.T) {
	g := startGroupWith(t, 4, 2, func(tr transport.Transport) transport.Transport {
		return &flakyTransport{Transport: tr, dest: 1, tag: cluster.TagWorkerJob}
	})

	assert.Equal(t, "Failed to run command: a\n", g.exec(t, 2, "a"))
	assert.Equal(t, "w2:b", g.exec(t, 2, "b"))
	assert.Equal(t, "w1:c", g.exec(t, 3, "c"))
	g.exec(t, 2, "exit")
	g.exec(t, 3, "exit")
	require.NoError(t, g.wait(t))

	assert.Equal(t, []string{"c"}, g.workers[0].texts())
	assert.Equal(t, []string{"b"}, g.workers[1].texts())
}

// TestDispatcherCancel tests that Run stops when its context ends
func TestDispatcherCancel(t *testing.T) {
	layout, err := cluster.PlanLayout(3, 1)
	require.NoError(t, err)
	hub := transport.NewHub(3)
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	d := New(layout, hub.Endpoint(cluster.DispatcherRank), Options{Key: testKey})
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.True(t, transport.Stopped(err))
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher ignored cancellation")
	}
	assert.Equal(t, 1, d.Registry().Remaining())
}
