package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dreamware/rexec/internal/cluster"
)

// Scripted runs a fixed list of commands in order and stops after the first
// exit command.
type Scripted struct {
	Commands []string
	Out      io.Writer

	// BeforeExit, when set, runs once right before the exit command is
	// sent, while the session is still registered with the dispatcher.
	BeforeExit func(ctx context.Context) error
}

// Run executes the script over s.
func (d *Scripted) Run(ctx context.Context, s *Session) error {
	r := int(s.Rank())
	fmt.Fprintf(d.Out, "[Client %d] Starting scripted remote shell.\n", r)

	for _, cmd := range d.Commands {
		exit := cluster.IsExit(cmd)
		if exit && d.BeforeExit != nil {
			if err := d.BeforeExit(ctx); err != nil {
				return err
			}
		}

		fmt.Fprintf(d.Out, "[Client %d] $ %s\n", r, cmd)
		res, err := s.Exec(ctx, cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(d.Out, "[Client %d] --- result ---\n%s\n", r, res)

		if exit {
			break
		}
	}

	fmt.Fprintf(d.Out, "[Client %d] Finished script.\n", r)
	return nil
}

// Interactive reads commands line by line from In until an exit command or
// end of input, which counts as exit. A read error also sends exit and is
// then returned from Run.
type Interactive struct {
	In  io.Reader
	Out io.Writer
}

// Run drives s from d.In.
func (d *Interactive) Run(ctx context.Context, s *Session) error {
	r := int(s.Rank())
	fmt.Fprintf(d.Out, "[Client %d] Interactive mode. Type commands, 'exit' to quit.\n", r)

	in := bufio.NewScanner(d.In)
	var readErr error
	for {
		fmt.Fprintf(d.Out, "[Client %d]$ ", r)

		cmd := cluster.CmdExit
		if in.Scan() {
			cmd = strings.TrimSuffix(in.Text(), "\r")
			if cmd == "" {
				continue
			}
		} else if err := in.Err(); err != nil {
			// still leave the dispatcher cleanly before reporting
			readErr = fmt.Errorf("client %d read input: %w", r, err)
			fmt.Fprintf(d.Out, "\n[Client %d] Input failed: %v\n", r, err)
		}

		res, err := s.Exec(ctx, cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(d.Out, "[Client %d] --- result ---\n%s\n", r, res)

		if cluster.IsExit(cmd) {
			break
		}
	}

	fmt.Fprintf(d.Out, "[Client %d] Interactive session ended.\n", r)
	return readErr
}

// DefaultBenchmarkIterations is the number of echo commands in a benchmark.
const DefaultBenchmarkIterations = 50

// Report summarises a benchmark run.
type Report struct {
	Iterations int
	Elapsed    time.Duration
}

// Throughput returns commands per second, or 0 when no time elapsed.
func (r Report) Throughput() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Iterations) / secs
}

// Benchmark sends n uniquely tagged echo commands back to back and reports
// the wall-clock throughput. Results are discarded.
func Benchmark(ctx context.Context, s *Session, n int, out io.Writer) (Report, error) {
	r := int(s.Rank())
	fmt.Fprintf(out, "[Client %d] Starting benchmark: %d echo commands.\n", r, n)

	start := time.Now()
	for i := 0; i < n; i++ {
		if _, err := s.Exec(ctx, fmt.Sprintf("echo bench_%d_from_client_%d", i, r)); err != nil {
			return Report{Iterations: i, Elapsed: time.Since(start)}, err
		}
	}
	rep := Report{Iterations: n, Elapsed: time.Since(start)}

	fmt.Fprintf(out, "[Client %d] Benchmark done: time = %.4f s, throughput = %.2f cmd/s\n",
		r, rep.Elapsed.Seconds(), rep.Throughput())
	return rep, nil
}
