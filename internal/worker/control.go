package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/dreamware/rexec/internal/cluster"
)

// Fixed replies of the worker.
const (
	NoOutput    = "(no output)\n"
	EmptyFile   = "(empty file)\n"
	GetUsage    = "Usage: __get <path>\n"
	serverProbe = "uname -a; echo; hostname"
)

// HelpText lists the whole control vocabulary, including the commands the
// dispatcher answers itself.
const HelpText = "Available special commands:\n" +
	"  __help           - show this help\n" +
	"  __clients        - list active clients (handled by dispatcher)\n" +
	"  __history        - show worker command history\n" +
	"  __serverinfo     - show server system info\n" +
	"  __get <path>     - read a file on the server\n" +
	"  exit / quit      - close the client session\n"

func (w *Worker) historyDump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Worker %d history (max %d):\n", int(w.rank), w.history.Cap())
	for i, cmd := range w.history.Entries() {
		fmt.Fprintf(&b, "%2d: %s\n", i+1, cmd)
	}
	return b.String()
}

func (w *Worker) serverInfo(ctx context.Context) string {
	return w.runShell(ctx, serverProbe)
}

// runShell executes command through the executor and applies the
// empty-output and launch-failure replies.
func (w *Worker) runShell(ctx context.Context, command string) string {
	out, err := w.exec.Run(ctx, command, w.outputSize-1)
	if err != nil {
		w.log.Warn("command failed to launch", zap.String("cmd", command), zap.Error(err))
		return fmt.Sprintf("Failed to run command: %s\n", command)
	}
	if len(out) == 0 {
		return NoOutput
	}
	return string(out)
}

// readFile returns the content of a server-local file. A file that fills
// the whole output buffer is marked as truncated.
func (w *Worker) readFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Sprintf("Failed to open file: %s\n", path)
	}
	defer f.Close()

	limit := w.outputSize - 1
	data, err := io.ReadAll(io.LimitReader(f, int64(limit)))
	if err != nil && len(data) == 0 {
		return fmt.Sprintf("Failed to open file: %s\n", path)
	}
	switch {
	case len(data) == 0:
		return EmptyFile
	case len(data) == limit:
		return cluster.MarkTruncated(string(data), w.outputSize)
	}
	return string(data)
}
