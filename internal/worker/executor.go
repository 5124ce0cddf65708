package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// ErrLaunch is returned when a command could not be started at all.
var ErrLaunch = errors.New("launch failed")

// Executor runs an opaque command string and returns at most limit bytes of
// its standard output. A command that starts but exits non-zero is not an
// error; only failing to start it is.
type Executor interface {
	Run(ctx context.Context, command string, limit int) ([]byte, error)
}

// ShellExecutor hands commands to a POSIX shell with -c.
type ShellExecutor struct {
	// Shell is the interpreter path, /bin/sh when empty.
	Shell string

	// Stderr receives the command's standard error. Nil discards it.
	Stderr io.Writer
}

// Run executes command and reads its standard output up to limit bytes.
// Output beyond the limit is drained and dropped so the child never blocks
// on a full pipe.
func (s ShellExecutor) Run(ctx context.Context, command string, limit int) ([]byte, error) {
	shell := s.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Stderr = s.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	// Read errors and the exit status are ignored: whatever reached the
	// pipe is the result.
	out, _ := io.ReadAll(io.LimitReader(stdout, int64(limit)))
	_, _ = io.Copy(io.Discard, stdout)
	_ = cmd.Wait()
	return out, nil
}
