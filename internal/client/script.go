package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dreamware/rexec/internal/cluster"
)

// MaxScriptLines caps the number of commands taken from a script file.
const MaxScriptLines = 64

var (
	// DefaultScriptFirst runs on the first client rank when it has no script.
	DefaultScriptFirst = []string{
		cluster.CmdServerInfo,
		cluster.CmdClients,
		"pwd",
		cluster.CmdGetFile + " /etc/hostname",
		cluster.CmdHistory,
		cluster.CmdHelp,
		cluster.CmdExit,
	}

	// DefaultScriptOther runs on every other client rank without a script.
	DefaultScriptOther = []string{
		"whoami",
		"date",
		"uname -r",
		cluster.CmdClients,
		cluster.CmdExit,
	}
)

// ScriptPath returns where the script of rank lives inside dir.
func ScriptPath(dir string, rank cluster.Rank) string {
	return filepath.Join(dir, fmt.Sprintf("script_%d.txt", int(rank)))
}

// ReadScript parses a script: one command per line, blank lines and lines
// starting with '#' skipped, at most MaxScriptLines commands.
func ReadScript(r io.Reader) ([]string, error) {
	var cmds []string
	sc := bufio.NewScanner(r)
	for len(cmds) < MaxScriptLines && sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmds = append(cmds, cluster.Bound(line, cluster.MaxCommand))
	}
	if err := sc.Err(); err != nil {
		return cmds, fmt.Errorf("read script: %w", err)
	}
	return cmds, nil
}

// LoadScript returns the commands for rank. A missing or empty script file
// falls back to the built-in list for the rank.
func LoadScript(dir string, rank cluster.Rank, first bool) ([]string, error) {
	f, err := os.Open(ScriptPath(dir, rank))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return DefaultScript(first), nil
	case err != nil:
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	cmds, err := ReadScript(f)
	if err != nil {
		return nil, err
	}
	if len(cmds) == 0 {
		return DefaultScript(first), nil
	}
	return cmds, nil
}

// DefaultScript returns a copy of the built-in command list.
func DefaultScript(first bool) []string {
	if first {
		return append([]string(nil), DefaultScriptFirst...)
	}
	return append([]string(nil), DefaultScriptOther...)
}
