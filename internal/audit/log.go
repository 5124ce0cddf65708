// Package audit writes the append-only audit trail kept by the dispatcher
// and by every worker.
//
// Each accepted command produces one line in the text log:
//
//	[2025-01-15 10:00:00] client 3: uname -a
//
// and, when enabled, one row in a CSV sibling meant for tooling:
//
//	2025-01-15 10:00:00,3,"uname -a"
//
// A log channel that cannot be opened is disabled with a warning; the owner
// keeps serving without it.
package audit

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/rexec/internal/cluster"
)

// TimeLayout is the timestamp format of both log channels.
const TimeLayout = "2006-01-02 15:04:05"

// Entry is one audited command.
type Entry struct {
	Time       time.Time
	Originator cluster.Rank
	Text       string
}

// Line renders e in the text log format, without the trailing newline.
func (e Entry) Line() string {
	return fmt.Sprintf("[%s] client %d: %s", e.Time.Format(TimeLayout), int(e.Originator), e.Text)
}

// CSV renders e as a CSV row with a quoted text field, without the
// trailing newline.
func (e Entry) CSV() string {
	quoted := `"` + strings.ReplaceAll(e.Text, `"`, `""`) + `"`
	return fmt.Sprintf("%s,%d,%s", e.Time.Format(TimeLayout), int(e.Originator), quoted)
}

// Log appends entries to a text channel and an optional CSV channel.
// A Log is owned by a single role loop and is not safe for concurrent use.
type Log struct {
	text io.WriteCloser
	csv  io.WriteCloser
	now  func() time.Time
	log  *zap.Logger
}

// Options selects the files a Log writes to. An empty path disables the
// channel.
type Options struct {
	TextPath string
	CSVPath  string
}

// Open opens the configured channels in append mode. It never fails: a
// channel whose file cannot be opened is skipped and a warning is logged.
func Open(opts Options, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Log{now: time.Now, log: logger}
	l.text = openAppend(opts.TextPath, logger)
	l.csv = openAppend(opts.CSVPath, logger)
	return l
}

// New builds a Log over arbitrary writers. Either may be nil.
func New(text, csv io.WriteCloser, now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{text: text, csv: csv, now: now, log: zap.NewNop()}
}

func openAppend(path string, logger *zap.Logger) io.WriteCloser {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warn("audit channel disabled", zap.String("path", path), zap.Error(err))
		return nil
	}
	return f
}

// Record appends an entry stamped with the current time and returns it.
func (l *Log) Record(originator cluster.Rank, text string) Entry {
	if l == nil {
		return Entry{Time: time.Now(), Originator: originator, Text: text}
	}
	e := Entry{Time: l.now(), Originator: originator, Text: text}
	l.Append(e)
	return e
}

// Append writes e to every open channel. Write errors are logged and the
// failing channel is kept; appending continues with the next entry.
func (l *Log) Append(e Entry) {
	if l == nil {
		return
	}
	if l.text != nil {
		if _, err := io.WriteString(l.text, e.Line()+"\n"); err != nil {
			l.log.Warn("audit write failed", zap.String("channel", "text"), zap.Error(err))
		}
	}
	if l.csv != nil {
		if _, err := io.WriteString(l.csv, e.CSV()+"\n"); err != nil {
			l.log.Warn("audit write failed", zap.String("channel", "csv"), zap.Error(err))
		}
	}
}

// Enabled reports whether at least one channel is open.
func (l *Log) Enabled() bool {
	return l != nil && (l.text != nil || l.csv != nil)
}

// Close closes every open channel. It is safe to call more than once.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	var firstErr error
	for _, w := range []io.WriteCloser{l.text, l.csv} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.text, l.csv = nil, nil
	return firstErr
}
