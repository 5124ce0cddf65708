package cluster

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Rank identifies one member of the process group.
type Rank int

const (
	// DispatcherRank is the fixed rank of the dispatcher.
	DispatcherRank Rank = 0

	// NoClient marks a job that was not issued on behalf of any client.
	// Only the shutdown job carries it.
	NoClient Rank = -1

	// AnySource matches every sender in a receive call.
	AnySource Rank = -2
)

func (r Rank) String() string {
	switch r {
	case NoClient:
		return "none"
	case AnySource:
		return "any"
	}
	return fmt.Sprintf("%d", int(r))
}

// Tag partitions traffic into independent logical channels.
type Tag int

const (
	TagClientCommand Tag = iota // client -> dispatcher
	TagClientResult             // dispatcher -> client
	TagWorkerJob                // dispatcher -> worker
	TagWorkerResult             // worker -> dispatcher
)

func (t Tag) String() string {
	switch t {
	case TagClientCommand:
		return "client-command"
	case TagClientResult:
		return "client-result"
	case TagWorkerJob:
		return "worker-job"
	case TagWorkerResult:
		return "worker-result"
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// Buffer sizes of the two message kinds. Like a C string buffer, the last
// byte is reserved, so a command carries at most MaxCommand-1 bytes of text.
const (
	MaxCommand = 256
	MaxOutput  = 4096
)

// Control vocabulary. Matching is exact and case-sensitive except for
// CmdGetFile, which is a prefix.
const (
	CmdExit       = "exit"
	CmdQuit       = "quit"
	CmdClients    = "__clients"
	CmdHistory    = "__history"
	CmdServerInfo = "__serverinfo"
	CmdGetFile    = "__get"
	CmdHelp       = "__help"

	// ShutdownSentinel is sent by the dispatcher to every worker, with
	// NoClient as originator, once the last client has left.
	ShutdownSentinel = "__shutdown_worker"
)

// TruncationMarker is appended to output that filled its buffer.
const TruncationMarker = "\n[truncated output]\n"

// Job is a command forwarded from the dispatcher to a worker.
type Job struct {
	Originator Rank
	Text       string
}

// JobResult is a worker's answer to a Job. Originator always echoes the
// originator of the job it answers.
type JobResult struct {
	Originator Rank
	Text       string
}

// wireText is the JSON form of Job and JobResult. Text travels as base64 so
// bytes that are not valid UTF-8 reach the other side unchanged.
type wireText struct {
	Originator Rank   `json:"originator"`
	Text       []byte `json:"text"`
}

func (j Job) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireText{Originator: j.Originator, Text: []byte(j.Text)})
}

func (j *Job) UnmarshalJSON(data []byte) error {
	var w wireText
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	j.Originator, j.Text = w.Originator, string(w.Text)
	return nil
}

func (r JobResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireText{Originator: r.Originator, Text: []byte(r.Text)})
}

func (r *JobResult) UnmarshalJSON(data []byte) error {
	var w wireText
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Originator, r.Text = w.Originator, string(w.Text)
	return nil
}

// ShutdownJob returns the job that terminates a worker loop.
func ShutdownJob() Job {
	return Job{Originator: NoClient, Text: ShutdownSentinel}
}

// IsShutdown reports whether j is the shutdown job.
func (j Job) IsShutdown() bool {
	return j.Originator == NoClient && j.Text == ShutdownSentinel
}

// IsExit reports whether cmd ends a client session.
func IsExit(cmd string) bool {
	return cmd == CmdExit || cmd == CmdQuit
}

// Bound cuts text so that it fits a buffer of size bytes, keeping one byte
// for the terminator. Truncation is silent.
func Bound(text string, size int) string {
	if size <= 0 {
		return ""
	}
	if len(text) > size-1 {
		return text[:size-1]
	}
	return text
}

// BoundMarked behaves like Bound but, when text does not fit, replaces its
// tail with TruncationMarker so the overflow stays visible to the reader.
func BoundMarked(text string, size int) (string, bool) {
	if len(text) <= size-1 {
		return text, false
	}
	return MarkTruncated(text, size), true
}

// MarkTruncated ends text with TruncationMarker, cutting as much of its
// tail as needed to fit a buffer of size bytes. Buffers too small for the
// marker get a silently bounded text instead.
func MarkTruncated(text string, size int) string {
	limit := size - 1
	if limit <= len(TruncationMarker) {
		return Bound(text, size)
	}
	if len(text) > limit-len(TruncationMarker) {
		text = text[:limit-len(TruncationMarker)]
	}
	return text + TruncationMarker
}

// GetFileArg parses a file-read command. ok is false when cmd is not a
// file-read command at all; an empty path with ok set means the argument is
// missing.
func GetFileArg(cmd string) (path string, ok bool) {
	if cmd == CmdGetFile {
		return "", true
	}
	if !strings.HasPrefix(cmd, CmdGetFile+" ") {
		return "", false
	}
	return strings.TrimLeft(cmd[len(CmdGetFile)+1:], " "), true
}
