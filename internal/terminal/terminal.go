// Package terminal manages live PTY-backed terminal sessions: spawning local
// shells and ssh clients, pumping their output to a sink, tracking winsize and
// dock-command provenance, and detecting termination.
package terminal

import (
	"errors"
	"fmt"
	"time"
)

// Default winsize for sessions opened without explicit dimensions.
const (
	DefaultCols uint16 = 120
	DefaultRows uint16 = 30
)

// readChunkSize is the PTY read buffer size. Output reaches the sink in
// chunks of at most this many bytes.
const readChunkSize = 8192

// drainGrace bounds how long the exit watcher waits for the output pump to
// observe end-of-stream before forcing the master closed. Only platforms
// where a dead child never surfaces as EOF on the master hit this timeout.
const drainGrace = 2 * time.Second

// maxDockCommandLen caps recorded dock commands, in runes.
const maxDockCommandLen = 512

// OriginCommandDock tags writes produced by running a structured dock
// command. Only writes carrying this origin are recorded as session
// provenance; raw keystrokes are never captured.
const OriginCommandDock = "commanddock"

// ErrNotFound reports an operation against a session id that is not (or is
// no longer) tracked.
var ErrNotFound = errors.New("terminal session not found")

// BackendError wraps an OS or PTY failure (spawn, write, resize) with its
// underlying cause.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("terminal backend: %v", e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Kind distinguishes how a session was opened.
type Kind string

const (
	KindLocal Kind = "local"
	KindSSH   Kind = "ssh"
)

// SpawnSpec describes a process to run on a fresh PTY.
type SpawnSpec struct {
	Kind           Kind
	EnvironmentTag string
	Program        string
	Args           []string

	// Zero means DefaultCols / DefaultRows.
	InitialCols uint16
	InitialRows uint16
}

// WriteMeta carries optional provenance for a write. The zero value means a
// plain keystroke write.
type WriteMeta struct {
	Origin string
}

// Sink receives session output and exit notifications. Data is called from
// each session's pump goroutine, one chunk at a time and in read order;
// implementations should not block for long. Exit is delivered at most once
// per session, and never for sessions removed by an explicit Close.
type Sink interface {
	Data(sessionID, data string)
	Exit(sessionID string)
}

// Backend is the session-manager contract: spawn a process on a PTY and
// operate on it by session id until it exits or is closed.
type Backend interface {
	Spawn(spec SpawnSpec) (string, error)
	Write(sessionID, data string, meta WriteMeta) error
	Resize(sessionID string, cols, rows uint16) error
	Close(sessionID string) error
	SessionIDs() []string
}
