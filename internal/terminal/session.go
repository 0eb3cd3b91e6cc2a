package terminal

import (
	"strings"
	"sync"
	"time"
)

// Session owns one spawned process and its PTY for as long as the registry
// tracks it. Input, resize, and metadata each have their own lock so a write
// blocked on a full PTY buffer cannot stall a resize or a metadata read.
type Session struct {
	id        string
	kind      Kind
	pty       *PTY
	startedAt time.Time

	// writeMu serializes child input so interleaved writers cannot split
	// each other's byte sequences.
	writeMu sync.Mutex

	// resizeMu serializes winsize changes on the master.
	resizeMu sync.Mutex

	metaMu sync.Mutex
	meta   Meta

	// pumpDone closes when the output pump has stopped reading the master,
	// so teardown knows every buffered byte has been delivered.
	pumpDone chan struct{}
}

// Meta is the mutable non-secret bookkeeping attached to a session.
type Meta struct {
	EnvironmentTag string
	Cols           uint16
	Rows           uint16

	// Last structured dock command run in this session, normalized. Empty
	// until a dock-origin write lands.
	LastDockCommand string
	LastDockRunAt   time.Time
}

func newSession(id string, spec SpawnSpec, p *PTY, cols, rows uint16) *Session {
	return &Session{
		id:        id,
		kind:      spec.Kind,
		pty:       p,
		startedAt: time.Now(),
		pumpDone:  make(chan struct{}),
		meta: Meta{
			EnvironmentTag: spec.EnvironmentTag,
			Cols:           cols,
			Rows:           rows,
		},
	}
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Kind reports how the session was opened.
func (s *Session) Kind() Kind { return s.kind }

// PID returns the child's process id.
func (s *Session) PID() int { return s.pty.PID() }

// StartedAt returns when the session was spawned.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Meta returns a copy of the session's current metadata.
func (s *Session) Meta() Meta {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	return s.meta
}

func (s *Session) setSize(cols, rows uint16) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	s.meta.Cols = cols
	s.meta.Rows = rows
}

// recordDockCommand normalizes a dock-origin write and stores it as the
// session's latest command: newlines stripped, whitespace trimmed, capped at
// maxDockCommandLen runes. Blank results are discarded so a bare Enter sent
// through the dock does not clobber the previous command.
func (s *Session) recordDockCommand(data string) {
	cmd := strings.NewReplacer("\r", "", "\n", "").Replace(data)
	cmd = strings.TrimSpace(cmd)
	if runes := []rune(cmd); len(runes) > maxDockCommandLen {
		cmd = string(runes[:maxDockCommandLen])
	}
	if cmd == "" {
		return
	}

	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	s.meta.LastDockCommand = cmd
	s.meta.LastDockRunAt = time.Now()
}
