package terminal

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PTYBackend runs sessions on local pseudo-terminals. Each spawn starts two
// goroutines: an output pump reading the master and an exit watcher reaping
// the child. Either one can be the first to notice termination, so both
// funnel into finalize and the registry decides the winner.
type PTYBackend struct {
	sessions *registry
	sink     Sink
	log      *zap.Logger
}

// NewPTYBackend returns a backend that delivers output and exit events to
// sink.
func NewPTYBackend(sink Sink, log *zap.Logger) *PTYBackend {
	if log == nil {
		log = zap.NewNop()
	}
	return &PTYBackend{
		sessions: newRegistry(),
		sink:     sink,
		log:      log,
	}
}

// Spawn starts spec's program on a fresh PTY and registers the session. On
// failure nothing is registered and no events will ever be delivered for the
// returned id.
func (b *PTYBackend) Spawn(spec SpawnSpec) (string, error) {
	cols, rows := spec.InitialCols, spec.InitialRows
	if cols == 0 {
		cols = DefaultCols
	}
	if rows == 0 {
		rows = DefaultRows
	}

	p, err := StartPTY(spec.Program, spec.Args, cols, rows)
	if err != nil {
		return "", &BackendError{Err: err}
	}

	id := uuid.NewString()
	s := newSession(id, spec, p, cols, rows)
	b.sessions.insert(id, s)

	go b.pumpOutput(s)
	go b.watchExit(s)

	b.log.Info("terminal session spawned",
		zap.String("session", id),
		zap.String("kind", string(spec.Kind)),
		zap.String("program", spec.Program),
		zap.Int("pid", p.PID()))
	return id, nil
}

// Write sends data to the session's child. Dock-origin writes are recorded
// as provenance before the bytes go out.
func (b *PTYBackend) Write(sessionID, data string, meta WriteMeta) error {
	s, ok := b.sessions.get(sessionID)
	if !ok {
		return ErrNotFound
	}

	if meta.Origin == OriginCommandDock {
		s.recordDockCommand(data)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.pty.Write([]byte(data)); err != nil {
		return &BackendError{Err: err}
	}
	return nil
}

// Resize updates the session's recorded dimensions and applies them to the
// PTY.
func (b *PTYBackend) Resize(sessionID string, cols, rows uint16) error {
	s, ok := b.sessions.get(sessionID)
	if !ok {
		return ErrNotFound
	}

	s.setSize(cols, rows)

	s.resizeMu.Lock()
	defer s.resizeMu.Unlock()
	if err := s.pty.Resize(cols, rows); err != nil {
		return &BackendError{Err: err}
	}
	return nil
}

// Close removes the session and terminates its child in the background.
// The entry is gone before the kill starts, so the pumps' finalize loses the
// removal race and no exit event is delivered for an explicitly closed
// session. The caller is not kept waiting on the child dying.
func (b *PTYBackend) Close(sessionID string) error {
	s, ok := b.sessions.remove(sessionID)
	if !ok {
		return ErrNotFound
	}
	go s.pty.Kill()
	b.log.Info("terminal session closed", zap.String("session", sessionID))
	return nil
}

// Count returns the number of live sessions.
func (b *PTYBackend) Count() int { return b.sessions.len() }

// SessionIDs returns a snapshot of live session ids.
func (b *PTYBackend) SessionIDs() []string { return b.sessions.ids() }

// SessionMeta returns the metadata for a live session.
func (b *PTYBackend) SessionMeta(sessionID string) (Meta, error) {
	s, ok := b.sessions.get(sessionID)
	if !ok {
		return Meta{}, ErrNotFound
	}
	return s.Meta(), nil
}

// pumpOutput reads the master until it errors out and forwards every chunk
// to the sink in read order. pumpDone closes only after the final chunk has
// been delivered and finalize has run, so teardown never truncates output.
func (b *PTYBackend) pumpOutput(s *Session) {
	defer close(s.pumpDone)
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			b.sink.Data(s.id, decodeChunk(buf[:n]))
		}
		if err != nil {
			// EOF and read errors both mean the stream is done. On
			// some platforms the master reports an error rather than
			// EOF when the child exits, so treat them the same.
			break
		}
	}
	b.finalize(s)
}

// watchExit reaps the child, lets the pump drain whatever the child left in
// the PTY buffer, then releases the master. Closing before the pump is done
// would drop output a fast-exiting child already produced; the grace timeout
// only matters on platforms where the dead child never surfaces as EOF and
// the close is what unblocks the read.
func (b *PTYBackend) watchExit(s *Session) {
	err := s.pty.Wait()
	if err != nil {
		b.log.Debug("terminal child exited",
			zap.String("session", s.id),
			zap.Error(err))
	}

	select {
	case <-s.pumpDone:
	case <-time.After(drainGrace):
	}
	s.pty.Close()
	b.finalize(s)
}

// finalize removes the session from the registry. Whichever caller actually
// removes it delivers the exit event; everyone else is a no-op. A session
// already removed by an explicit Close emits nothing.
func (b *PTYBackend) finalize(s *Session) {
	if _, ok := b.sessions.remove(s.id); !ok {
		return
	}
	b.sink.Exit(s.id)
	b.log.Info("terminal session exited", zap.String("session", s.id))
}

// decodeChunk converts raw PTY bytes to text for the sink. Invalid UTF-8 is
// replaced rather than rejected; split multi-byte sequences at chunk
// boundaries degrade to replacement runes instead of stalling the stream.
func decodeChunk(buf []byte) string {
	return strings.ToValidUTF8(string(buf), "�")
}
