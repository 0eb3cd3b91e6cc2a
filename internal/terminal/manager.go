package terminal

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dustingolding/OpsPad/internal/shell"
)

// Manager is the caller-facing surface for terminal sessions. It turns
// domain-level open requests (a local shell, ssh to a host) into spawn specs
// and forwards per-session operations to the backend.
type Manager struct {
	backend Backend
}

// NewManager returns a manager running sessions on real PTYs, delivering
// output and exit events to sink.
func NewManager(sink Sink, log *zap.Logger) *Manager {
	return &Manager{backend: NewPTYBackend(sink, log)}
}

// NewManagerWith uses a caller-supplied backend. Tests use this to observe
// spawn specs without touching real PTYs.
func NewManagerWith(backend Backend) *Manager {
	return &Manager{backend: backend}
}

// OpenLocal starts the user's default shell on a new PTY. An empty
// environmentTag defaults to "LOCAL"; zero dimensions use the defaults.
func (m *Manager) OpenLocal(environmentTag string, cols, rows uint16) (string, error) {
	if environmentTag == "" {
		environmentTag = "LOCAL"
	}
	program, args := shell.DefaultCommand()
	return m.backend.Spawn(SpawnSpec{
		Kind:           KindLocal,
		EnvironmentTag: environmentTag,
		Program:        program,
		Args:           args,
		InitialCols:    cols,
		InitialRows:    rows,
	})
}

// SSHOptions describes an ssh session to open. Host is required; zero-value
// fields are omitted from the argv.
type SSHOptions struct {
	User         string
	Host         string
	Port         uint16
	IdentityFile string
	ExtraArgs    []string

	EnvironmentTag string
	Cols           uint16
	Rows           uint16
}

// OpenSSH starts the system ssh client on a new PTY, connected to the host
// described by opts. An empty environmentTag defaults to "UNKNOWN".
func (m *Manager) OpenSSH(opts SSHOptions) (string, error) {
	program, err := shell.SSHProgramChecked()
	if err != nil {
		return "", &BackendError{Err: err}
	}
	tag := opts.EnvironmentTag
	if tag == "" {
		tag = "UNKNOWN"
	}
	return m.backend.Spawn(SpawnSpec{
		Kind:           KindSSH,
		EnvironmentTag: tag,
		Program:        program,
		Args:           sshArgs(opts),
		InitialCols:    opts.Cols,
		InitialRows:    opts.Rows,
	})
}

// Write sends a plain keystroke write to a session.
func (m *Manager) Write(sessionID, data string) error {
	return m.backend.Write(sessionID, data, WriteMeta{})
}

// WriteWithMeta sends a write carrying provenance metadata.
func (m *Manager) WriteWithMeta(sessionID, data string, meta WriteMeta) error {
	return m.backend.Write(sessionID, data, meta)
}

// Resize changes a session's terminal dimensions.
func (m *Manager) Resize(sessionID string, cols, rows uint16) error {
	return m.backend.Resize(sessionID, cols, rows)
}

// Close terminates a session without waiting for the child to die. No exit
// event is delivered for it.
func (m *Manager) Close(sessionID string) error {
	return m.backend.Close(sessionID)
}

// SessionIDs returns a snapshot of live session ids.
func (m *Manager) SessionIDs() []string {
	return m.backend.SessionIDs()
}

// CloseAll closes every live session. Used at daemon shutdown.
func (m *Manager) CloseAll() {
	for _, id := range m.backend.SessionIDs() {
		m.backend.Close(id)
	}
}

// sshArgs assembles the ssh argv in a fixed order: force-TTY flag, port,
// identity file, caller extras, then the user@host target last so extras
// cannot displace it.
func sshArgs(opts SSHOptions) []string {
	args := []string{"-tt"}
	if opts.Port != 0 {
		args = append(args, "-p", strconv.Itoa(int(opts.Port)))
	}
	if strings.TrimSpace(opts.IdentityFile) != "" {
		args = append(args, "-i", opts.IdentityFile)
	}
	args = append(args, opts.ExtraArgs...)

	target := opts.Host
	if opts.User != "" {
		target = opts.User + "@" + opts.Host
	}
	return append(args, target)
}
