package terminal

import (
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// PTY couples a child process with the master side of its pseudo-terminal.
type PTY struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	mu     sync.Mutex
	closed bool
}

// StartPTY launches program with args attached to a fresh pseudo-terminal
// sized to cols x rows. The child runs in its own session with the slave as
// its controlling terminal.
func StartPTY(program string, args []string, cols, rows uint16) (*PTY, error) {
	cmd := exec.Command(program, args...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, err
	}

	return &PTY{cmd: cmd, ptmx: ptmx}, nil
}

// Read reads output from the master. It blocks until the child produces
// data, the master is closed, or the slave side is gone.
func (p *PTY) Read(buf []byte) (int, error) {
	return p.ptmx.Read(buf)
}

// Write sends input to the child.
func (p *PTY) Write(data []byte) (int, error) {
	return p.ptmx.Write(data)
}

// Resize changes the terminal dimensions and signals SIGWINCH to the child.
// Setsize issues a raw ioctl on the fd, so it must not overlap Close: once
// the master is released the fd number can be reused by anything.
func (p *PTY) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return os.ErrClosed
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// Kill terminates the child's process group with SIGTERM. Best effort: an
// already-dead child is not an error. The master stays open so a concurrent
// reader can drain remaining output.
func (p *PTY) Kill() {
	if p.cmd.Process != nil {
		syscall.Kill(-p.cmd.Process.Pid, syscall.SIGTERM)
	}
}

// Wait blocks until the child exits and reaps it. Call at most once.
func (p *PTY) Wait() error {
	return p.cmd.Wait()
}

// Close releases the master. Safe to call more than once.
func (p *PTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.ptmx.Close()
}

// PID returns the child's process id, or 0 before start.
func (p *PTY) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}
