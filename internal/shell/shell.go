// Package shell resolves the user's login shell and the system ssh client.
package shell

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DefaultCommand returns the program and argv for a new local terminal:
// $SHELL when set, otherwise zsh from PATH, otherwise the bare name so
// spawn-time PATH resolution gets a final chance.
func DefaultCommand() (string, []string) {
	if sh := strings.TrimSpace(os.Getenv("SHELL")); sh != "" {
		return sh, nil
	}
	if path, err := exec.LookPath("zsh"); err == nil {
		return path, nil
	}
	return "zsh", nil
}

// SSHProgram returns the ssh client to use. OPSPAD_SSH overrides; otherwise
// PATH decides; otherwise the bare name is returned.
func SSHProgram() string {
	if override := strings.TrimSpace(os.Getenv("OPSPAD_SSH")); override != "" {
		return override
	}
	if path, err := exec.LookPath("ssh"); err == nil {
		return path
	}
	return "ssh"
}

// SSHProgramChecked resolves the ssh client and verifies it exists, so a
// missing client fails the open request instead of producing a dead session.
func SSHProgramChecked() (string, error) {
	program := SSHProgram()
	if strings.ContainsRune(program, os.PathSeparator) {
		if _, err := os.Stat(program); err != nil {
			return "", fmt.Errorf("ssh client not found at %s: set OPSPAD_SSH to a valid path", program)
		}
		return program, nil
	}
	if _, err := exec.LookPath(program); err != nil {
		return "", fmt.Errorf("ssh client not found: install an OpenSSH client or set OPSPAD_SSH to its path")
	}
	return program, nil
}
