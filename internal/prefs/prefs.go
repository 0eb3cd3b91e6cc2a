// Package prefs persists non-secret terminal preferences keyed by a stable
// scope string, plus the mapping from live session ids to scopes. Scopes
// survive session churn: reopening a terminal for the same host restores its
// last size.
package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dustingolding/OpsPad/internal/db"
)

// LocalScope is the preference scope shared by all local shells.
const LocalScope = "local"

// SSHHostScope returns the scope for sessions opened from a saved host.
func SSHHostScope(hostID string) string {
	return "ssh:" + hostID
}

// SSHAdHocScope returns the scope for ssh sessions opened without a saved
// host.
func SSHAdHocScope(user, host string, port uint16) string {
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("ssh:%s@%s:%d", user, host, port)
}

// LastCommand is the dock command most recently run in a scope.
type LastCommand struct {
	ID       *string `json:"id"`
	Title    *string `json:"title"`
	Template *string `json:"template"`
}

type Store struct {
	db  *db.DB
	now func() int64
}

func NewStore(database *db.DB) *Store {
	return &Store{
		db:  database,
		now: func() int64 { return time.Now().Unix() },
	}
}

// SetSessionScope maps a live session id to its scope, replacing any
// previous mapping for that id.
func (s *Store) SetSessionScope(sessionID, scope string) error {
	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO terminal_session_scopes (session_id, scope, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET scope = excluded.scope
	`), sessionID, scope, s.now())
	return err
}

// SessionScope resolves a session id to its scope. Unknown ids report
// ok=false without an error.
func (s *Store) SessionScope(sessionID string) (scope string, ok bool, err error) {
	err = s.db.QueryRow(s.db.Rebind(`
		SELECT scope FROM terminal_session_scopes WHERE session_id = ?
	`), sessionID).Scan(&scope)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return scope, true, nil
}

func (s *Store) DeleteSessionScope(sessionID string) error {
	_, err := s.db.Exec(s.db.Rebind(`
		DELETE FROM terminal_session_scopes WHERE session_id = ?
	`), sessionID)
	return err
}

// Touch records that a scope was used with the given environment tag,
// creating the preference row on first use.
func (s *Store) Touch(scope, environmentTag string) error {
	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO terminal_prefs (scope, environment_tag, cols, "rows", last_dock_command_id, last_dock_command_title, last_dock_command_template, updated_at)
		VALUES (?, ?, NULL, NULL, NULL, NULL, NULL, ?)
		ON CONFLICT(scope) DO UPDATE SET environment_tag = excluded.environment_tag, updated_at = excluded.updated_at
	`), scope, environmentTag, s.now())
	return err
}

// UpdateSize persists a scope's terminal dimensions.
func (s *Store) UpdateSize(scope string, cols, rows uint16) error {
	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO terminal_prefs (scope, environment_tag, cols, "rows", last_dock_command_id, last_dock_command_title, last_dock_command_template, updated_at)
		VALUES (?, 'UNKNOWN', ?, ?, NULL, NULL, NULL, ?)
		ON CONFLICT(scope) DO UPDATE SET cols = excluded.cols, "rows" = excluded."rows", updated_at = excluded.updated_at
	`), scope, cols, rows, s.now())
	return err
}

// UpdateLastCommand persists which dock command most recently ran in a
// scope.
func (s *Store) UpdateLastCommand(scope string, cmd LastCommand) error {
	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO terminal_prefs (scope, environment_tag, cols, "rows", last_dock_command_id, last_dock_command_title, last_dock_command_template, updated_at)
		VALUES (?, 'UNKNOWN', NULL, NULL, ?, ?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET last_dock_command_id = excluded.last_dock_command_id,
			last_dock_command_title = excluded.last_dock_command_title,
			last_dock_command_template = excluded.last_dock_command_template,
			updated_at = excluded.updated_at
	`), scope, cmd.ID, cmd.Title, cmd.Template, s.now())
	return err
}

// Size returns a scope's saved dimensions. ok is false when the scope has no
// usable size.
func (s *Store) Size(scope string) (cols, rows uint16, ok bool, err error) {
	var c, r sql.NullInt64
	err = s.db.QueryRow(s.db.Rebind(`
		SELECT cols, "rows" FROM terminal_prefs WHERE scope = ?
	`), scope).Scan(&c, &r)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	if !c.Valid || !r.Valid || c.Int64 <= 0 || r.Int64 <= 0 {
		return 0, 0, false, nil
	}
	return uint16(c.Int64), uint16(r.Int64), true, nil
}

// EnvironmentTag returns the tag recorded for a scope.
func (s *Store) EnvironmentTag(scope string) (tag string, ok bool, err error) {
	err = s.db.QueryRow(s.db.Rebind(`
		SELECT environment_tag FROM terminal_prefs WHERE scope = ?
	`), scope).Scan(&tag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return tag, true, nil
}

// LastCommandFor returns the dock command most recently run in a scope.
func (s *Store) LastCommandFor(scope string) (LastCommand, bool, error) {
	var (
		cmd      LastCommand
		id       sql.NullString
		title    sql.NullString
		template sql.NullString
	)
	err := s.db.QueryRow(s.db.Rebind(`
		SELECT last_dock_command_id, last_dock_command_title, last_dock_command_template
		FROM terminal_prefs WHERE scope = ?
	`), scope).Scan(&id, &title, &template)
	if errors.Is(err, sql.ErrNoRows) {
		return cmd, false, nil
	}
	if err != nil {
		return cmd, false, err
	}
	if id.Valid {
		cmd.ID = &id.String
	}
	if title.Valid {
		cmd.Title = &title.String
	}
	if template.Valid {
		cmd.Template = &template.String
	}
	return cmd, true, nil
}
