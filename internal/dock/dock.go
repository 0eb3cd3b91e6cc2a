// Package dock holds the command dock: reusable command templates, the
// on-call runbook, and the history of commands run through the dock.
package dock

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dustingolding/OpsPad/internal/db"
)

// historyLimit bounds dock_history to the newest rows.
const historyLimit = 300

type Command struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Command         string  `json:"command"`
	RequiresConfirm bool    `json:"requiresConfirm"`
	Color           *string `json:"color"`
}

// CommandCreate carries the caller-supplied fields for a new dock command.
type CommandCreate struct {
	Title           string  `json:"title"`
	Command         string  `json:"command"`
	RequiresConfirm *bool   `json:"requiresConfirm"`
	Color           *string `json:"color"`
}

// HistoryItem is the listing shape for past dock runs.
type HistoryItem struct {
	ID             string `json:"id"`
	CreatedAt      int64  `json:"createdAt"`
	EnvironmentTag string `json:"environmentTag"`
	CommandText    string `json:"commandText"`
}

// HistoryEntry is the full row recorded when a dock command runs in a
// terminal.
type HistoryEntry struct {
	Scope          *string
	EnvironmentTag string
	CommandText    string
	SourceID       *string
	SourceTitle    *string
	SourceTemplate *string
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

// EnsureSeeded installs the starter runbook and example commands on first
// run. Existing content is never touched.
func (s *Store) EnsureSeeded() error {
	var runbooks int
	if err := s.db.QueryRow(`SELECT count(1) FROM dock_runbook`).Scan(&runbooks); err != nil {
		return err
	}
	if runbooks == 0 {
		starter := "# On-call quick checks\n" +
			"- Verify environment label before running anything.\n" +
			"- Prefer read-only commands first.\n" +
			"- For PROD, require confirmation for destructive ops.\n"
		if err := s.SetRunbook(starter); err != nil {
			return err
		}
	}

	var commands int
	if err := s.db.QueryRow(`SELECT count(1) FROM dock_commands`).Scan(&commands); err != nil {
		return err
	}
	if commands == 0 {
		examples := []struct {
			title   string
			command string
			confirm bool
		}{
			{"Tail service logs", "journalctl -u {service} -f", false},
			{"List pods", "kubectl get pods -n {ns}", false},
			{"Restart deployment (danger)", "kubectl rollout restart deploy/{name} -n {ns}", true},
		}
		for _, ex := range examples {
			confirm := ex.confirm
			if _, err := s.CreateCommand(CommandCreate{
				Title:           ex.title,
				Command:         ex.command,
				RequiresConfirm: &confirm,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) ListCommands() ([]Command, error) {
	rows, err := s.db.Query(`
		SELECT id, title, command, requires_confirm, color
		FROM dock_commands
		ORDER BY sort_order ASC NULLS LAST, title ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Command
	for rows.Next() {
		var (
			c       Command
			confirm int64
			color   sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.Command, &confirm, &color); err != nil {
			return nil, err
		}
		c.RequiresConfirm = confirm != 0
		if color.Valid {
			c.Color = &color.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCommand returns a single dock command by id.
func (s *Store) GetCommand(id string) (*Command, error) {
	row := s.db.QueryRow(s.db.Rebind(`
		SELECT id, title, command, requires_confirm, color
		FROM dock_commands WHERE id = ?
	`), id)

	var (
		c       Command
		confirm int64
		color   sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Command, &confirm, &color); err != nil {
		return nil, err
	}
	c.RequiresConfirm = confirm != 0
	if color.Valid {
		c.Color = &color.String
	}
	return &c, nil
}

func (s *Store) CreateCommand(in CommandCreate) (*Command, error) {
	c := &Command{
		ID:      uuid.NewString(),
		Title:   in.Title,
		Command: in.Command,
		Color:   in.Color,
	}
	if in.RequiresConfirm != nil {
		c.RequiresConfirm = *in.RequiresConfirm
	}

	var next int64
	if err := s.db.QueryRow(`SELECT coalesce(max(sort_order), 0) + 1 FROM dock_commands`).Scan(&next); err != nil {
		next = 1
	}

	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO dock_commands (id, title, command, requires_confirm, color, sort_order)
		VALUES (?, ?, ?, ?, ?, ?)
	`), c.ID, c.Title, c.Command, boolToInt(c.RequiresConfirm), c.Color, next)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) UpdateCommand(c Command) (*Command, error) {
	res, err := s.db.Exec(s.db.Rebind(`
		UPDATE dock_commands
		SET title = ?, command = ?, requires_confirm = ?, color = ?
		WHERE id = ?
	`), c.Title, c.Command, boolToInt(c.RequiresConfirm), c.Color, c.ID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (s *Store) DeleteCommand(id string) error {
	_, err := s.db.Exec(s.db.Rebind(`DELETE FROM dock_commands WHERE id = ?`), id)
	return err
}

func (s *Store) ReorderCommands(ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := s.db.Rebind(`UPDATE dock_commands SET sort_order = ? WHERE id = ?`)
	for i, id := range ids {
		if _, err := tx.Exec(stmt, int64(i+1), id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Runbook returns the on-call runbook markdown. Missing content reads as
// empty.
func (s *Store) Runbook() (string, error) {
	var md string
	err := s.db.QueryRow(`SELECT markdown FROM dock_runbook WHERE id = 1`).Scan(&md)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return md, nil
}

func (s *Store) SetRunbook(markdown string) error {
	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO dock_runbook (id, markdown) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET markdown = excluded.markdown
	`), markdown)
	return err
}

// AddHistory appends a dock run and trims the table to the newest
// historyLimit rows.
func (s *Store) AddHistory(e HistoryEntry) error {
	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO dock_history (id, created_at, scope, environment_tag, command_text, source_command_id, source_command_title, source_command_template)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), uuid.NewString(), s.now(), e.Scope, e.EnvironmentTag, e.CommandText, e.SourceID, e.SourceTitle, e.SourceTemplate)
	if err != nil {
		return err
	}

	// Best effort: losing the trim keeps extra rows, nothing worse.
	s.db.Exec(s.db.Rebind(`
		DELETE FROM dock_history
		WHERE id NOT IN (
			SELECT id FROM dock_history ORDER BY created_at DESC LIMIT ?
		)
	`), historyLimit)
	return nil
}

func (s *Store) ListHistory(limit int64) ([]HistoryItem, error) {
	rows, err := s.db.Query(s.db.Rebind(`
		SELECT id, created_at, environment_tag, command_text
		FROM dock_history
		ORDER BY created_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryItem
	for rows.Next() {
		var item HistoryItem
		if err := rows.Scan(&item.ID, &item.CreatedAt, &item.EnvironmentTag, &item.CommandText); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) DeleteHistory(id string) error {
	_, err := s.db.Exec(s.db.Rebind(`DELETE FROM dock_history WHERE id = ?`), id)
	return err
}

func (s *Store) ClearHistory() error {
	_, err := s.db.Exec(`DELETE FROM dock_history`)
	return err
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
