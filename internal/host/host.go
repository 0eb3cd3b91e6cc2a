// Package host is the registry of saved ssh targets, each labeled with the
// environment it belongs to (DEV, STAGE, PROD, ...).
package host

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/dustingolding/OpsPad/internal/db"
)

type Host struct {
	ID             string  `json:"id"`
	Label          string  `json:"label"`
	Hostname       string  `json:"hostname"`
	Port           uint16  `json:"port"`
	Username       string  `json:"username"`
	EnvironmentTag string  `json:"environmentTag"`
	IdentityFile   *string `json:"identityFile"`
	Color          *string `json:"color"`
}

// Create carries the caller-supplied fields for a new host. A nil or zero
// port defaults to 22.
type Create struct {
	Label          string  `json:"label"`
	Hostname       string  `json:"hostname"`
	Port           *uint16 `json:"port"`
	Username       string  `json:"username"`
	EnvironmentTag string  `json:"environmentTag"`
	IdentityFile   *string `json:"identityFile"`
	Color          *string `json:"color"`
}

type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// List returns all hosts in display order: explicit sort order first, then
// environment and label for rows that predate ordering.
func (s *Store) List() ([]Host, error) {
	rows, err := s.db.Query(`
		SELECT id, label, hostname, port, username, environment_tag, identity_file, color
		FROM hosts
		ORDER BY sort_order ASC NULLS LAST, environment_tag ASC, label ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) Get(id string) (*Host, error) {
	row := s.db.QueryRow(s.db.Rebind(`
		SELECT id, label, hostname, port, username, environment_tag, identity_file, color
		FROM hosts WHERE id = ?
	`), id)

	h, err := scanHost(row)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *Store) Create(in Create) (*Host, error) {
	port := uint16(22)
	if in.Port != nil && *in.Port != 0 {
		port = *in.Port
	}
	h := &Host{
		ID:             uuid.NewString(),
		Label:          in.Label,
		Hostname:       in.Hostname,
		Port:           port,
		Username:       in.Username,
		EnvironmentTag: in.EnvironmentTag,
		IdentityFile:   in.IdentityFile,
		Color:          in.Color,
	}

	var next int64
	if err := s.db.QueryRow(`SELECT coalesce(max(sort_order), 0) + 1 FROM hosts`).Scan(&next); err != nil {
		next = 1
	}

	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO hosts (id, label, hostname, port, username, environment_tag, identity_file, color, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), h.ID, h.Label, h.Hostname, h.Port, h.Username, h.EnvironmentTag, h.IdentityFile, h.Color, next)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Update replaces every mutable field of the host identified by h.ID.
func (s *Store) Update(h Host) (*Host, error) {
	res, err := s.db.Exec(s.db.Rebind(`
		UPDATE hosts
		SET label = ?, hostname = ?, port = ?, username = ?, environment_tag = ?, identity_file = ?, color = ?
		WHERE id = ?
	`), h.Label, h.Hostname, h.Port, h.Username, h.EnvironmentTag, h.IdentityFile, h.Color, h.ID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, sql.ErrNoRows
	}
	return &h, nil
}

func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(s.db.Rebind(`DELETE FROM hosts WHERE id = ?`), id)
	return err
}

// Reorder persists the given id order as 1-based sort positions. Unknown ids
// are ignored; hosts missing from ids keep their old position.
func (s *Store) Reorder(ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := s.db.Rebind(`UPDATE hosts SET sort_order = ? WHERE id = ?`)
	for i, id := range ids {
		if _, err := tx.Exec(stmt, int64(i+1), id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHost(r rowScanner) (Host, error) {
	var (
		h        Host
		identity sql.NullString
		color    sql.NullString
	)
	if err := r.Scan(&h.ID, &h.Label, &h.Hostname, &h.Port, &h.Username, &h.EnvironmentTag, &identity, &color); err != nil {
		return Host{}, err
	}
	if identity.Valid {
		h.IdentityFile = &identity.String
	}
	if color.Valid {
		h.Color = &color.String
	}
	return h, nil
}
