package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	driver string
}

// Open connects to databaseURL when set (postgres:// or postgresql://), and
// otherwise to the sqlite file at sqlitePath. Migrations run on every open.
func Open(databaseURL, sqlitePath string) (*DB, error) {
	driver, dsn, err := resolve(databaseURL, sqlitePath)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{DB: sqlDB, driver: driver}

	if driver == "sqlite" {
		// One writer at a time; the sqlite driver is not safe for
		// concurrent writes on a single file.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == "sqlite" {
		if _, err := sqlDB.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func resolve(databaseURL, sqlitePath string) (driver, dsn string, err error) {
	url := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "pgx", url, nil
	case url != "":
		return "", "", fmt.Errorf("unsupported database url %q", url)
	}

	path := strings.TrimSpace(sqlitePath)
	if path == "" {
		return "", "", fmt.Errorf("either OPSPAD_DATABASE_URL or a sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return "sqlite", path, nil
}

// Driver reports which sql driver backs the connection ("sqlite" or "pgx").
func (db *DB) Driver() string { return db.driver }

// Rebind rewrites ? placeholders into the $N form when running on postgres.
// Store queries are written once with ? and rebound per driver.
func (db *DB) Rebind(query string) string {
	if db.driver != "pgx" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS hosts (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			hostname TEXT NOT NULL,
			port INTEGER NOT NULL,
			username TEXT NOT NULL,
			environment_tag TEXT NOT NULL,
			identity_file TEXT,
			color TEXT,
			sort_order INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS dock_commands (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			command TEXT NOT NULL,
			requires_confirm INTEGER NOT NULL DEFAULT 0,
			color TEXT,
			sort_order INTEGER
		)`,

		// Single-row table holding the on-call runbook markdown.
		`CREATE TABLE IF NOT EXISTS dock_runbook (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			markdown TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS dock_history (
			id TEXT PRIMARY KEY,
			created_at BIGINT NOT NULL,
			scope TEXT,
			environment_tag TEXT NOT NULL,
			command_text TEXT NOT NULL,
			source_command_id TEXT,
			source_command_title TEXT,
			source_command_template TEXT
		)`,

		// Maps a live terminal session id to a stable scope string, so
		// persisted preferences survive session churn.
		`CREATE TABLE IF NOT EXISTS terminal_session_scopes (
			session_id TEXT PRIMARY KEY,
			scope TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,

		// Non-secret per-scope terminal preferences. Scopes look like
		// "local" or "ssh:<host_id>". "rows" is quoted because it is a
		// reserved word on postgres.
		`CREATE TABLE IF NOT EXISTS terminal_prefs (
			scope TEXT PRIMARY KEY,
			environment_tag TEXT NOT NULL,
			cols INTEGER,
			"rows" INTEGER,
			last_dock_command_id TEXT,
			last_dock_command_title TEXT,
			last_dock_command_template TEXT,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_dock_history_created ON dock_history(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_hosts_sort ON hosts(sort_order)`,
		`CREATE INDEX IF NOT EXISTS idx_dock_commands_sort ON dock_commands(sort_order)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %.40s: %w", m, err)
		}
	}

	return nil
}
