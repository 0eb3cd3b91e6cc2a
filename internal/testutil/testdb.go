package testutil

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dustingolding/OpsPad/internal/db"
)

// OpenTestDB opens a fresh sqlite database under t.TempDir, migrated and
// ready. Each call gets its own file so tests stay independent.
func OpenTestDB(t *testing.T) *db.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "opspad-test.db")
	database, err := db.Open("", path)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// OpenTestPostgres creates a throwaway postgres database for driver-parity
// tests. Requires OPSPAD_TEST_DATABASE_URL to point at an instance with
// CREATE DATABASE privileges; skipped otherwise.
func OpenTestPostgres(t *testing.T) *db.DB {
	t.Helper()

	adminURL := os.Getenv("OPSPAD_TEST_DATABASE_URL")
	if adminURL == "" {
		t.Skip("OPSPAD_TEST_DATABASE_URL not set; skipping postgres-backed test")
	}

	admin, err := sql.Open("pgx", adminURL)
	if err != nil {
		t.Fatalf("failed to open admin database: %v", err)
	}

	if err := admin.Ping(); err != nil {
		admin.Close()
		t.Fatalf("failed to ping admin database: %v", err)
	}

	dbName := fmt.Sprintf("opspad_test_%d", time.Now().UnixNano())
	if _, err := admin.Exec("CREATE DATABASE " + quoteIdent(dbName)); err != nil {
		admin.Close()
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		admin.Exec("DROP DATABASE IF EXISTS " + quoteIdent(dbName))
		admin.Close()
	})

	u, err := url.Parse(adminURL)
	if err != nil {
		t.Fatalf("failed to parse OPSPAD_TEST_DATABASE_URL: %v", err)
	}
	u.Path = "/" + dbName

	database, err := db.Open(u.String(), "")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return database
}

func quoteIdent(name string) string {
	return `"` + escapeQuotes(name) + `"`
}

func escapeQuotes(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' {
			out = append(out, '"', '"')
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}
