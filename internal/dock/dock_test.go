package dock

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dustingolding/OpsPad/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(testutil.OpenTestDB(t))
	// Deterministic, strictly increasing timestamps.
	var tick int64
	store.now = func() int64 {
		tick++
		return tick
	}
	return store
}

func TestEnsureSeededInstallsStarterContent(t *testing.T) {
	store := newTestStore(t)

	if err := store.EnsureSeeded(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	md, err := store.Runbook()
	if err != nil {
		t.Fatalf("runbook: %v", err)
	}
	if !strings.Contains(md, "On-call quick checks") {
		t.Fatalf("runbook = %q, want starter text", md)
	}

	cmds, err := store.ListCommands()
	if err != nil {
		t.Fatalf("list commands: %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("seeded commands = %d, want 3", len(cmds))
	}
	confirms := 0
	for _, c := range cmds {
		if c.RequiresConfirm {
			confirms++
		}
	}
	if confirms != 1 {
		t.Fatalf("confirm-gated commands = %d, want 1", confirms)
	}

	// Re-seeding must not duplicate content.
	if err := store.EnsureSeeded(); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	cmds, err = store.ListCommands()
	if err != nil {
		t.Fatalf("list after reseed: %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("commands after reseed = %d, want 3", len(cmds))
	}
}

func TestCommandLifecycle(t *testing.T) {
	store := newTestStore(t)

	first, err := store.CreateCommand(CommandCreate{Title: "Disk usage", Command: "df -h"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.RequiresConfirm {
		t.Fatal("confirm should default to false")
	}

	second, err := store.CreateCommand(CommandCreate{Title: "Uptime", Command: "uptime"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	color := "#ff0000"
	first.Command = "df -h /data"
	first.RequiresConfirm = true
	first.Color = &color
	if _, err := store.UpdateCommand(*first); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := store.ReorderCommands([]string{second.ID, first.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	cmds, err := store.ListCommands()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if cmds[0].ID != second.ID || cmds[1].ID != first.ID {
		t.Fatalf("order = %v, %v, want reorder applied", cmds[0].Title, cmds[1].Title)
	}
	if cmds[1].Command != "df -h /data" || !cmds[1].RequiresConfirm {
		t.Fatalf("update not persisted: %+v", cmds[1])
	}
	if cmds[1].Color == nil || *cmds[1].Color != color {
		t.Fatalf("color = %v, want %q", cmds[1].Color, color)
	}

	if err := store.DeleteCommand(second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	cmds, err = store.ListCommands()
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("commands = %d, want 1", len(cmds))
	}
}

func TestUpdateMissingCommand(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpdateCommand(Command{ID: "no-such-command", Title: "x", Command: "y"})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("update = %v, want sql.ErrNoRows", err)
	}
}

func TestRunbookRoundTrip(t *testing.T) {
	store := newTestStore(t)

	md, err := store.Runbook()
	if err != nil {
		t.Fatalf("empty runbook: %v", err)
	}
	if md != "" {
		t.Fatalf("runbook = %q, want empty before set", md)
	}

	if err := store.SetRunbook("# Incident playbook\n"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetRunbook("# Incident playbook v2\n"); err != nil {
		t.Fatalf("second set: %v", err)
	}

	md, err = store.Runbook()
	if err != nil {
		t.Fatalf("runbook: %v", err)
	}
	if md != "# Incident playbook v2\n" {
		t.Fatalf("runbook = %q, want latest version", md)
	}
}

func TestHistoryBoundedToNewestRows(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < historyLimit+10; i++ {
		err := store.AddHistory(HistoryEntry{
			EnvironmentTag: "DEV",
			CommandText:    fmt.Sprintf("echo %d", i),
		})
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	items, err := store.ListHistory(historyLimit + 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != historyLimit {
		t.Fatalf("history rows = %d, want %d", len(items), historyLimit)
	}
	if items[0].CommandText != fmt.Sprintf("echo %d", historyLimit+9) {
		t.Fatalf("newest entry = %q", items[0].CommandText)
	}
	// The oldest survivors are the ones past the trim boundary.
	last := items[len(items)-1]
	if last.CommandText != "echo 10" {
		t.Fatalf("oldest surviving entry = %q, want echo 10", last.CommandText)
	}
}

func TestHistoryListLimitAndOrder(t *testing.T) {
	store := newTestStore(t)

	scope := "ssh:host-1"
	for _, cmd := range []string{"uptime", "df -h", "journalctl -f"} {
		err := store.AddHistory(HistoryEntry{
			Scope:          &scope,
			EnvironmentTag: "PROD",
			CommandText:    cmd,
		})
		if err != nil {
			t.Fatalf("add %q: %v", cmd, err)
		}
	}

	items, err := store.ListHistory(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].CommandText != "journalctl -f" || items[1].CommandText != "df -h" {
		t.Fatalf("order = %q, %q, want newest first", items[0].CommandText, items[1].CommandText)
	}
	if items[0].EnvironmentTag != "PROD" {
		t.Fatalf("environment tag = %q, want PROD", items[0].EnvironmentTag)
	}
}

func TestHistoryDeleteAndClear(t *testing.T) {
	store := newTestStore(t)

	if err := store.AddHistory(HistoryEntry{EnvironmentTag: "DEV", CommandText: "one"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddHistory(HistoryEntry{EnvironmentTag: "DEV", CommandText: "two"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	items, err := store.ListHistory(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := store.DeleteHistory(items[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	items, err = store.ListHistory(10)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(items) != 1 || items[0].CommandText != "one" {
		t.Fatalf("items = %+v, want only the first entry", items)
	}

	if err := store.ClearHistory(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	items, err = store.ListHistory(10)
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %d, want 0", len(items))
	}
}
