package prefs

import (
	"testing"

	"github.com/dustingolding/OpsPad/internal/testutil"
)

func TestScopeStrings(t *testing.T) {
	if got := SSHHostScope("host-42"); got != "ssh:host-42" {
		t.Fatalf("host scope = %q", got)
	}
	if got := SSHAdHocScope("deploy", "db1.internal", 2222); got != "ssh:deploy@db1.internal:2222" {
		t.Fatalf("ad hoc scope = %q", got)
	}
	// Zero port falls back to the ssh default so the scope stays stable.
	if got := SSHAdHocScope("root", "web1", 0); got != "ssh:root@web1:22" {
		t.Fatalf("defaulted scope = %q", got)
	}
}

func TestSessionScopeMapping(t *testing.T) {
	store := NewStore(testutil.OpenTestDB(t))

	if _, ok, err := store.SessionScope("unknown"); err != nil || ok {
		t.Fatalf("unknown session = (%v, %v), want absent without error", ok, err)
	}

	if err := store.SetSessionScope("sid-1", LocalScope); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Remapping the same session id replaces the scope.
	if err := store.SetSessionScope("sid-1", SSHHostScope("h1")); err != nil {
		t.Fatalf("remap: %v", err)
	}

	scope, ok, err := store.SessionScope("sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || scope != "ssh:h1" {
		t.Fatalf("scope = (%q, %v), want ssh:h1", scope, ok)
	}

	if err := store.DeleteSessionScope("sid-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.SessionScope("sid-1"); ok {
		t.Fatal("scope still present after delete")
	}

	// Deleting a missing mapping is not an error.
	if err := store.DeleteSessionScope("sid-1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSizeLifecycle(t *testing.T) {
	store := NewStore(testutil.OpenTestDB(t))

	if _, _, ok, err := store.Size(LocalScope); err != nil || ok {
		t.Fatalf("size before touch = (%v, %v), want absent", ok, err)
	}

	if err := store.Touch(LocalScope, "LOCAL"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	// Touch alone records no size.
	if _, _, ok, _ := store.Size(LocalScope); ok {
		t.Fatal("touch should not set a size")
	}

	if err := store.UpdateSize(LocalScope, 100, 40); err != nil {
		t.Fatalf("update size: %v", err)
	}
	cols, rows, ok, err := store.Size(LocalScope)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if !ok || cols != 100 || rows != 40 {
		t.Fatalf("size = %dx%d ok=%v, want 100x40", cols, rows, ok)
	}

	// Touch after a resize keeps the size but refreshes the tag.
	if err := store.Touch(LocalScope, "LOCAL"); err != nil {
		t.Fatalf("second touch: %v", err)
	}
	if _, _, ok, _ := store.Size(LocalScope); !ok {
		t.Fatal("touch wiped the stored size")
	}

	tag, ok, err := store.EnvironmentTag(LocalScope)
	if err != nil {
		t.Fatalf("environment tag: %v", err)
	}
	if !ok || tag != "LOCAL" {
		t.Fatalf("tag = (%q, %v), want LOCAL", tag, ok)
	}
}

func TestUpdateSizeCreatesRowWithUnknownTag(t *testing.T) {
	store := NewStore(testutil.OpenTestDB(t))

	scope := SSHHostScope("h9")
	if err := store.UpdateSize(scope, 80, 24); err != nil {
		t.Fatalf("update size: %v", err)
	}

	tag, ok, err := store.EnvironmentTag(scope)
	if err != nil {
		t.Fatalf("environment tag: %v", err)
	}
	if !ok || tag != "UNKNOWN" {
		t.Fatalf("tag = (%q, %v), want UNKNOWN placeholder", tag, ok)
	}
}

func TestLastCommandRoundTrip(t *testing.T) {
	store := NewStore(testutil.OpenTestDB(t))

	scope := SSHHostScope("h1")
	if _, ok, err := store.LastCommandFor(scope); err != nil || ok {
		t.Fatalf("last command before update = (%v, %v), want absent", ok, err)
	}

	id, title, template := "cmd-1", "List pods", "kubectl get pods -n {ns}"
	err := store.UpdateLastCommand(scope, LastCommand{ID: &id, Title: &title, Template: &template})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, ok, err := store.LastCommandFor(scope)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || got.ID == nil || *got.ID != id || got.Title == nil || *got.Title != title {
		t.Fatalf("last command = %+v, want stored values", got)
	}
	if got.Template == nil || *got.Template != template {
		t.Fatalf("template = %v, want %q", got.Template, template)
	}

	// Clearing happens by overwriting with nils.
	if err := store.UpdateLastCommand(scope, LastCommand{}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, ok, err = store.LastCommandFor(scope)
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if !ok || got.ID != nil || got.Title != nil || got.Template != nil {
		t.Fatalf("last command after clear = %+v, want empty", got)
	}
}
