package config

import "testing"

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OPSPAD_SERVER", "")
	t.Setenv("OPSPAD_DATA_DIR", "/tmp/opspad-test")
	t.Setenv("OPSPAD_PORT", "8111")
	t.Setenv("OPSPAD_NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("OPSPAD_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.DataDir != "/tmp/opspad-test" {
		t.Fatalf("data dir = %q", cfg.Server.DataDir)
	}
	if cfg.Server.Port != 8111 {
		t.Fatalf("port = %d, want 8111", cfg.Server.Port)
	}
	if cfg.Server.NatsURL != "nats://127.0.0.1:4222" {
		t.Fatalf("nats url = %q", cfg.Server.NatsURL)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.Server.LogLevel)
	}
	// Client URL follows the overridden port when OPSPAD_SERVER is unset.
	if cfg.Client.ServerURL != "http://127.0.0.1:8111" {
		t.Fatalf("server url = %q", cfg.Client.ServerURL)
	}
}

func TestLoadStripsANSIFromPort(t *testing.T) {
	t.Setenv("OPSPAD_PORT", "\x1b[32m8112\x1b[0m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8112 {
		t.Fatalf("port = %d, want 8112", cfg.Server.Port)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("OPSPAD_PORT", "not-a-port")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestSQLitePathUnderDataDir(t *testing.T) {
	t.Setenv("OPSPAD_DATA_DIR", "/tmp/opspad-x")
	t.Setenv("OPSPAD_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.SQLitePath(); got != "/tmp/opspad-x/opspad.db" {
		t.Fatalf("sqlite path = %q", got)
	}
}
