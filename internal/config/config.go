package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/BurntSushi/toml"
)

// stripANSI removes ANSI escape codes from a string
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

type Config struct {
	Server ServerConfig `toml:"server"`
	Client ClientConfig `toml:"client"`
}

type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	DataDir     string `toml:"data_dir"`
	DatabaseURL string `toml:"database_url"` // empty = sqlite file under data_dir
	NatsURL     string `toml:"nats_url"`     // empty = event publishing disabled
	LogLevel    string `toml:"log_level"`
	Debug       bool   `toml:"debug"`
}

type ClientConfig struct {
	ServerURL string `toml:"server_url"`
}

func DefaultConfig() *Config {
	dataDir := "/var/lib/opspad"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".local", "share", "opspad")
	}

	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     7910,
			DataDir:  dataDir,
			LogLevel: "info",
		},
		Client: ClientConfig{
			ServerURL: "http://127.0.0.1:7910",
		},
	}
}

func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Try system config first
	if _, err := os.Stat("/etc/opspad/config.toml"); err == nil {
		if _, err := toml.DecodeFile("/etc/opspad/config.toml", cfg); err != nil {
			return nil, err
		}
	}

	// Then user config (overrides system)
	home, err := os.UserHomeDir()
	if err == nil {
		userConfig := filepath.Join(home, ".config", "opspad", "config.toml")
		if _, err := os.Stat(userConfig); err == nil {
			if _, err := toml.DecodeFile(userConfig, cfg); err != nil {
				return nil, err
			}
		}
	}

	// Environment variable overrides
	if serverURL := os.Getenv("OPSPAD_SERVER"); serverURL != "" {
		cfg.Client.ServerURL = serverURL
	}

	if dataDir := os.Getenv("OPSPAD_DATA_DIR"); dataDir != "" {
		cfg.Server.DataDir = dataDir
	}

	if dbURL := os.Getenv("OPSPAD_DATABASE_URL"); dbURL != "" {
		cfg.Server.DatabaseURL = dbURL
	} else if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Server.DatabaseURL = dbURL
	}

	if natsURL := os.Getenv("OPSPAD_NATS_URL"); natsURL != "" {
		cfg.Server.NatsURL = natsURL
	}

	if level := os.Getenv("OPSPAD_LOG_LEVEL"); level != "" {
		cfg.Server.LogLevel = level
	}

	if debug := os.Getenv("OPSPAD_DEBUG"); debug == "1" || debug == "true" {
		cfg.Server.Debug = true
	}

	if host := os.Getenv("OPSPAD_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if portStr := os.Getenv("OPSPAD_PORT"); portStr != "" {
		portStr = stripANSI(portStr) // Handle ANSI codes from colored shell output
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid OPSPAD_PORT: %q", portStr)
		}
		cfg.Server.Port = port
		// Keep CLI default aligned unless OPSPAD_SERVER explicitly set.
		if os.Getenv("OPSPAD_SERVER") == "" {
			host := cfg.Server.Host
			if host == "" || host == "0.0.0.0" {
				host = "127.0.0.1"
			}
			cfg.Client.ServerURL = fmt.Sprintf("http://%s:%d", host, port)
		}
	}

	return cfg, nil
}

// SQLitePath returns the on-disk database location used when no
// database_url is configured.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.Server.DataDir, "opspad.db")
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.Server.DataDir, 0o755)
}
