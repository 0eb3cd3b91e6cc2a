package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dustingolding/OpsPad/internal/config"
	"github.com/dustingolding/OpsPad/internal/db"
	"github.com/dustingolding/OpsPad/internal/dock"
	"github.com/dustingolding/OpsPad/internal/logging"
	"github.com/dustingolding/OpsPad/internal/server"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "opspad",
		Short: "Terminal-first ops workspace daemon",
		Long:  "OpsPad serves local and ssh terminal sessions, saved hosts, a command dock with run history, and a keychain-backed secret vault behind one local HTTP API.",
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("opspad version %s\n", version)
		},
	}

	var serveHost string
	var servePort int
	var dataDir string
	var databaseURL string
	var natsURL string
	var logLevel string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the opspad daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			// Override with flags if provided
			if serveHost != "" {
				cfg.Server.Host = serveHost
			}
			if servePort != 0 {
				cfg.Server.Port = servePort
			}
			if dataDir != "" {
				cfg.Server.DataDir = dataDir
			}
			if databaseURL != "" {
				cfg.Server.DatabaseURL = databaseURL
			}
			if natsURL != "" {
				cfg.Server.NatsURL = natsURL
			}
			if logLevel != "" {
				cfg.Server.LogLevel = logLevel
			}

			if err := cfg.EnsureDataDir(); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}

			log := logging.New(cfg.Server.LogLevel, cfg.Server.Debug)
			defer log.Sync()

			database, err := db.Open(cfg.Server.DatabaseURL, cfg.SQLitePath())
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			// First run gets the starter runbook and example dock commands.
			if err := dock.NewStore(database).EnsureSeeded(); err != nil {
				return fmt.Errorf("failed to seed dock content: %w", err)
			}

			log.Info("using data directory", zap.String("path", cfg.Server.DataDir))
			if cfg.Server.NatsURL != "" {
				log.Info("event bus enabled", zap.String("nats_url", cfg.Server.NatsURL))
			}

			srv, err := server.New(cfg, database, log)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			// Wait for interrupt in goroutine
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				<-sigCh
				log.Info("shutting down")
				srv.Shutdown(context.Background())
			}()

			// Start server (blocks until shutdown)
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}

			return nil
		},
	}

	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to bind (default from config)")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (default from config)")
	serveCmd.Flags().StringVar(&databaseURL, "database-url", "", "postgres URL (default: sqlite under data dir)")
	serveCmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS URL for lifecycle events (default: disabled)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (default from config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newHostsCmd())
	rootCmd.AddCommand(newVaultCmd())
	rootCmd.AddCommand(newOpenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
