package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/todo-app/internal/config"
	"github.com/sakif/todo-app/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the web UI, the JSON API and the admin panel on $PORT.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if err := ensureDBDir(cfg.DBPath); err != nil {
		logger.Error("failed to create database directory", slog.String("error", err.Error()))
		return err
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; /api/token is disabled")
	}
	if !cfg.GitHub.Enabled() && !cfg.Auth0.Enabled() {
		logger.Warn("no login provider configured; nobody will be able to sign in")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until SIGINT/SIGTERM or a listen error.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// ensureDBDir creates the directory that will hold the database file
// (like `mkdir -p`). In-memory databases need nothing.
func ensureDBDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
