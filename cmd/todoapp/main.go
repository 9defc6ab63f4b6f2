// Package main is the entry point for the todo app.
//
// The main package stays small. It reads configuration, builds a logger and
// hands both to internal/server (serve) or the services directly (seed).
// All behaviour lives in the internal packages.
//
// COMMANDS:
//
//	todoapp          → same as "todoapp serve"
//	todoapp serve    → run the HTTP server
//	todoapp seed     → insert default categories and the demo todo
//
// A .env file in the working directory is loaded before anything else, so
// local development needs no exported variables.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/joho/godotenv/autoload"

	"github.com/sakif/todo-app/internal/config"
)

var rootCmd = &cobra.Command{
	Use:          "todoapp",
	Short:        "Multi-user to-do list with GitHub and Auth0 login",
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger at the configured level.
// slog.NewTextHandler writes human-readable key=value lines to stdout.
func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}
