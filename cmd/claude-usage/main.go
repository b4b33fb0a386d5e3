// Package main is the entry point for the claude-usage TUI application.
// It initializes configuration, services, and runs the Bubble Tea program.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxlewis/claude-usage/internal/app"
	"github.com/linuxlewis/claude-usage/internal/config"
	"github.com/linuxlewis/claude-usage/internal/logger"
	"github.com/linuxlewis/claude-usage/internal/services"
	"github.com/linuxlewis/claude-usage/internal/version"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-v" || os.Args[1] == "--version") {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		printUsage()
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run contains the main application logic, separated for cleaner error handling.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The terminal belongs to the TUI; logs go to a file.
	if cfg.LogPath != "" {
		logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			logger.SetOutput(logFile)
			defer func() { _ = logFile.Close() }()
		}
	}

	// Starts the account registry and the usage polling loop.
	svcManager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	model := app.NewModel(svcManager, cfg.ResetDisplay)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// printUsage prints the command-line usage information.
func printUsage() {
	fmt.Println(`claude-usage - Multi-account Claude usage monitor

Usage:
  claude-usage [flags]

Flags:
  -h, --help      Show this help message
  -v, --version   Show version information

Keyboard Shortcuts:
  tab/shift+tab   Cycle accounts
  a               Add account
  n               Rename account
  d               Delete account
  s               Set session key for the active account
  o               Set organization id for the active account
  r               Refresh now
  h               Toggle history chart
  t               Toggle reset time display
  ?               Toggle help
  q, Ctrl+C       Quit

Environment Variables:
  CLAUDE_USAGE_DB_PATH        SQLite history database path
  CLAUDE_USAGE_ACCOUNTS_PATH  Accounts JSON file path
  CLAUDE_USAGE_SECRETS_DIR    Encrypted credential directory
  CLAUDE_USAGE_POLL_INTERVAL  Usage polling interval (default: 5m)
  CLAUDE_USAGE_RESET_DISPLAY  Reset display mode: absolute or countdown

Configuration:
  The application looks for .env files in the following locations:
  - Current directory
  - ~/.config/claude-usage/.env
  - ~/.claude-usage/.env`)
}
