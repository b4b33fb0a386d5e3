// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ResetDisplay selects how reset times are rendered.
type ResetDisplay string

const (
	// ResetDisplayAbsolute shows the literal reset clock time.
	ResetDisplayAbsolute ResetDisplay = "absolute"
	// ResetDisplayCountdown shows the remaining time until reset.
	ResetDisplayCountdown ResetDisplay = "countdown"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath string
	AccountsPath string
	SecretsDir   string
	MetadataDir  string
	LogPath      string
	PollInterval time.Duration
	ResetDisplay ResetDisplay
}

const defaultPollInterval = 5 * time.Minute

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	for _, path := range envPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	base := defaultBaseDir()
	cfg := &Config{
		DatabasePath: envString("CLAUDE_USAGE_DB_PATH", filepath.Join(base, "history.db")),
		AccountsPath: envString("CLAUDE_USAGE_ACCOUNTS_PATH", filepath.Join(base, "accounts.json")),
		SecretsDir:   envString("CLAUDE_USAGE_SECRETS_DIR", filepath.Join(base, "secrets")),
		MetadataDir:  envString("CLAUDE_USAGE_METADATA_DIR", filepath.Join(base, "metadata")),
		LogPath:      envString("CLAUDE_USAGE_LOG_PATH", filepath.Join(base, "claude-usage.log")),
		PollInterval: envDuration("CLAUDE_USAGE_POLL_INTERVAL", defaultPollInterval),
		ResetDisplay: envResetDisplay("CLAUDE_USAGE_RESET_DISPLAY", ResetDisplayAbsolute),
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", cfg.PollInterval)
	}

	for _, dir := range []string{
		filepath.Dir(cfg.DatabasePath),
		filepath.Dir(cfg.AccountsPath),
		filepath.Dir(cfg.LogPath),
	} {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// envPaths returns the locations checked for .env files, most specific first.
func envPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "claude-usage", ".env"),
			filepath.Join(home, ".claude-usage", ".env"),
		)
	}
	return paths
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude-usage"
	}
	return filepath.Join(home, ".config", "claude-usage")
}

// envString retrieves a string environment variable or returns the default.
func envString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envDuration retrieves a duration environment variable or returns the
// default. Accepts values like "5m", "30s", or bare seconds.
func envDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func envResetDisplay(key string, defaultValue ResetDisplay) ResetDisplay {
	switch ResetDisplay(os.Getenv(key)) {
	case ResetDisplayAbsolute:
		return ResetDisplayAbsolute
	case ResetDisplayCountdown:
		return ResetDisplayCountdown
	default:
		return defaultValue
	}
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
