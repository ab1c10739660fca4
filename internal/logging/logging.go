// Package logging provides JSON-lines structured logging for bocado.
// All surfaces (CLI, assistant server, importer) log through it so that
// output stays machine-readable on stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config configures the structured logger.
type Config struct {
	// Output is the writer for log output (default: os.Stderr)
	Output io.Writer

	// Level is the minimum log level (default: LevelInfo)
	Level slog.Level

	// Debug enables debug level logging (overrides Level)
	Debug bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: os.Stderr,
		Level:  slog.LevelInfo,
		Debug:  false,
	}
}

// New creates a new JSON-lines structured logger. Lines look like:
//
//	{"ts":"2024-05-01T13:20:00Z","level":"INFO","msg":"log recorded","food":"Tortilla"}
//
// Log levels:
//   - debug: Verbose (enabled via BOCADO_DEBUG=1)
//   - info: Startup, shutdown, writes
//   - warn: Non-fatal issues (fetch failures, skipped import lines)
//   - error: Issues requiring attention
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	level := cfg.Level
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Rename "time" to "ts" to keep lines compact.
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	return slog.New(slog.NewJSONHandler(output, opts))
}

// NewFromEnv creates a logger configured from environment variables.
// BOCADO_DEBUG=1 enables debug logging; BOCADO_LOG_LEVEL picks the
// minimum level (debug, info, warn, error).
func NewFromEnv() *slog.Logger {
	cfg := DefaultConfig()
	cfg.Level = ParseLevel(os.Getenv("BOCADO_LOG_LEVEL"))
	if os.Getenv("BOCADO_DEBUG") == "1" {
		cfg.Debug = true
	}
	return New(cfg)
}

// ParseLevel maps a level name to a slog level. Unknown names fall
// back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StartupInfo holds information to log when the assistant server
// starts.
type StartupInfo struct {
	Version      string
	GitCommit    string
	ConfigPath   string
	DatabasePath string
	Addr         string
	PID          int
}

// LogStartup logs server startup information.
func LogStartup(logger *slog.Logger, info StartupInfo) {
	logger.Info("server started",
		"version", info.Version,
		"git_commit", info.GitCommit,
		"config_path", info.ConfigPath,
		"database_path", info.DatabasePath,
		"addr", info.Addr,
		"pid", info.PID,
	)
}

// LogShutdown logs server shutdown.
func LogShutdown(logger *slog.Logger, reason string) {
	logger.Info("server shutting down", "reason", reason)
}
