// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Logging LoggingConfig
	Scan    ScanConfig
	CSV     CSVConfig
	History HistoryConfig
	Server  ServerConfig
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ScanConfig holds log error extraction settings.
type ScanConfig struct {
	InputDir   string `env:"SCAN_INPUT_DIR" default:"raw_logs"`
	OutputDir  string `env:"SCAN_OUTPUT_DIR" default:"output"`
	ArchiveDir string `env:"SCAN_ARCHIVE_DIR" default:"archive"`

	// Marker is matched case-sensitively anywhere in a line (default: ERROR)
	Marker string `env:"SCAN_MARKER" default:"ERROR"`

	// Pattern selects files by name (default: *.log)
	Pattern string `env:"SCAN_PATTERN" default:"*.log"`

	// OnUnreadable is fail or skip (default: fail)
	OnUnreadable string `env:"SCAN_ON_UNREADABLE" default:"fail"`

	// OnCollision is rename, overwrite or fail (default: rename)
	OnCollision string `env:"SCAN_ON_COLLISION" default:"rename"`
}

// CSVConfig holds CSV normalization settings.
type CSVConfig struct {
	Input  string `env:"CSV_INPUT" default:"data.csv"`
	Output string `env:"CSV_OUTPUT" default:"output/clean_data.csv"`

	// Delimiters are a single character or "tab" (default: ;)
	InputDelimiter  string `env:"CSV_INPUT_DELIMITER" default:";"`
	OutputDelimiter string `env:"CSV_OUTPUT_DELIMITER" default:";"`

	// Encoding is a WHATWG label such as utf-8 or windows-1252 (default: utf-8)
	Encoding string `env:"CSV_ENCODING" default:"utf-8"`

	// MissingTokens overrides the null placeholders (comma-separated).
	// The empty string is always a placeholder.
	MissingTokens []string `env:"CSV_MISSING_TOKENS"`

	// RulesFile is a YAML or TOML rule table; empty uses the built-in rules
	RulesFile string `env:"CSV_RULES_FILE"`
}

// HistoryConfig holds run ledger settings.
type HistoryConfig struct {
	// DB is the SQLite database path; empty disables the ledger
	DB string `env:"HISTORY_DB"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// MaxBody is the largest accepted request body in bytes (default: 32MB)
	MaxBody int64 `env:"SERVER_MAX_BODY" default:"33554432"`

	// MaxConcurrent is the maximum number of parallel normalizations (default: 4)
	MaxConcurrent int `env:"SERVER_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long a request waits for a normalization slot (default: 10s)
	MaxWait time.Duration `env:"SERVER_MAX_WAIT" default:"10s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 15s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
