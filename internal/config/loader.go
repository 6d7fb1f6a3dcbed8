package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/tidy/internal/apperr"
	"github.com/JonMunkholm/tidy/internal/effects"
	"github.com/JonMunkholm/tidy/internal/logscan"
	"github.com/JonMunkholm/tidy/internal/tabular"
	"github.com/JonMunkholm/tidy/internal/textio"
)

// Load reads the configuration from the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// durationType is matched before the integer kinds it shares.
var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct fills the fields of v tagged env from the environment and
// recurses into nested sections. An unset or empty variable falls back to
// the field's default tag; with neither, the zero value stays.
func loadStruct(v reflect.Value) error {
	for i := 0; i < v.NumField(); i++ {
		field := v.Type().Field(i)
		fv := v.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fv); err != nil {
				return err
			}
			continue
		}

		name, ok := field.Tag.Lookup("env")
		if !ok || !fv.CanSet() {
			continue
		}
		raw := os.Getenv(name)
		if raw == "" {
			raw = field.Tag.Get("default")
		}
		if raw == "" {
			continue
		}

		if err := setField(fv, raw); err != nil {
			return fmt.Errorf("%s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// setField parses raw into fv. Supported: string, int, int64,
// time.Duration and comma-separated []string.
func setField(fv reflect.Value, raw string) error {
	switch {
	case fv.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		fv.SetInt(int64(d))
	case fv.Kind() == reflect.String:
		fv.SetString(raw)
	case fv.Kind() == reflect.Int || fv.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		fv.SetInt(n)
	case fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.String:
		fv.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

// splitList splits a comma-separated value, trimming and dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	// Scan validation
	if c.Scan.Marker == "" {
		errs = append(errs, "SCAN_MARKER must not be empty")
	}
	if _, err := filepath.Match(c.Scan.Pattern, ""); err != nil {
		errs = append(errs, fmt.Sprintf("SCAN_PATTERN (%q) is not a valid glob", c.Scan.Pattern))
	}
	switch logscan.UnreadablePolicy(c.Scan.OnUnreadable) {
	case logscan.UnreadableFail, logscan.UnreadableSkip:
	default:
		errs = append(errs, fmt.Sprintf("SCAN_ON_UNREADABLE (%q) must be one of: fail, skip", c.Scan.OnUnreadable))
	}
	switch effects.CollisionPolicy(c.Scan.OnCollision) {
	case effects.CollisionRename, effects.CollisionOverwrite, effects.CollisionFail:
	default:
		errs = append(errs, fmt.Sprintf("SCAN_ON_COLLISION (%q) must be one of: rename, overwrite, fail", c.Scan.OnCollision))
	}

	// CSV validation
	if _, err := ParseDelimiter(c.CSV.InputDelimiter); err != nil {
		errs = append(errs, fmt.Sprintf("CSV_INPUT_DELIMITER: %v", err))
	}
	if _, err := ParseDelimiter(c.CSV.OutputDelimiter); err != nil {
		errs = append(errs, fmt.Sprintf("CSV_OUTPUT_DELIMITER: %v", err))
	}
	if !textio.ValidEncoding(c.CSV.Encoding) {
		errs = append(errs, fmt.Sprintf("CSV_ENCODING (%q) is not a known encoding", c.CSV.Encoding))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.MaxBody <= 0 {
		errs = append(errs, "SERVER_MAX_BODY must be positive")
	}
	if c.Server.MaxConcurrent <= 0 {
		errs = append(errs, "SERVER_MAX_CONCURRENT must be positive")
	}
	if c.Server.MaxWait <= 0 {
		errs = append(errs, "SERVER_MAX_WAIT must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", apperr.ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}

	return nil
}

// ParseDelimiter accepts a single character, "tab" or `\t`.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter %q is not allowed", s)
	}
	return r, nil
}

// ScanOptions builds log scan options from the configuration.
func (c *Config) ScanOptions() logscan.Options {
	return logscan.Options{
		InputDir:     c.Scan.InputDir,
		OutputDir:    c.Scan.OutputDir,
		ArchiveDir:   c.Scan.ArchiveDir,
		Marker:       c.Scan.Marker,
		Pattern:      c.Scan.Pattern,
		OnUnreadable: logscan.UnreadablePolicy(c.Scan.OnUnreadable),
		OnCollision:  effects.CollisionPolicy(c.Scan.OnCollision),
	}
}

// NormalizerOptions builds normalizer options from the configuration,
// reading the rules file when one is set. Precedence for missing tokens is
// rules file, then CSV_MISSING_TOKENS, then the built-in set.
func (c *Config) NormalizerOptions() (tabular.Options, error) {
	opts := tabular.DefaultOptions()

	var err error
	if opts.InputDelimiter, err = ParseDelimiter(c.CSV.InputDelimiter); err != nil {
		return opts, fmt.Errorf("%w: CSV_INPUT_DELIMITER: %v", apperr.ErrInvalidConfig, err)
	}
	if opts.OutputDelimiter, err = ParseDelimiter(c.CSV.OutputDelimiter); err != nil {
		return opts, fmt.Errorf("%w: CSV_OUTPUT_DELIMITER: %v", apperr.ErrInvalidConfig, err)
	}
	opts.Encoding = c.CSV.Encoding

	if len(c.CSV.MissingTokens) > 0 {
		opts.MissingTokens = append([]string{""}, c.CSV.MissingTokens...)
	}

	if c.CSV.RulesFile != "" {
		rf, err := LoadRules(c.CSV.RulesFile)
		if err != nil {
			return opts, err
		}
		opts.Rules = rf.Rules
		if rf.MissingTokens != nil {
			opts.MissingTokens = rf.MissingTokens
		}
	}

	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%w: %v", apperr.ErrInvalidConfig, err)
	}
	return opts, nil
}

// String returns a readable representation of the config for logging.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}, ", c.Logging.Level, c.Logging.Format))
	b.WriteString(fmt.Sprintf("Scan: {Input: %q, Output: %q, Archive: %q, Marker: %q}, ",
		c.Scan.InputDir, c.Scan.OutputDir, c.Scan.ArchiveDir, c.Scan.Marker))
	b.WriteString(fmt.Sprintf("CSV: {Input: %q, Output: %q, Encoding: %q, Rules: %q}, ",
		c.CSV.Input, c.CSV.Output, c.CSV.Encoding, c.CSV.RulesFile))
	b.WriteString(fmt.Sprintf("History: {DB: %q}, ", c.History.DB))
	b.WriteString(fmt.Sprintf("Server: {Addr: %q, MaxConcurrent: %d}", c.Server.Addr(), c.Server.MaxConcurrent))
	b.WriteString("}")
	return b.String()
}
