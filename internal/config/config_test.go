package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/tidy/internal/apperr"
	"github.com/JonMunkholm/tidy/internal/effects"
	"github.com/JonMunkholm/tidy/internal/logscan"
	"github.com/JonMunkholm/tidy/internal/tabular"
)

func validConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Scan: ScanConfig{
			InputDir: "raw_logs", OutputDir: "output", ArchiveDir: "archive",
			Marker: "ERROR", Pattern: "*.log", OnUnreadable: "fail", OnCollision: "rename",
		},
		CSV: CSVConfig{
			Input: "data.csv", Output: "output/clean_data.csv",
			InputDelimiter: ";", OutputDelimiter: ";", Encoding: "utf-8",
		},
		Server: ServerConfig{
			Host: "127.0.0.1", Port: 8080, MaxBody: 1 << 20,
			MaxConcurrent: 4, MaxWait: time.Second, ShutdownTimeout: time.Second,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scan.InputDir != "raw_logs" {
		t.Errorf("Scan.InputDir = %q, want %q", cfg.Scan.InputDir, "raw_logs")
	}
	if cfg.Scan.Marker != "ERROR" {
		t.Errorf("Scan.Marker = %q, want %q", cfg.Scan.Marker, "ERROR")
	}
	if cfg.CSV.Output != "output/clean_data.csv" {
		t.Errorf("CSV.Output = %q, want %q", cfg.CSV.Output, "output/clean_data.csv")
	}
	if cfg.CSV.InputDelimiter != ";" {
		t.Errorf("CSV.InputDelimiter = %q, want %q", cfg.CSV.InputDelimiter, ";")
	}
	if cfg.Server.MaxBody != 33554432 {
		t.Errorf("Server.MaxBody = %d, want %d", cfg.Server.MaxBody, 33554432)
	}
	if cfg.History.DB != "" {
		t.Errorf("History.DB = %q, want empty", cfg.History.DB)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SCAN_MARKER", "FATAL")
	t.Setenv("SERVER_MAX_WAIT", "1m30s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Scan.Marker != "FATAL" {
		t.Errorf("Scan.Marker = %q, want %q", cfg.Scan.Marker, "FATAL")
	}
	if cfg.Server.MaxWait != 90*time.Second {
		t.Errorf("Server.MaxWait = %v, want %v", cfg.Server.MaxWait, 90*time.Second)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	t.Setenv("CSV_MISSING_TOKENS", "none, N/A , ---")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := []string{"none", "N/A", "---"}
	if len(cfg.CSV.MissingTokens) != len(expected) {
		t.Fatalf("MissingTokens length = %d, want %d", len(cfg.CSV.MissingTokens), len(expected))
	}
	for i, v := range expected {
		if cfg.CSV.MissingTokens[i] != v {
			t.Errorf("MissingTokens[%d] = %q, want %q", i, cfg.CSV.MissingTokens[i], v)
		}
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")

	_, err := Load()
	if !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("error should mention SERVER_PORT: %v", err)
	}
}

func TestSetField(t *testing.T) {
	var target struct {
		S   string
		I   int
		I64 int64
		D   time.Duration
		L   []string
		B   bool
	}
	v := reflect.ValueOf(&target).Elem()

	tests := []struct {
		field   string
		raw     string
		want    any
		wantErr bool
	}{
		{"S", "x", "x", false},
		{"I", "42", 42, false},
		{"I", "eighty", nil, true},
		{"I64", "33554432", int64(33554432), false},
		{"D", "1m30s", 90 * time.Second, false},
		{"D", "90", nil, true},
		{"L", " a, ,b ", []string{"a", "b"}, false},
		{"B", "true", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.field+"="+tt.raw, func(t *testing.T) {
			fv := v.FieldByName(tt.field)
			err := setField(fv, tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("setField(%q) expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("setField(%q) error = %v", tt.raw, err)
			}
			if got := fv.Interface(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("setField(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLoad_EmptyVariableUsesDefault(t *testing.T) {
	t.Setenv("SCAN_MARKER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scan.Marker != "ERROR" {
		t.Errorf("Scan.Marker = %q, want ERROR", cfg.Scan.Marker)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"empty marker", func(c *Config) { c.Scan.Marker = "" }, "SCAN_MARKER"},
		{"bad glob", func(c *Config) { c.Scan.Pattern = "[" }, "SCAN_PATTERN"},
		{"unknown unreadable policy", func(c *Config) { c.Scan.OnUnreadable = "ignore" }, "SCAN_ON_UNREADABLE"},
		{"unknown collision policy", func(c *Config) { c.Scan.OnCollision = "merge" }, "SCAN_ON_COLLISION"},
		{"multi-char delimiter", func(c *Config) { c.CSV.InputDelimiter = ";;" }, "CSV_INPUT_DELIMITER"},
		{"quote delimiter", func(c *Config) { c.CSV.OutputDelimiter = `"` }, "CSV_OUTPUT_DELIMITER"},
		{"unknown encoding", func(c *Config) { c.CSV.Encoding = "klingon" }, "CSV_ENCODING"},
		{"zero concurrency", func(c *Config) { c.Server.MaxConcurrent = 0 }, "SERVER_MAX_CONCURRENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !errors.Is(err, apperr.ErrInvalidConfig) {
				t.Errorf("Validate() error should wrap ErrInvalidConfig: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("error should mention %s: %v", tt.wantKey, err)
			}
		})
	}
}

func TestValidate_ReportsAllFailures(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, key := range []string{"SERVER_PORT", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s: %v", key, err)
		}
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{";", ';', false},
		{",", ',', false},
		{"tab", '\t', false},
		{`\t`, '\t', false},
		{"|", '|', false},
		{"", 0, true},
		{"ab", 0, true},
		{"\n", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDelimiter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDelimiter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		if got := cfg.Addr(); got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestScanOptions(t *testing.T) {
	cfg := validConfig()
	cfg.Scan.OnUnreadable = "skip"
	cfg.Scan.OnCollision = "overwrite"

	opts := cfg.ScanOptions()
	if opts.OnUnreadable != logscan.UnreadableSkip {
		t.Errorf("OnUnreadable = %q, want skip", opts.OnUnreadable)
	}
	if opts.OnCollision != effects.CollisionOverwrite {
		t.Errorf("OnCollision = %q, want overwrite", opts.OnCollision)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("ScanOptions().Validate() error = %v", err)
	}
}

func TestNormalizerOptions(t *testing.T) {
	cfg := validConfig()
	cfg.CSV.OutputDelimiter = ","
	cfg.CSV.MissingTokens = []string{"-"}

	opts, err := cfg.NormalizerOptions()
	if err != nil {
		t.Fatalf("NormalizerOptions() error = %v", err)
	}
	if opts.InputDelimiter != ';' || opts.OutputDelimiter != ',' {
		t.Errorf("delimiters = %q/%q, want ';'/','", opts.InputDelimiter, opts.OutputDelimiter)
	}
	if len(opts.MissingTokens) != 2 || opts.MissingTokens[0] != "" || opts.MissingTokens[1] != "-" {
		t.Errorf("MissingTokens = %q, want [\"\" \"-\"]", opts.MissingTokens)
	}
	if _, ok := opts.Rules["newsletter_ok"]; !ok {
		t.Error("built-in rules should apply without a rules file")
	}
}

const yamlRules = `
missing_tokens: ["", "none", "---"]
columns:
  ID Client: {kind: integer}
  date_inscription: {kind: date, date_order: day_first}
  montant_total_eur: {kind: decimal, currency_symbols: ["€"]}
  newsletter_ok: {kind: boolean, default_false: true}
  actif: {kind: boolean, true_tokens: [oui, "y"], false_tokens: [non, "n"]}
`

const tomlRules = `
missing_tokens = ["", "none", "---"]

[columns."ID Client"]
kind = "integer"

[columns.date_inscription]
kind = "date"
date_order = "day_first"

[columns.montant_total_eur]
kind = "decimal"
currency_symbols = ["€"]

[columns.newsletter_ok]
kind = "boolean"
default_false = true

[columns.actif]
kind = "boolean"
true_tokens = ["oui", "y"]
false_tokens = ["non", "n"]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRules(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "rules.yaml", yamlRules},
		{"yml", "rules.yml", yamlRules},
		{"toml", "rules.toml", tomlRules},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf, err := LoadRules(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("LoadRules() error = %v", err)
			}

			if len(rf.MissingTokens) != 3 {
				t.Errorf("MissingTokens = %q, want 3 tokens", rf.MissingTokens)
			}
			if rf.Rules["id_client"].Kind != tabular.KindInteger {
				t.Errorf("id_client kind = %s, want integer", rf.Rules["id_client"].Kind)
			}
			if rf.Rules["date_inscription"].DateOrder != tabular.DayFirst {
				t.Errorf("date_inscription order = %q, want day_first", rf.Rules["date_inscription"].DateOrder)
			}
			if !rf.Rules["newsletter_ok"].DefaultFalse {
				t.Error("newsletter_ok should default to false")
			}
			actif := rf.Rules["actif"]
			if v, ok := actif.Tokens["y"]; !ok || !v {
				t.Errorf("actif tokens = %v, want y → true", actif.Tokens)
			}
			if v, ok := actif.Tokens["n"]; !ok || v {
				t.Errorf("actif tokens = %v, want n → false", actif.Tokens)
			}
		})
	}
}

func TestLoadRules_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"date without order", "r.yaml", "columns:\n  joined: {kind: date}\n"},
		{"unknown kind", "r.yaml", "columns:\n  joined: {kind: timestamp}\n"},
		{"unknown field", "r.yaml", "columns:\n  joined: {kind: text, colour: red}\n"},
		{"conflicting tokens", "r.yaml", "columns:\n  ok: {kind: boolean, true_tokens: [x], false_tokens: [X]}\n"},
		{"duplicate canonical name", "r.yaml", "columns:\n  Age: {kind: integer}\n  age: {kind: integer}\n"},
		{"toml unknown key", "r.toml", "[columns.a]\nkind = \"text\"\nextra = 1\n"},
		{"unsupported extension", "r.json", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(writeFile(t, tt.file, tt.content))
			if !errors.Is(err, apperr.ErrInvalidConfig) {
				t.Errorf("LoadRules() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNormalizerOptions_RulesFile(t *testing.T) {
	cfg := validConfig()
	cfg.CSV.MissingTokens = []string{"ignored"}
	cfg.CSV.RulesFile = writeFile(t, "rules.yaml", yamlRules)

	opts, err := cfg.NormalizerOptions()
	if err != nil {
		t.Fatalf("NormalizerOptions() error = %v", err)
	}
	if len(opts.Rules) != 5 {
		t.Errorf("rules = %d, want 5", len(opts.Rules))
	}
	if len(opts.MissingTokens) != 3 || opts.MissingTokens[1] != "none" {
		t.Errorf("MissingTokens = %q, want tokens from the rules file", opts.MissingTokens)
	}
}
