// Package history records completed runs in a SQLite ledger.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/tidy/internal/logscan"
	"github.com/JonMunkholm/tidy/internal/tabular"
)

// Kind identifies which pipeline produced a run.
type Kind string

const (
	KindLogScan   Kind = "log_scan"
	KindNormalize Kind = "normalize"
)

// Run is one ledger entry.
type Run struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Source        string    `json:"source"`
	Target        string    `json:"target"`
	StartedAt     time.Time `json:"startedAt"`
	DurationMs    int64     `json:"durationMs"`
	RowsIn        int       `json:"rowsIn,omitempty"`
	RowsOut       int       `json:"rowsOut,omitempty"`
	RowsMalformed int       `json:"rowsMalformed,omitempty"`
	RowsDropped   int       `json:"rowsDropped,omitempty"`
	Files         int       `json:"files,omitempty"`
	Entries       int       `json:"entries,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	source         TEXT NOT NULL,
	target         TEXT NOT NULL,
	started_at     INTEGER NOT NULL,
	duration_ms    INTEGER NOT NULL,
	rows_in        INTEGER NOT NULL DEFAULT 0,
	rows_out       INTEGER NOT NULL DEFAULT 0,
	rows_malformed INTEGER NOT NULL DEFAULT 0,
	rows_dropped   INTEGER NOT NULL DEFAULT 0,
	files          INTEGER NOT NULL DEFAULT 0,
	entries        INTEGER NOT NULL DEFAULT 0,
	warnings       TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at DESC);
`

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 20

// Store is a run ledger backed by a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts run, assigning an ID when it has none, and returns the ID.
func (s *Store) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return "", fmt.Errorf("encode warnings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, source, target, started_at, duration_ms,
			rows_in, rows_out, rows_malformed, rows_dropped, files, entries, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Source, run.Target, run.StartedAt.UnixMilli(), run.DurationMs,
		run.RowsIn, run.RowsOut, run.RowsMalformed, run.RowsDropped, run.Files, run.Entries,
		string(warningsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

// List returns up to limit runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, source, target, started_at, duration_ms,
			rows_in, rows_out, rows_malformed, rows_dropped, files, entries, warnings
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run          Run
		kind         string
		startedAt    int64
		warningsJSON string
	)
	err := rows.Scan(&run.ID, &kind, &run.Source, &run.Target, &startedAt, &run.DurationMs,
		&run.RowsIn, &run.RowsOut, &run.RowsMalformed, &run.RowsDropped, &run.Files, &run.Entries,
		&warningsJSON)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Kind = Kind(kind)
	run.StartedAt = time.UnixMilli(startedAt)
	if err := json.Unmarshal([]byte(warningsJSON), &run.Warnings); err != nil {
		return Run{}, fmt.Errorf("decode warnings of run %s: %w", run.ID, err)
	}
	if len(run.Warnings) == 0 {
		run.Warnings = nil
	}
	return run, nil
}

// maxWarnings caps the warnings stored per run.
const maxWarnings = 50

// NormalizeRun builds the ledger entry for a CSV normalization.
func NormalizeRun(source, target string, started time.Time, stats tabular.Stats) Run {
	var warnings []string
	for _, m := range stats.Malformed {
		warnings = append(warnings, "malformed row "+m.Error())
	}
	for _, col := range stats.MissingColumns {
		warnings = append(warnings, "rule column not in header: "+col)
	}
	return Run{
		Kind:          KindNormalize,
		Source:        source,
		Target:        target,
		StartedAt:     started,
		DurationMs:    time.Since(started).Milliseconds(),
		RowsIn:        stats.RowsRead,
		RowsOut:       stats.RowsWritten,
		RowsMalformed: stats.RowsMalformed,
		RowsDropped:   stats.RowsDropped,
		Warnings:      capWarnings(warnings),
	}
}

// ScanRun builds the ledger entry for a log scan.
func ScanRun(source string, started time.Time, res *logscan.Result) Run {
	var warnings []string
	for _, w := range res.Skipped {
		warnings = append(warnings, fmt.Sprintf("skipped %s: %v", w.File, w.Err))
	}
	return Run{
		Kind:       KindLogScan,
		Source:     source,
		Target:     res.ReportPath,
		StartedAt:  started,
		DurationMs: res.Duration.Milliseconds(),
		Files:      res.Files,
		Entries:    res.Entries,
		Warnings:   capWarnings(warnings),
	}
}

func capWarnings(w []string) []string {
	if len(w) <= maxWarnings {
		return w
	}
	rest := len(w) - maxWarnings + 1
	return append(w[:maxWarnings-1:maxWarnings-1], fmt.Sprintf("... %d more", rest))
}
