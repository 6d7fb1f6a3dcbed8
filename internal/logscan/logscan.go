// Package logscan extracts error lines from a directory of log files.
//
// A run reads every matching file in the input directory, keeps the lines
// containing the error marker, writes one timestamped report and then
// archives the files it read:
//
//	[app.log] 2024-03-11 10:02:13 ERROR disk full
//	[worker.log] ERROR connection refused
package logscan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/tidy/internal/effects"
	"github.com/JonMunkholm/tidy/internal/logging"
	"github.com/JonMunkholm/tidy/internal/textio"
)

// UnreadablePolicy decides what happens to a file that cannot be read.
type UnreadablePolicy string

const (
	// UnreadableFail aborts the run before anything is archived.
	UnreadableFail UnreadablePolicy = "fail"
	// UnreadableSkip records a warning and leaves the file in place.
	UnreadableSkip UnreadablePolicy = "skip"
)

// ReportTimeLayout is the timestamp format used in report file names.
const ReportTimeLayout = "20060102-150405"

// Options configures a scan.
type Options struct {
	InputDir     string
	OutputDir    string
	ArchiveDir   string
	Marker       string
	Pattern      string // Glob on file names; empty matches every file
	OnUnreadable UnreadablePolicy
	OnCollision  effects.CollisionPolicy
}

// Validate checks that required fields are set and policies are known.
func (o Options) Validate() error {
	var errs []string
	if o.InputDir == "" {
		errs = append(errs, "input directory is required")
	}
	if o.OutputDir == "" {
		errs = append(errs, "output directory is required")
	}
	if o.ArchiveDir == "" {
		errs = append(errs, "archive directory is required")
	}
	if o.Marker == "" {
		errs = append(errs, "error marker must not be empty")
	}
	if _, err := filepath.Match(o.Pattern, ""); err != nil {
		errs = append(errs, fmt.Sprintf("invalid pattern %q: %v", o.Pattern, err))
	}
	switch o.OnUnreadable {
	case UnreadableFail, UnreadableSkip:
	default:
		errs = append(errs, fmt.Sprintf("unknown unreadable policy %q", o.OnUnreadable))
	}
	switch o.OnCollision {
	case effects.CollisionRename, effects.CollisionOverwrite, effects.CollisionFail:
	default:
		errs = append(errs, fmt.Sprintf("unknown collision policy %q", o.OnCollision))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid scan options: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Entry is one extracted line.
type Entry struct {
	File string
	Line string
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s", e.File, e.Line)
}

// Warning records a file that was skipped.
type Warning struct {
	File string
	Err  error
}

// Report is the outcome of Extract. Archive fills in Archived.
type Report struct {
	Entries  []Entry
	Scanned  []string // Files read, in scan order
	Archived []string // Final archive paths
	Skipped  []Warning
}

// ScanLines returns an entry for every line of r containing marker, in order.
// Lines are trimmed of surrounding whitespace.
func ScanLines(file string, r io.Reader, marker string) ([]Entry, error) {
	decoded, err := textio.NewReader(r, textio.DefaultEncoding)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	br := bufio.NewReader(decoded)
	for {
		line, err := br.ReadString('\n')
		if line != "" && strings.Contains(line, marker) {
			entries = append(entries, Entry{File: file, Line: strings.TrimSpace(line)})
		}
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Extract scans every matching file of opts.InputDir in name order. Files
// are not moved; see Archive. Under UnreadableFail any unreadable file aborts
// the scan.
func Extract(ctx context.Context, fsys effects.FS, opts Options) (*Report, error) {
	logger := logging.FromContext(ctx)

	names, err := listFiles(fsys, opts.InputDir, opts.Pattern)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scan cancelled: %w", err)
		}

		path := filepath.Join(opts.InputDir, name)
		entries, err := scanFile(fsys, path, name, opts.Marker)
		if err != nil {
			if opts.OnUnreadable != UnreadableSkip {
				return nil, err
			}
			logger.Warn("skipping unreadable log file", "file", path, "error", err)
			report.Skipped = append(report.Skipped, Warning{File: path, Err: err})
			continue
		}

		logger.Debug("scanned log file", "file", name, "matches", len(entries))
		report.Entries = append(report.Entries, entries...)
		report.Scanned = append(report.Scanned, name)
	}
	return report, nil
}

// Archive moves the files report scanned into opts.ArchiveDir and records
// their final paths. Files moved before a failure stay archived.
func Archive(fsys effects.FS, opts Options, report *Report) error {
	if len(report.Scanned) == 0 {
		return nil
	}
	if err := fsys.MkdirAll(opts.ArchiveDir); err != nil {
		return err
	}
	for _, name := range report.Scanned {
		dest, err := effects.Move(fsys, filepath.Join(opts.InputDir, name), opts.ArchiveDir, opts.OnCollision)
		if err != nil {
			return err
		}
		report.Archived = append(report.Archived, dest)
	}
	return nil
}

func listFiles(fsys effects.FS, dir, pattern string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, e.Name()); !ok {
				continue
			}
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func scanFile(fsys effects.FS, path, name, marker string) ([]Entry, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := ScanLines(name, f, marker)
	if err != nil {
		return nil, effects.Wrap("read", path, err)
	}
	return entries, nil
}

// ReportName returns the report file name for a run started at now.
func ReportName(now time.Time) string {
	return "errors_" + now.Format(ReportTimeLayout) + ".log"
}

// WriteReport writes one entry per line to a new timestamped file in dir and
// returns its path. An existing report with the same name is never replaced.
func WriteReport(fsys effects.FS, dir string, report *Report, now time.Time) (path string, err error) {
	if err := fsys.MkdirAll(dir); err != nil {
		return "", err
	}

	path, err = effects.FreeName(fsys, dir, ReportName(now))
	if err != nil {
		return "", err
	}

	f, err := fsys.Create(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = effects.Wrap("close", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	for _, e := range report.Entries {
		if _, err := w.WriteString(e.String() + "\n"); err != nil {
			return "", effects.Wrap("write", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", effects.Wrap("write", path, err)
	}
	return path, nil
}

// Result summarizes a completed run.
type Result struct {
	ReportPath string
	ArchiveDir string
	Files      int
	Entries    int
	Skipped    []Warning
	Duration   time.Duration
}

// Run extracts, writes the report, then archives. now stamps the report name.
func Run(ctx context.Context, fsys effects.FS, opts Options, now time.Time) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	logger.Info("log scan started", "input_dir", opts.InputDir, "marker", opts.Marker, "pattern", opts.Pattern)

	start := time.Now()
	report, err := Extract(ctx, fsys, opts)
	if err != nil {
		return nil, err
	}

	// The report is written before anything leaves the input directory.
	path, err := WriteReport(fsys, opts.OutputDir, report, now)
	if err != nil {
		return nil, err
	}
	if err := Archive(fsys, opts, report); err != nil {
		return nil, fmt.Errorf("archive logs (report written to %s): %w", path, err)
	}

	res := &Result{
		ReportPath: path,
		ArchiveDir: opts.ArchiveDir,
		Files:      len(report.Scanned),
		Entries:    len(report.Entries),
		Skipped:    report.Skipped,
		Duration:   time.Since(start),
	}
	logger.Info("log scan completed",
		"files", res.Files,
		"skipped", len(res.Skipped),
		"entries", res.Entries,
		"report", res.ReportPath,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
