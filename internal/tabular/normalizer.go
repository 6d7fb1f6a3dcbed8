package tabular

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/JonMunkholm/tidy/internal/effects"
	"github.com/JonMunkholm/tidy/internal/logging"
)

// Stats summarizes a normalization run. Row counts before and after are
// always reported so no data disappears silently.
type Stats struct {
	RowsRead       int
	RowsMalformed  int
	RowsDropped    int
	RowsWritten    int
	Columns        []string
	Nulled         map[string]int
	Defaulted      map[string]int
	MissingColumns []string
	Malformed      []MalformedRowError
	BytesRead      int64
}

// Normalizer runs the full cleaning pipeline with a fixed set of options.
type Normalizer struct {
	opts Options
}

// NewNormalizer validates opts and returns a Normalizer.
func NewNormalizer(opts Options) (*Normalizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{opts: opts}, nil
}

// Options returns the options the normalizer was built with.
func (n *Normalizer) Options() Options { return n.opts }

// Normalize applies rename, null normalization, type conversion and empty-row
// removal to a parsed table.
func (n *Normalizer) Normalize(t *Table) (*Table, Stats, error) {
	stats := Stats{RowsRead: t.Len()}

	renamed, err := RenameColumns(t)
	if err != nil {
		return nil, stats, err
	}

	// Rows that are empty before conversion are dropped first, so that a
	// DefaultFalse boolean column cannot keep an otherwise blank row alive.
	nulled := DropEmptyRows(NormalizeNulls(renamed, n.opts.MissingTokens))
	converted, cs := ConvertTypes(nulled, n.opts.Rules)
	cleaned := DropEmptyRows(converted)

	stats.Columns = cleaned.Columns
	stats.Nulled = cs.Nulled
	stats.Defaulted = cs.Defaulted
	stats.MissingColumns = cs.MissingColumns
	stats.RowsDropped = renamed.Len() - cleaned.Len()
	stats.RowsWritten = cleaned.Len()
	return cleaned, stats, nil
}

// Run parses r, normalizes the table and writes the result to w.
func (n *Normalizer) Run(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	logger := logging.FromContext(ctx)

	t, ps, err := Parse(r, ParseOptions{Delimiter: n.opts.InputDelimiter, Encoding: n.opts.Encoding})
	if err != nil {
		return Stats{}, err
	}
	for _, m := range ps.Malformed {
		logger.Warn("skipping malformed row", "line", m.Line, "reason", m.Error())
	}

	cleaned, stats, err := n.Normalize(t)
	if err != nil {
		return stats, err
	}
	stats.RowsRead = ps.RowsRead
	stats.RowsMalformed = len(ps.Malformed)
	stats.Malformed = ps.Malformed
	stats.BytesRead = ps.BytesRead

	if len(stats.MissingColumns) > 0 {
		logger.Warn("rule columns not in header", "columns", stats.MissingColumns)
	}
	for col, count := range stats.Nulled {
		if count > 0 {
			logger.Debug("unconvertible values set to null", "column", col, "count", count)
		}
	}

	if err := Write(w, cleaned, n.opts.OutputDelimiter); err != nil {
		return stats, err
	}

	logger.Info("csv normalized",
		"rows_read", stats.RowsRead,
		"rows_malformed", stats.RowsMalformed,
		"rows_dropped", stats.RowsDropped,
		"rows_written", stats.RowsWritten,
		"columns", len(stats.Columns),
	)
	return stats, nil
}

// NormalizeFile runs n from the file at in to the file at out, creating the
// output directory when needed. The output is written only after the run
// succeeds, so a failure leaves any existing out untouched and in may equal
// out.
func (n *Normalizer) NormalizeFile(ctx context.Context, fsys effects.FS, in, out string) (Stats, error) {
	var buf bytes.Buffer
	stats, err := n.runFile(ctx, fsys, in, &buf)
	if err != nil {
		return stats, fmt.Errorf("normalize %s: %w", in, err)
	}

	if err := writeFile(fsys, out, &buf); err != nil {
		return stats, err
	}
	return stats, nil
}

func (n *Normalizer) runFile(ctx context.Context, fsys effects.FS, in string, w io.Writer) (Stats, error) {
	src, err := fsys.Open(in)
	if err != nil {
		return Stats{}, err
	}
	defer src.Close()
	return n.Run(ctx, src, w)
}

func writeFile(fsys effects.FS, path string, r io.Reader) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := fsys.MkdirAll(dir); err != nil {
			return err
		}
	}

	dst, err := fsys.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = effects.Wrap("close", path, cerr)
		}
	}()

	if _, err := io.Copy(dst, r); err != nil {
		return effects.Wrap("write", path, err)
	}
	return nil
}
