package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/tidy/internal/textio"
)

// ParseOptions configures Parse.
type ParseOptions struct {
	Delimiter rune
	Encoding  string // WHATWG label; empty means UTF-8
}

// ParseStats reports what Parse read and skipped.
type ParseStats struct {
	RowsRead  int // Data rows seen, including malformed ones
	Malformed []MalformedRowError
	BytesRead int64
}

// Parse reads a header row followed by data rows. Every cell is text.
// Rows whose field count differs from the header are skipped and recorded.
func Parse(r io.Reader, opts ParseOptions) (*Table, ParseStats, error) {
	var stats ParseStats

	counter := textio.NewCountingReader(r)
	decoded, err := textio.NewReader(counter, opts.Encoding)
	if err != nil {
		return nil, stats, err
	}

	cr := csv.NewReader(decoded)
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, ErrNoHeader
	}
	if err != nil {
		return nil, stats, fmt.Errorf("reading header: %w", err)
	}

	t := &Table{Columns: append([]string(nil), header...)}
	want := len(header)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, stats, fmt.Errorf("reading row %d: %w", stats.RowsRead+1, err)
			}
			stats.RowsRead++
			stats.Malformed = append(stats.Malformed, MalformedRowError{
				Line: parseErr.StartLine,
				Want: want,
				Err:  parseErr.Err,
			})
			continue
		}

		stats.RowsRead++
		if len(record) != want {
			line, _ := cr.FieldPos(0)
			stats.Malformed = append(stats.Malformed, MalformedRowError{
				Line:   line,
				Fields: len(record),
				Want:   want,
			})
			continue
		}

		row := make(Row, want)
		for i, cell := range record {
			row[i] = Text(cell)
		}
		t.Rows = append(t.Rows, row)
	}

	stats.BytesRead = counter.BytesRead
	return t, stats, nil
}
