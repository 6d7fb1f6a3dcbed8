package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Write serializes t as a header row plus one line per row, using delimiter.
// Nulls are written as empty fields.
func Write(w io.Writer, t *Table, delimiter rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		for j, v := range row {
			record[j] = v.String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
