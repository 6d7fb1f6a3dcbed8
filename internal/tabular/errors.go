package tabular

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoHeader is returned by Parse when the input holds no header row.
var ErrNoHeader = errors.New("csv has no header row")

// SchemaError reports an output column set that cannot be built,
// such as two headers that normalize to the same name.
type SchemaError struct {
	Column  string   // Normalized column name
	Sources []string // Original headers that produced it
	Reason  string
}

func (e *SchemaError) Error() string {
	if len(e.Sources) > 0 {
		quoted := make([]string, len(e.Sources))
		for i, s := range e.Sources {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("schema: %s %q (from %s)", e.Reason, e.Column, strings.Join(quoted, ", "))
	}
	return fmt.Sprintf("schema: %s %q", e.Reason, e.Column)
}

// MalformedRowError describes a row skipped during Parse.
// It is recorded in ParseStats, never returned.
type MalformedRowError struct {
	Line   int // 1-indexed line in the input
	Fields int // Fields found (0 when the row could not be split)
	Want   int // Fields expected from the header
	Err    error
}

func (e MalformedRowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: row has %d fields, expected %d", e.Line, e.Fields, e.Want)
}

func (e MalformedRowError) Unwrap() error { return e.Err }
