// Package tabular implements the CSV normalization pipeline.
//
// A Table is parsed from delimited text with every cell as text, then passed
// through a fixed sequence of pure transforms, each returning a new Table:
//
//	Parse → RenameColumns → NormalizeNulls → ConvertTypes → DropEmptyRows → Write
//
// Per-value failures never raise: a cell that cannot be converted becomes
// null. Only Parse skips input (rows with the wrong field count), and every
// skipped or dropped row is counted in Stats.
package tabular

// Row holds one Value per table column, in column order.
type Row []Value

// Table is an ordered set of rows sharing one column list.
// Every row has exactly len(Columns) values.
type Table struct {
	Columns []string
	Rows    []Row
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// clone returns a deep copy so transforms never mutate their input.
func (t *Table) clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append(Row(nil), r...)
	}
	return out
}

// isEmpty reports whether every value in r is null.
func (r Row) isEmpty() bool {
	for _, v := range r {
		if !v.IsNull() {
			return false
		}
	}
	return true
}
