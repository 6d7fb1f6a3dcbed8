package tabular

import "strings"

// CanonicalColumn trims, lowercases and replaces spaces with underscores.
func CanonicalColumn(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// RenameColumns canonicalizes every column name. Two headers that end up
// with the same name produce a *SchemaError.
func RenameColumns(t *Table) (*Table, error) {
	out := t.clone()
	sources := make(map[string][]string, len(t.Columns))

	for i, c := range t.Columns {
		name := CanonicalColumn(c)
		sources[name] = append(sources[name], c)
		out.Columns[i] = name
	}

	for _, name := range out.Columns {
		if len(sources[name]) > 1 {
			return nil, &SchemaError{Column: name, Sources: sources[name], Reason: "duplicate column"}
		}
	}
	return out, nil
}

// NormalizeNulls replaces every text cell exactly equal to one of tokens
// with null. Matching is case-sensitive.
func NormalizeNulls(t *Table, tokens []string) *Table {
	out := t.clone()
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}

	for _, row := range out.Rows {
		for i, v := range row {
			if v.Kind != KindText {
				continue
			}
			if _, ok := set[v.Text]; ok {
				row[i] = Null()
			}
		}
	}
	return out
}

// DropEmptyRows removes rows whose every value is null.
func DropEmptyRows(t *Table) *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, 0, len(t.Rows)),
	}
	for _, r := range t.Rows {
		if r.isEmpty() {
			continue
		}
		out.Rows = append(out.Rows, append(Row(nil), r...))
	}
	return out
}
