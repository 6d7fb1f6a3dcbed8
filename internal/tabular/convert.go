package tabular

// convert.go turns text cells into typed values.
//
// These functions handle the messy reality of spreadsheet exports:
//   - Day-first (French) and year-first (ISO) dates, with optional time
//   - Currency symbols, non-breaking spaces and decimal commas in amounts
//   - oui/non, yes/no, true/false, 1/0 booleans
//
// All ToPg* functions return pgtype values with Valid=false for empty or
// unparseable input; callers turn those into nulls.

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates a decimal after currency and separator cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// maxDecimalExponent bounds the scientific exponent accepted in amounts.
const maxDecimalExponent = 1000

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years more than this many years in the future go to the previous century.
var TwoDigitYearPivot = 20

// spaceReplacer removes the separators found inside formatted amounts.
var spaceReplacer = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")

var (
	dayFirstLayouts = []string{
		"2/1/2006", "2-1-2006", "2.1.2006",
		"2006-1-2", "2006/1/2",
	}
	dayFirstTwoDigitLayouts = []string{
		"2/1/06", "2-1-06", "2.1.06",
	}
	yearFirstLayouts = []string{
		"2006-1-2", "2006/1/2", "2006.1.2", "20060102",
	}
	timeSuffixes = []string{
		"", " 15:04:05", " 15:04", "T15:04:05", "T15:04",
	}
)

// ToPgInt8 parses a base-10 integer. Whole-valued decimals like "42.0" are
// accepted; anything else is invalid.
func ToPgInt8(s string) pgtype.Int8 {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Int8{Valid: false}
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return pgtype.Int8{Int64: i, Valid: true}
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Int8{Valid: false}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: int64(f), Valid: true}
}

// ToPgDate parses a date under the given order.
// A trailing time ("15:04" or "15:04:05", space or T separated) is kept.
func ToPgDate(s string, order DateOrder) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	switch order {
	case DayFirst:
		if t, ok := parseLayouts(s, dayFirstLayouts); ok {
			return pgtype.Date{Time: t, Valid: true}
		}
		if t, ok := parseLayouts(s, dayFirstTwoDigitLayouts); ok {
			// Go maps 00-68 to 2000-2068; apply our own pivot instead
			if t.Year() > time.Now().Year()+TwoDigitYearPivot {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	case YearFirst:
		if t, ok := parseLayouts(s, yearFirstLayouts); ok {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

func parseLayouts(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		for _, suffix := range timeSuffixes {
			if t, err := time.Parse(layout+suffix, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ToPgNumeric parses an amount such as "1 000,50 €" or "(12,30)".
// Currency symbols and spaces are removed, the decimal comma becomes a point,
// and parentheses mark a negative amount.
func ToPgNumeric(s string, symbols []string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	for _, sym := range symbols {
		if sym != "" {
			s = strings.ReplaceAll(s, sym, "")
		}
	}
	s = spaceReplacer.Replace(s)

	// Accounting negative "(123.45)"
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && len(s) > 2 {
		s = "-" + s[1:len(s)-1]
	}

	s = strings.ReplaceAll(s, ",", ".")

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}
	return parseDecimal(s)
}

// parseDecimal builds an exact Numeric from a string accepted by
// numericRegex, including scientific notation ("1.5e3" is 1500).
func parseDecimal(s string) pgtype.Numeric {
	mantissa, exp := s, int64(0)
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.ParseInt(s[i+1:], 10, 32)
		if err != nil || e > maxDecimalExponent || e < -maxDecimalExponent {
			return pgtype.Numeric{Valid: false}
		}
		mantissa, exp = s[:i], e
	}

	whole, frac, _ := strings.Cut(mantissa, ".")
	digits, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return pgtype.Numeric{Valid: false}
	}
	return pgtype.Numeric{Int: digits, Exp: int32(exp - int64(len(frac))), Valid: true}
}

// ToPgBool maps a trimmed, lowercased token through tokens.
func ToPgBool(s string, tokens map[string]bool) pgtype.Bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return pgtype.Bool{Valid: false}
	}
	b, ok := tokens[s]
	if !ok {
		return pgtype.Bool{Valid: false}
	}
	return pgtype.Bool{Bool: b, Valid: true}
}

// ConvertStats reports what ConvertTypes did.
type ConvertStats struct {
	// Nulled counts, per column, non-null cells that failed conversion.
	Nulled map[string]int
	// Defaulted counts, per boolean column, cells set to false by DefaultFalse.
	Defaulted map[string]int
	// MissingColumns lists rule columns absent from the table.
	MissingColumns []string
}

// ConvertTypes applies rules column by column. A rule whose column is not in
// the table is skipped. Every cell of a converted column ends up either a
// value of the rule's kind or null.
func ConvertTypes(t *Table, rules Rules) (*Table, ConvertStats) {
	out := t.clone()
	stats := ConvertStats{Nulled: map[string]int{}, Defaulted: map[string]int{}}

	for _, col := range rules.columns() {
		idx := out.Index(col)
		if idx < 0 {
			stats.MissingColumns = append(stats.MissingColumns, col)
			continue
		}
		rule := rules[col]
		for _, row := range out.Rows {
			before := row[idx]
			after, defaulted := convertValue(before, rule)
			if defaulted {
				stats.Defaulted[col]++
			} else if after.IsNull() && !before.IsNull() {
				stats.Nulled[col]++
			}
			row[idx] = after
		}
	}

	return out, stats
}

// convertValue converts one cell. defaulted is true when DefaultFalse
// supplied the result.
func convertValue(v Value, rule Rule) (out Value, defaulted bool) {
	if v.IsNull() {
		if rule.Kind == KindBoolean && rule.DefaultFalse {
			return Boolean(false), true
		}
		return Null(), false
	}

	raw := v.String()
	switch rule.Kind {
	case KindInteger:
		return fromInt8(ToPgInt8(raw)), false
	case KindDecimal:
		return fromNumeric(ToPgNumeric(raw, rule.currencySymbols())), false
	case KindDate:
		return fromDate(ToPgDate(raw, rule.DateOrder)), false
	case KindBoolean:
		b := ToPgBool(raw, rule.boolTokens())
		if !b.Valid && rule.DefaultFalse {
			return Boolean(false), true
		}
		return fromBool(b), false
	default:
		return Text(raw), false
	}
}
