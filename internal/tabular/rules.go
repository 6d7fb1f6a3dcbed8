package tabular

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/tidy/internal/textio"
)

// DateOrder resolves ambiguous numeric dates.
type DateOrder string

const (
	DayFirst  DateOrder = "day_first"  // 11/03/2024 is 11 March
	YearFirst DateOrder = "year_first" // only 2024-03-11 style dates parse
)

// Valid reports whether o is a known order.
func (o DateOrder) Valid() bool {
	return o == DayFirst || o == YearFirst
}

// DefaultMissingTokens is the union of placeholders seen in exported files.
var DefaultMissingTokens = []string{
	"", "None", "none", "NaN", "Nan", "nan", "N/A", "n/a", "NA", "na", "---",
}

// DefaultCurrencySymbols are stripped from decimal columns unless a rule overrides them.
var DefaultCurrencySymbols = []string{"€", "$", "£"}

// DefaultBoolTokens maps lowercased French and English tokens to booleans.
var DefaultBoolTokens = map[string]bool{
	"oui": true, "yes": true, "true": true, "1": true,
	"non": false, "no": false, "false": false, "0": false,
}

// Rule is one entry of the per-column conversion table. Kind selects the
// conversion; the remaining fields are parameters of that kind only.
type Rule struct {
	Kind Kind

	// KindDate: required.
	DateOrder DateOrder

	// KindDecimal: symbols removed before parsing. Nil means DefaultCurrencySymbols.
	CurrencySymbols []string

	// KindBoolean: lowercase token → value. Nil means DefaultBoolTokens.
	Tokens map[string]bool
	// KindBoolean: unmapped tokens and nulls become false instead of null.
	DefaultFalse bool
}

// Validate checks that the rule carries the parameters its kind needs.
func (r Rule) Validate() error {
	switch r.Kind {
	case KindText, KindInteger, KindDecimal, KindBoolean:
		return nil
	case KindDate:
		if !r.DateOrder.Valid() {
			return fmt.Errorf("date rule needs date_order %q or %q, got %q", DayFirst, YearFirst, r.DateOrder)
		}
		return nil
	default:
		return fmt.Errorf("unsupported rule kind %s", r.Kind)
	}
}

func (r Rule) currencySymbols() []string {
	if r.CurrencySymbols == nil {
		return DefaultCurrencySymbols
	}
	return r.CurrencySymbols
}

func (r Rule) boolTokens() map[string]bool {
	if r.Tokens == nil {
		return DefaultBoolTokens
	}
	return r.Tokens
}

// Rules maps normalized column names to their conversion rule.
type Rules map[string]Rule

// Validate checks every rule and reports all failures together.
func (rs Rules) Validate() error {
	var errs []string
	for _, col := range rs.columns() {
		if err := rs[col].Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", col, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid rules: %s", strings.Join(errs, "; "))
	}
	return nil
}

// columns returns rule names in sorted order.
func (rs Rules) columns() []string {
	cols := make([]string, 0, len(rs))
	for c := range rs {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// DefaultRules is the rule table for the customer export the tool was built for.
func DefaultRules() Rules {
	return Rules{
		"id_client":          {Kind: KindInteger},
		"age":                {Kind: KindInteger},
		"date_inscription":   {Kind: KindDate, DateOrder: DayFirst},
		"derniere_connexion": {Kind: KindDate, DateOrder: DayFirst},
		"montant_total_eur":  {Kind: KindDecimal},
		"actif":              {Kind: KindBoolean},
		"newsletter_ok":      {Kind: KindBoolean, DefaultFalse: true},
	}
}

// Options configures a Normalizer.
type Options struct {
	InputDelimiter  rune
	OutputDelimiter rune
	Encoding        string
	MissingTokens   []string
	Rules           Rules
}

// DefaultOptions returns semicolon-in, semicolon-out UTF-8 options with the default rules.
func DefaultOptions() Options {
	return Options{
		InputDelimiter:  ';',
		OutputDelimiter: ';',
		Encoding:        textio.DefaultEncoding,
		MissingTokens:   append([]string(nil), DefaultMissingTokens...),
		Rules:           DefaultRules(),
	}
}

// Validate checks delimiters, encoding and rules.
func (o Options) Validate() error {
	if !validDelimiter(o.InputDelimiter) {
		return fmt.Errorf("invalid input delimiter %q", o.InputDelimiter)
	}
	if !validDelimiter(o.OutputDelimiter) {
		return fmt.Errorf("invalid output delimiter %q", o.OutputDelimiter)
	}
	if !textio.ValidEncoding(o.Encoding) {
		return fmt.Errorf("invalid encoding %q", o.Encoding)
	}
	return o.Rules.Validate()
}

func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && r != 0xFFFD
}
