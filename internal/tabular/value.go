package tabular

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Kind identifies the type carried by a Value, and the target type of a Rule.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindInteger
	KindDecimal
	KindDate
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// ParseKind maps a rule-file kind name to a Kind. Null is not a valid target.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string":
		return KindText, true
	case "integer", "int":
		return KindInteger, true
	case "decimal", "currency", "numeric":
		return KindDecimal, true
	case "date":
		return KindDate, true
	case "boolean", "bool":
		return KindBoolean, true
	default:
		return KindNull, false
	}
}

// Value is a single cell. Exactly one payload matches Kind; a null Value has
// Kind == KindNull and no payload.
type Value struct {
	Kind    Kind
	Text    string
	Int     pgtype.Int8
	Decimal pgtype.Numeric
	Date    pgtype.Date
	Bool    pgtype.Bool
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Text returns a text Value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Integer returns an integer Value.
func Integer(i int64) Value {
	return Value{Kind: KindInteger, Int: pgtype.Int8{Int64: i, Valid: true}}
}

// Boolean returns a boolean Value.
func Boolean(b bool) Value {
	return Value{Kind: KindBoolean, Bool: pgtype.Bool{Bool: b, Valid: true}}
}

// Date returns a date Value. A non-midnight time of day is kept.
func Date(t time.Time) Value {
	return Value{Kind: KindDate, Date: pgtype.Date{Time: t, Valid: true}}
}

// fromInt8 and friends turn converter results into Values; invalid means null.
func fromInt8(i pgtype.Int8) Value {
	if !i.Valid {
		return Null()
	}
	return Value{Kind: KindInteger, Int: i}
}

func fromNumeric(n pgtype.Numeric) Value {
	if !n.Valid {
		return Null()
	}
	return Value{Kind: KindDecimal, Decimal: n}
}

func fromDate(d pgtype.Date) Value {
	if !d.Valid {
		return Null()
	}
	return Value{Kind: KindDate, Date: d}
}

func fromBool(b pgtype.Bool) Value {
	if !b.Valid {
		return Null()
	}
	return Value{Kind: KindBoolean, Bool: b}
}

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// String renders v the way it is serialized. Null renders as "".
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindInteger:
		return strconv.FormatInt(v.Int.Int64, 10)
	case KindDecimal:
		return FormatNumeric(v.Decimal)
	case KindDate:
		return formatDate(v.Date.Time)
	case KindBoolean:
		return strconv.FormatBool(v.Bool.Bool)
	default:
		return ""
	}
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// FormatNumeric renders an exact decimal in plain notation ("1000.50", "-0.05").
func FormatNumeric(n pgtype.Numeric) string {
	if !n.Valid || n.Int == nil {
		return ""
	}

	digits := new(big.Int).Abs(n.Int).String()
	sign := ""
	if n.Int.Sign() < 0 {
		sign = "-"
	}

	exp := int(n.Exp)
	switch {
	case exp > 0:
		return sign + digits + strings.Repeat("0", exp)
	case exp == 0:
		return sign + digits
	}

	frac := -exp
	if len(digits) <= frac {
		digits = strings.Repeat("0", frac-len(digits)+1) + digits
	}
	point := len(digits) - frac
	return sign + digits[:point] + "." + digits[point:]
}
