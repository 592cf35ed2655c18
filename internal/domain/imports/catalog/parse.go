package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CleanCell strips surrounding whitespace plus the BOM and non-breaking
// space characters spreadsheet exports like to smuggle in.
func CleanCell(raw string) string {
	return strings.TrimFunc(raw, func(r rune) bool {
		switch r {
		case ' ', '\t', '\r', '\n', '\uFEFF', '\u00A0':
			return true
		}
		return false
	})
}

// ParseNumber parses a cell tolerating currency symbols, thousands
// separators in both US and European style, and accounting-style
// parentheses for negatives.
func ParseNumber(raw string) (decimal.Decimal, bool) {
	s := CleanCell(raw)
	if s == "" {
		return decimal.Zero, false
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.Trim(s, "()")
	}
	for _, sym := range []string{"$", "€", "£", "USD", "EUR", "GBP"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)

	// Decide which separator is decimal: the last of '.' or ',' wins when
	// both are present; a lone comma followed by exactly three digits is a
	// thousands separator, otherwise it is a European decimal.
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		idx := strings.LastIndex(s, ",")
		if len(s)-idx-1 == 3 && idx > 0 && len(s) > 4 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// dateLayouts are tried in order. Layouts with a time component come
// first so datetimes are not truncated by a date-only match.
var dateLayouts = []struct {
	layout  string
	hasTime bool
}{
	{time.RFC3339, true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02, 15:04:05", true},
	{"02/01/2006 15:04:05", true},
	{"2006-01-02", false},
	{"02/01/2006", false},
	{"01/02/2006", false},
	{"02-01-2006", false},
	{"2006/01/02", false},
	{"02.01.2006", false},
	{"Jan 2, 2006", false},
	{"2 Jan 2006", false},
}

// ParseDate parses the common broker export date shapes. For ambiguous
// slash dates day-first is tried before month-first, matching the
// European exports this pipeline mostly sees; an unambiguous value like
// 25/12/2024 parses correctly either way. hasTime reports whether the
// value carried a time of day.
func ParseDate(raw string) (t time.Time, hasTime bool, ok bool) {
	s := CleanCell(raw)
	if s == "" {
		return time.Time{}, false, false
	}
	for _, l := range dateLayouts {
		if parsed, err := time.Parse(l.layout, s); err == nil {
			return parsed, l.hasTime, true
		}
	}
	return time.Time{}, false, false
}
