package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/currency"
)

// dateLayouts covers the formats seen across lease documents. ISO first so
// round-tripped values stay stable.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01-02-2006",
	"2006/01/02",
}

// ParseDate normalizes a date string to an ISO calendar date (YYYY-MM-DD).
func ParseDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", eris.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", eris.Errorf("unrecognized date format: %q", redactForError(s))
}

// ParseCurrency normalizes a monetary string ("$1,234.56", "USD 1200",
// "(1,500.00)") to a float amount and an ISO 4217 code. The code defaults
// to USD when absent.
func ParseCurrency(raw string) (float64, string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, "", eris.New("empty amount")
	}

	code := "USD"
	var numeric strings.Builder
	for _, tok := range strings.Fields(s) {
		tok = strings.Trim(tok, "()")
		if unit, err := currency.ParseISO(tok); err == nil && len(tok) == 3 {
			code = unit.String()
			continue
		}
		numeric.WriteString(tok)
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		case r == ',':
			return -1
		default:
			return -1
		}
	}, numeric.String())

	if cleaned == "" {
		return 0, "", eris.Errorf("no numeric amount in %q", redactForError(s))
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, "", eris.Errorf("unparseable amount %q", redactForError(s))
	}
	return amount, code, nil
}

// ParseNumber normalizes a numeric string, tolerating thousands separators.
func ParseNumber(raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, eris.New("empty number")
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("unparseable number %q", redactForError(s))
	}
	return n, nil
}

var boolTokens = map[string]bool{
	"yes": true, "y": true, "true": true, "1": true, "x": true,
	"no": false, "n": false, "false": false, "0": false, "none": false,
}

// ParseBool normalizes a boolean token.
func ParseBool(raw string) (bool, error) {
	v, ok := boolTokens[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return false, eris.Errorf("unrecognized boolean %q", redactForError(raw))
	}
	return v, nil
}

// CanonicalEnum maps a raw token to one of the allowed enum values,
// case-insensitively, tolerating surrounding whitespace and separators.
func CanonicalEnum(raw string, allowed []string) (string, error) {
	want := canonicalToken(raw)
	if want == "" {
		return "", eris.New("empty enum value")
	}
	for _, a := range allowed {
		if canonicalToken(a) == want {
			return a, nil
		}
	}
	return "", eris.Errorf("value not in enum: %q", redactForError(raw))
}

func canonicalToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// redactForError truncates raw document text quoted in error messages so
// sensitive content never lands in logs wholesale.
func redactForError(s string) string {
	const max = 32
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
