package schema

// convert.go turns loosely formatted user input into the canonical cell text
// stored in the sheet.
//
// People paste values copied from other spreadsheets and extracted documents:
//   - dates in US, EU and ISO layouts, sometimes with two-digit years
//   - amounts with currency symbols, thousands separators or accounting parens
//   - yes/no, y/n, 1/0 for booleans
//
// Canonical forms: dates are YYYY-MM-DD, timestamps RFC 3339 UTC, numbers
// plain decimal text, booleans "true"/"false", enum values as registered.

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// back a century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006", "2 January 2006",
		"20060102",
	}
)

var (
	errInvalidDate      = errors.New("invalid date format (use YYYY-MM-DD)")
	errInvalidTimestamp = errors.New("invalid timestamp (use RFC 3339)")
	errInvalidNumber    = errors.New("invalid number format")
	errInvalidBool      = errors.New("must be yes/no, true/false, or 1/0")
	errRequired         = errors.New("required")
)

// ParseDate parses a date in any of the supported layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseNumber strips currency symbols and thousands separators and returns
// the plain decimal text. "(1,234.50)" becomes "-1234.50".
func ParseNumber(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", "%", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return "", false
	}
	return s, true
}

// ParseBool accepts true/false, yes/no, t/f, y/n and 1/0.
func ParseBool(s string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// Normalize validates value against col and returns its canonical form.
// Empty input stays empty; whether that is allowed is the caller's concern.
func Normalize(value string, col Column) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}

	switch col.Type {
	case FieldDate:
		t, ok := ParseDate(value)
		if !ok {
			return "", errInvalidDate
		}
		return t.Format("2006-01-02"), nil

	case FieldTimestamp:
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return "", errInvalidTimestamp
		}
		return t.UTC().Format(time.RFC3339Nano), nil

	case FieldNumeric:
		n, ok := ParseNumber(value)
		if !ok {
			return "", errInvalidNumber
		}
		return n, nil

	case FieldBool:
		b, ok := ParseBool(value)
		if !ok {
			return "", errInvalidBool
		}
		if b {
			return "true", nil
		}
		return "false", nil

	case FieldEnum:
		for _, ev := range col.EnumValues {
			if strings.EqualFold(ev, value) {
				return ev, nil
			}
		}
		return "", fmt.Errorf("value must be one of: %s", strings.Join(col.EnumValues, ", "))
	}

	return value, nil
}

// ValidateCell reports whether value is acceptable for col, including the
// required check.
func ValidateCell(value string, col Column) error {
	if strings.TrimSpace(value) == "" {
		if col.Required {
			return errRequired
		}
		return nil
	}
	_, err := Normalize(value, col)
	return err
}
