// Package values normalizes the free text typed by operators into the forms the
// spreadsheet expects: dot-decimal numbers for currency fields and dot-decimal key
// strings for cross-worksheet matching.
package values

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseMoney converts a pt-BR currency string such as "R$ 1.234,56" into a float
// suitable for numeric storage. Dots are thousands separators and the comma is the
// decimal separator.
//
// Empty or unparseable input returns 0 without an error. This leniency matches what
// operators have always seen from the tool; callers that want to flag likely typos
// should use IsMoneyLike.
func ParseMoney(s string) float64 {
	f, ok := parseMoney(s)
	if !ok {
		return 0
	}
	return f
}

// IsMoneyLike reports whether s is empty or parses as a currency value. A false
// result means ParseMoney silently coerced s to zero.
func IsMoneyLike(s string) bool {
	if strings.TrimSpace(s) == "" {
		return true
	}
	_, ok := parseMoney(s)
	return ok
}

// plainDecimal is the only shape accepted once a currency string is cleaned.
// strconv.ParseFloat alone would also accept NaN, Inf, exponents and hex floats.
var plainDecimal = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

func parseMoney(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	clean := strings.ReplaceAll(s, "R$", "")
	clean = strings.ReplaceAll(clean, ".", "")
	clean = strings.ReplaceAll(clean, ",", ".")
	clean = strings.TrimSpace(clean)
	if !plainDecimal.MatchString(clean) {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// dayMonth matches a DD/MM balance date.
var dayMonth = regexp.MustCompile(`^(0?[1-9]|[12][0-9]|3[01])/(0?[1-9]|1[0-2])$`)

// IsDayMonth reports whether s is empty or a DD/MM date. Other text is still written
// as typed; the spreadsheet has accepted free text in the date columns.
func IsDayMonth(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || dayMonth.MatchString(s)
}

// NormalizeKey returns the canonical form of a record key for equality tests: every
// comma becomes a dot and surrounding whitespace is removed. The normalized form is
// never written back; row lookups for writes use the raw key text.
func NormalizeKey(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
}

// SameKey reports whether two keys are equal after normalization.
func SameKey(a, b string) bool {
	return NormalizeKey(a) == NormalizeKey(b)
}

// FormatReais formats an amount as Brazilian reais, eg "R$ 2.350,00".
func FormatReais(v float64) string {
	if v < 0 {
		return "-R$ " + humanize.FormatFloat("#.###,##", -v)
	}
	return "R$ " + humanize.FormatFloat("#.###,##", v)
}
