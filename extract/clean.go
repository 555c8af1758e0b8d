package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	// separatorRegexp matches a title suffix introduced by a hyphen, pipe, en dash or em dash.
	separatorRegexp = regexp.MustCompile(`[-|\x{2013}\x{2014}].*`)

	// priceRegexp captures the first price-like group, allowing space, dot and comma separators.
	priceRegexp = regexp.MustCompile(`\d(?:[\d\s\x{00a0}\x{2009}\x{202f}.,]*\d)?`)

	nonDigitRegexp = regexp.MustCompile(`\D`)
)

// CleanTitle collapses whitespace, drops everything from the first separator onward and trims.
// The result is "" when nothing usable remains. CleanTitle(CleanTitle(s)) == CleanTitle(s).
func CleanTitle(raw string) string {
	s := normaliseText(raw)
	s = separatorRegexp.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

// ParsePriceDigits keeps only the digits of raw. Empty or zero prices are reported as absent.
func ParsePriceDigits(raw string) (float64, bool) {
	digits := nonDigitRegexp.ReplaceAllString(raw, "")
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

// ParseListingPrice reads a marketplace card price such as "1 299 ₽", "1.299.000 ₽" or
// "12 490,50 ₽". A lone dot or comma followed by exactly three digits groups thousands.
func ParseListingPrice(raw string) (decimal.Decimal, bool) {
	match := priceRegexp.FindString(raw)
	if match == "" {
		return decimal.Zero, false
	}
	match = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, match)

	d, err := decimal.NewFromString(normaliseSeparators(match))
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// normaliseSeparators rewrites digits with dot and comma separators into "1234.5" form.
// With both kinds present the last one is the decimal point. A single kind repeated is
// grouping; a single occurrence is grouping only when exactly three digits follow it.
func normaliseSeparators(s string) string {
	last := strings.LastIndexAny(s, ".,")
	if last < 0 {
		return s
	}
	sep := s[last]
	mixed := strings.Contains(s, ".") && strings.Contains(s, ",")
	decimalAt := -1
	switch {
	case mixed:
		decimalAt = last
	case strings.Count(s, string(sep)) == 1 && len(s)-last-1 != 3:
		decimalAt = last
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case i == decimalAt:
			b.WriteByte('.')
		case s[i] == '.' || s[i] == ',':
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
