package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts is tried in order. The exports produce ISO 8601, DD/MM/YYYY,
// DD-MM-YYYY, DD.MM.YYYY, MM/DD/YYYY and YYYY/MM/DD; dotted dates are
// rewritten to slashes before matching, so DD.MM.YYYY degrades to the
// DD/MM/YYYY layout. Day-first wins over month-first for ambiguous dates.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"01/02/2006",
	"2006/01/02",
}

var (
	spaceRun     = regexp.MustCompile(`\s{2,}`)
	trailingYear = regexp.MustCompile(`(\d{4})\s*$`)
)

// ParseCurrency parses a currency-formatted value. When a comma is present,
// dots are thousands separators and are stripped before the comma becomes
// the decimal point: "1.234,56" -> 1234.56. Bare numerics pass through
// unchanged. Unparseable values yield zero, never an error, so one bad cell
// cannot abort a batch.
func ParseCurrency(value string) decimal.Decimal {
	s := strings.TrimSpace(value)
	if s == "" {
		return decimal.Zero
	}

	// Strip grouping whitespace, including the non-breaking spaces that
	// spreadsheet exports like to emit.
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatCurrency renders an amount in the source systems' locale: dot
// thousands separators, comma decimal point, two decimal places. It is the
// inverse of ParseCurrency for two-decimal values.
func FormatCurrency(amount decimal.Decimal) string {
	s := amount.StringFixed(2)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.SplitN(s, ".", 2)
	intPart, fracPart := parts[0], parts[1]

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := strings.Join(groups, ".") + "," + fracPart
	if negative {
		out = "-" + out
	}
	return out
}

// ParseDate parses a date from the formats the source systems produce.
// Dots are rewritten to slashes first, so "20.02.2024" degrades to
// "20/02/2024" before layout matching. Unparseable dates yield nil; a nil
// date means "insufficient information", never "today".
func ParseDate(value string) *time.Time {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}

	s = strings.ReplaceAll(s, ".", "/")

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// CleanOrganizationName strips the formatting drift between the two source
// systems' organization names: the "DOT_" prefix is dropped, underscores and
// en-dashes become spaces, and doubled spaces collapse. "DOT_Alger_Centre"
// and "Alger Centre" clean to the same value.
func CleanOrganizationName(name string) string {
	s := strings.ReplaceAll(name, "DOT_", "")
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "–", " ")
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// BillingPeriodYear extracts the trailing 4-digit year from a free-text
// billing period like "Janvier 2022". Returns false when the text does not
// end in a year.
func BillingPeriodYear(period string) (int, bool) {
	m := trailingYear.FindStringSubmatch(strings.TrimSpace(period))
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}
