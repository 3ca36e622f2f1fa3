package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe = regexp.MustCompile(`[\d,]+\.?\d*`)
	dateRe   = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
)

// parseNumber parses the first run of digits (commas tolerated as thousands
// separators) out of s. Returns nil when s contains no usable number.
func parseNumber(s string) *float64 {
	m := numberRe.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseAmountCrore parses a rupee amount and normalises it to crore units.
// When the surrounding text mentions lakh the value is divided by 100
// (1 crore = 100 lakh).
func parseAmountCrore(s string) *float64 {
	v := parseNumber(s)
	if v == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(s), "lakh") {
		cr := *v / 100
		return &cr
	}
	return v
}

// findDateNear searches a window of ±window bytes around [start, end) in
// text for a D/M/YY or D/M/YYYY date. Used when a NAV match carries no
// inline date.
func findDateNear(text string, start, end, window int) string {
	lo := start - window
	if lo < 0 {
		lo = 0
	}
	hi := end + window
	if hi > len(text) {
		hi = len(text)
	}
	return dateRe.FindString(text[lo:hi])
}
