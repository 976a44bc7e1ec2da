package core

// convert.go turns raw spreadsheet cells into typed product values.
//
// Supplier files are messy: prices carry currency marks, thousands separators
// and decimal commas; stock is sometimes written as "5.0"; tags use any mix of
// commas, semicolons and spaces. Parsers here never fail the row. They return
// the field default and ok=false, and the pipeline counts the row as degraded.

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var maxStockDecimal = decimal.NewFromInt(MaxStock)

var tagSeparator = regexp.MustCompile(`[;,\s]+`)

// currencyMarks are stripped from price cells before parsing.
var currencyMarks = []string{"₽", "$", "€", "£", "грн", "руб.", "руб", "rub", "usd", "eur"}

// cleanNumeric removes spreadsheet artifacts that wrap numbers: surrounding
// whitespace, an Excel formula prefix (="...") and surrounding quotes.
// Text fields keep their quotes and only have whitespace trimmed.
func cleanNumeric(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// ParsePrice converts a price cell to a non-negative decimal.
// Empty cells yield zero with ok=true; unparsable, negative or unstorably
// large values yield zero with ok=false.
func ParsePrice(s string) (decimal.Decimal, bool) {
	s = cleanNumeric(s)
	if s == "" {
		return decimal.Zero, true
	}

	s = strings.ToLower(s)
	for _, mark := range currencyMarks {
		s = strings.ReplaceAll(s, mark, "")
	}
	s = stripSpaces(s)

	// Accounting negative "(123.45)"
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}

	// A lone comma is a decimal separator ("12,50"); otherwise commas group thousands.
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !PriceInRange(d) {
		return decimal.Zero, false
	}
	return d, true
}

// ParseStock converts a stock cell to an integer in [0, MaxStock].
// Fractional quantities are truncated. Empty cells yield zero with ok=true.
func ParseStock(s string) (int, bool) {
	s = stripSpaces(cleanNumeric(s))
	if s == "" {
		return 0, true
	}

	if n, err := strconv.Atoi(s); err == nil {
		if !StockInRange(n) {
			return 0, false
		}
		return n, true
	}

	s = strings.Replace(s, ",", ".", 1)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() || d.Truncate(0).GreaterThan(maxStockDecimal) {
		return 0, false
	}
	return int(d.IntPart()), true
}

// SplitTags splits a tag cell on commas, semicolons and whitespace runs.
// Order and duplicates are preserved.
func SplitTags(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	parts := tagSeparator.Split(s, -1)
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// stripSpaces drops all whitespace, including the no-break spaces used as
// thousands separators by spreadsheet exports.
func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\u00a0', '\u202f', '\u2009':
			return -1
		}
		return r
	}, s)
}
