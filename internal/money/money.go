// Package money parses and formats the whole-dollar amounts used on
// remittance lines.
package money

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// ParseInput reads an amount typed by the operator. It accepts an optional
// sign followed by digits and ignores anything after the digits, so "12.7"
// reads as 12. Blank, non-numeric, negative or out-of-range input yields 0.
func ParseInput(raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	neg := false
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		neg = true
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || neg {
		return 0
	}
	return n
}

// Coerce converts a stored JSON value to a whole amount. Numbers and numeric
// strings are truncated toward zero ("150.7" becomes 150); anything else,
// including values outside the int64 range, is 0.
func Coerce(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}

	var text string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(raw)
	default:
		return 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0
	}
	if d.GreaterThan(maxAmount) || d.LessThan(minAmount) {
		return 0
	}
	return d.IntPart()
}

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)

// Format renders an amount with thousands separators, e.g. 1234567 as
// "1,234,567".
func Format(n int64) string {
	return printer.Sprintf("%d", n)
}
