package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	numberPattern       = regexp.MustCompile(`\d+\.?\d*`)
	returnAmountPattern = regexp.MustCompile(`amount\s*:?\s*(\d+(?:\.\d{1,2})?)`)
)

// LastNumber returns the last number embedded in s. Shop-till lines put the
// line amount at the end.
func LastNumber(s string) (decimal.Decimal, bool) {
	all := numberPattern.FindAllString(s, -1)
	if len(all) == 0 {
		return decimal.Zero, false
	}
	return parseNumber(all[len(all)-1])
}

// FirstNumber returns the first number embedded in s.
func FirstNumber(s string) (decimal.Decimal, bool) {
	match := numberPattern.FindString(s)
	if match == "" {
		return decimal.Zero, false
	}
	return parseNumber(match)
}

func parseNumber(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSuffix(raw, "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func IsVoid(details string) bool {
	return strings.Contains(strings.ToUpper(details), "VOID")
}

func IsReturn(details string) bool {
	lower := strings.ToLower(details)
	return strings.Contains(lower, "return") || strings.Contains(lower, "refund")
}

// ReturnAmount is the amount of a return/refund line: the first number in the
// text. Lines without the keyword, or without a number, are worth zero.
func ReturnAmount(details string) decimal.Decimal {
	if !IsReturn(details) {
		return decimal.Zero
	}
	amount, ok := FirstNumber(details)
	if !ok || amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// SlipReturnAmount reads an "amount: X" marker from a return slip line.
// Spaces are ignored so "AMOUNT : 12.50" and "amount12.50" both match.
func SlipReturnAmount(details string) decimal.Decimal {
	compact := strings.ReplaceAll(strings.ToLower(details), " ", "")
	if !strings.Contains(compact, "return") && !strings.Contains(compact, "refund") {
		return decimal.Zero
	}
	m := returnAmountPattern.FindStringSubmatch(compact)
	if m == nil {
		return decimal.Zero
	}
	amount, ok := parseNumber(m[1])
	if !ok {
		return decimal.Zero
	}
	return amount
}
