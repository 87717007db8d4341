// Package core provides the ledger domain types and money handling.
//
// Amounts are carried as decimal.Decimal so that sums over many small
// currency values never drift. Persistence uses integer cents.
package core

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MaxAmount is the largest amount whose cents fit in an int64.
var MaxAmount = FromCents(math.MaxInt64)

// ParseAmount converts a user-supplied decimal string to a positive amount
// rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Signs, exponents, grouping separators
// zero amounts and amounts above MaxAmount are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35
//	ParseAmount("12.344") -> 12.34
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() || d.GreaterThan(MaxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FromCents converts integer cents to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents converts an amount to integer cents, rounding half away from zero.
// Amounts whose cents overflow an int64 yield ErrInvalidAmount.
func ToCents(d decimal.Decimal) (int64, error) {
	cents := d.Mul(hundred).Round(0)
	if !cents.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// FormatAmount renders an amount with exactly two decimals for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
