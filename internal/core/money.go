// Package core provides money parsing and handling utilities.
//
// Amounts are kept as shopspring decimals rounded to two places so dedup keys
// and totals never suffer from binary floating point drift.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied amount to a positive decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two decimal places. Signs, exponents and zero are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = Cents(d)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParsePaidAmount is ParseAmount that also allows zero and an empty string.
func ParsePaidAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := ParseAmount(s)
	if err == nil {
		return d, nil
	}
	if z, zerr := decimal.NewFromString(strings.ReplaceAll(s, ",", ".")); zerr == nil && z.IsZero() {
		return decimal.Zero, nil
	}
	return decimal.Zero, ErrInvalidPaidAmount
}

// Cents rounds d half-up to the two places amounts are stored with.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsCents reports whether d has no more than two decimal places.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// AmountKey is the canonical text of an amount used in dedup keys, so 1000,
// 1000.0 and 1000.00 compare equal.
func AmountKey(d decimal.Decimal) string {
	return d.Round(2).String()
}

// FormatAmount renders d with exactly two decimals for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
