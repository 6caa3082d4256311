// Package money provides shared USD parsing and formatting utilities.
//
// Amounts are stored as int64 cents (1 USD = 100 cents). Wallet balances
// may run negative while funds sit on hold, so Parse accepts a leading
// minus sign; use ParsePositive for request inputs.
package money

import (
	"math"
	"strconv"
	"strings"
)

const Decimals = 2

// Parse converts a decimal string (e.g. "1.50") to cents (150).
// Returns (0, false) on invalid input.
//
// Rules:
//   - Empty string returns (0, true)
//   - A single leading minus sign is allowed
//   - Multiple decimal points are rejected
//   - Fractional parts are padded/truncated to 2 decimal places
func Parse(s string) (int64, bool) {
	if s == "" {
		return 0, true
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
		if s == "" {
			return 0, false
		}
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, false
	}
	whole := parts[0]
	frac := ""
	if len(parts) > 1 {
		frac = parts[1]
	}

	// Pad or trim to 2 decimals
	for len(frac) < Decimals {
		frac += "0"
	}
	frac = frac[:Decimals]

	combined := whole + frac
	cents, err := strconv.ParseInt(combined, 10, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		cents = -cents
	}
	return cents, true
}

// ParsePositive converts a decimal string to cents, rejecting zero and
// negative amounts. Used to validate caller-supplied amounts.
func ParsePositive(s string) (int64, bool) {
	cents, ok := Parse(s)
	if !ok || cents <= 0 {
		return 0, false
	}
	return cents, true
}

// Format converts cents to a human-readable decimal string with exactly
// 2 decimal places (e.g. "1.50").
func Format(cents int64) string {
	neg := cents < 0
	abs := cents
	if neg {
		abs = -abs
	}
	s := strconv.FormatInt(abs, 10)
	for len(s) < Decimals+1 {
		s = "0" + s
	}
	decimal := len(s) - Decimals
	result := s[:decimal] + "." + s[decimal:]
	if neg {
		result = "-" + result
	}
	return result
}

// Percent returns amount*pct/100 rounded to the nearest cent.
// Commission math: Percent(8000, 0.5) = 40 cents on an 80.00 price.
func Percent(cents int64, pct float64) int64 {
	return int64(math.Round(float64(cents) * pct / 100))
}
