// Package core provides the jar catalog, money handling and ledger domain types.
//
// This file contains parsing and formatting of VND amounts. The currency has
// no subunit, so every amount is a whole number of dong.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// MaxAmount caps a single monetary input (one quadrillion dong).
const MaxAmount Money = 1_000_000_000_000_000

// Money is an amount in whole VND.
type Money int64

func (m Money) Validate() error {
	if m <= 0 || m > MaxAmount {
		return ErrInvalidAmount
	}
	return nil
}

// Int64 returns the raw amount.
func (m Money) Int64() int64 {
	return int64(m)
}

// String formats the amount with dot thousands separators, e.g. "5.500.000 ₫".
func (m Money) String() string {
	n := int64(m)
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteString(" ₫")
	return b.String()
}

var multiplierSuffixes = []struct {
	suffix string
	factor int64
}{
	// longer suffixes first so "triệu" wins over "tr"
	{"triệu", 1_000_000},
	{"trieu", 1_000_000},
	{"nghìn", 1_000},
	{"nghin", 1_000},
	{"ngàn", 1_000},
	{"tỷ", 1_000_000_000},
	{"ty", 1_000_000_000},
	{"tr", 1_000_000},
	{"k", 1_000},
}

// ParseAmount converts user input into Money.
//
// Plain numbers may use "." or "," as thousands separators ("10.000.000").
// Shorthand suffixes multiply the number and accept one decimal separator:
//
//	ParseAmount("50k")      -> 50000
//	ParseAmount("2tr")      -> 2000000
//	ParseAmount("2,5 triệu") -> 2500000
//	ParseAmount("50 nghìn") -> 50000
//
// Currency markers (₫, đ, vnd) are ignored. Zero, negative and malformed
// values return ErrInvalidAmount.
func ParseAmount(s string) (Money, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, marker := range []string{"₫", "vnđ", "vnd", "đ"} {
		s = strings.ReplaceAll(s, marker, "")
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}

	for _, m := range multiplierSuffixes {
		if strings.HasSuffix(s, m.suffix) {
			return parseScaled(strings.TrimSuffix(s, m.suffix), m.factor)
		}
	}
	return parseGrouped(s)
}

// parseGrouped accepts digits optionally grouped by "." or "," in blocks of three.
func parseGrouped(s string) (Money, error) {
	groups := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ',' })
	if len(groups) == 0 || strings.Count(s, ".")+strings.Count(s, ",") != len(groups)-1 {
		return 0, ErrInvalidAmount
	}
	for i, g := range groups {
		if !allDigits(g) || (i > 0 && len(g) != 3) {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(strings.Join(groups, ""), 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	m := Money(v)
	if err := m.Validate(); err != nil {
		return 0, err
	}
	return m, nil
}

// parseScaled handles "2.5" style numbers in front of a multiplier suffix,
// rounding half-up to a whole dong.
func parseScaled(s string, factor int64) (Money, error) {
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 || parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	if intPart == "" {
		intPart = "0"
	}
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if !allDigits(intPart) || (fracPart != "" && !allDigits(fracPart)) || len(fracPart) > 9 {
		return 0, ErrInvalidAmount
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || iv > int64(MaxAmount)/factor {
		return 0, ErrInvalidAmount
	}
	total := iv * factor
	if fracPart != "" {
		fv, _ := strconv.ParseInt(fracPart, 10, 64)
		scale := int64(1)
		for range fracPart {
			scale *= 10
		}
		total += (fv*factor + scale/2) / scale
	}
	m := Money(total)
	if err := m.Validate(); err != nil {
		return 0, err
	}
	return m, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
