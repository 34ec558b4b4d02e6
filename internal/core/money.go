// Package core holds the tally domain model and the pure aggregation
// functions over it. Nothing in this package performs I/O or reads the
// system clock; reference dates are always explicit parameters.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Money is a currency amount in whole cents. Calculations stay in cents
// to avoid floating-point drift; floats only appear at the scan boundary.
type Money struct {
	Cents int64
}

// Validate rejects non-positive amounts. Refunds (negative expenses) are
// deliberately out of contract: an expense must cost something.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// String renders the amount as a plain decimal ("12.34"), sign included.
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + pad2(cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// MarshalJSON encodes Money as a bare integer of cents.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(m.Cents, 10)), nil
}

// UnmarshalJSON accepts a bare integer of cents.
func (m *Money) UnmarshalJSON(data []byte) error {
	cents, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return ErrInvalidAmount
	}
	m.Cents = cents
	return nil
}

// ParseCents converts a decimal string to cents with half-up rounding on
// the third decimal place. Both dot (12.34) and comma (12,34) separators
// are accepted. Zero and negative amounts are rejected.
//
// Examples:
//
//	ParseCents("12.34") -> 1234, nil
//	ParseCents("12,34") -> 1234, nil
//	ParseCents("12.346") -> 1235, nil (rounds up)
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// CentsFromFloat converts a decimal currency value (as delivered by the
// scan service) to cents with half-up rounding.
func CentsFromFloat(f float64) int64 {
	return int64(math.Round(f * 100))
}
