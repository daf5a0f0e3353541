package models

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an exact amount in cents. JSON encodes it as a decimal number with two
// fraction digits.
type Money int64

// ErrInvalidMoney is returned for amounts that are not plain decimals with at most two
// fraction digits.
var ErrInvalidMoney = errors.New("invalid money amount")

// Cents constructs a Money value from an integer number of cents.
func Cents(c int64) Money { return Money(c) }

// Cents returns the amount in cents.
func (m Money) Cents() int64 { return int64(m) }

// String renders the amount as "1234.50" or "-0.25".
func (m Money) String() string {
	sign := ""
	c := int64(m)
	if c < 0 {
		sign = "-"
		if c == math.MinInt64 {
			return "-92233720368547758.08"
		}
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := string(bytes.TrimSpace(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMoney parses a decimal amount without going through floating point.
func ParseMoney(raw string) (Money, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidMoney
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, ErrInvalidMoney
	}
	if len(frac) > 2 {
		// 500.000 is accepted as 500.00.
		if strings.Trim(frac[2:], "0") != "" {
			return 0, fmt.Errorf("%w: more than two decimal places", ErrInvalidMoney)
		}
		frac = frac[:2]
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, ErrInvalidMoney
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > math.MaxInt64/100-1 {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidMoney)
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)

	total := units*100 + cents
	if negative {
		total = -total
	}
	return Money(total), nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
