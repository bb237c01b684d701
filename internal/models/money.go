package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Cents is a monetary amount in minor currency units.
type Cents int64

var ErrInvalidAmount = errors.New("amount must be a positive number with at most two decimals")

// String formats the amount with two decimals, e.g. "99.75".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParseAmount parses a decimal amount in major units ("19.99", "100", "5.5")
// into Cents. Only positive values with at most two fractional digits are
// accepted.
func ParseAmount(raw string) (Cents, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && (frac == "" || len(frac) > 2) {
		return 0, ErrInvalidAmount
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, ErrInvalidAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	minor, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if units > (1<<62)/100 {
		return 0, ErrInvalidAmount
	}

	total := units*100 + minor
	if total <= 0 {
		return 0, ErrInvalidAmount
	}
	return Cents(total), nil
}

// strconv.ParseInt accepts a sign, so digits are checked first.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
