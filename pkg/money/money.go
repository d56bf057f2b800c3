// Package money converts between wire decimal strings and integer minor units.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of fractional digits carried by a minor unit (cents).
const MinorUnitExponent = 2

var (
	ErrMalformed     = errors.New("amount must be a decimal string such as \"50.00\"")
	ErrTooPrecise    = errors.New("amount must have at most two fractional digits")
	ErrOutOfRange    = errors.New("amount is out of range")
	maxMinorUnits    = decimal.New(1, 15) // ten trillion major units is far beyond any limit
	minorUnitsFactor = decimal.New(1, MinorUnitExponent)
)

// ParseMinor parses a decimal string ("50", "50.5", "50.00") into minor units.
func ParseMinor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMalformed
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrMalformed
	}
	if d.Exponent() < -MinorUnitExponent {
		return 0, ErrTooPrecise
	}
	minor := d.Mul(minorUnitsFactor)
	if minor.Abs().GreaterThan(maxMinorUnits) {
		return 0, ErrOutOfRange
	}
	return minor.IntPart(), nil
}

// FormatMinor renders minor units as a fixed two-digit decimal string.
func FormatMinor(minor int64) string {
	return decimal.New(minor, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}

// FormatWithCurrency renders minor units for human-facing messages, e.g. "$10.00".
func FormatWithCurrency(minor int64, currency string) string {
	if strings.EqualFold(currency, "USD") {
		return "$" + FormatMinor(minor)
	}
	return fmt.Sprintf("%s %s", FormatMinor(minor), strings.ToUpper(currency))
}
