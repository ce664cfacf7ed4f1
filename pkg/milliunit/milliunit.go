// Package milliunit converts amounts to and from the ledger's fixed-point
// wire format: the amount multiplied by 1000, rendered as a digit string.
//
// See https://api.youneedabudget.com/#formats
package milliunit

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// fractionDigits is the number of digits after the implied decimal point.
	fractionDigits = 3
	// minIntegerDigits is the zero-padded width of the whole part.
	minIntegerDigits = 3
)

// Encode renders amount in milliunits. 12.5 becomes "012500" and -3.4
// becomes "-003400".
func Encode(amount decimal.Decimal) string {
	rounded := amount.Round(fractionDigits)

	fixed := rounded.Abs().StringFixed(fractionDigits)
	whole, frac, _ := strings.Cut(fixed, ".")
	if pad := minIntegerDigits - len(whole); pad > 0 {
		whole = strings.Repeat("0", pad) + whole
	}

	if rounded.IsNegative() {
		return "-" + whole + frac
	}
	return whole + frac
}

// Decode parses a milliunit string produced by Encode.
func Decode(s string) (decimal.Decimal, error) {
	digits := strings.TrimPrefix(s, "-")
	if len(digits) <= fractionDigits {
		return decimal.Zero, fmt.Errorf("milliunit %q: too short", s)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return decimal.Zero, fmt.Errorf("milliunit %q: invalid digit %q", s, r)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing milliunit %q: %w", s, err)
	}
	return d.Shift(-fractionDigits), nil
}
