// Package money provides exact decimal helpers for currency amounts.
package money

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits kept on stored amounts.
const Scale int32 = 2

// QuantityScale is the number of fraction digits kept on quantities and meter indexes.
const QuantityScale int32 = 4

// FactorScale is the number of fraction digits kept on proration factors.
// Prorated lines store the factor as their quantity, so it has to be fine
// enough that round(factor * price) lands on the pro rata cent.
const FactorScale int32 = 10

var Zero = decimal.Zero

// Round rounds half away from zero to the currency scale. For the non-negative
// amounts produced by billing this is round-half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// InScale reports whether d has no digits beyond the currency scale.
func InScale(d decimal.Decimal) bool {
	return d.Equal(Round(d))
}

// RoundQuantity rounds a quantity to QuantityScale fraction digits.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityScale)
}

// Extend returns round(quantity * unitPrice).
func Extend(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return Round(quantity.Mul(unitPrice))
}

// Factor returns numerator/denominator rounded to FactorScale. Periods at or
// beyond the full length give 1.
func Factor(numerator, denominator int64) decimal.Decimal {
	if denominator <= 0 || numerator >= denominator {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(numerator).Div(decimal.NewFromInt(denominator)).Round(FactorScale)
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total
}

func IsPositive(d decimal.Decimal) bool { return d.Sign() > 0 }

func IsNegative(d decimal.Decimal) bool { return d.Sign() < 0 }

// MustParse parses a decimal literal and panics on malformed input. Intended for
// constants and tests.
func MustParse(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
