package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Money is an amount in integer cents. All arithmetic inside the engine is done
// on Money so sums never drift; decimal is only used at the boundary.
type Money int64

// CentsPerUnit is the fixed two-digit precision of every amount.
const CentsPerUnit = 100

// MoneyFromDecimal rounds d to cents. Callers must bound d first; values
// outside the int64 cent range saturate.
func MoneyFromDecimal(d decimal.Decimal) Money {
	cents := d.Round(2).Shift(2)
	if cents.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return Money(math.MaxInt64)
	}
	if cents.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return Money(math.MinInt64)
	}
	return Money(cents.IntPart())
}

// MoneyFromCents is a readability helper for literals in cents.
func MoneyFromCents(cents int64) Money {
	return Money(cents)
}

// Decimal converts to a two-place decimal for display and transport.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Cents returns the raw cent count.
func (m Money) Cents() int64 {
	return int64(m)
}

// String renders the amount with exactly two fractional digits, e.g. "-50.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
