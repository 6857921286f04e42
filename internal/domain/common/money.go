package common

import "github.com/shopspring/decimal"

// ToMinor converts an amount to integer cents, rounding half away from zero.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinor converts integer cents back to a decimal amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
