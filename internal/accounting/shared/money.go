package shared

import "math"

// BalanceTolerance is the maximum debit/credit drift accepted on a balanced
// entry or trial balance, in currency units.
const BalanceTolerance = 0.01

// Round2 rounds a monetary value to 2 decimals.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// Monetary multiplies a quantity by a unit cost and rounds to 2 decimals.
func Monetary(qty, unitCost float64) float64 {
	return Round2(qty * unitCost)
}

// Balanced reports whether totals agree within BalanceTolerance.
func Balanced(debits, credits float64) bool {
	return math.Abs(debits-credits) <= BalanceTolerance
}
