package entity

import "github.com/shopspring/decimal"

// WithinTolerance reports whether |a-b| <= tolerance
func WithinTolerance(a, b, tolerance float64) bool {
	diff := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(tolerance))
}

// ExceedsLimit reports whether actual > limit + tolerance
func ExceedsLimit(actual, limit, tolerance float64) bool {
	ceiling := decimal.NewFromFloat(limit).Add(decimal.NewFromFloat(tolerance))
	return decimal.NewFromFloat(actual).GreaterThan(ceiling)
}

// SumAmounts adds amounts without binary float drift
func SumAmounts(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Float64()
	return f
}

// RoundAmount rounds to two decimal places
func RoundAmount(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
