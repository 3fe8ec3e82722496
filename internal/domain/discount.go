package domain

import (
	"math"
)

// ApplyPercentDiscount computes the discounted price for a percentage
// discount using integer arithmetic with half-up rounding on the minor unit.
// The percentage is clamped to [0, 100] defensively even though upstream
// validation already bounds it.
//
// This is the single discount calculation in the engine: rule application
// and promo-code pricing both go through it so identical inputs always
// produce identical prices.
func ApplyPercentDiscount(base int64, percent int) int64 {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return (base*int64(100-percent) + 50) / 100
}

// ApplyFactor scales a base price by a multiplicative factor with half-up
// rounding, used for catalog markups. Factors below 1.0 are clamped to 1.0:
// a markup never lowers a price.
func ApplyFactor(base int64, factor float64) int64 {
	if factor < 1.0 {
		factor = 1.0
	}
	return int64(math.Floor(float64(base)*factor + 0.5))
}
