// Package strategy holds helpers shared by the signal engines.
package strategy

import "math"

// Epsilon is the relative tolerance for price threshold comparisons, so that
// thresholds derived by multiplication (98 * 1.05) still match the exact price.
const Epsilon = 1e-9

// AtMost reports v <= limit within relative tolerance.
func AtMost(v, limit float64) bool {
	return v <= limit+math.Abs(limit)*Epsilon
}

// AtLeast reports v >= limit within relative tolerance.
func AtLeast(v, limit float64) bool {
	return v >= limit-math.Abs(limit)*Epsilon
}

// Below reports v < limit, where values within tolerance of limit count as equal.
func Below(v, limit float64) bool {
	return !AtLeast(v, limit)
}

// Above reports v > limit, where values within tolerance of limit count as equal.
func Above(v, limit float64) bool {
	return !AtMost(v, limit)
}
