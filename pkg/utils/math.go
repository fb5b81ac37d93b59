package utils

import "math"

// Round rounds a float64 to the specified number of decimal places.
// Infinities and NaN are returned unchanged.
func Round(value float64, decimals int) float64 {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return value
	}
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(value*multiplier) / multiplier
}
