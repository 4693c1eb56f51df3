package utils

import "math"

// ToMinorUnits converts a decimal amount to integer minor units (e.g.
// 125.50 -> 12550). Gateways report paid amounts in minor units; webhook
// amount checks compare in this representation to avoid float drift.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// MinorUnitsDiff returns the absolute difference between two amounts in
// minor units.
func MinorUnitsDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
