package utils

import "math"

// MinFloat64 returns the smallest of the given values, or +Inf with none.
func MinFloat64(values ...float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		if v < m {
			m = v
		}
	}
	return m
}

// ClampFloat64 clamps value to [min, max]
func ClampFloat64(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Binomial returns C(n, k), saturating at math.MaxUint64.
func Binomial(n, k int) uint64 {
	if k < 0 || n < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := uint64(1)
	for i := 1; i <= k; i++ {
		// result * (n-k+i) / i stays integral at every step
		hi := uint64(n - k + i)
		if result > math.MaxUint64/hi {
			return math.MaxUint64
		}
		result = result * hi / uint64(i)
	}
	return result
}
