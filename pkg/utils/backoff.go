package utils

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy represents a retry backoff strategy
type BackoffStrategy interface {
	// NextDelay returns the delay for the given attempt number (0-indexed)
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements an exponential backoff strategy
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	Jitter     bool
}

// NewExponentialBackoff creates a new exponential backoff strategy
func NewExponentialBackoff(baseDelay, maxDelay time.Duration, multiplier float64, jitter bool) *ExponentialBackoff {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return &ExponentialBackoff{
		BaseDelay:  baseDelay,
		Multiplier: multiplier,
		MaxDelay:   maxDelay,
		Jitter:     jitter,
	}
}

// NextDelay returns the exponentially increasing delay
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	if eb.Jitter {
		// between 0.5x and 1.5x
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}
