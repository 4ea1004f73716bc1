// Package metrics counts search work per worker and exports it to Prometheus.
package metrics

import (
	"maps"
	"slices"
	"time"
)

// Collector accumulates one worker's counters. It is not safe for concurrent use;
// partitions each own one and the driver merges them after the join.
type Collector struct {
	Generated        uint64
	Feasible         uint64
	ModelEvaluations uint64
	Rejected         map[string]uint64
	Promotions       map[string]uint64

	// Optimized counts optimizations by variant ("regular", "belt").
	Optimized map[string]uint64

	// evaluations per optimization -> occurrences
	evalHistogram map[int]uint64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		Rejected:      make(map[string]uint64),
		Optimized:     make(map[string]uint64),
		Promotions:    make(map[string]uint64),
		evalHistogram: make(map[int]uint64),
	}
}

// RecordGenerated counts one generated configuration.
func (c *Collector) RecordGenerated() { c.Generated++ }

// RecordFeasible counts one configuration that passed the filter.
func (c *Collector) RecordFeasible() { c.Feasible++ }

// RecordRejected counts one rejection.
func (c *Collector) RecordRejected(reason string) { c.Rejected[reason]++ }

// RecordOptimization counts one optimizer call and the model evaluations it made.
func (c *Collector) RecordOptimization(variant string, evaluations int) {
	c.Optimized[variant]++
	c.ModelEvaluations += uint64(evaluations)
	c.evalHistogram[evaluations]++
}

// RecordPromotion counts a leaderboard holder change.
func (c *Collector) RecordPromotion(category string) { c.Promotions[category]++ }

// Merge adds other's counts into c.
func (c *Collector) Merge(other *Collector) {
	c.Generated += other.Generated
	c.Feasible += other.Feasible
	c.ModelEvaluations += other.ModelEvaluations
	for k, v := range other.Rejected {
		c.Rejected[k] += v
	}
	for k, v := range other.Optimized {
		c.Optimized[k] += v
	}
	for k, v := range other.Promotions {
		c.Promotions[k] += v
	}
	for k, v := range other.evalHistogram {
		c.evalHistogram[k] += v
	}
}

// Aggregation summarises a distribution.
type Aggregation struct {
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Summary is the JSON form of a run's counters.
type Summary struct {
	Generated        uint64            `json:"generated"`
	Feasible         uint64            `json:"feasible"`
	Rejected         map[string]uint64 `json:"rejected"`
	Optimized        map[string]uint64 `json:"optimized"`
	ModelEvaluations uint64            `json:"model_evaluations"`
	Promotions       map[string]uint64 `json:"promotions,omitempty"`
	Duration         time.Duration     `json:"duration_ns"`

	// EvaluationsPerOptimization is nil when nothing was optimized.
	EvaluationsPerOptimization *Aggregation `json:"evaluations_per_optimization,omitempty"`
}

// Summary snapshots the counters.
func (c *Collector) Summary(elapsed time.Duration) Summary {
	return Summary{
		Generated:                  c.Generated,
		Feasible:                   c.Feasible,
		Rejected:                   maps.Clone(c.Rejected),
		Optimized:                  maps.Clone(c.Optimized),
		ModelEvaluations:           c.ModelEvaluations,
		Promotions:                 maps.Clone(c.Promotions),
		Duration:                   elapsed,
		EvaluationsPerOptimization: calculateAggregation(c.evalHistogram),
	}
}

// calculateAggregation calculates aggregated statistics from a histogram of
// integer values
func calculateAggregation(hist map[int]uint64) *Aggregation {
	if len(hist) == 0 {
		return nil
	}
	values := slices.Sorted(maps.Keys(hist))

	agg := &Aggregation{
		Min: float64(values[0]),
		Max: float64(values[len(values)-1]),
	}
	for _, v := range values {
		agg.Count += hist[v]
		agg.Sum += float64(v) * float64(hist[v])
	}
	agg.Mean = agg.Sum / float64(agg.Count)
	agg.P50 = calculatePercentile(values, hist, agg.Count, 0.50)
	agg.P95 = calculatePercentile(values, hist, agg.Count, 0.95)
	agg.P99 = calculatePercentile(values, hist, agg.Count, 0.99)
	return agg
}

// calculatePercentile returns the nearest-rank percentile from sorted histogram
// keys.
func calculatePercentile(sortedValues []int, hist map[int]uint64, count uint64, p float64) float64 {
	rank := uint64(p*float64(count-1)) + 1
	var seen uint64
	for _, v := range sortedValues {
		seen += hist[v]
		if seen >= rank {
			return float64(v)
		}
	}
	return float64(sortedValues[len(sortedValues)-1])
}
