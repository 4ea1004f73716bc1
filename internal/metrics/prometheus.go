package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	configurationsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shellsearch_configurations_generated_total",
		Help: "Configurations produced by the generator",
	})

	configurationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shellsearch_configurations_rejected_total",
		Help: "Configurations rejected before tuning, by reason",
	}, []string{"reason"})

	optimizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shellsearch_optimizations_total",
		Help: "Draw optimizations run, by variant",
	}, []string{"variant"})

	modelEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shellsearch_model_evaluations_total",
		Help: "Performance model evaluations made by the optimizer",
	})

	leaderboardPromotions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shellsearch_leaderboard_promotions_total",
		Help: "Times a candidate became a category holder in a worker leaderboard",
	}, []string{"category"})

	// RunDuration observes wall time of finished runs.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shellsearch_run_duration_seconds",
		Help:    "Wall time of search runs",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	// RunsTotal counts runs by terminal status.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shellsearch_runs_total",
		Help: "Search runs by terminal status",
	}, []string{"status"})
)

// Publish adds the collector's counts to the process-wide Prometheus counters.
// Workers publish once per partition so the hot loop stays free of atomics.
func (c *Collector) Publish() {
	configurationsGenerated.Add(float64(c.Generated))
	for reason, n := range c.Rejected {
		configurationsRejected.WithLabelValues(reason).Add(float64(n))
	}
	for variant, n := range c.Optimized {
		optimizations.WithLabelValues(variant).Add(float64(n))
	}
	modelEvaluations.Add(float64(c.ModelEvaluations))
	for category, n := range c.Promotions {
		leaderboardPromotions.WithLabelValues(category).Add(float64(n))
	}
}
