// Package objective turns performance metrics into the scalar a search ranks by.
package objective

import (
	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
)

// Objective evaluates a candidate's metrics and returns a score.
// Higher scores are better.
type Objective interface {
	// Evaluate computes the score from the metrics of one evaluation.
	Evaluate(metrics models.Metrics) (float64, error)

	// Name returns the name of the objective.
	Name() string
}

// New creates an objective from a test type
func New(testType models.TestType) (Objective, error) {
	switch testType {
	case models.TestPerVolume, "":
		return PerVolume{}, nil
	case models.TestPerCost:
		return PerCost{}, nil
	default:
		return nil, &UnknownObjectiveError{TestType: string(testType)}
	}
}

// PerVolume ranks by DPS per unit of volume
type PerVolume struct{}

func (PerVolume) Name() string { return string(models.TestPerVolume) }

func (PerVolume) Evaluate(m models.Metrics) (float64, error) {
	if m.Volume <= 0 {
		return 0, &InvalidMetricsError{Reason: "volume must be positive"}
	}
	return m.DPSPerVolume, nil
}

// PerCost ranks by DPS per unit of cost
type PerCost struct{}

func (PerCost) Name() string { return string(models.TestPerCost) }

func (PerCost) Evaluate(m models.Metrics) (float64, error) {
	if m.Cost <= 0 {
		return 0, &InvalidMetricsError{Reason: "cost must be positive"}
	}
	return m.DPSPerCost, nil
}

// UnknownObjectiveError is returned when a test type has no objective
type UnknownObjectiveError struct {
	TestType string
}

func (e *UnknownObjectiveError) Error() string {
	return "unknown test type: " + e.TestType
}

// InvalidMetricsError is returned when metrics cannot be scored
type InvalidMetricsError struct {
	Reason string
}

func (e *InvalidMetricsError) Error() string {
	return "invalid metrics: " + e.Reason
}
