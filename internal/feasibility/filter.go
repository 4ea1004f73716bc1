// Package feasibility rejects configurations before any tuning work is spent on
// them.
package feasibility

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/shell-search/internal/ballistics"
	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
	"github.com/GoSim-25-26J-441/shell-search/pkg/utils"
)

// Reason names why a configuration was rejected. The empty Reason means the
// configuration is feasible.
type Reason string

const (
	Feasible            Reason = ""
	ReasonLength        Reason = "length"
	ReasonBarrelLength  Reason = "barrel_length"
	ReasonEmptyInterval Reason = "empty_interval"
	ReasonDisruptor     Reason = "disruptor"
)

// Reasons lists every rejection reason.
var Reasons = []Reason{ReasonLength, ReasonBarrelLength, ReasonEmptyInterval, ReasonDisruptor}

// Limits are the user's feasibility limits. Maxima of 0 are unlimited.
type Limits struct {
	MinLengthMM       float64
	MaxLengthMM       float64
	MaxDraw           float64
	MaxRecoil         float64
	MinVelocity       float64
	MinEffectiveRange float64
	// BarrelLengthMM of 0 disables the barrel length check.
	BarrelLengthMM  float64
	MaxInaccuracy   float64
	RecoilAbsorbers bool
	MinDisruptor    float64
	DamageType      models.DamageType
	Target          ballistics.Target
}

// Window is the admissible draw interval of a feasible configuration together
// with its static figures.
type Window struct {
	MinDraw float64
	MaxDraw float64
	Bounds  ballistics.StaticBounds
}

// Filter applies Limits through two cheap model calls per configuration.
type Filter struct {
	model  ballistics.Model
	limits Limits
	query  ballistics.BoundsQuery
}

// NewFilter creates a filter over model.
func NewFilter(model ballistics.Model, limits Limits) *Filter {
	return &Filter{
		model:  model,
		limits: limits,
		query: ballistics.BoundsQuery{
			BarrelLengthMM: limits.BarrelLengthMM,
			MaxInaccuracy:  limits.MaxInaccuracy,
		},
	}
}

// Limits returns the filter's limits.
func (f *Filter) Limits() Limits { return f.limits }

// Check computes the draw window of cfg. Length is exclusive at the minimum and
// inclusive at the maximum. A non-empty Reason means cfg is infeasible; the error
// is reserved for model failures.
func (f *Filter) Check(cfg models.Configuration) (Window, Reason, error) {
	b, err := f.model.StaticBounds(cfg, f.query)
	if err != nil {
		return Window{}, Feasible, fmt.Errorf("static bounds: %w", err)
	}
	if name, v := invalidBounds(b); name != "" {
		return Window{}, Feasible, &ContractViolationError{Quantity: name, Value: v}
	}

	l := f.limits
	if b.TotalLength <= l.MinLengthMM {
		return Window{}, ReasonLength, nil
	}
	if l.MaxLengthMM > 0 && b.TotalLength > l.MaxLengthMM {
		return Window{}, ReasonLength, nil
	}
	if l.BarrelLengthMM > 0 && b.ProjectileLength > b.MaxProjectileLength {
		return Window{}, ReasonBarrelLength, nil
	}

	minDraw, err := f.model.MinDraw(cfg, l.MinVelocity, l.MinEffectiveRange)
	if err != nil {
		return Window{}, Feasible, fmt.Errorf("min draw: %w", err)
	}
	if math.IsNaN(minDraw) || math.IsInf(minDraw, 0) {
		return Window{}, Feasible, &ContractViolationError{Quantity: "min_draw", Value: minDraw}
	}

	caps := []float64{b.MaxDraw}
	if l.MaxDraw > 0 {
		caps = append(caps, l.MaxDraw)
	}
	if l.MaxRecoil > 0 {
		caps = append(caps, l.MaxRecoil-b.GPRecoil)
	}
	if l.BarrelLengthMM > 0 && !l.RecoilAbsorbers {
		caps = append(caps, b.InaccuracyDrawCap)
	}
	maxDraw := utils.MinFloat64(caps...)
	if minDraw > maxDraw {
		return Window{}, ReasonEmptyInterval, nil
	}
	return Window{MinDraw: minDraw, MaxDraw: maxDraw, Bounds: b}, Feasible, nil
}

// CheckDisruptor applies the minimum shield reduction gate at the given draw,
// whatever damage type the search optimizes.
func (f *Filter) CheckDisruptor(cfg models.Configuration, draw float64) (Reason, error) {
	l := f.limits
	if l.MinDisruptor <= 0 {
		return Feasible, nil
	}
	m, err := f.model.Evaluate(cfg, draw, models.DamageDisruptor, l.Target)
	if err != nil {
		return Feasible, fmt.Errorf("evaluate disruptor: %w", err)
	}
	if m.Damage[models.DamageDisruptor] < l.MinDisruptor {
		return ReasonDisruptor, nil
	}
	return Feasible, nil
}

// ContractViolationError reports a static figure the filter cannot compare.
type ContractViolationError struct {
	Quantity string
	Value    float64
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("performance model returned %v for %s", e.Value, e.Quantity)
}

func invalidBounds(b ballistics.StaticBounds) (string, float64) {
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"total_length", b.TotalLength},
		{"projectile_length", b.ProjectileLength},
		{"gp_recoil", b.GPRecoil},
		{"max_draw", b.MaxDraw},
	} {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) || c.v < 0 {
			return c.name, c.v
		}
	}
	if math.IsNaN(b.MaxProjectileLength) || math.IsNaN(b.InaccuracyDrawCap) {
		return "inaccuracy_bounds", math.NaN()
	}
	return "", 0
}
