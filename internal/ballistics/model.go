// Package ballistics defines the performance model the search engine consumes and
// ships a reference implementation of it.
package ballistics

import (
	"math"

	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
)

// Target is the context damage is computed against.
type Target struct {
	AC             float64
	ImpactAngleDeg float64
}

// BoundsQuery carries the limits StaticBounds needs to derive inaccuracy bounds.
// BarrelLengthMM of 0 means the barrel is unlimited.
type BoundsQuery struct {
	BarrelLengthMM float64
	MaxInaccuracy  float64
}

// StaticBounds are the draw-independent figures of a configuration.
type StaticBounds struct {
	TotalLength      float64
	ProjectileLength float64
	GPRecoil         float64
	MaxDraw          float64
	// MaxProjectileLength is the longest projectile the barrel keeps within the
	// desired inaccuracy. +Inf when the barrel is unlimited.
	MaxProjectileLength float64
	// InaccuracyDrawCap is the highest draw the barrel keeps within the desired
	// inaccuracy without recoil absorbers. +Inf when the barrel is unlimited.
	InaccuracyDrawCap float64
}

// Model converts configurations into performance figures. Implementations must be
// pure: the driver calls them concurrently from several workers.
type Model interface {
	StaticBounds(cfg models.Configuration, q BoundsQuery) (StaticBounds, error)
	MinDraw(cfg models.Configuration, minVelocity, minRange float64) (float64, error)
	Evaluate(cfg models.Configuration, draw float64, dt models.DamageType, target Target) (models.Metrics, error)
}

// GaugeMultiplier is (gauge / 500mm)^1.8, the scale factor most figures use.
func GaugeMultiplier(gaugeMM float64) float64 {
	return math.Pow(gaugeMM/500, 1.8)
}
