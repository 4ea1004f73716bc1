package models

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// DamageType selects which damage figure a search optimizes.
type DamageType string

const (
	DamageKinetic         DamageType = "kinetic"
	DamageEMP             DamageType = "emp"
	DamageFlaK            DamageType = "flak"
	DamageFrag            DamageType = "frag"
	DamageHE              DamageType = "he"
	DamageHEAT            DamageType = "heat"
	DamageIncendiary      DamageType = "incendiary"
	DamageDisruptor       DamageType = "disruptor"
	DamageMunitionDefense DamageType = "munition_defense"
	DamageSmoke           DamageType = "smoke"
	// DamagePendepth is kinetic penetration followed by a chemical payload behind the armor.
	DamagePendepth DamageType = "pendepth"
)

// DamageTypes lists every supported damage type in report order.
var DamageTypes = []DamageType{
	DamageKinetic, DamageEMP, DamageFlaK, DamageFrag, DamageHE, DamageHEAT,
	DamageIncendiary, DamageDisruptor, DamageMunitionDefense, DamageSmoke, DamagePendepth,
}

// UnknownDamageTypeError is returned when a damage type name is not recognised.
type UnknownDamageTypeError struct {
	Name string
}

func (e *UnknownDamageTypeError) Error() string {
	return fmt.Sprintf("unknown damage type: %q", e.Name)
}

// ParseDamageType resolves a damage type by name, case-insensitively.
func ParseDamageType(name string) (DamageType, error) {
	dt := DamageType(strings.ToLower(strings.TrimSpace(name)))
	if slices.Contains(DamageTypes, dt) {
		return dt, nil
	}
	return "", &UnknownDamageTypeError{Name: name}
}

// Auxiliary returns the damage figures reported alongside dt at the optimized draw.
// They never influence the optimization itself.
func (dt DamageType) Auxiliary() []DamageType {
	if dt == DamagePendepth {
		return []DamageType{DamageFlaK, DamageFrag, DamageHE}
	}
	return nil
}

// TestType selects the normalisation applied to DPS when ranking.
type TestType string

const (
	TestPerVolume TestType = "per_volume"
	TestPerCost   TestType = "per_cost"
)

// Feed is the loading mechanism a configuration is evaluated with.
type Feed int

const (
	FeedRegular Feed = iota
	FeedBelt
	FeedDIF
)

func (f Feed) String() string {
	switch f {
	case FeedBelt:
		return "belt"
	case FeedDIF:
		return "dif"
	default:
		return "regular"
	}
}

func (f Feed) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Feed) UnmarshalText(text []byte) error {
	switch string(text) {
	case "regular", "":
		*f = FeedRegular
	case "belt":
		*f = FeedBelt
	case "dif":
		*f = FeedDIF
	default:
		return fmt.Errorf("unknown feed %q", text)
	}
	return nil
}

// Ordinal is the position of a configuration in generator order. Partitions are
// numbered in generator order, so comparing (Partition, Index) lexicographically
// matches the sequential enumeration.
type Ordinal struct {
	Partition int    `json:"partition"`
	Index     uint64 `json:"index"`
}

// Less reports whether o precedes p in generator order.
func (o Ordinal) Less(p Ordinal) bool {
	if o.Partition != p.Partition {
		return o.Partition < p.Partition
	}
	return o.Index < p.Index
}

// Configuration is one candidate shell. BodyCounts is indexed by catalogue module
// index and already includes the fixed modules.
type Configuration struct {
	Head         int     `json:"head"`
	BodyCounts   []int   `json:"body_counts"`
	FineCasing   int     `json:"fine_casing_hundredths"`
	CoarseCasing int     `json:"coarse_casing"`
	Feed         Feed    `json:"feed"`
	Ordinal      Ordinal `json:"ordinal"`
}

// FineCasingCount converts the fine casing from hundredths to casing units.
func (c Configuration) FineCasingCount() float64 {
	return float64(c.FineCasing) / 100
}

// BodyTotal is the number of body modules, excluding the head.
func (c Configuration) BodyTotal() int {
	total := 0
	for _, n := range c.BodyCounts {
		total += n
	}
	return total
}

// ModuleTotal is the budget consumed by body modules and both casings.
func (c Configuration) ModuleTotal() float64 {
	return float64(c.BodyTotal()) + c.FineCasingCount() + float64(c.CoarseCasing)
}

// Clone returns a copy that does not share BodyCounts.
func (c Configuration) Clone() Configuration {
	c.BodyCounts = slices.Clone(c.BodyCounts)
	return c
}

// Metrics is what the performance model reports for a configuration at one draw.
type Metrics struct {
	TotalLength      float64                `json:"total_length_mm"`
	ProjectileLength float64                `json:"projectile_length_mm"`
	Velocity         float64                `json:"velocity"`
	EffectiveRange   float64                `json:"effective_range"`
	Recoil           float64                `json:"recoil"`
	ReloadTime       float64                `json:"reload_time_s"`
	Damage           map[DamageType]float64 `json:"damage"`
	DPS              float64                `json:"dps"`
	Volume           float64                `json:"volume"`
	Cost             float64                `json:"cost"`
	DPSPerVolume     float64                `json:"dps_per_volume"`
	DPSPerCost       float64                `json:"dps_per_cost"`
}

// Invalid returns the name and value of the first quantity that is NaN, infinite
// or negative, or "" when every quantity is usable.
func (m Metrics) Invalid() (string, float64) {
	checks := []struct {
		name string
		v    float64
	}{
		{"total_length", m.TotalLength},
		{"projectile_length", m.ProjectileLength},
		{"velocity", m.Velocity},
		{"reload_time", m.ReloadTime},
		{"dps", m.DPS},
		{"volume", m.Volume},
		{"cost", m.Cost},
		{"dps_per_volume", m.DPSPerVolume},
		{"dps_per_cost", m.DPSPerCost},
	}
	for _, c := range checks {
		if bad(c.v) {
			return c.name, c.v
		}
	}
	for _, dt := range DamageTypes {
		if v, ok := m.Damage[dt]; ok && bad(v) {
			return "damage." + string(dt), v
		}
	}
	return "", 0
}

func bad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

// Evaluation is a configuration paired with its optimized draw and metrics.
type Evaluation struct {
	Config    Configuration          `json:"config"`
	Draw      float64                `json:"draw"`
	Metrics   Metrics                `json:"metrics"`
	Score     float64                `json:"score"`
	Auxiliary map[DamageType]float64 `json:"auxiliary,omitempty"`
}

// Category labels a leaderboard slot.
type Category string

const (
	CategoryBelt Category = "belt"
	CategoryDIF  Category = "dif"
)

// LengthCategory returns the label of the length bucket with the given upper bound.
func LengthCategory(maxLengthMM float64) Category {
	return Category(fmt.Sprintf("%gm", maxLengthMM/1000))
}

// OverflowCategory labels the open-ended bucket above the largest threshold.
func OverflowCategory(maxLengthMM float64) Category {
	return Category(fmt.Sprintf("%gm+", maxLengthMM/1000))
}
