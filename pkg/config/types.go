package config

import (
	"math"
	"runtime"
)

// SearchConfig is the full input of one search run.
type SearchConfig struct {
	GaugeMM         float64        `yaml:"gauge_mm" json:"gauge_mm" validate:"gte=18,lte=500"`
	BarrelCount     int            `yaml:"barrel_count" json:"barrel_count" validate:"gte=0,lte=6"`
	Heads           []string       `yaml:"heads" json:"heads" validate:"required,min=1,dive,required"`
	Base            string         `yaml:"base,omitempty" json:"base,omitempty"`
	FixedModules    map[string]int `yaml:"fixed_modules,omitempty" json:"fixed_modules,omitempty" validate:"dive,gte=0"`
	VariableModules []string       `yaml:"variable_modules" json:"variable_modules" validate:"dive,required"`
	BudgetCeiling   int            `yaml:"budget_ceiling" json:"budget_ceiling" validate:"gte=0"`
	Casings         Casings        `yaml:"casings" json:"casings"`
	Limits          Limits         `yaml:"limits" json:"limits"`
	Target          Target         `yaml:"target" json:"target"`
	DamageType      string         `yaml:"damage_type" json:"damage_type" validate:"omitempty,damagetype"`
	Test            Test           `yaml:"test" json:"test"`
	Feed            Feed           `yaml:"feed" json:"feed"`
	Engine          Engine         `yaml:"engine" json:"engine"`
	Search          Search         `yaml:"search" json:"search"`
	LogLevel        string         `yaml:"log_level,omitempty" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
}

// Casings caps the propellant casings. MaxFine has 0.01 resolution.
type Casings struct {
	MaxFine   float64 `yaml:"max_fine" json:"max_fine" validate:"gte=0,lte=20"`
	MaxCoarse int     `yaml:"max_coarse" json:"max_coarse" validate:"gte=0,lte=20"`
}

// Limits are the user's feasibility limits. Zero maxima mean unlimited.
type Limits struct {
	MinLengthMM       float64      `yaml:"min_length_mm" json:"min_length_mm" validate:"gte=0"`
	MaxLengthMM       float64      `yaml:"max_length_mm" json:"max_length_mm" validate:"gte=0"`
	MaxDraw           float64      `yaml:"max_draw" json:"max_draw" validate:"gte=0"`
	MaxRecoil         float64      `yaml:"max_recoil" json:"max_recoil" validate:"gte=0"`
	MinVelocity       float64      `yaml:"min_velocity" json:"min_velocity" validate:"gte=0"`
	MinEffectiveRange float64      `yaml:"min_effective_range" json:"min_effective_range" validate:"gte=0"`
	MaxInaccuracy     float64      `yaml:"max_inaccuracy" json:"max_inaccuracy" validate:"gte=0"`
	BarrelLength      BarrelLength `yaml:"barrel_length" json:"barrel_length"`
	MinDisruptor      float64      `yaml:"min_disruptor" json:"min_disruptor" validate:"gte=0,lte=1"`
}

// Barrel length limit types
const (
	BarrelLimitFixed    = "fixed"
	BarrelLimitCalibers = "calibers"
)

// BarrelLength limits barrel length in metres or in calibers.
type BarrelLength struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Max     float64 `yaml:"max" json:"max" validate:"gte=0"`
	Type    string  `yaml:"type" json:"type" validate:"omitempty,oneof=fixed calibers"`
}

// Target is what damage is computed against.
type Target struct {
	AC             float64 `yaml:"ac" json:"ac" validate:"gte=0"`
	ImpactAngleDeg float64 `yaml:"impact_angle_deg" json:"impact_angle_deg" validate:"gte=0,lt=90"`
}

// Test selects how DPS is normalised when ranking.
type Test struct {
	Type            string  `yaml:"type" json:"type" validate:"omitempty,oneof=per_volume per_cost"`
	IntervalMinutes float64 `yaml:"interval_minutes" json:"interval_minutes" validate:"gte=0"`
}

// Feed selects loading mechanisms.
type Feed struct {
	DIF             bool `yaml:"dif" json:"dif"`
	RecoilAbsorbers bool `yaml:"recoil_absorbers" json:"recoil_absorbers"`
	DisableBelt     bool `yaml:"disable_belt" json:"disable_belt"`
}

// Engine describes power and ammunition storage efficiency.
type Engine struct {
	PowerPerVolume   float64 `yaml:"power_per_volume" json:"power_per_volume" validate:"gte=0"`
	PowerPerCost     float64 `yaml:"power_per_cost" json:"power_per_cost" validate:"gte=0"`
	StoragePerVolume float64 `yaml:"storage_per_volume" json:"storage_per_volume" validate:"gte=0"`
	StoragePerCost   float64 `yaml:"storage_per_cost" json:"storage_per_cost" validate:"gte=0"`
}

// Search tunes execution.
type Search struct {
	Workers      int       `yaml:"workers" json:"workers" validate:"gte=0"`
	ThresholdsMM []float64 `yaml:"thresholds_mm,omitempty" json:"thresholds_mm,omitempty" validate:"dive,gt=0"`
}

// Defaults
const (
	DefaultBudgetCeiling   = 20
	DefaultIntervalMinutes = 10
	DefaultMaxInaccuracy   = 0.3
	DefaultDamageType      = "kinetic"
	DefaultTestType        = "per_volume"
	DefaultLogLevel        = "info"
)

// ApplyDefaults fills unset optional fields.
func (c *SearchConfig) ApplyDefaults() {
	if c.BarrelCount == 0 {
		c.BarrelCount = 1
	}
	if c.BudgetCeiling == 0 {
		c.BudgetCeiling = DefaultBudgetCeiling
	}
	if c.DamageType == "" {
		c.DamageType = DefaultDamageType
	}
	if c.Test.Type == "" {
		c.Test.Type = DefaultTestType
	}
	if c.Test.IntervalMinutes == 0 {
		c.Test.IntervalMinutes = DefaultIntervalMinutes
	}
	if c.Limits.BarrelLength.Type == "" {
		c.Limits.BarrelLength.Type = BarrelLimitFixed
	}
	if c.Limits.BarrelLength.Enabled && c.Limits.MaxInaccuracy == 0 {
		c.Limits.MaxInaccuracy = DefaultMaxInaccuracy
	}
	if c.Search.Workers == 0 {
		c.Search.Workers = runtime.GOMAXPROCS(0)
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Unlimited maps the zero "no limit" value to +Inf.
func Unlimited(v float64) float64 {
	if v <= 0 {
		return math.Inf(1)
	}
	return v
}

// BarrelLengthMM is the barrel length limit in mm, or 0 when disabled.
func (c *SearchConfig) BarrelLengthMM() float64 {
	bl := c.Limits.BarrelLength
	if !bl.Enabled {
		return 0
	}
	if bl.Type == BarrelLimitCalibers {
		return bl.Max * c.GaugeMM
	}
	return bl.Max * 1000
}

// ServerConfig configures the run service.
type ServerConfig struct {
	HTTPAddr          string  `yaml:"http_addr" json:"http_addr" validate:"required"`
	GRPCAddr          string  `yaml:"grpc_addr" json:"grpc_addr" validate:"required"`
	DataDir           string  `yaml:"data_dir,omitempty" json:"data_dir,omitempty"`
	CataloguePath     string  `yaml:"catalogue_path,omitempty" json:"catalogue_path,omitempty"`
	WatchCatalogue    bool    `yaml:"watch_catalogue" json:"watch_catalogue"`
	RunCreateRate     float64 `yaml:"run_create_rate" json:"run_create_rate" validate:"gte=0"`
	RunCreateBurst    int     `yaml:"run_create_burst" json:"run_create_burst" validate:"gte=0"`
	MaxConcurrentRuns int     `yaml:"max_concurrent_runs" json:"max_concurrent_runs" validate:"gte=0"`
	LogLevel          string  `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultServerConfig returns the settings used when serve flags are omitted.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:          ":8080",
		GRPCAddr:          ":9090",
		RunCreateRate:     2,
		RunCreateBurst:    5,
		MaxConcurrentRuns: 2,
		LogLevel:          DefaultLogLevel,
	}
}
