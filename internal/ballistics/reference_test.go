package ballistics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/shell-search/internal/catalogue"
	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
)

func newTestModel(t *testing.T) (*Reference, *catalogue.Catalogue) {
	t.Helper()
	cat := catalogue.Default()
	m, err := NewReference(cat, Params{GaugeMM: 200, Base: -1})
	require.NoError(t, err)
	return m, cat
}

func config(t *testing.T, cat *catalogue.Catalogue, head string, bodies map[string]int) models.Configuration {
	t.Helper()
	h, ok := cat.Index(head)
	require.True(t, ok)
	counts := make([]int, cat.Len())
	for name, n := range bodies {
		i, ok := cat.Index(name)
		require.True(t, ok)
		counts[i] = n
	}
	return models.Configuration{Head: h, BodyCounts: counts}
}

func TestNewReferenceValidation(t *testing.T) {
	cat := catalogue.Default()
	_, err := NewReference(nil, Params{GaugeMM: 200})
	assert.Error(t, err)
	_, err = NewReference(cat, Params{GaugeMM: 0})
	assert.Error(t, err)
	_, err = NewReference(cat, Params{GaugeMM: 200, Base: cat.Len()})
	assert.Error(t, err)
}

func TestStaticBoundsLengths(t *testing.T) {
	m, cat := newTestModel(t)
	cfg := config(t, cat, "ap_head", map[string]int{"solid_body": 2})
	cfg.FineCasing = 100
	cfg.CoarseCasing = 1

	b, err := m.StaticBounds(cfg, BoundsQuery{})
	require.NoError(t, err)
	assert.InDelta(t, 600, b.ProjectileLength, 1e-9)
	assert.InDelta(t, 1000, b.TotalLength, 1e-9)
	assert.InDelta(t, 2500*GaugeMultiplier(200), b.GPRecoil, 1e-9)
	assert.InDelta(t, 12500*GaugeMultiplier(200)*3.5, b.MaxDraw, 1e-6)
	assert.True(t, math.IsInf(b.MaxProjectileLength, 1))
	assert.True(t, math.IsInf(b.InaccuracyDrawCap, 1))

	limited, err := m.StaticBounds(cfg, BoundsQuery{BarrelLengthMM: 8000, MaxInaccuracy: 0.3})
	require.NoError(t, err)
	assert.False(t, math.IsInf(limited.MaxProjectileLength, 1))
	assert.Greater(t, limited.InaccuracyDrawCap, 0.0)
}

func TestStaticBoundsRejectsBadHead(t *testing.T) {
	m, _ := newTestModel(t)
	_, err := m.StaticBounds(models.Configuration{Head: -1}, BoundsQuery{})
	assert.Error(t, err)
}

func TestMinDrawInvertsVelocity(t *testing.T) {
	m, cat := newTestModel(t)
	cfg := config(t, cat, "ap_head", map[string]int{"solid_body": 3})

	draw, err := m.MinDraw(cfg, 500, 0)
	require.NoError(t, err)
	require.Greater(t, draw, 0.0)

	metrics, err := m.Evaluate(cfg, draw, models.DamageKinetic, Target{})
	require.NoError(t, err)
	assert.InDelta(t, 500, metrics.Velocity, 1e-6)

	byRange, err := m.MinDraw(cfg, 0, 1500)
	require.NoError(t, err)
	assert.InDelta(t, draw, byRange, 1e-6)

	zero, err := m.MinDraw(cfg, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero)
}

func TestKineticScoreRisesThenFalls(t *testing.T) {
	m, cat := newTestModel(t)
	cfg := config(t, cat, "ap_head", map[string]int{"solid_body": 4})
	b, err := m.StaticBounds(cfg, BoundsQuery{})
	require.NoError(t, err)

	score := func(d float64) float64 {
		metrics, err := m.Evaluate(cfg, d, models.DamageKinetic, Target{})
		require.NoError(t, err)
		return metrics.DPSPerVolume
	}
	low, high := score(1), score(b.MaxDraw)
	best := 0.0
	for d := 1.0; d <= b.MaxDraw; d += b.MaxDraw / 200 {
		best = max(best, score(d))
	}
	assert.Greater(t, best, low)
	assert.Greater(t, best, high)
}

func TestPendepthNeedsPenetration(t *testing.T) {
	m, cat := newTestModel(t)
	cfg := config(t, cat, "ap_head", map[string]int{"he_body": 2})

	low, err := m.Evaluate(cfg, 0, models.DamagePendepth, Target{AC: 40})
	require.NoError(t, err)
	assert.Equal(t, 0.0, low.Damage[models.DamagePendepth])
	assert.Equal(t, 0.0, low.DPS)

	high, err := m.Evaluate(cfg, 1e6, models.DamagePendepth, Target{AC: 40})
	require.NoError(t, err)
	assert.Greater(t, high.Damage[models.DamagePendepth], 0.0)
	assert.InDelta(t, high.Damage[models.DamageHE], high.Damage[models.DamagePendepth], 1e-9)
}

func TestBeltFeedReloadsFaster(t *testing.T) {
	m, cat := newTestModel(t)
	cfg := config(t, cat, "he_head", map[string]int{"he_body": 1})

	regular, err := m.Evaluate(cfg, 100, models.DamageHE, Target{})
	require.NoError(t, err)
	cfg.Feed = models.FeedBelt
	belt, err := m.Evaluate(cfg, 100, models.DamageHE, Target{})
	require.NoError(t, err)

	assert.Less(t, belt.ReloadTime, regular.ReloadTime)
	assert.Greater(t, belt.DPS, regular.DPS)
}

func TestEvaluateMetricsAreValid(t *testing.T) {
	m, cat := newTestModel(t)
	cfg := config(t, cat, "disruptor_head", map[string]int{"solid_body": 2})
	metrics, err := m.Evaluate(cfg, 500, models.DamageDisruptor, Target{AC: 20, ImpactAngleDeg: 30})
	require.NoError(t, err)
	name, _ := metrics.Invalid()
	assert.Empty(t, name)
	assert.InDelta(t, 0.6, metrics.Damage[models.DamageDisruptor], 1e-9)

	_, err = m.Evaluate(cfg, -1, models.DamageKinetic, Target{})
	assert.Error(t, err)
}
