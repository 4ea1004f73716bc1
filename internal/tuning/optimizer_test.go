package tuning

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parabola(peak float64) ScoreFunc {
	return func(x float64) (float64, error) {
		return -(x - peak) * (x - peak), nil
	}
}

func TestOptimizeParabolaIntegerPeaks(t *testing.T) {
	const n = 100
	for peak := 0; peak <= n; peak++ {
		res, err := Optimize(parabola(float64(peak)), 0, n)
		require.NoError(t, err)
		assert.Equal(t, float64(peak), res.Param, "peak %d", peak)
	}
}

func TestOptimizeParabolaFractionalPeaks(t *testing.T) {
	for _, peak := range []float64{0.4, 12.25, 37.5, 63.9, 99.7} {
		t.Run(fmt.Sprint(peak), func(t *testing.T) {
			res, err := Optimize(parabola(peak), 0, 100)
			require.NoError(t, err)
			assert.LessOrEqual(t, math.Abs(res.Param-math.Round(peak)), 1.0)
		})
	}
}

func TestOptimizeParabolaOffsetInterval(t *testing.T) {
	res, err := Optimize(parabola(55), 20, 90)
	require.NoError(t, err)
	assert.Equal(t, 55.0, res.Param)
	assert.Equal(t, 0.0, res.Score)
}

func TestOptimizeMonotonic(t *testing.T) {
	increasing := func(x float64) (float64, error) { return x, nil }
	decreasing := func(x float64) (float64, error) { return 1000 - x, nil }

	res, err := Optimize(increasing, 10, 250)
	require.NoError(t, err)
	assert.Equal(t, 250.0, res.Param)
	assert.Equal(t, 3, res.Evaluations)

	res, err = Optimize(decreasing, 10, 250)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Param)
	assert.Equal(t, 3, res.Evaluations)

	res, err = Optimize(increasing, 10.5, 250.25)
	require.NoError(t, err)
	assert.Equal(t, 250.25, res.Param)
}

func TestOptimizeDegenerateInterval(t *testing.T) {
	calls := 0
	score := func(x float64) (float64, error) {
		calls++
		return x, nil
	}
	for _, maxParam := range []float64{0, -5} {
		res, err := Optimize(score, 0, maxParam)
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.Param)
	}
	assert.Zero(t, calls)
}

func TestOptimizeEmptyInterval(t *testing.T) {
	_, err := Optimize(parabola(0), 10, 5)
	assert.True(t, errors.Is(err, ErrEmptyInterval))
}

func TestOptimizeZeroScoreDiscardsLowerHalf(t *testing.T) {
	// zero until the draw reaches 40, then falling: the optimum is the threshold
	score := func(x float64) (float64, error) {
		if x < 40 {
			return 0, nil
		}
		return 100 - x, nil
	}
	res, err := Optimize(score, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 40.0, res.Param)
	assert.Equal(t, 60.0, res.Score)
}

func TestOptimizeNarrowInterval(t *testing.T) {
	// no integer strictly inside; the better endpoint wins
	res, err := Optimize(parabola(3.3), 3.2, 3.6)
	require.NoError(t, err)
	assert.Equal(t, 3.2, res.Param)
}

func TestOptimizeLogarithmicEvaluations(t *testing.T) {
	const n = 1 << 20
	res, err := Optimize(parabola(n/3), 0, n)
	require.NoError(t, err)
	assert.Equal(t, float64(n/3), res.Param)
	// endpoints, one inward probe and two points per halving
	assert.LessOrEqual(t, res.Evaluations, 3+2*21+2)
}

func TestOptimizeContractViolation(t *testing.T) {
	score := func(x float64) (float64, error) {
		if x > 50 {
			return math.NaN(), nil
		}
		return x, nil
	}
	_, err := Optimize(score, 0, 100)
	var violation *ContractViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "score", violation.Quantity)
	assert.Equal(t, 100.0, violation.Param)
}

func TestOptimizePropagatesScoreError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Optimize(func(float64) (float64, error) { return 0, boom }, 0, 10)
	assert.ErrorIs(t, err, boom)
}
