// Package tuning finds the draw that maximizes a configuration's score.
package tuning

import (
	"errors"
	"fmt"
	"math"
)

// ScoreFunc scores one value of the tuning parameter.
type ScoreFunc func(param float64) (float64, error)

// Result is the outcome of one optimization.
type Result struct {
	Param float64
	Score float64
	// Evaluations is the number of distinct points scored.
	Evaluations int
}

// ErrEmptyInterval is returned when minParam exceeds maxParam.
var ErrEmptyInterval = errors.New("empty tuning interval")

// ContractViolationError reports a model figure that cannot be ranked.
type ContractViolationError struct {
	Quantity string
	Param    float64
	Value    float64
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("performance model returned %v for %s at draw %v", e.Value, e.Quantity, e.Param)
}

type search struct {
	score ScoreFunc
	cache map[float64]float64
}

func (s *search) eval(x float64) (float64, error) {
	if v, ok := s.cache[x]; ok {
		return v, nil
	}
	v, err := s.score(x)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ContractViolationError{Quantity: "score", Param: x, Value: v}
	}
	s.cache[x] = v
	return v, nil
}

func (s *search) result(x float64) Result {
	return Result{Param: x, Score: s.cache[x], Evaluations: len(s.cache)}
}

// Optimize returns the parameter in [minParam, maxParam] with the highest score,
// assuming the score is unimodal over the interval. An interval with
// maxParam <= 0 short-circuits to 0 without scoring.
//
// The endpoints are checked first, each against its neighbour one unit inward, to
// settle monotonic scores in four calls. Otherwise an integer binary search
// compares adjacent midpoints. An upper midpoint scoring exactly zero discards the
// lower half: some damage types score zero below a draw threshold.
func Optimize(score ScoreFunc, minParam, maxParam float64) (Result, error) {
	if maxParam <= 0 {
		return Result{}, nil
	}
	if minParam > maxParam {
		return Result{}, fmt.Errorf("%w: [%v, %v]", ErrEmptyInterval, minParam, maxParam)
	}

	s := &search{score: score, cache: make(map[float64]float64)}
	bottom, err := s.eval(minParam)
	if err != nil {
		return Result{}, err
	}
	top, err := s.eval(maxParam)
	if err != nil {
		return Result{}, err
	}

	if top > bottom {
		inward, err := s.eval(math.Max(maxParam-1, minParam))
		if err != nil {
			return Result{}, err
		}
		if inward < top {
			return s.result(maxParam), nil
		}
	} else {
		inward, err := s.eval(math.Min(minParam+1, maxParam))
		if err != nil {
			return Result{}, err
		}
		if bottom > inward {
			return s.result(minParam), nil
		}
	}

	low, high := math.Ceil(minParam), math.Floor(maxParam)
	if high <= low {
		if bottom >= top {
			return s.result(minParam), nil
		}
		return s.result(maxParam), nil
	}

	for high-low > 1 {
		mid := math.Floor((low + high) / 2)
		lowerScore, err := s.eval(mid)
		if err != nil {
			return Result{}, err
		}
		upperScore, err := s.eval(mid + 1)
		if err != nil {
			return Result{}, err
		}
		switch {
		case upperScore == 0:
			low = mid + 1
		case lowerScore >= upperScore:
			high = mid
		default:
			low = mid + 1
		}
	}

	lowScore, err := s.eval(low)
	if err != nil {
		return Result{}, err
	}
	highScore, err := s.eval(high)
	if err != nil {
		return Result{}, err
	}
	if lowScore >= highScore {
		return s.result(low), nil
	}
	return s.result(high), nil
}
