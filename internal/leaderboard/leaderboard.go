// Package leaderboard keeps the best evaluation per output category.
package leaderboard

import (
	"slices"

	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
)

// DefaultThresholds are the upper bounds, in mm, of the length buckets.
var DefaultThresholds = []float64{1000, 2000, 3000, 4000, 5000, 6000, 7000, 8000}

// Standing is one category in report order. Evaluation is nil when nothing
// qualified.
type Standing struct {
	Category   models.Category    `json:"category"`
	Evaluation *models.Evaluation `json:"evaluation,omitempty"`
}

// Leaderboard holds one slot per category. It is not safe for concurrent use;
// parallel workers each own one and Merge them after joining.
type Leaderboard struct {
	thresholds []float64
	order      []models.Category
	entries    map[models.Category]*models.Evaluation
}

// New creates an empty leaderboard. Thresholds are sorted; nil selects the
// defaults.
func New(thresholds []float64) *Leaderboard {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	t := slices.Clone(thresholds)
	slices.Sort(t)
	t = slices.Compact(t)

	order := make([]models.Category, 0, len(t)+3)
	for _, th := range t {
		order = append(order, models.LengthCategory(th))
	}
	order = append(order, models.OverflowCategory(t[len(t)-1]), models.CategoryBelt, models.CategoryDIF)

	return &Leaderboard{
		thresholds: t,
		order:      order,
		entries:    make(map[models.Category]*models.Evaluation, len(order)),
	}
}

// NewLike returns an empty leaderboard with the same buckets as lb.
func (lb *Leaderboard) NewLike() *Leaderboard {
	return New(lb.thresholds)
}

// SmallestBucket is the upper bound of the first length bucket.
func (lb *Leaderboard) SmallestBucket() float64 {
	return lb.thresholds[0]
}

// Classify returns the category an evaluation competes in. Feed mechanism
// categories bypass the length buckets.
func (lb *Leaderboard) Classify(ev *models.Evaluation) models.Category {
	switch ev.Config.Feed {
	case models.FeedDIF:
		return models.CategoryDIF
	case models.FeedBelt:
		return models.CategoryBelt
	}
	length := ev.Metrics.TotalLength
	for _, th := range lb.thresholds {
		if length <= th {
			return models.LengthCategory(th)
		}
	}
	return models.OverflowCategory(lb.thresholds[len(lb.thresholds)-1])
}

// beats reports whether ev should replace holder. Scores compare strictly; on an
// exact tie the candidate earlier in generator order wins, which in streaming
// order is always the incumbent.
func beats(ev, holder *models.Evaluation) bool {
	holderScore := 0.0
	if holder != nil {
		holderScore = holder.Score
	}
	if ev.Score > holderScore {
		return true
	}
	return holder != nil && ev.Score == holder.Score && ev.Config.Ordinal.Less(holder.Config.Ordinal)
}

// Update offers ev to its category and reports whether it became the holder.
// The leaderboard keeps its own copy. Exact ties keep the lower ordinal, so
// callers streaming candidates in their own order must assign ordinals in
// insertion order for the first one found to win.
func (lb *Leaderboard) Update(ev *models.Evaluation) bool {
	cat := lb.Classify(ev)
	if !beats(ev, lb.entries[cat]) {
		return false
	}
	held := *ev
	held.Config = ev.Config.Clone()
	lb.entries[cat] = &held
	return true
}

// Merge folds every holder of other into lb with the Update rule.
func (lb *Leaderboard) Merge(other *Leaderboard) {
	for _, cat := range other.order {
		if ev := other.entries[cat]; ev != nil {
			lb.Update(ev)
		}
	}
}

// Best returns the holder of a category.
func (lb *Leaderboard) Best(cat models.Category) (*models.Evaluation, bool) {
	ev, ok := lb.entries[cat]
	return ev, ok
}

// Categories lists every category in report order.
func (lb *Leaderboard) Categories() []models.Category {
	return slices.Clone(lb.order)
}

// Standings returns every category in report order: length buckets ascending,
// the open-ended bucket, then belt and DIF.
func (lb *Leaderboard) Standings() []Standing {
	out := make([]Standing, 0, len(lb.order))
	for _, cat := range lb.order {
		out = append(out, Standing{Category: cat, Evaluation: lb.entries[cat]})
	}
	return out
}
