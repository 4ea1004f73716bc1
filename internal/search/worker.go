package search

import (
	"context"
	"fmt"
	"iter"

	"github.com/GoSim-25-26J-441/shell-search/internal/feasibility"
	"github.com/GoSim-25-26J-441/shell-search/internal/leaderboard"
	"github.com/GoSim-25-26J-441/shell-search/internal/metrics"
	"github.com/GoSim-25-26J-441/shell-search/internal/tuning"
	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
)

// worker owns the accumulators of one sequential stream of configurations.
type worker struct {
	d     *Driver
	board *leaderboard.Leaderboard
	stats *metrics.Collector
}

func (d *Driver) newWorker() *worker {
	return &worker{d: d, board: leaderboard.New(d.thresholds), stats: metrics.NewCollector()}
}

// consume processes configs in order, checking ctx every cancelCheckInterval
// configurations.
func (w *worker) consume(ctx context.Context, configs iter.Seq[models.Configuration]) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("search cancelled: %w", err)
	}
	n := 0
	for cfg := range configs {
		n++
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("search cancelled: %w", err)
			}
		}
		if err := w.process(cfg); err != nil {
			return fmt.Errorf("configuration %d/%d: %w", cfg.Ordinal.Partition, cfg.Ordinal.Index, err)
		}
	}
	return nil
}

func (w *worker) process(cfg models.Configuration) error {
	d := w.d
	w.stats.RecordGenerated()
	if d.dif {
		cfg.Feed = models.FeedDIF
	}

	win, reason, err := d.filter.Check(cfg)
	if err != nil {
		return err
	}
	if reason != feasibility.Feasible {
		w.stats.RecordRejected(string(reason))
		return nil
	}
	w.stats.RecordFeasible()

	if err := w.optimizeAndOffer(cfg, win, VariantRegular); err != nil {
		return err
	}

	if d.belt && win.Bounds.TotalLength <= w.board.SmallestBucket() {
		belt := cfg.Clone()
		belt.Feed = models.FeedBelt
		if d.beltIncompatible >= 0 && d.beltIncompatible < len(belt.BodyCounts) {
			belt.BodyCounts[d.beltIncompatible] = 0
		}
		if err := w.optimizeAndOffer(belt, win, VariantBelt); err != nil {
			return err
		}
	}
	return nil
}

func (w *worker) optimizeAndOffer(cfg models.Configuration, win feasibility.Window, variant string) error {
	reason, err := w.d.filter.CheckDisruptor(cfg, win.MinDraw)
	if err != nil {
		return err
	}
	if reason != feasibility.Feasible {
		w.stats.RecordRejected(string(reason))
		return nil
	}

	ev, err := w.optimize(cfg, win, variant)
	if err != nil {
		return err
	}

	if w.board.Update(ev) {
		w.stats.RecordPromotion(string(w.board.Classify(ev)))
	}
	return nil
}

// optimize tunes the draw of cfg within win and evaluates it at the optimum.
func (w *worker) optimize(cfg models.Configuration, win feasibility.Window, variant string) (*models.Evaluation, error) {
	d := w.d
	score := func(draw float64) (float64, error) {
		m, err := w.evaluate(cfg, draw, d.damage)
		if err != nil {
			return 0, err
		}
		return d.objective.Evaluate(m)
	}

	res, err := tuning.Optimize(score, win.MinDraw, win.MaxDraw)
	if err != nil {
		return nil, err
	}

	m, err := w.evaluate(cfg, res.Param, d.damage)
	if err != nil {
		return nil, err
	}
	s, err := d.objective.Evaluate(m)
	if err != nil {
		return nil, err
	}
	ev := &models.Evaluation{Config: cfg, Draw: res.Param, Metrics: m, Score: s}

	extra := 1
	if aux := d.damage.Auxiliary(); len(aux) > 0 {
		ev.Auxiliary = make(map[models.DamageType]float64, len(aux))
		for _, dt := range aux {
			am, err := w.evaluate(cfg, res.Param, dt)
			if err != nil {
				return nil, err
			}
			ev.Auxiliary[dt] = am.Damage[dt]
			extra++
		}
	}
	w.stats.RecordOptimization(variant, res.Evaluations+extra)
	return ev, nil
}

// evaluate calls the model and rejects figures that cannot be ranked.
func (w *worker) evaluate(cfg models.Configuration, draw float64, dt models.DamageType) (models.Metrics, error) {
	m, err := w.d.model.Evaluate(cfg, draw, dt, w.d.target)
	if err != nil {
		return models.Metrics{}, fmt.Errorf("evaluate at draw %v: %w", draw, err)
	}
	if q, v := m.Invalid(); q != "" {
		return models.Metrics{}, &tuning.ContractViolationError{Quantity: q, Param: draw, Value: v}
	}
	return m, nil
}
