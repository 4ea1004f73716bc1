// Package search drives the generator, feasibility filter, draw optimizer and
// leaderboard over a whole configuration space.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/shell-search/internal/ballistics"
	"github.com/GoSim-25-26J-441/shell-search/internal/catalogue"
	"github.com/GoSim-25-26J-441/shell-search/internal/feasibility"
	"github.com/GoSim-25-26J-441/shell-search/internal/generator"
	"github.com/GoSim-25-26J-441/shell-search/internal/leaderboard"
	"github.com/GoSim-25-26J-441/shell-search/internal/metrics"
	"github.com/GoSim-25-26J-441/shell-search/internal/objective"
	"github.com/GoSim-25-26J-441/shell-search/internal/tuning"
	"github.com/GoSim-25-26J-441/shell-search/pkg/config"
	"github.com/GoSim-25-26J-441/shell-search/pkg/logger"
	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
)

var tracer = otel.Tracer("shellsearch/search")

// cancelCheckInterval is how many configurations a worker processes between
// context checks.
const cancelCheckInterval = 4096

// Optimization variants, used as metric labels.
const (
	VariantRegular = "regular"
	VariantBelt    = "belt"
)

// Driver runs one search. A Driver may run any number of times; each run builds
// a fresh generator.
type Driver struct {
	model     ballistics.Model
	cat       *catalogue.Catalogue
	space     generator.Space
	filter    *feasibility.Filter
	objective objective.Objective
	damage    models.DamageType
	testType  models.TestType
	target    ballistics.Target

	thresholds       []float64
	dif              bool
	belt             bool
	beltIncompatible int

	runID  string
	logger *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithRunID tags results and log lines with a run ID.
func WithRunID(id string) Option {
	return func(d *Driver) { d.runID = id }
}

// NewDriver resolves cfg against the catalogue. cfg must already be validated.
func NewDriver(model ballistics.Model, cat *catalogue.Catalogue, cfg *config.SearchConfig, opts ...Option) (*Driver, error) {
	if model == nil || cat == nil || cfg == nil {
		return nil, fmt.Errorf("model, catalogue and config are required")
	}

	heads, err := cat.Resolve(cfg.Heads, catalogue.KindHead)
	if err != nil {
		return nil, fmt.Errorf("heads: %w", err)
	}
	slots, err := cat.Resolve(cfg.VariableModules, catalogue.KindBody)
	if err != nil {
		return nil, fmt.Errorf("variable modules: %w", err)
	}
	fixed := make([]int, cat.Len())
	for _, name := range slices.Sorted(maps.Keys(cfg.FixedModules)) {
		idx, err := cat.Resolve([]string{name}, catalogue.KindBody)
		if err != nil {
			return nil, fmt.Errorf("fixed modules: %w", err)
		}
		fixed[idx[0]] += cfg.FixedModules[name]
	}

	damage, err := models.ParseDamageType(cfg.DamageType)
	if err != nil {
		return nil, err
	}
	obj, err := objective.New(models.TestType(cfg.Test.Type))
	if err != nil {
		return nil, err
	}

	target := ballistics.Target{AC: cfg.Target.AC, ImpactAngleDeg: cfg.Target.ImpactAngleDeg}
	l := cfg.Limits
	filter := feasibility.NewFilter(model, feasibility.Limits{
		MinLengthMM:       l.MinLengthMM,
		MaxLengthMM:       l.MaxLengthMM,
		MaxDraw:           l.MaxDraw,
		MaxRecoil:         l.MaxRecoil,
		MinVelocity:       l.MinVelocity,
		MinEffectiveRange: l.MinEffectiveRange,
		BarrelLengthMM:    cfg.BarrelLengthMM(),
		MaxInaccuracy:     l.MaxInaccuracy,
		RecoilAbsorbers:   cfg.Feed.RecoilAbsorbers,
		MinDisruptor:      l.MinDisruptor,
		DamageType:        damage,
		Target:            target,
	})

	beltIncompatible, _ := cat.BeltIncompatible()
	d := &Driver{
		model:     model,
		cat:       cat,
		filter:    filter,
		objective: obj,
		damage:    damage,
		testType:  models.TestType(cfg.Test.Type),
		target:    target,
		space: generator.Space{
			Heads:           heads,
			FixedCounts:     fixed,
			VariableSlots:   slots,
			BudgetCeiling:   cfg.BudgetCeiling,
			MaxFineCasing:   cfg.Casings.MaxFine,
			MaxCoarseCasing: cfg.Casings.MaxCoarse,
		},
		thresholds:       cfg.Search.ThresholdsMM,
		dif:              cfg.Feed.DIF,
		belt:             !cfg.Feed.DIF && !cfg.Feed.DisableBelt,
		beltIncompatible: beltIncompatible,
		logger:           logger.Default,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.runID != "" {
		d.logger = d.logger.With("run_id", d.runID)
	}

	if _, err := generator.New(d.space); err != nil {
		return nil, fmt.Errorf("configuration space: %w", err)
	}
	return d, nil
}

// NewReferenceModel builds the shipped performance model for cfg.
func NewReferenceModel(cat *catalogue.Catalogue, cfg *config.SearchConfig) (*ballistics.Reference, error) {
	base := -1
	if cfg.Base != "" {
		idx, err := cat.Resolve([]string{cfg.Base}, catalogue.KindBase)
		if err != nil {
			return nil, fmt.Errorf("base: %w", err)
		}
		base = idx[0]
	}
	return ballistics.NewReference(cat, ballistics.Params{
		GaugeMM:              cfg.GaugeMM,
		BarrelCount:          cfg.BarrelCount,
		Base:                 base,
		TestIntervalMinutes:  cfg.Test.IntervalMinutes,
		EnginePowerPerVolume: cfg.Engine.PowerPerVolume,
		EnginePowerPerCost:   cfg.Engine.PowerPerCost,
		StoragePerVolume:     cfg.Engine.StoragePerVolume,
		StoragePerCost:       cfg.Engine.StoragePerCost,
	})
}

// Count is the number of configurations a run will generate.
func (d *Driver) Count() uint64 {
	g, err := generator.New(d.space)
	if err != nil {
		return 0
	}
	return g.Count()
}

// Run searches the space sequentially.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "search.Run", trace.WithAttributes(
		attribute.String("search.run_id", d.runID),
		attribute.String("search.damage_type", string(d.damage)),
	))
	defer span.End()

	start := time.Now()
	gen, err := generator.New(d.space)
	if err != nil {
		return nil, err
	}
	total := gen.Count()
	d.logger.Info("Starting search", "configurations", total, "workers", 1)

	w := d.newWorker()
	if err := w.consume(ctx, gen.All()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	w.stats.Publish()

	res := d.result(w.board, w.stats, total, time.Since(start))
	d.logSummary(res)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// RunParallel searches the space with up to workers partitions in flight. Each
// partition fills a private leaderboard; they are merged in partition order once
// every worker has joined, so the result equals Run's.
func (d *Driver) RunParallel(ctx context.Context, workers int) (*Result, error) {
	if workers < 1 {
		workers = 1
	}
	ctx, span := tracer.Start(ctx, "search.RunParallel", trace.WithAttributes(
		attribute.String("search.run_id", d.runID),
		attribute.String("search.damage_type", string(d.damage)),
		attribute.Int("search.workers", workers),
	))
	defer span.End()

	start := time.Now()
	gen, err := generator.New(d.space)
	if err != nil {
		return nil, err
	}
	total := gen.Count()
	parts := gen.Partitions()
	d.logger.Info("Starting search", "configurations", total, "partitions", len(parts), "workers", workers)

	done := make([]*worker, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range parts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			pctx, pspan := tracer.Start(gctx, "search.partition", trace.WithAttributes(
				attribute.Int("search.partition", p.ID),
				attribute.Int("search.head", p.Head),
				attribute.Int("search.outer_count", p.OuterSlot),
			))
			defer pspan.End()

			w := d.newWorker()
			if err := w.consume(pctx, p.All()); err != nil {
				pspan.RecordError(err)
				pspan.SetStatus(codes.Error, err.Error())
				return err
			}
			w.stats.Publish()
			done[i] = w
			d.logger.Debug("Partition complete",
				"partition", p.ID,
				"head", d.cat.Module(p.Head).Name,
				"generated", w.stats.Generated,
				"feasible", w.stats.Feasible)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "context canceled")
		return nil, fmt.Errorf("search cancelled: %w", err)
	}

	board := leaderboard.New(d.thresholds)
	stats := metrics.NewCollector()
	for _, w := range done {
		board.Merge(w.board)
		stats.Merge(w.stats)
	}

	res := d.result(board, stats, total, time.Since(start))
	d.logSummary(res)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (d *Driver) logSummary(res *Result) {
	filled := 0
	for _, s := range res.Standings {
		if s.Evaluation != nil {
			filled++
		}
	}
	d.logger.Info("Search complete",
		"generated", res.Stats.Generated,
		"feasible", res.Stats.Feasible,
		"model_evaluations", res.Stats.ModelEvaluations,
		"categories_filled", filled,
		"duration", res.Stats.Duration)
}

// IsContractViolation reports whether err is a performance model contract
// violation. Those are fatal to a run.
func IsContractViolation(err error) bool {
	var tv *tuning.ContractViolationError
	var fv *feasibility.ContractViolationError
	var mv *objective.InvalidMetricsError
	return errors.As(err, &tv) || errors.As(err, &fv) || errors.As(err, &mv)
}
