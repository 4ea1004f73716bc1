package searchd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/shell-search/internal/catalogue"
	"github.com/GoSim-25-26J-441/shell-search/internal/metrics"
	"github.com/GoSim-25-26J-441/shell-search/internal/search"
	"github.com/GoSim-25-26J-441/shell-search/pkg/config"
	"github.com/GoSim-25-26J-441/shell-search/pkg/logger"
)

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store    *RunStore
	source   *catalogue.Source
	notifier *Notifier
	slots    chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

var (
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
)

// NewRunExecutor creates an executor that runs at most maxConcurrent searches at
// once; further runs wait in the running state for a free slot.
func NewRunExecutor(store *RunStore, source *catalogue.Source, maxConcurrent int) *RunExecutor {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if source == nil {
		source = catalogue.NewSource(catalogue.Default())
	}
	return &RunExecutor{
		store:   store,
		source:  source,
		slots:   make(chan struct{}, maxConcurrent),
		cancels: make(map[string]context.CancelFunc),
	}
}

// SetNotifier enables completion callbacks.
func (e *RunExecutor) SetNotifier(n *Notifier) {
	e.notifier = n
}

// Start begins executing a run asynchronously.
// Returns the updated run state (RUNNING) or an error.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	switch {
	case rec.Status == RunStatusRunning:
		return rec, nil
	case rec.Status.Terminal():
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	updated, err := e.store.SetStatus(runID, RunStatusRunning, "")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if old, exists := e.cancels[runID]; exists {
		old()
	}
	e.cancels[runID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runSearch(ctx, runID)
	return updated, nil
}

// Stop requests cancellation for a run and marks it cancelled.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()
	if ok {
		cancel()
	}

	return e.store.SetStatus(runID, RunStatusCancelled, "")
}

// Shutdown cancels every active run and waits for their goroutines, or for ctx.
func (e *RunExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) fail(runID, msg string) {
	log := logger.ForRun(runID)
	log.Error("run failed", "error", msg)
	if _, err := e.store.SetStatus(runID, RunStatusFailed, msg); err != nil {
		log.Error("failed to set failed status", "error", err)
	}
	metrics.RunsTotal.WithLabelValues(string(RunStatusFailed)).Inc()
}

func (e *RunExecutor) runSearch(ctx context.Context, runID string) {
	defer e.wg.Done()
	defer e.cleanup(runID)
	defer e.notify(runID)
	log := logger.ForRun(runID)

	select {
	case e.slots <- struct{}{}:
		defer func() { <-e.slots }()
	case <-ctx.Done():
		log.Info("run cancelled before start")
		metrics.RunsTotal.WithLabelValues(string(RunStatusCancelled)).Inc()
		return
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		log.Error("run not found")
		return
	}

	cfg, err := config.ParseSearchYAMLString(rec.Input.ConfigYAML)
	if err != nil {
		e.fail(runID, err.Error())
		return
	}

	cat := e.source.Current()
	model, err := search.NewReferenceModel(cat, cfg)
	if err != nil {
		e.fail(runID, fmt.Sprintf("model: %v", err))
		return
	}
	driver, err := search.NewDriver(model, cat, cfg, search.WithRunID(runID), search.WithLogger(logger.Default))
	if err != nil {
		e.fail(runID, err.Error())
		return
	}

	start := time.Now()
	res, err := driver.RunParallel(ctx, cfg.Search.Workers)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("run cancelled")
			metrics.RunsTotal.WithLabelValues(string(RunStatusCancelled)).Inc()
			return
		}
		if search.IsContractViolation(err) {
			e.fail(runID, fmt.Sprintf("performance model contract violation: %v", err))
			return
		}
		e.fail(runID, err.Error())
		return
	}
	metrics.RunDuration.Observe(time.Since(start).Seconds())

	if err := e.store.SetResult(runID, res); err != nil {
		log.Error("failed to store result", "error", err)
	}
	updated, err := e.store.SetStatus(runID, RunStatusCompleted, "")
	if err != nil {
		log.Error("failed to set completed status", "error", err)
		return
	}
	if updated.Status == RunStatusCompleted {
		metrics.RunsTotal.WithLabelValues(string(RunStatusCompleted)).Inc()
		log.Info("run completed",
			"configurations", res.Configurations,
			"feasible", res.Stats.Feasible,
			"duration", res.Stats.Duration)
	}
}

func (e *RunExecutor) notify(runID string) {
	if e.notifier == nil {
		return
	}
	rec, ok := e.store.Get(runID)
	if !ok || rec.Input.CallbackURL == "" {
		return
	}
	e.notifier.Notify(rec.Input.CallbackURL, rec.Input.CallbackSecret, rec)
}
