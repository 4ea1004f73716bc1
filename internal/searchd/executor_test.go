package searchd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
)

// smallSearchYAML enumerates a handful of configurations against the default
// catalogue.
const smallSearchYAML = `
gauge_mm: 200
heads: ["ap_head"]
variable_modules: ["solid_body", "sabot_body"]
budget_ceiling: 3
search: {workers: 2}
`

func newTestExecutor(t *testing.T, maxConcurrent int) (*RunStore, *RunExecutor) {
	t.Helper()
	store := NewRunStore()
	exec := NewRunExecutor(store, nil, maxConcurrent)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = exec.Shutdown(ctx)
	})
	return store, exec
}

func waitForStatus(t *testing.T, store *RunStore, runID string, want RunStatus) *RunRecord {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, ok := store.Get(runID)
		return ok && rec.Status == want
	}, 10*time.Second, 10*time.Millisecond, "run %s never reached %s", runID, want)
	rec, _ := store.Get(runID)
	return rec
}

func TestExecutorCompletesRun(t *testing.T) {
	store, exec := newTestExecutor(t, 1)
	_, err := store.Create("run-ok", RunInput{ConfigYAML: smallSearchYAML})
	require.NoError(t, err)

	started, err := exec.Start("run-ok")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, started.Status)
	assert.NotZero(t, started.StartedAtUnixMs)

	rec := waitForStatus(t, store, "run-ok", RunStatusCompleted)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "run-ok", rec.Result.RunID)
	assert.Equal(t, uint64(10), rec.Result.Configurations)
	assert.NotZero(t, rec.EndedAtUnixMs)

	// every category is reported, filled or not
	var categories []models.Category
	for _, s := range rec.Result.Standings {
		categories = append(categories, s.Category)
	}
	assert.Contains(t, categories, models.CategoryBelt)
	assert.Contains(t, categories, models.CategoryDIF)
}

func TestExecutorStartIsIdempotentWhileRunning(t *testing.T) {
	store, exec := newTestExecutor(t, 1)
	// hold the only slot so the run stays queued
	exec.slots <- struct{}{}
	defer func() { <-exec.slots }()

	_, err := store.Create("run-q", RunInput{ConfigYAML: smallSearchYAML})
	require.NoError(t, err)
	_, err = exec.Start("run-q")
	require.NoError(t, err)

	again, err := exec.Start("run-q")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, again.Status)

	_, err = exec.Stop("run-q")
	require.NoError(t, err)
}

func TestExecutorStopQueuedRun(t *testing.T) {
	store, exec := newTestExecutor(t, 1)
	exec.slots <- struct{}{}
	defer func() { <-exec.slots }()

	_, err := store.Create("run-stop", RunInput{ConfigYAML: smallSearchYAML})
	require.NoError(t, err)
	_, err = exec.Start("run-stop")
	require.NoError(t, err)

	stopped, err := exec.Stop("run-stop")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCancelled, stopped.Status)

	// the goroutine observes cancellation and exits without touching the status
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, exec.Shutdown(ctx))
	rec, _ := store.Get("run-stop")
	assert.Equal(t, RunStatusCancelled, rec.Status)
	assert.Nil(t, rec.Result)

	_, err = exec.Stop("run-stop")
	assert.True(t, errors.Is(err, ErrRunTerminal))
	_, err = exec.Start("run-stop")
	assert.True(t, errors.Is(err, ErrRunTerminal))
}

func TestExecutorStopPendingRun(t *testing.T) {
	store, exec := newTestExecutor(t, 1)
	_, err := store.Create("run-pending", RunInput{ConfigYAML: smallSearchYAML})
	require.NoError(t, err)

	stopped, err := exec.Stop("run-pending")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCancelled, stopped.Status)
}

func TestExecutorErrors(t *testing.T) {
	_, exec := newTestExecutor(t, 1)

	_, err := exec.Start("")
	assert.ErrorIs(t, err, ErrRunIDMissing)
	_, err = exec.Stop("")
	assert.ErrorIs(t, err, ErrRunIDMissing)
	_, err = exec.Start("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = exec.Stop("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestExecutorFailsOnUnknownModule(t *testing.T) {
	store, exec := newTestExecutor(t, 1)
	_, err := store.Create("run-bad", RunInput{ConfigYAML: "gauge_mm: 200\nheads: [warp_head]\n"})
	require.NoError(t, err)
	_, err = exec.Start("run-bad")
	require.NoError(t, err)

	rec := waitForStatus(t, store, "run-bad", RunStatusFailed)
	assert.Contains(t, rec.Error, "warp_head")
	assert.Nil(t, rec.Result)
}

func TestExecutorFailsOnInvalidConfig(t *testing.T) {
	store, exec := newTestExecutor(t, 1)
	_, err := store.Create("run-yaml", RunInput{ConfigYAML: "gauge_mm: [1"})
	require.NoError(t, err)
	_, err = exec.Start("run-yaml")
	require.NoError(t, err)

	rec := waitForStatus(t, store, "run-yaml", RunStatusFailed)
	assert.Contains(t, rec.Error, "failed to parse search config yaml")
}
