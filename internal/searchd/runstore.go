package searchd

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/GoSim-25-26J-441/shell-search/internal/search"
	"github.com/GoSim-25-26J-441/shell-search/pkg/utils"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// ParseRunStatus parses a status name, case-insensitively. Unknown names return
// the empty status.
func ParseRunStatus(s string) RunStatus {
	switch st := RunStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return st
	}
	return ""
}

// RunInput is what a client submits.
type RunInput struct {
	ConfigYAML     string `json:"config_yaml"`
	CallbackURL    string `json:"callback_url,omitempty"`
	CallbackSecret string `json:"-"`
}

// RunRecord is the stored state of one run.
type RunRecord struct {
	ID              string         `json:"id"`
	Status          RunStatus      `json:"status"`
	Error           string         `json:"error,omitempty"`
	CreatedAtUnixMs int64          `json:"created_at_unix_ms"`
	StartedAtUnixMs int64          `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64          `json:"ended_at_unix_ms,omitempty"`
	Input           RunInput       `json:"input"`
	Result          *search.Result `json:"result,omitempty"`
}

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunExists    = errors.New("run already exists")
	ErrInvalidRunID = errors.New("invalid run id")
)

// RunStore keeps runs in memory. With a database attached, terminal runs are
// persisted and reloaded on open.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]*RunRecord
	order []string

	db *badger.DB
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

const runKeyPrefix = "run/"

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenRunStore opens a store persisted under dir. An empty dir keeps the
// database in memory.
func OpenRunStore(dir string, logger *slog.Logger) (*RunStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create run store directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	s := NewRunStore()
	s.db = db
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *RunStore) load() error {
	var recs []*RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec RunRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
				}
				recs = append(recs, &rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load run store: %w", err)
	}

	// keys are ordered by id, the list is ordered by creation
	slices.SortStableFunc(recs, func(a, b *RunRecord) int {
		return cmp.Compare(a.CreatedAtUnixMs, b.CreatedAtUnixMs)
	})
	for _, rec := range recs {
		s.runs[rec.ID] = rec
		s.order = append(s.order, rec.ID)
	}
	return nil
}

func (s *RunStore) persist(rec *RunRecord) error {
	if s.db == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runKeyPrefix+rec.ID), data)
	})
}

// Close releases the database, if any.
func (s *RunStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

func (s *RunStore) Create(runID string, input RunInput) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if !utils.IsValidRunID(runID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	rec := &RunRecord{
		ID:              runID,
		Status:          RunStatusPending,
		CreatedAtUnixMs: nowUnixMs(),
		Input:           input,
	}
	s.runs[runID] = rec
	s.order = append(s.order, runID)
	cp := *rec
	return &cp, nil
}

// Get returns a snapshot of a run.
func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// List returns up to limit runs in creation order.
func (s *RunStore) List(limit int) []*RunRecord {
	return s.ListFiltered(limit, 0, "")
}

// ListFiltered pages through runs in creation order, optionally keeping only one
// status.
func (s *RunStore) ListFiltered(limit, offset int, status RunStatus) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*RunRecord, 0, min(limit, len(s.order)))
	skipped := 0
	for _, id := range s.order {
		rec := s.runs[id]
		if status != "" && rec.Status != status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		cp := *rec
		out = append(out, &cp)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// SetStatus moves a run to status. Terminal runs keep their status; the returned
// record then reflects the unchanged state.
func (s *RunStore) SetStatus(runID string, status RunStatus, errMsg string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Status.Terminal() {
		cp := *rec
		return &cp, nil
	}

	rec.Status = status
	if errMsg != "" {
		rec.Error = errMsg
	}

	switch status {
	case RunStatusRunning:
		if rec.StartedAtUnixMs == 0 {
			rec.StartedAtUnixMs = nowUnixMs()
		}
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		rec.EndedAtUnixMs = nowUnixMs()
		if err := s.persist(rec); err != nil {
			return nil, fmt.Errorf("persist run %s: %w", runID, err)
		}
	}

	cp := *rec
	return &cp, nil
}

// SetResult attaches the search result to a run.
func (s *RunStore) SetResult(runID string, res *search.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.Result = res
	return nil
}
