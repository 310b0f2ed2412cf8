package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/attrition/pkg/metrics"
)

// MemoryStore keeps the most recent runs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]Run
	order []string // insertion order, oldest first
	opts  options
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]Run),
		opts: buildOptions(opts),
	}
}

// Save stores run, evicting the oldest runs past the retention bound.
func (s *MemoryStore) Save(_ context.Context, run Run) error {
	if err := validateRun(run); err != nil {
		metrics.RecordHistoryWrite(false)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; !exists {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = run

	for len(s.order) > s.opts.maxRuns {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	metrics.RecordHistoryWrite(true)
	return nil
}

// Get returns a run by id.
func (s *MemoryStore) Get(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return run, nil
}

// List returns runs ordered by start time, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Run, error) {
	limit, err := checkLimit(limit, s.opts.maxLimit)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of retained runs.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
