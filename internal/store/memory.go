package store

import (
	"errors"
	"slices"
	"sync"

	"github.com/i474232898/barra2-point/internal/reanalysis"
)

var (
	// ErrNotFound is returned when no run has been recorded yet.
	ErrNotFound = errors.New("no runs recorded")
)

// MemoryStore is a concurrency-safe in-memory run history.
type MemoryStore struct {
	mu sync.RWMutex

	// oldest first
	runs []reanalysis.RunSummary

	// retention configuration
	maxHistory int // max number of runs kept
}

// NewMemoryStore creates a new MemoryStore.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
	}
}

// SaveRun appends a run and enforces retention.
func (s *MemoryStore) SaveRun(summary reanalysis.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary.Variables = slices.Clone(summary.Variables)
	s.runs = append(s.runs, summary)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.runs) > s.maxHistory {
		over := len(s.runs) - s.maxHistory
		s.runs = slices.Delete(s.runs, 0, over)
	}
}

// GetLatest returns the most recent run.
func (s *MemoryStore) GetLatest() (reanalysis.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return reanalysis.RunSummary{}, ErrNotFound
	}
	return s.runs[len(s.runs)-1], nil
}

// List returns all retained runs, newest first.
func (s *MemoryStore) List() ([]reanalysis.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return nil, ErrNotFound
	}
	out := slices.Clone(s.runs)
	slices.Reverse(out)
	return out, nil
}

var _ reanalysis.RunStore = (*MemoryStore)(nil)
