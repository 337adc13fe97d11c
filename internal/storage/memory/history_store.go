// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/JakeFAU/job-progress-tracker/internal/store"
)

// Defaults applied by NewHistoryStore.
const (
	// DefaultMaxPerJob bounds memory for chatty jobs.
	DefaultMaxPerJob = 1000
	// DefaultMaxJobs bounds how many job logs are held at once.
	DefaultMaxJobs = 10000
	// DefaultTTL is how long a log survives after its job's last event.
	DefaultTTL = time.Hour
)

// HistoryConfig bounds a HistoryStore. Zero values select the defaults.
type HistoryConfig struct {
	MaxPerJob int
	MaxJobs   int
	TTL       time.Duration
}

// HistoryStore keeps progress history in process memory. Each job's log is
// capped at MaxPerJob entries, dropping the oldest first. Logs are reclaimed
// TTL after the job's last event, and the least recently written log is
// dropped once MaxJobs logs are held.
type HistoryStore struct {
	mu        sync.Mutex
	logs      *expirable.LRU[string, []store.HistoryEntry]
	maxPerJob int
}

// NewHistoryStore constructs a HistoryStore.
func NewHistoryStore(cfg HistoryConfig) *HistoryStore {
	if cfg.MaxPerJob <= 0 {
		cfg.MaxPerJob = DefaultMaxPerJob
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = DefaultMaxJobs
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &HistoryStore{
		logs:      expirable.NewLRU[string, []store.HistoryEntry](cfg.MaxJobs, nil, cfg.TTL),
		maxPerJob: cfg.MaxPerJob,
	}
}

// AppendHistory appends entries to their jobs' logs and refreshes each
// touched log's TTL.
func (s *HistoryStore) AppendHistory(_ context.Context, entries []store.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		if entry.JobID == "" {
			return errors.New("history entry missing job id")
		}
		prev, _ := s.logs.Get(entry.JobID)
		log := make([]store.HistoryEntry, 0, len(prev)+1)
		log = append(append(log, prev...), entry)
		if over := len(log) - s.maxPerJob; over > 0 {
			log = log[over:]
		}
		s.logs.Add(entry.JobID, log)
	}
	return nil
}

// ListHistory returns a copy of one job's log window.
func (s *HistoryStore) ListHistory(_ context.Context, jobID string, limit, offset int) ([]store.HistoryEntry, error) {
	s.mu.Lock()
	log, ok := s.logs.Peek(jobID)
	s.mu.Unlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	if offset >= len(log) {
		return []store.HistoryEntry{}, nil
	}
	end := len(log)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]store.HistoryEntry, end-offset)
	copy(out, log[offset:end])
	return out, nil
}

// Len returns how many job logs are currently held.
func (s *HistoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logs.Len()
}
