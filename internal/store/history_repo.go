// Package store declares interfaces for persisting job progress history.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that no history exists for the requested job.
var ErrNotFound = errors.New("progress history not found")

// HistoryEntry is one recorded tracker transition.
type HistoryEntry struct {
	// JobID is the caller-supplied job key.
	JobID string
	// Stage is the progress stage (JOB_CREATED, JOB_COMPLETED, ...).
	Stage string
	// Status is the job status after the transition.
	Status    string
	Total     int
	Completed int
	// Elapsed is the time since the job's first report.
	Elapsed time.Duration
	// Note optionally stores the job error message.
	Note *string
	// RecordedAt is when the transition happened.
	RecordedAt time.Time
}

// HistoryRepository persists tracker transitions so that job outcomes outlive
// the in-memory records.
type HistoryRepository interface {
	// AppendHistory stores entries in order.
	AppendHistory(ctx context.Context, entries []HistoryEntry) error
	// ListHistory returns entries for one job, oldest first, with limit/offset.
	ListHistory(ctx context.Context, jobID string, limit, offset int) ([]HistoryEntry, error)
}
