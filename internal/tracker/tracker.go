package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-progress-tracker/internal/clock/system"
	"github.com/JakeFAU/job-progress-tracker/internal/progress"
)

// DefaultRetention is how long a terminal record stays readable.
const DefaultRetention = 5 * time.Minute

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Config wires the Tracker's collaborators. Every field is optional.
type Config struct {
	// Clock defaults to the wall clock in UTC.
	Clock Clock
	// Retention defaults to DefaultRetention.
	Retention time.Duration
	// Emitter receives one event per transition; nil disables events.
	Emitter progress.Emitter
	Logger  *zap.Logger
}

// Tracker is an in-memory keyed store of job progress records. It is safe for
// concurrent use.
type Tracker struct {
	mu        sync.Mutex
	jobs      map[string]*record
	clock     Clock
	retention time.Duration
	emitter   progress.Emitter
	logger    *zap.Logger
}

// New constructs an empty Tracker.
func New(cfg Config) *Tracker {
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Tracker{
		jobs:      make(map[string]*record),
		clock:     cfg.Clock,
		retention: cfg.Retention,
		emitter:   cfg.Emitter,
		logger:    cfg.Logger,
	}
}

// Retention returns the delay between a terminal report and eviction.
func (t *Tracker) Retention() time.Duration {
	return t.retention
}

// Get returns the current snapshot for jobID.
func (t *Tracker) Get(_ context.Context, jobID string) (Snapshot, error) {
	jobID, err := normalizeJobID(jobID)
	if err != nil {
		return Snapshot{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	rec, ok := t.lookup(jobID, now)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return rec.snapshot(jobID, now), nil
}

// Report creates the record if needed and applies a partial update. Reporting
// StatusCompleted snaps the completed count to the total. A record left in a
// terminal status is (re)scheduled for eviction after the retention period;
// a record moved back to processing has its eviction cancelled.
func (t *Tracker) Report(_ context.Context, in ReportInput) (Snapshot, error) {
	jobID, err := normalizeJobID(in.JobID)
	if err != nil {
		return Snapshot{}, err
	}
	if in.Total != nil && *in.Total < 0 {
		return Snapshot{}, fmt.Errorf("%w: total must be >= 0", ErrValidation)
	}
	var status Status
	if in.Status != nil {
		if status, err = ParseStatus(string(*in.Status)); err != nil {
			return Snapshot{}, err
		}
	}

	t.mu.Lock()
	now := t.clock.Now()
	rec, ok := t.lookup(jobID, now)
	if !ok {
		rec = &record{status: StatusProcessing, startTime: now}
		t.jobs[jobID] = rec
	}
	if in.Total != nil {
		rec.total = *in.Total
	}
	if in.Status != nil {
		rec.status = status
		if rec.status == StatusCompleted {
			rec.completed = rec.total
		}
	}
	if in.Error != nil {
		rec.errMsg = *in.Error
	}
	if rec.status.Terminal() {
		rec.expiresAt = now.Add(t.retention)
	} else {
		rec.expiresAt = time.Time{}
	}
	rec.updatedAt = now
	snap := rec.snapshot(jobID, now)
	t.mu.Unlock()

	if !ok {
		t.emit(snap, progress.StageJobCreated, now)
		t.logger.Debug("job tracked", zap.String("job_id", jobID))
	}
	// Only an explicit terminal status finishes a job; a status-less report on a
	// finished record is an ordinary report.
	outcome := StatusProcessing
	if in.Status != nil {
		outcome = snap.Status
	}
	switch outcome {
	case StatusCompleted:
		t.emit(snap, progress.StageJobCompleted, now)
		t.logger.Info("job completed",
			zap.String("job_id", jobID),
			zap.Int("total", snap.Total),
			zap.Duration("elapsed", snap.ElapsedTime),
		)
	case StatusError:
		t.emit(snap, progress.StageJobError, now)
		t.logger.Warn("job failed", zap.String("job_id", jobID), zap.String("error", snap.Error))
	default:
		t.emit(snap, progress.StageJobReported, now)
	}
	return snap, nil
}

// UpdateCompleted sets the completed count, clamped to the stored total. A nil
// completed is rejected so that an omitted value is never mistaken for zero.
// The status is left unchanged.
func (t *Tracker) UpdateCompleted(_ context.Context, jobID string, completed *int) (Snapshot, error) {
	jobID, err := normalizeJobID(jobID)
	if err != nil {
		return Snapshot{}, err
	}
	if completed == nil {
		return Snapshot{}, fmt.Errorf("%w: completed is required", ErrValidation)
	}
	if *completed < 0 {
		return Snapshot{}, fmt.Errorf("%w: completed must be >= 0", ErrValidation)
	}

	t.mu.Lock()
	now := t.clock.Now()
	rec, ok := t.lookup(jobID, now)
	if !ok {
		t.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	rec.completed = min(*completed, rec.total)
	rec.updatedAt = now
	snap := rec.snapshot(jobID, now)
	t.mu.Unlock()

	t.emit(snap, progress.StageJobProgress, now)
	return snap, nil
}

// Sweep evicts every record whose retention period has elapsed and returns how
// many were removed.
func (t *Tracker) Sweep(_ context.Context) int {
	t.mu.Lock()
	now := t.clock.Now()
	var evicted []Snapshot
	for jobID, rec := range t.jobs {
		if rec.expired(now) {
			evicted = append(evicted, rec.snapshot(jobID, now))
			delete(t.jobs, jobID)
		}
	}
	t.mu.Unlock()

	for _, snap := range evicted {
		t.emit(snap, progress.StageJobExpired, now)
	}
	return len(evicted)
}

// Len returns the number of live records.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	n := 0
	for _, rec := range t.jobs {
		if !rec.expired(now) {
			n++
		}
	}
	return n
}

// lookup returns the live record for jobID, evicting it first if it expired.
// Callers must hold t.mu; Emit never blocks.
func (t *Tracker) lookup(jobID string, now time.Time) (*record, bool) {
	rec, ok := t.jobs[jobID]
	if !ok {
		return nil, false
	}
	if rec.expired(now) {
		delete(t.jobs, jobID)
		t.emit(rec.snapshot(jobID, now), progress.StageJobExpired, now)
		return nil, false
	}
	return rec, true
}

func (t *Tracker) emit(snap Snapshot, stage progress.Stage, now time.Time) {
	if t.emitter == nil {
		return
	}
	t.emitter.Emit(progress.Event{
		JobID:     snap.JobID,
		TS:        now,
		Stage:     stage,
		Status:    string(snap.Status),
		Total:     snap.Total,
		Completed: snap.Completed,
		Dur:       snap.ElapsedTime,
		Note:      snap.Error,
	})
}

func normalizeJobID(jobID string) (string, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return "", fmt.Errorf("%w: jobId is required", ErrValidation)
	}
	return jobID, nil
}
