package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-progress-tracker/internal/metrics"
)

// DefaultSweepInterval is how often the Janitor evicts expired records.
const DefaultSweepInterval = 30 * time.Second

// Janitor periodically sweeps expired records out of a Tracker so memory is
// reclaimed even for jobs that are never polled again.
type Janitor struct {
	scheduler *gocron.Scheduler
	tracker   *Tracker
	logger    *zap.Logger
}

// NewJanitor schedules Sweep every interval. The schedule does not run until
// Start is called.
func NewJanitor(t *Tracker, interval time.Duration, logger *zap.Logger) (*Janitor, error) {
	if t == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Janitor{
		scheduler: gocron.NewScheduler(time.UTC),
		tracker:   t,
		logger:    logger,
	}
	j.scheduler.SingletonModeAll()
	if _, err := j.scheduler.Every(interval).Do(j.sweep); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	return j, nil
}

// Start runs the schedule in the background.
func (j *Janitor) Start() {
	j.logger.Info("expiry sweeper started")
	j.scheduler.StartAsync()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.scheduler.Stop()
	j.logger.Info("expiry sweeper stopped")
}

func (j *Janitor) sweep() {
	n := j.tracker.Sweep(context.Background())
	metrics.ObserveSweep(n, j.tracker.Len())
	if n > 0 {
		j.logger.Debug("expired jobs evicted", zap.Int("count", n))
	}
}
