package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/job-progress-tracker/internal/progress"
)

// PrometheusSink exports job progress metrics via Prometheus. It owns the
// collectors for jobs created, finished, active and expired.
type PrometheusSink struct {
	jobsCreated     prometheus.Counter
	jobsFinished    *prometheus.CounterVec
	jobsActive      prometheus.Gauge
	jobRuntime      *prometheus.HistogramVec
	progressUpdates prometheus.Counter
	jobsExpired     prometheus.Counter

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progress_jobs_created_total",
			Help: "Total jobs that have been tracked.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_jobs_finished_total",
			Help: "Total jobs reaching a terminal status partitioned by result.",
		}, []string{"result"}),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progress_jobs_active",
			Help: "Current number of jobs in the processing status.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "progress_job_runtime_seconds",
			Help:    "Elapsed time per finished job.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"result"}),
		progressUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progress_updates_total",
			Help: "Completed-count updates applied to tracked jobs.",
		}),
		jobsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progress_jobs_expired_total",
			Help: "Finished jobs evicted after their retention period.",
		}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsCreated,
		s.jobsFinished,
		s.jobsActive,
		s.jobRuntime,
		s.progressUpdates,
		s.jobsExpired,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageJobCreated:
		s.jobsCreated.Inc()
		s.markActive(evt.JobID)
	case progress.StageJobReported:
		// A terminal job moved back to processing counts as active again.
		if evt.Status == "processing" {
			s.markActive(evt.JobID)
		}
	case progress.StageJobProgress:
		s.progressUpdates.Inc()
	case progress.StageJobCompleted:
		s.finish(evt, "success")
	case progress.StageJobError:
		s.finish(evt, "error")
	case progress.StageJobExpired:
		s.jobsExpired.Inc()
		s.markInactive(evt.JobID)
	}
}

// finish counts a job once per transition out of processing; repeated terminal
// reports only refresh retention.
func (s *PrometheusSink) finish(evt progress.Event, result string) {
	if !s.markInactive(evt.JobID) {
		return
	}
	s.jobsFinished.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.jobRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) markActive(jobID string) {
	if s.tracker.start(jobID) {
		s.jobsActive.Inc()
	}
}

func (s *PrometheusSink) markInactive(jobID string) bool {
	if !s.tracker.complete(jobID) {
		return false
	}
	s.jobsActive.Dec()
	return true
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type jobTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newJobTracker() *jobTracker {
	return &jobTracker{running: make(map[string]struct{})}
}

func (t *jobTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *jobTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
