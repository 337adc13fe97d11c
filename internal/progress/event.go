// Package progress defines the event structures emitted by the job tracker.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of transition represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobCreated   Stage = "JOB_CREATED"
	StageJobReported  Stage = "JOB_REPORTED"
	StageJobProgress  Stage = "JOB_PROGRESS"
	StageJobCompleted Stage = "JOB_COMPLETED"
	StageJobError     Stage = "JOB_ERROR"
	StageJobExpired   Stage = "JOB_EXPIRED"
)

// Event captures a single tracker transition.
type Event struct {
	// JobID is the caller-supplied job key.
	JobID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Status is the job status after the transition.
	Status string
	// Total and Completed are the counters after the transition.
	Total     int
	Completed int
	// Dur is the time elapsed since the job's first report.
	Dur time.Duration
	// Note carries the job error message, if any.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobCreated, StageJobReported, StageJobProgress, StageJobCompleted, StageJobExpired:
	case StageJobError:
		if e.Status == "" {
			return errors.New("job error requires status")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Terminal reports whether the event marks the end of a job.
func (e Event) Terminal() bool {
	return e.Stage == StageJobCompleted || e.Stage == StageJobError
}
