package tracker

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strings"
	"time"
)

var (
	// ErrValidation signals a request missing a required identifier or field.
	ErrValidation = errors.New("invalid progress request")
	// ErrNotFound signals that no live record exists for the job ID.
	ErrNotFound = errors.New("job not found")
)

// Status is the lifecycle state of a tracked job.
type Status string

// Job statuses.
const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether records in this status are scheduled for removal.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ParseStatus converts user input into a Status.
func ParseStatus(input string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(input))) {
	case StatusProcessing:
		return StatusProcessing, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusError:
		return StatusError, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, input)
	}
}

// ReportInput is a partial update. Nil fields leave the stored value unchanged.
type ReportInput struct {
	JobID  string
	Total  *int
	Status *Status
	Error  *string
}

// Snapshot is a point-in-time read of a job record.
type Snapshot struct {
	JobID       string
	Total       int
	Completed   int
	Status      Status
	Percentage  int
	ElapsedTime time.Duration
	Error       string
	StartTime   time.Time
	UpdatedAt   time.Time
	// ExpiresAt is zero unless the job is terminal.
	ExpiresAt time.Time
}

type record struct {
	total     int
	completed int
	status    Status
	errMsg    string
	startTime time.Time
	updatedAt time.Time
	expiresAt time.Time
}

func (r *record) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && !now.Before(r.expiresAt)
}

func (r *record) snapshot(jobID string, now time.Time) Snapshot {
	elapsed := now.Sub(r.startTime)
	if elapsed < 0 {
		elapsed = 0
	}
	return Snapshot{
		JobID:       jobID,
		Total:       r.total,
		Completed:   r.completed,
		Status:      r.status,
		Percentage:  Percentage(r.completed, r.total),
		ElapsedTime: elapsed,
		Error:       r.errMsg,
		StartTime:   r.startTime,
		UpdatedAt:   r.updatedAt,
		ExpiresAt:   r.expiresAt,
	}
}

// Percentage returns round(100*completed/total), rounding halves up, or 0 when
// total is not positive. The result saturates at math.MaxInt when completed
// dwarfs total.
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	q, r := completed/total, completed%total
	if q > (math.MaxInt-100)/100 {
		return math.MaxInt
	}
	// round(100*r/total) = floor((200r + total) / 2total), computed in 128 bits.
	hi, lo := bits.Mul64(uint64(r), 200)
	lo, carry := bits.Add64(lo, uint64(total), 0)
	frac, _ := bits.Div64(hi+carry, lo, 2*uint64(total))
	return 100*q + int(frac)
}
