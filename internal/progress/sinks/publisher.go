package sinks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-progress-tracker/internal/progress"
	"github.com/JakeFAU/job-progress-tracker/internal/publisher"
)

// Notification is the payload announced when a job finishes.
type Notification struct {
	JobID       string    `json:"jobId"`
	Status      string    `json:"status"`
	Total       int       `json:"total"`
	Completed   int       `json:"completed"`
	ElapsedTime int64     `json:"elapsedTime"`
	Error       string    `json:"error,omitempty"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// PublisherSink announces terminal job transitions on a topic so other
// services can react without polling.
type PublisherSink struct {
	pub    publisher.Publisher
	topic  string
	logger *zap.Logger
}

// NewPublisherSink constructs a PublisherSink for topic.
func NewPublisherSink(pub publisher.Publisher, topic string, logger *zap.Logger) *PublisherSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{pub: pub, topic: topic, logger: logger}
}

// Consume publishes one notification per JOB_COMPLETED or JOB_ERROR event. The
// tracker emits those only for reports that carry a terminal status, so a
// repeated terminal report notifies again. Every event is attempted; failures
// are joined into the returned error.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.pub == nil {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		if !evt.Terminal() {
			continue
		}
		note := Notification{
			JobID:       evt.JobID,
			Status:      evt.Status,
			Total:       evt.Total,
			Completed:   evt.Completed,
			ElapsedTime: evt.Dur.Milliseconds(),
			Error:       evt.Note,
			FinishedAt:  evt.TS,
		}
		attrs := map[string]string{
			"job_id": evt.JobID,
			"status": evt.Status,
			"stage":  string(evt.Stage),
		}
		id, err := s.pub.Publish(ctx, s.topic, note, attrs)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish %s for job %s: %w", evt.Stage, evt.JobID, err))
			continue
		}
		s.logger.Debug("job outcome published", zap.String("job_id", evt.JobID), zap.String("message_id", id))
	}
	return errors.Join(errs...)
}

// Close closes the publisher when it supports closing.
func (s *PublisherSink) Close(context.Context) error {
	if s == nil || s.pub == nil {
		return nil
	}
	if closer, ok := s.pub.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
