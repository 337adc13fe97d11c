package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-progress-tracker/internal/progress"
	"github.com/JakeFAU/job-progress-tracker/internal/store"
)

// StoreSink persists every event as a history entry via a
// store.HistoryRepository, one append per batch.
type StoreSink struct {
	repo   store.HistoryRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.HistoryRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume converts the batch and forwards it to the repository. It respects
// ctx deadlines and wraps repository errors.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil || len(batch) == 0 {
		return nil
	}
	entries := make([]store.HistoryEntry, 0, len(batch))
	for _, evt := range batch {
		entries = append(entries, historyEntry(evt))
	}
	if err := s.repo.AppendHistory(ctx, entries); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	s.logger.Debug("history persisted", zap.Int("entries", len(entries)))
	return nil
}

func historyEntry(evt progress.Event) store.HistoryEntry {
	entry := store.HistoryEntry{
		JobID:      evt.JobID,
		Stage:      string(evt.Stage),
		Status:     evt.Status,
		Total:      evt.Total,
		Completed:  evt.Completed,
		Elapsed:    evt.Dur,
		RecordedAt: evt.TS,
	}
	if evt.Note != "" {
		note := evt.Note
		entry.Note = &note
	}
	return entry
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
