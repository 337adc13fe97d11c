package sinks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/job-progress-tracker/internal/progress"
	"github.com/JakeFAU/job-progress-tracker/internal/store"
)

// TestStoreSinkPersistsEvents ensures each event becomes one history entry.
func TestStoreSinkPersistsEvents(t *testing.T) {
	t.Parallel()

	repo := &fakeHistoryRepo{}
	sink := NewStoreSink(repo, nil)
	now := time.Now().UTC()

	batch := []progress.Event{
		{JobID: "job-1", Stage: progress.StageJobCreated, Status: "processing", TS: now},
		{
			JobID: "job-1", Stage: progress.StageJobError, Status: "error",
			Total: 10, Completed: 3, Dur: 2 * time.Second, Note: "disk full", TS: now.Add(2 * time.Second),
		},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1, repo.calls)
	require.Len(t, repo.entries, 2)
	require.Equal(t, "JOB_CREATED", repo.entries[0].Stage)
	require.Nil(t, repo.entries[0].Note)
	failed := repo.entries[1]
	require.Equal(t, "error", failed.Status)
	require.Equal(t, 3, failed.Completed)
	require.Equal(t, 2*time.Second, failed.Elapsed)
	require.NotNil(t, failed.Note)
	require.Equal(t, "disk full", *failed.Note)
	require.Equal(t, now.Add(2*time.Second), failed.RecordedAt)
}

func TestStoreSinkWrapsRepositoryError(t *testing.T) {
	t.Parallel()

	repo := &fakeHistoryRepo{err: errors.New("db down")}
	sink := NewStoreSink(repo, nil)
	err := sink.Consume(context.Background(), []progress.Event{
		{JobID: "job-1", Stage: progress.StageJobCreated, TS: time.Now()},
	})
	require.ErrorContains(t, err, "db down")
}

func TestStoreSinkSkipsEmptyBatch(t *testing.T) {
	t.Parallel()

	repo := &fakeHistoryRepo{}
	require.NoError(t, NewStoreSink(repo, nil).Consume(context.Background(), nil))
	require.Zero(t, repo.calls)
	require.NoError(t, NewStoreSink(nil, nil).Consume(context.Background(), []progress.Event{{JobID: "x"}}))
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	calls   int
	entries []store.HistoryEntry
	err     error
}

func (f *fakeHistoryRepo) AppendHistory(_ context.Context, entries []store.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeHistoryRepo) ListHistory(_ context.Context, jobID string, _, _ int) ([]store.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.HistoryEntry
	for _, e := range f.entries {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}
