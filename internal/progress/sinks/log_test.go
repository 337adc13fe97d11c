package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/job-progress-tracker/internal/progress"
)

func TestLogSinkWritesStructuredFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{JobID: "job-1", Stage: progress.StageJobError, Status: "error", Note: "boom", TS: time.Now()},
	}))

	entries := logs.FilterMessage("progress event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "job-1", fields["job_id"])
	require.Equal(t, "JOB_ERROR", fields["stage"])
	require.Equal(t, "boom", fields["note"])
	require.NoError(t, sink.Close(context.Background()))
}
