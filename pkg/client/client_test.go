package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-progress-tracker/internal/api"
	"github.com/JakeFAU/job-progress-tracker/internal/config"
	"github.com/JakeFAU/job-progress-tracker/internal/tracker"
)

func newTestClient(t *testing.T, cfg config.Config) *Client {
	t.Helper()
	srv := httptest.NewServer(api.NewServer(tracker.New(tracker.Config{}), nil, cfg, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: cfg.Auth.APIKey})
}

func TestClientRoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, config.Config{})
	ctx := context.Background()

	jobID, err := c.NewJobID()
	require.NoError(t, err)

	total := 4
	p, err := c.Report(ctx, Report{JobID: jobID, Total: &total})
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, p.Status)
	require.Equal(t, 4, p.Total)

	p, err = c.UpdateCompleted(ctx, jobID, 9)
	require.NoError(t, err)
	require.Equal(t, 4, p.Completed)

	p, err = c.Get(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, 100, p.Percentage)
	require.False(t, p.Terminal())
}

func TestClientMapsErrors(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, config.Config{})
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = c.Get(ctx, "")
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = c.UpdateCompleted(ctx, "missing", 1)
	require.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Contains(t, apiErr.Message, "job not found")
}

func TestClientSendsAPIKey(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "secret"}})
	_, err := c.Report(context.Background(), Report{JobID: "job"})
	require.NoError(t, err)
}

func TestClientWaitUntilTerminal(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, config.Config{})
	ctx := context.Background()
	_, err := c.Report(ctx, Report{JobID: "job"})
	require.NoError(t, err)

	var polls atomic.Int32
	go func() {
		time.Sleep(30 * time.Millisecond)
		done := StatusCompleted
		_, _ = c.Report(ctx, Report{JobID: "job", Status: &done})
	}()

	p, err := c.Wait(ctx, "job", 10*time.Millisecond, func(Progress) { polls.Add(1) })
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, p.Status)
	require.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestClientWaitHonoursContext(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, config.Config{})
	_, err := c.Report(context.Background(), Report{JobID: "slow"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Wait(ctx, "slow", 10*time.Millisecond, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
