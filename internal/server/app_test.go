package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/job-progress-tracker/internal/config"
	memorypublisher "github.com/JakeFAU/job-progress-tracker/internal/publisher/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 5},
		Tracker: config.TrackerConfig{RetentionSeconds: 300, SweepIntervalSeconds: 30},
		Progress: config.ProgressConfig{
			BufferSize:        64,
			BatchMaxEvents:    1,
			BatchMaxWaitMS:    10,
			SinkTimeoutMS:     1000,
			HistoryEnabled:    true,
			HistoryMaxPerJob:  100,
			PrometheusEnabled: true,
			PublishEnabled:    true,
		},
		Client: config.ClientConfig{PollIntervalSeconds: 1},
	}
}

func TestBuildWiresTrackerHistoryAndPublisher(t *testing.T) {
	t.Parallel()

	app, err := Build(context.Background(), testConfig(),
		WithLogger(zap.NewNop()),
		WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	require.NotNil(t, app.Tracker())

	post := func(body string) {
		rec := httptest.NewRecorder()
		app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/progress", bytes.NewBufferString(body)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	post(`{"jobId":"job-1","total":2}`)
	post(`{"jobId":"job-1","status":"completed"}`)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress/job-1/history", nil))
		return rec.Code == http.StatusOK && bytes.Contains(rec.Body.Bytes(), []byte("JOB_COMPLETED"))
	}, 2*time.Second, 10*time.Millisecond)

	pub, ok := app.publisher.(*memorypublisher.Publisher)
	require.True(t, ok, "expected in-memory publisher without pubsub config")
	require.Eventually(t, func() bool { return len(pub.Messages()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, app.Close(context.Background()))
}

func TestBuildWithoutSinks(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Progress.HistoryEnabled = false
	cfg.Progress.PrometheusEnabled = false
	cfg.Progress.PublishEnabled = false

	app, err := Build(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.Nil(t, app.progressHub)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress/x/history", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, app.Close(context.Background()))
}

func TestBuildRejectsBadDSN(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Database.DSN = "://not a dsn"
	_, err := Build(context.Background(), cfg, WithLogger(zap.NewNop()), WithRegisterer(prometheus.NewRegistry()))
	require.Error(t, err)
}

func TestBuildWithTracing(t *testing.T) {
	cfg := testConfig()
	cfg.Progress.PublishEnabled = false
	cfg.Telemetry = config.TelemetryConfig{TracingEnabled: true, ServiceName: "job-progress-tracker", SampleRatio: 1}

	app, err := Build(context.Background(), cfg, WithLogger(zap.NewNop()), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NotNil(t, app.tracer)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, app.Close(context.Background()))
}

func TestBuildReleasesResourcesOnFailure(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "progress_jobs_created_total",
		Help: "already taken",
	}))
	core, logs := observer.New(zap.InfoLevel)

	cfg := testConfig()
	_, err := Build(context.Background(), cfg, WithLogger(zap.New(core)), WithRegisterer(reg))
	require.ErrorContains(t, err, "prometheus sink init failed")
	require.Equal(t, 1, logs.FilterMessage("shutdown complete").Len())
}
