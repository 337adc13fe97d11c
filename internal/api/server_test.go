package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-progress-tracker/internal/config"
	"github.com/JakeFAU/job-progress-tracker/internal/storage/memory"
	"github.com/JakeFAU/job-progress-tracker/internal/tracker"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(config.Config{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestServer_RequestIDHeader(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(config.Config{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, "caller-id", rec.Header().Get("X-Request-ID"))
}

func TestServer_APIKeyRequired(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "secret"}})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress?jobId=a", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/progress", bytes.NewBufferString(`{"jobId":"a"}`))
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code, "probes stay open when auth is enabled")
}

func TestServer_MetricsRouteToggle(t *testing.T) {
	t.Parallel()

	disabled, _ := newTestServer(config.Config{})
	rec := httptest.NewRecorder()
	disabled.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	enabled, _ := newTestServer(config.Config{Metrics: config.MetricsConfig{Enabled: true}})
	rec = httptest.NewRecorder()
	enabled.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RateLimitsWrites(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(config.Config{Server: config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 2}})

	for i := 0; i < 2; i++ {
		rec := do(t, server, http.MethodPost, "/api/progress", `{"jobId":"limited"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, server, http.MethodPost, "/api/progress", `{"jobId":"limited"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = do(t, server, http.MethodGet, "/api/progress?jobId=limited", "")
	require.Equal(t, http.StatusOK, rec.Code, "reads are not rate limited")

	req := httptest.NewRequest(http.MethodPut, "/api/progress", bytes.NewBufferString(`{"jobId":"limited","completed":0}`))
	req.Header.Set("X-API-Key", "other-client")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "each client has its own bucket")
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	server := NewServer(panicService{}, nil, config.Config{}, zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress?jobId=a", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func newTestServer(cfg config.Config) (*Server, *apiFakeClock) {
	clock := &apiFakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	tr := tracker.New(tracker.Config{Clock: clock})
	return NewServer(tr, memory.NewHistoryStore(memory.HistoryConfig{}), cfg, zap.NewNop()), clock
}
