package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := httpRequestsTotal
	Init()
	if httpRequestsTotal != first {
		t.Fatal("Init() re-created collectors")
	}
}

func TestObserveSweep(t *testing.T) {
	Init()
	sweeps := testutil.ToFloat64(trackerSweepsTotal)
	evicted := testutil.ToFloat64(trackerEvictedTotal)

	ObserveSweep(3, 7)

	if got := testutil.ToFloat64(trackerSweepsTotal) - sweeps; got != 1 {
		t.Errorf("expected one sweep, got %f", got)
	}
	if got := testutil.ToFloat64(trackerEvictedTotal) - evicted; got != 3 {
		t.Errorf("expected three evictions, got %f", got)
	}
	if got := testutil.ToFloat64(trackerLiveJobs); got != 7 {
		t.Errorf("expected live gauge 7, got %f", got)
	}
}

func TestHandlerServesCollectors(t *testing.T) {
	Init()
	ObserveSweep(0, 0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tracker_sweeps_total") {
		t.Fatal("expected tracker_sweeps_total in scrape output")
	}
}
