// Package metrics exposes Prometheus collectors for the tracker service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	trackerSweepsTotal         prometheus.Counter
	trackerEvictedTotal        prometheus.Counter
	trackerLiveJobs            prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		trackerSweepsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_sweeps_total",
				Help: "Total number of expiry sweeps run.",
			},
		)

		trackerEvictedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_evicted_total",
				Help: "Total number of records evicted by expiry sweeps.",
			},
		)

		trackerLiveJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracker_live_jobs",
				Help: "Number of live job records after the last sweep.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSweep records one sweep that evicted n records and left live records.
func ObserveSweep(evicted, live int) {
	if trackerSweepsTotal == nil {
		return
	}
	trackerSweepsTotal.Inc()
	trackerEvictedTotal.Add(float64(evicted))
	trackerLiveJobs.Set(float64(live))
}
