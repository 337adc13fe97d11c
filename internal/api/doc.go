// Package api hosts the HTTP server, middleware, and REST handlers for the
// progress polling protocol. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET, POST and PUT /api/progress for reading, reporting and counting.
//   - GET /api/progress/{job_id}/history for the persisted transition log.
package api
