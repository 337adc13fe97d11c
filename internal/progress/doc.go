// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces that the tracker uses to report job transitions. It batches events
// on a background goroutine and fans them out to pluggable sinks such as
// Prometheus metrics, notification publishers, or a persistent history log.
package progress
