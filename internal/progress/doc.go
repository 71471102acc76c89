// Package progress provides the event primitives, non-blocking hub, and emitter
// interface the pipeline uses to report run progress. The hub batches events on
// a background goroutine and fans them out to pluggable sinks: structured logs,
// Prometheus collectors, Pub/Sub notifications, and the status endpoint.
package progress
