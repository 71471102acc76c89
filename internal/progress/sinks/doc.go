// Package sinks implements concrete progress consumers: structured logging,
// Prometheus collectors, Pub/Sub notifications, and an in-memory status
// tracker. Each sink satisfies the progress.Sink interface and is safe for
// repeated Consume/Close cycles.
package sinks
