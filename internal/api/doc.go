// Package api exposes the read-only HTTP surface of a running harvest:
// liveness, Prometheus metrics, and the current run snapshot.
package api
