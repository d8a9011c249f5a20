// Package status exposes the observability surface over HTTP: liveness
// and readiness probes, Prometheus metrics, a JSON status snapshot
// (queue depth, index totals, recent sync events) and an out-of-band
// per-account sync trigger.
package status
