// Package metrics defines all Prometheus metrics exported by the sync
// service: task queue depth and throughput, reconciliation activity,
// cache artifact generation, scheduler adaptation, database and backend
// call health.
//
// Metrics are registered at package init via promauto and exported by
// the status server's /metrics endpoint.
package metrics
