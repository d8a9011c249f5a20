// Package workers sizes the task queue's worker pool, respecting
// container CPU limits and the SYNC_WORKERS override.
package workers
