// Package queue implements the priority-ordered task queue that
// serializes all mutating synchronization work.
//
// Tasks are deduplicated by key with at-most-one-active-task-per-key
// semantics: enqueuing an existing key merges the priorities (smaller
// wins) instead of creating a duplicate. A bounded worker pool executes
// tasks in priority order, ties broken by arrival, and a cooperative
// blocking gate lets latency-sensitive user operations land without
// racing background reconciliation.
package queue
