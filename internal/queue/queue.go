package queue

import (
	"context"
	"sync"
	"time"

	"media-sync/internal/logging"
	"media-sync/internal/metrics"
)

// DefaultMaxParallel bounds how many tasks may execute at once.
// Two slots keeps wide folder trees expanding breadth-first without
// saturating backends or the transcode tooling.
const DefaultMaxParallel = 2

// Priority orders waiting tasks; numerically smaller runs first.
type Priority int

const (
	// PriorityInteractiveBlocking is for direct user file operations
	// (delete/move/rename follow-ups) that must preempt everything.
	PriorityInteractiveBlocking Priority = iota
	// PriorityInteractive is for user-triggered folder syncs.
	PriorityInteractive
	// PriorityNormal is for background reconciliation.
	PriorityNormal
	// PriorityBatch is for expensive work such as video transcoding.
	PriorityBatch
)

// String returns the metrics label for a priority.
func (p Priority) String() string {
	switch p {
	case PriorityInteractiveBlocking:
		return "interactive_blocking"
	case PriorityInteractive:
		return "interactive"
	case PriorityNormal:
		return "normal"
	case PriorityBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// TaskFunc is the body of a queued task.
type TaskFunc func(ctx context.Context) error

type taskStatus int

const (
	statusWaiting taskStatus = iota
	statusActive
)

type task struct {
	key       string
	accountID string
	priority  Priority
	status    taskStatus
	seq       uint64
	run       TaskFunc
}

// Queue serializes and bounds concurrency of all account-mutating work.
// At most one task exists per key at any time: enqueuing an existing key
// merges priorities instead of duplicating. There is no failed state; a
// failed task is simply removed, and durability of "it still needs
// doing" comes from the next periodic reconciliation pass.
type Queue struct {
	mu          sync.Mutex
	cond        *sync.Cond
	tasks       []*task
	active      int
	maxParallel int
	nextSeq     uint64
	blockers    int

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a queue with the given worker slot limit.
// A limit <= 0 falls back to DefaultMaxParallel.
func New(maxParallel int) *Queue {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		maxParallel: maxParallel,
		ctx:         ctx,
		cancel:      cancel,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds a task keyed by key, or merges into an existing one.
// If a task with the same key is already waiting or active its priority
// is lowered to min(existing, new) and no duplicate is created.
func (q *Queue) Enqueue(key, accountID string, priority Priority, run TaskFunc) {
	q.mu.Lock()

	if q.ctx.Err() != nil {
		q.mu.Unlock()
		return
	}

	for _, t := range q.tasks {
		if t.key == key {
			if priority < t.priority {
				t.priority = priority
			}
			// Merging into an already-running task drops this request:
			// the running closure keeps its snapshot and will not see
			// changes made after it started. That is acceptable because
			// every caller re-enqueues on a later periodic pass, which
			// picks up whatever this request would have.
			metrics.QueueMergedTasks.Inc()
			logging.Debug("queue: merged enqueue for key %s at priority %s", key, t.priority)
			q.mu.Unlock()
			return
		}
	}

	q.nextSeq++
	q.tasks = append(q.tasks, &task{
		key:       key,
		accountID: accountID,
		priority:  priority,
		status:    statusWaiting,
		seq:       q.nextSeq,
		run:       run,
	})
	q.updateGauges()
	q.mu.Unlock()

	q.dispatch()
}

// dispatch starts waiting tasks while worker slots are free. It is
// re-entrant safe: concurrent triggers collapse into no-ops once
// capacity is saturated.
func (q *Queue) dispatch() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.active < q.maxParallel {
		next := q.pickWaiting()
		if next == nil {
			return
		}
		next.status = statusActive
		q.active++
		q.updateGauges()
		go q.execute(next)
	}
}

// pickWaiting selects the waiting task with the smallest priority value,
// ties broken by arrival order. While a blocking operation is held only
// the blocking class is dispatched.
func (q *Queue) pickWaiting() *task {
	var best *task
	for _, t := range q.tasks {
		if t.status != statusWaiting {
			continue
		}
		if q.blockers > 0 && t.priority > PriorityInteractiveBlocking {
			continue
		}
		if best == nil || t.priority < best.priority ||
			(t.priority == best.priority && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (q *Queue) execute(t *task) {
	start := time.Now()
	err := t.run(q.ctx)
	metrics.QueueTaskDuration.WithLabelValues(t.priority.String()).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
		logging.Error("queue: task %s (account %s) failed: %v", t.key, t.accountID, err)
	}
	metrics.QueueTasksTotal.WithLabelValues(t.priority.String(), status).Inc()

	q.mu.Lock()
	q.remove(t)
	q.active--
	q.updateGauges()
	q.cond.Broadcast()
	q.mu.Unlock()

	q.dispatch()
}

// remove deletes a task from the slice. Caller must hold q.mu.
func (q *Queue) remove(target *task) {
	for i, t := range q.tasks {
		if t == target {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return
		}
	}
}

// updateGauges refreshes the queue depth metrics. Caller must hold q.mu.
func (q *Queue) updateGauges() {
	metrics.QueueActiveTasks.Set(float64(q.active))
	metrics.QueueWaitingTasks.Set(float64(len(q.tasks) - q.active))
}

// Counts returns the number of active and waiting tasks.
func (q *Queue) Counts() (active, waiting int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active, len(q.tasks) - q.active
}

// BeginBlockingOperation brackets a short-lived user mutation performed
// outside the queue. While held, tasks below the blocking class are not
// dispatched, so a reconciliation pass cannot start racing the mutation.
// Already-active tasks are not interrupted. The gate is advisory, not a
// lock; it does not prevent concurrent reads.
func (q *Queue) BeginBlockingOperation() {
	q.mu.Lock()
	q.blockers++
	q.mu.Unlock()
}

// EndBlockingOperation releases the gate and resumes normal dispatch.
func (q *Queue) EndBlockingOperation() {
	q.mu.Lock()
	if q.blockers > 0 {
		q.blockers--
	}
	q.mu.Unlock()

	q.dispatch()
}

// DrainBlocking waits until no task of the blocking class is waiting or
// active, so a caller that just enqueued INTERACTIVE_BLOCKING follow-up
// reconciliation can synchronously observe the index converge.
func (q *Queue) DrainBlocking(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			q.cond.Broadcast()
		case <-done:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.hasBlockingTasks() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		q.cond.Wait()
	}
	return nil
}

// hasBlockingTasks reports whether any blocking-class task remains.
// Caller must hold q.mu.
func (q *Queue) hasBlockingTasks() bool {
	for _, t := range q.tasks {
		if t.priority == PriorityInteractiveBlocking {
			return true
		}
	}
	return false
}

// Close stops dispatching new tasks and cancels the context passed to
// running tasks. In-flight tasks are abandoned to their own devices;
// recovery is the next periodic pass after restart.
func (q *Queue) Close() {
	q.cancel()
	q.mu.Lock()
	// Drop waiting tasks so Close does not strand DrainBlocking callers.
	kept := q.tasks[:0]
	for _, t := range q.tasks {
		if t.status == statusActive {
			kept = append(kept, t)
		}
	}
	q.tasks = kept
	q.updateGauges()
	q.cond.Broadcast()
	q.mu.Unlock()
}
