package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMaxParallelNeverExceeded(t *testing.T) {
	q := New(2)
	defer q.Close()

	var current, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		q.Enqueue(fmt.Sprintf("task-%d", i), "acc1", PriorityNormal, func(ctx context.Context) error {
			defer wg.Done()
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil
		})
	}

	wg.Wait()
	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestDuplicateKeyMergesPriority(t *testing.T) {
	q := New(1)
	defer q.Close()

	// Occupy the single slot so the tasks under test stay waiting.
	release := make(chan struct{})
	started := make(chan struct{})
	q.Enqueue("blocker", "acc1", PriorityInteractiveBlocking, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	var runs int32
	done := make(chan struct{}, 2)
	run := func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		done <- struct{}{}
		return nil
	}

	q.Enqueue("folder-1", "acc1", PriorityNormal, run)
	q.Enqueue("folder-1", "acc1", PriorityInteractive, run)

	// The second enqueue must merge, leaving a single waiting task.
	_, waiting := q.Counts()
	if waiting != 1 {
		t.Errorf("waiting = %d, want 1", waiting)
	}

	close(release)
	<-done

	// Give a potential duplicate a chance to run, then verify it didn't.
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Errorf("task ran %d times, want exactly 1", got)
	}
}

func TestPriorityOrdering(t *testing.T) {
	q := New(1)
	defer q.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	q.Enqueue("blocker", "acc1", PriorityInteractiveBlocking, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	record := func(name string) TaskFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			wg.Done()
			return nil
		}
	}

	wg.Add(4)
	q.Enqueue("batch", "acc1", PriorityBatch, record("batch"))
	q.Enqueue("normal-1", "acc1", PriorityNormal, record("normal-1"))
	q.Enqueue("interactive", "acc1", PriorityInteractive, record("interactive"))
	q.Enqueue("normal-2", "acc1", PriorityNormal, record("normal-2"))

	close(release)
	wg.Wait()

	expected := []string{"interactive", "normal-1", "normal-2", "batch"}
	mu.Lock()
	defer mu.Unlock()
	for i, name := range expected {
		if order[i] != name {
			t.Fatalf("execution order = %v, want %v", order, expected)
		}
	}
}

func TestFailedTaskIsRemoved(t *testing.T) {
	q := New(2)
	defer q.Close()

	done := make(chan struct{})
	q.Enqueue("failing", "acc1", PriorityNormal, func(ctx context.Context) error {
		defer close(done)
		return fmt.Errorf("backend unavailable")
	})
	<-done

	deadline := time.After(time.Second)
	for {
		active, waiting := q.Counts()
		if active == 0 && waiting == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("queue not empty after failed task: active=%d waiting=%d", active, waiting)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBlockingGateHoldsBackgroundWork(t *testing.T) {
	q := New(2)
	defer q.Close()

	q.BeginBlockingOperation()

	normalRan := make(chan struct{}, 1)
	q.Enqueue("normal", "acc1", PriorityNormal, func(ctx context.Context) error {
		normalRan <- struct{}{}
		return nil
	})

	select {
	case <-normalRan:
		t.Fatal("normal task ran while blocking gate held")
	case <-time.After(30 * time.Millisecond):
	}

	// Blocking-class work still dispatches while the gate is held.
	blockingRan := make(chan struct{})
	q.Enqueue("blocking", "acc1", PriorityInteractiveBlocking, func(ctx context.Context) error {
		close(blockingRan)
		return nil
	})
	select {
	case <-blockingRan:
	case <-time.After(time.Second):
		t.Fatal("blocking-class task did not run while gate held")
	}

	q.EndBlockingOperation()
	select {
	case <-normalRan:
	case <-time.After(time.Second):
		t.Fatal("normal task did not run after gate released")
	}
}

func TestDrainBlocking(t *testing.T) {
	q := New(1)
	defer q.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	q.Enqueue("recon-folder", "acc1", PriorityInteractiveBlocking, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	drained := make(chan error, 1)
	go func() {
		drained <- q.DrainBlocking(context.Background())
	}()

	select {
	case <-drained:
		t.Fatal("DrainBlocking returned while blocking task active")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-drained:
		if err != nil {
			t.Errorf("DrainBlocking() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("DrainBlocking did not return after task completed")
	}
}

func TestDrainBlockingHonorsContext(t *testing.T) {
	q := New(1)
	defer q.Close()

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	q.Enqueue("stuck", "acc1", PriorityInteractiveBlocking, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := q.DrainBlocking(ctx); err == nil {
		t.Error("DrainBlocking() = nil, want context error")
	}
}

func TestCountsReflectState(t *testing.T) {
	q := New(1)
	defer q.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	q.Enqueue("a", "acc1", PriorityNormal, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	q.Enqueue("b", "acc1", PriorityNormal, func(ctx context.Context) error { return nil })

	active, waiting := q.Counts()
	if active != 1 || waiting != 1 {
		t.Errorf("Counts() = (%d, %d), want (1, 1)", active, waiting)
	}
	close(release)
}
