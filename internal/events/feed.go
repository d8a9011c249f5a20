package events

import (
	"sort"
	"sync"
	"time"

	"media-sync/internal/model"
)

// DefaultCapacity is the number of recent events the feed retains.
const DefaultCapacity = 10

// Feed is a bounded, in-memory buffer of the most recent sync events,
// kept sorted descending by date. It is written by the reconciler and
// read by the scheduler (activity detection) and the status endpoint.
// No component depends on its contents for correctness.
type Feed struct {
	mu       sync.RWMutex
	capacity int
	events   []model.SyncEvent
}

// NewFeed creates a feed bounded to capacity events.
// A capacity <= 0 falls back to DefaultCapacity.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{capacity: capacity}
}

// Add appends an event, re-sorts descending by date and truncates to
// the feed's capacity.
func (f *Feed) Add(event model.SyncEvent) {
	if event.Date.IsZero() {
		event.Date = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, event)
	sort.SliceStable(f.events, func(i, j int) bool {
		return f.events[i].Date.After(f.events[j].Date)
	})
	if len(f.events) > f.capacity {
		f.events = f.events[:f.capacity]
	}
}

// Recent returns a copy of the current buffer, newest first.
func (f *Feed) Recent() []model.SyncEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]model.SyncEvent, len(f.events))
	copy(out, f.events)
	return out
}

// Latest returns the most recent event and whether one exists.
func (f *Feed) Latest() (model.SyncEvent, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.events) == 0 {
		return model.SyncEvent{}, false
	}
	return f.events[0], true
}
