package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid events for the same path so editor save
// storms trigger one re-sync instead of many. Within a window:
//   - CREATE followed by MODIFY stays CREATE (file is still new)
//   - CREATE followed by DELETE cancels out (file never really existed)
//   - MODIFY followed by DELETE becomes DELETE
//   - DELETE followed by CREATE becomes MODIFY (file was replaced)
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*trackedEvent
	batches chan []FileEvent
	timer   *time.Timer
	stopped bool
}

type trackedEvent struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer creates a debouncer emitting batches on the given window.
func NewDebouncer(window time.Duration, buffer int) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*trackedEvent),
		batches: make(chan []FileEvent, buffer),
	}
}

// Add records an event, coalescing it with any pending event for the
// same path, and (re)arms the flush timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	tracked, ok := d.pending[event.Path]
	if !ok {
		d.pending[event.Path] = &trackedEvent{event: event, firstOp: event.Operation}
		d.armFlush()
		return
	}

	merged, keep := coalesce(tracked.firstOp, tracked.event, event)
	if !keep {
		delete(d.pending, event.Path)
		return
	}
	tracked.event = merged
	d.armFlush()
}

// coalesce merges a new event into the pending one for its path. The
// second return is false when the pair cancels out entirely.
func coalesce(firstOp Operation, prev, next FileEvent) (FileEvent, bool) {
	switch firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			return prev, true
		case OpDelete, OpRename:
			return FileEvent{}, false
		}
	case OpDelete:
		if next.Operation == OpCreate {
			next.Operation = OpModify
			return next, true
		}
	}
	return next, true
}

func (d *Debouncer) armFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, tracked := range d.pending {
		batch = append(batch, tracked.event)
	}
	d.pending = make(map[string]*trackedEvent)

	select {
	case d.batches <- batch:
	default:
		slog.Warn("watch_batch_dropped", slog.Int("events", len(batch)))
	}
}

// Batches returns the channel of debounced event batches.
func (d *Debouncer) Batches() <-chan []FileEvent {
	return d.batches
}

// Stop discards pending events and closes the batch channel. Safe to
// call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.batches)
}
