package event

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Recorder is an Emitter that keeps every published event in memory.
// It is meant for tests and for the CLI's verbose mode.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Publish records evt.
func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Handle lets a Recorder subscribe to a Bus.
func (r *Recorder) Handle(ctx context.Context, evt Event) error {
	return r.Publish(ctx, evt)
}

// Events returns the recorded events, optionally only those of the given types.
func (r *Recorder) Events(types ...string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if len(types) == 0 || slices.Contains(types, e.Type()) {
			out = append(out, e)
		}
	}
	return out
}

// Wait blocks until at least n events of the given types were recorded or
// timeout elapses. It reports whether the count was reached.
func (r *Recorder) Wait(n int, timeout time.Duration, types ...string) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if len(r.Events(types...)) >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return len(r.Events(types...)) >= n
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
