package testutil

import (
	"context"
	"sync"

	"github.com/ludoduel/ludo-server/internal/model"
)

// EventRecorder is a notifier that keeps every published change event.
// Set Err to make Publish fail.
type EventRecorder struct {
	mu     sync.Mutex
	events []model.ChangeEvent
	Err    error
}

// NewEventRecorder creates an empty EventRecorder
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Publish records the event
func (r *EventRecorder) Publish(ctx context.Context, event model.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events in publish order
func (r *EventRecorder) Events() []model.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ChangeEvent(nil), r.events...)
}

// ForTable returns the recorded events of one table
func (r *EventRecorder) ForTable(table model.Table) []model.ChangeEvent {
	var out []model.ChangeEvent
	for _, e := range r.Events() {
		if e.Table == table {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent event, or false if none were published
func (r *EventRecorder) Last() (model.ChangeEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return model.ChangeEvent{}, false
	}
	return r.events[len(r.events)-1], true
}

// Reset forgets every recorded event
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
