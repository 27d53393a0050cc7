// Package events is the in-process event bus the session, debug log and
// notification modules use to talk to each other without imports.
package events

import (
	"context"
	"time"
)

// Event is anything that can travel on the bus.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp every event shares.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps an event with the current time in UTC.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

// Handler reacts to a published event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function act as a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error { return f(ctx, event) }

// Wildcard subscribes a handler to every event name.
const Wildcard = "*"

// Bus publishes events to subscribers keyed by event name.
type Bus interface {
	// Publish hands the event to a separate goroutine; handlers for it run in
	// registration order.
	Publish(ctx context.Context, event Event)

	// PublishSync runs every handler before returning and joins their errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers handler for eventName, or for everything when
	// eventName is Wildcard.
	Subscribe(eventName string, handler Handler)
}
