package events

import (
	"context"
	"errors"
	"sync"

	"bikestreets_backend/platform/logger"
)

// InMemoryBus is a process-local Bus. Async publishes are delivered by a
// single dispatcher goroutine so handlers observe events in publish order.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	queue    chan queued
	log      *logger.Logger
	once     sync.Once
	done     chan struct{}
}

type queued struct {
	ctx   context.Context
	event Event
}

// NewInMemoryBus creates a new in-memory event bus and starts its dispatcher.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	b := &InMemoryBus{
		handlers: make(map[string][]Handler),
		queue:    make(chan queued, 256),
		log:      log,
		done:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers a handler for eventName.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish queues the event for asynchronous delivery. When the queue is full
// the event is dropped and logged.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	select {
	case <-b.done:
		return
	default:
	}

	select {
	case b.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		b.log.Warn("event bus queue full, dropping event", "event", event.EventName())
	}
}

// PublishSync delivers the event on the calling goroutine and returns the
// joined handler errors.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, h := range b.handlersFor(event.EventName()) {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops the dispatcher. Events still queued are discarded.
func (b *InMemoryBus) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *InMemoryBus) dispatch() {
	for {
		select {
		case <-b.done:
			return
		case q := <-b.queue:
			if err := b.PublishSync(q.ctx, q.event); err != nil {
				b.log.Error("event handler failed", "event", q.event.EventName(), "error", err)
			}
		}
	}
}

func (b *InMemoryBus) handlersFor(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	named := b.handlers[name]
	wild := b.handlers[Wildcard]
	out := make([]Handler, 0, len(named)+len(wild))
	out = append(out, named...)
	if name != Wildcard {
		out = append(out, wild...)
	}
	return out
}

var _ Bus = (*InMemoryBus)(nil)
