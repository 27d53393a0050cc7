// Package notification fans domain events out to connected clients.
// This module subscribes to events and inverts the dependency: the session
// and debug log packages never need to know about the event stream.
package notification

import (
	"context"

	"bikestreets_backend/internal/events"
	apphttp "bikestreets_backend/internal/http"
	"bikestreets_backend/internal/notification/sse"
	"bikestreets_backend/internal/presentation"
	"bikestreets_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// SnapshotProvider returns the current session snapshot for newly connected
// clients.
type SnapshotProvider func(ctx context.Context) (interface{}, error)

// Module is the notification bounded context module implementing http.Module.
type Module struct {
	sse      *sse.Service
	snapshot SnapshotProvider
	log      *logger.Logger
}

// New creates a new notification module.
func New(stream *sse.Service, log *logger.Logger) *Module {
	return &Module{sse: stream, log: log.WithComponent("notification")}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// SSE returns the underlying event stream.
func (m *Module) SSE() *sse.Service { return m.sse }

// SetSnapshotProvider sets the source of the initial event sent on connect.
func (m *Module) SetSnapshotProvider(p SnapshotProvider) { m.snapshot = p }

// RegisterRoutes mounts the event stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/session/events", m.sse.Handler(m.initialEvent))
}

func (m *Module) initialEvent(c *gin.Context) (sse.Event, bool) {
	if m.snapshot == nil {
		return sse.Event{}, false
	}
	snap, err := m.snapshot(c.Request.Context())
	if err != nil {
		m.log.WithContext(c.Request.Context()).Warn("initial snapshot unavailable", "error", err)
		return sse.Event{}, false
	}
	return sse.Event{Type: sse.EventSessionTransitioned, Data: snap}, true
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.SessionTransitioned{}.EventName(), m)
	bus.Subscribe(events.RouteRequestFailed{}.EventName(), m)
	bus.Subscribe(events.DebugLogWritten{}.EventName(), m)
}

// Handle routes events to the event stream.
func (m *Module) Handle(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.SessionTransitioned:
		m.sse.Broadcast(sse.Event{Type: sse.EventSessionTransitioned, Sequence: e.Sequence, Data: e.State})
	case events.RouteRequestFailed:
		m.sse.Broadcast(sse.Event{Type: sse.EventRouteRequestFailed, Message: e.Reason, Data: e})
	case events.DebugLogWritten:
		m.sse.Broadcast(sse.Event{Type: sse.EventDebugLogWritten, Data: e})
	default:
		m.log.Debug("ignoring event", "event", event.EventName())
	}
	return nil
}

// ViewChanged broadcasts a new presentation view. It is registered with
// presentation.Reactor.OnChange.
func (m *Module) ViewChanged(v presentation.View) {
	m.sse.Broadcast(sse.Event{Type: sse.EventViewUpdated, Data: v})
}

var _ events.Handler = (*Module)(nil)
