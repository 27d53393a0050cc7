// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"bikestreets_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions and constants
var NewBaseEvent = events.NewBaseEvent

const Wildcard = events.Wildcard

// =============================================================================
// Session Domain Events
// =============================================================================

// SessionTransitioned is published after every routing session state change.
// State is the JSON-ready snapshot of the new state.
type SessionTransitioned struct {
	BaseEvent
	Sequence  uint64      `json:"sequence"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	RequestID *uuid.UUID  `json:"requestId,omitempty"`
	State     interface{} `json:"state"`
}

func (e SessionTransitioned) EventName() string { return "session.transitioned" }

// RouteRequestFailed is published when the directions backend could not
// produce a response for the active request.
type RouteRequestFailed struct {
	BaseEvent
	RequestID       uuid.UUID `json:"requestId"`
	OriginName      string    `json:"originName"`
	DestinationName string    `json:"destinationName"`
	Reason          string    `json:"reason"`
}

func (e RouteRequestFailed) EventName() string { return "session.route_request.failed" }

// =============================================================================
// Debug Log Domain Events
// =============================================================================

// DebugLogWritten is published after a debug log entry file is written.
type DebugLogWritten struct {
	BaseEvent
	Path            string `json:"path"`
	OriginName      string `json:"originName"`
	DestinationName string `json:"destinationName"`
	Routes          int    `json:"routes"`
}

func (e DebugLogWritten) EventName() string { return "debuglog.entry.written" }
