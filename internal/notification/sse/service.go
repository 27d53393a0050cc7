// Package sse provides Server-Sent Events support for real-time session updates.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"bikestreets_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventSessionTransitioned EventType = "session_transitioned"
	EventRouteRequestFailed  EventType = "route_request_failed"
	EventViewUpdated         EventType = "view_updated"
	EventDebugLogWritten     EventType = "debuglog_written"
)

// Event represents an SSE event payload
type Event struct {
	Type     EventType   `json:"type"`
	Sequence uint64      `json:"sequence,omitempty"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

const clientBuffer = 32

// client represents a connected SSE client
type client struct {
	id     uuid.UUID
	events chan Event
}

// Service manages SSE connections and event broadcasting
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	closed  bool
	log     *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID]*client),
		log:     log.WithComponent("sse"),
	}
}

// addClient registers a new client connection. It returns false once the
// service is closed.
func (s *Service) addClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.clients[c.id] = c
	return true
}

// removeClient unregisters a client connection
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c.id]; !ok {
		return
	}
	delete(s.clients, c.id)
	close(c.events)
}

// ClientCount returns the number of connected clients.
func (s *Service) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends an event to every connected client. Slow clients whose
// buffer is full miss the event.
func (s *Service) Broadcast(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, c := range s.clients {
		select {
		case c.events <- event:
		default:
			s.log.Warn("event buffer full", "client", id, "event", event.Type)
		}
	}

	s.log.Debug("published event", "event", event.Type, "clients", len(s.clients))
}

// Handler returns a Gin handler for SSE connections. initial, when not nil,
// supplies a snapshot that is sent right after the connected event.
func (s *Service) Handler(initial func(*gin.Context) (Event, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl := &client{
			id:     uuid.New(),
			events: make(chan Event, clientBuffer),
		}
		if !s.addClient(cl) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream closed"})
			return
		}
		defer s.removeClient(cl)

		// Set SSE headers
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		c.SSEvent("connected", gin.H{"clientId": cl.id})
		if initial != nil {
			if event, ok := initial(c); ok {
				s.write(c, event)
			}
		}
		c.Writer.Flush()

		log := s.log.WithContext(c.Request.Context())
		log.Info("client connected", "client", cl.id)

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				log.Info("client disconnected", "client", cl.id)
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				s.write(c, event)
				c.Writer.Flush()
			}
		}
	}
}

func (s *Service) write(c *gin.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		s.log.Error("failed to encode event", "event", event.Type, "error", err)
		return
	}
	c.SSEvent(string(event.Type), string(data))
}

// Close disconnects every client and rejects new connections.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for _, c := range s.clients {
		close(c.events)
	}
	s.clients = make(map[uuid.UUID]*client)
}
