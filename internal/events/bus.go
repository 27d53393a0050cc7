package events

import (
	platformevents "bikestreets_backend/platform/events"
	"bikestreets_backend/platform/logger"
)

// InMemoryBus is the process-local bus shared by the API binary's modules.
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus starts a bus whose dispatcher runs until Close.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log.WithComponent("events"))
}
