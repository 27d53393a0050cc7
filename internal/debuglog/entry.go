// Package debuglog persists route request/response pairs as pretty-printed
// JSON files for field debugging.
package debuglog

import (
	"time"

	"bikestreets_backend/internal/directions"
	"bikestreets_backend/internal/osrm"
)

// Request is the request half of an entry, flattened the way the file
// format stores it.
type Request struct {
	OriginName           string  `json:"originName"`
	OriginPointLatitude  float64 `json:"originPointLatitude"`
	OriginPointLongitude float64 `json:"originPointLongitude"`

	DestinationName           string  `json:"destinationName"`
	DestinationPointLatitude  float64 `json:"destinationPointLatitude"`
	DestinationPointLongitude float64 `json:"destinationPointLongitude"`
}

// RequestFromQuery flattens a directions query.
func RequestFromQuery(q directions.Query) Request {
	return Request{
		OriginName:                q.OriginName,
		OriginPointLatitude:       q.Origin.Latitude,
		OriginPointLongitude:      q.Origin.Longitude,
		DestinationName:           q.DestinationName,
		DestinationPointLatitude:  q.Destination.Latitude,
		DestinationPointLongitude: q.Destination.Longitude,
	}
}

// Entry is one persisted request/response pair. Entries are never mutated
// after they are written.
type Entry struct {
	Date     time.Time                 `json:"date"`
	Request  Request                   `json:"request"`
	Response osrm.RouteServiceResponse `json:"response"`
}

// Item is a listed entry together with the file it was read from.
type Item struct {
	Path  string `json:"path"`
	Entry Entry  `json:"entry"`
}
