package navigation

import (
	"bikestreets_backend/internal/osrm"
	"bikestreets_backend/internal/session"
	"bikestreets_backend/platform/sanitize"
)

const maxPlaceName = 200

// PointRequest is a WGS84 position.
type PointRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

func (p PointRequest) coordinate() osrm.Coordinate {
	return osrm.Coordinate{Latitude: *p.Latitude, Longitude: *p.Longitude}
}

// SelectPlaceRequest picks a route endpoint. CurrentLocation selects the
// user's reported position; otherwise Point is required.
type SelectPlaceRequest struct {
	CurrentLocation bool          `json:"currentLocation"`
	Name            string        `json:"name" validate:"max=400"`
	Point           *PointRequest `json:"point"`
}

func (r SelectPlaceRequest) missingPoint() bool {
	return !r.CurrentLocation && r.Point == nil
}

func (r SelectPlaceRequest) selection() session.Selection {
	if r.CurrentLocation {
		return session.CurrentLocationSelection()
	}
	return session.PlaceSelection(r.Point.coordinate(), sanitize.Name(r.Name, maxPlaceName))
}

// SelectRouteURI is the path of POST /session/routes/:index/select.
type SelectRouteURI struct {
	Index int `uri:"index" validate:"min=0"`
}
