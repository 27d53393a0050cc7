package session

import (
	"bikestreets_backend/internal/osrm"

	"github.com/google/uuid"
)

// PlaceView is the JSON form of a Location.
type PlaceView struct {
	Current   bool    `json:"current"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RequestView is the JSON form of a RouteRequest.
type RequestView struct {
	ID          uuid.UUID `json:"id"`
	Origin      PlaceView `json:"origin"`
	Destination PlaceView `json:"destination"`
}

// Snapshot is a read-only, JSON-ready copy of a state.
type Snapshot struct {
	Kind          string       `json:"kind"`
	Sequence      uint64       `json:"sequence"`
	Request       *RequestView `json:"request,omitempty"`
	Routes        []osrm.Route `json:"routes,omitempty"`
	SelectedIndex *int         `json:"selectedIndex,omitempty"`
	SelectedRoute *osrm.Route  `json:"selectedRoute,omitempty"`
	LastError     string       `json:"lastError,omitempty"`
}

// NewSnapshot captures s. seq is the machine sequence the state was reached at.
func NewSnapshot(s State, seq uint64) Snapshot {
	snap := Snapshot{Kind: s.Kind().String(), Sequence: seq}

	if req, ok := RequestOf(s); ok {
		view := newRequestView(req)
		snap.Request = &view
	}
	if d, ok := DirectionsOf(s); ok {
		if d.Response != nil {
			snap.Routes = d.Response.Routes
		}
		idx := d.SelectedIndex()
		route := d.SelectedRoute
		snap.SelectedIndex = &idx
		snap.SelectedRoute = &route
	}
	return snap
}

func newRequestView(r RouteRequest) RequestView {
	return RequestView{
		ID:          r.ID,
		Origin:      newPlaceView(r.Origin),
		Destination: newPlaceView(r.Destination),
	}
}

func newPlaceView(l Location) PlaceView {
	if l == nil {
		return PlaceView{}
	}
	_, current := l.(CurrentLocation)
	c := l.Coordinate()
	return PlaceView{Current: current, Name: l.Name(), Latitude: c.Latitude, Longitude: c.Longitude}
}
