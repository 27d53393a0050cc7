// Package session holds the routing session: its states, the state machine
// that owns the current state, the loop that serializes access to it and the
// controller that drives transitions.
package session

import (
	"fmt"

	"bikestreets_backend/internal/osrm"
	"bikestreets_backend/platform/apperr"

	"github.com/google/uuid"
)

// CurrentLocationName is the display name of the user's own position.
const CurrentLocationName = "Current Location"

const unnamedPlace = "No Name"

// Location is one endpoint of a route request.
type Location interface {
	Coordinate() osrm.Coordinate
	Name() string
	isLocation()
}

// CurrentLocation is the user's position at the time it was chosen.
type CurrentLocation struct {
	Point osrm.Coordinate
}

func (l CurrentLocation) Coordinate() osrm.Coordinate { return l.Point }
func (l CurrentLocation) Name() string                { return CurrentLocationName }
func (CurrentLocation) isLocation()                   {}

// NamedPlace is a place picked from search.
type NamedPlace struct {
	Point     osrm.Coordinate
	PlaceName string
}

func (l NamedPlace) Coordinate() osrm.Coordinate { return l.Point }

func (l NamedPlace) Name() string {
	if l.PlaceName == "" {
		return unnamedPlace
	}
	return l.PlaceName
}

func (NamedPlace) isLocation() {}

// RouteRequest is an immutable origin/destination pair. ID distinguishes two
// requests for the same endpoints.
type RouteRequest struct {
	ID          uuid.UUID
	Origin      Location
	Destination Location
}

// NewRouteRequest creates a request with a fresh ID.
func NewRouteRequest(origin, destination Location) RouteRequest {
	return RouteRequest{ID: uuid.New(), Origin: origin, Destination: destination}
}

// Directions is the context shared by every state after a response arrived.
// SelectedRoute is always one of Response.Routes.
type Directions struct {
	Request       RouteRequest
	Response      *osrm.RouteServiceResponse
	SelectedRoute osrm.Route
}

// NewDirections pairs a response with the route the user is looking at.
func NewDirections(request RouteRequest, response *osrm.RouteServiceResponse, selected osrm.Route) (Directions, error) {
	if response == nil || response.IndexOf(selected) < 0 {
		return Directions{}, apperr.Validation("selected route is not part of the response").WithOp("session.NewDirections")
	}
	return Directions{Request: request, Response: response, SelectedRoute: selected}, nil
}

// SelectedIndex is the position of the selected route in the response.
func (d Directions) SelectedIndex() int {
	if d.Response == nil {
		return -1
	}
	return d.Response.IndexOf(d.SelectedRoute)
}

// WithSelected returns a copy selecting the route at index.
func (d Directions) WithSelected(index int) (Directions, error) {
	if d.Response == nil || index < 0 || index >= len(d.Response.Routes) {
		return Directions{}, apperr.Validation(fmt.Sprintf("route index %d out of range", index)).WithOp("session.Directions.WithSelected")
	}
	d.SelectedRoute = d.Response.Routes[index]
	return d, nil
}

// Kind names a state variant.
type Kind int

const (
	KindInitial Kind = iota
	KindRequestingRoutes
	KindPreviewDirections
	KindUpdateOrigin
	KindUpdateDestination
	KindRouting
)

func (k Kind) String() string {
	switch k {
	case KindInitial:
		return "initial"
	case KindRequestingRoutes:
		return "requesting_routes"
	case KindPreviewDirections:
		return "preview_directions"
	case KindUpdateOrigin:
		return "update_origin"
	case KindUpdateDestination:
		return "update_destination"
	case KindRouting:
		return "routing"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is one of Initial, RequestingRoutes, PreviewDirections,
// UpdateOrigin, UpdateDestination or Routing.
type State interface {
	Kind() Kind
	isState()
}

// Initial is the idle state: no request, no route.
type Initial struct{}

// RequestingRoutes waits for the directions backend.
type RequestingRoutes struct {
	Request RouteRequest
}

// PreviewDirections shows the returned routes with one selected.
type PreviewDirections struct {
	Directions
}

// UpdateOrigin is the preview with the origin search open.
type UpdateOrigin struct {
	Directions
}

// UpdateDestination is the preview with the destination search open.
type UpdateDestination struct {
	Directions
}

// Routing is live navigation along the selected route.
type Routing struct {
	Directions
}

func (Initial) Kind() Kind           { return KindInitial }
func (RequestingRoutes) Kind() Kind  { return KindRequestingRoutes }
func (PreviewDirections) Kind() Kind { return KindPreviewDirections }
func (UpdateOrigin) Kind() Kind      { return KindUpdateOrigin }
func (UpdateDestination) Kind() Kind { return KindUpdateDestination }
func (Routing) Kind() Kind           { return KindRouting }

func (Initial) isState()           {}
func (RequestingRoutes) isState()  {}
func (PreviewDirections) isState() {}
func (UpdateOrigin) isState()      {}
func (UpdateDestination) isState() {}
func (Routing) isState()           {}

// DirectionsOf returns the directions carried by s, if any.
func DirectionsOf(s State) (Directions, bool) {
	switch st := s.(type) {
	case PreviewDirections:
		return st.Directions, true
	case UpdateOrigin:
		return st.Directions, true
	case UpdateDestination:
		return st.Directions, true
	case Routing:
		return st.Directions, true
	default:
		return Directions{}, false
	}
}

// RequestOf returns the route request carried by s, if any.
func RequestOf(s State) (RouteRequest, bool) {
	if st, ok := s.(RequestingRoutes); ok {
		return st.Request, true
	}
	if d, ok := DirectionsOf(s); ok {
		return d.Request, true
	}
	return RouteRequest{}, false
}
