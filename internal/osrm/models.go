package osrm

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/paulmach/orb/geojson"
)

// RouteServiceResponse mirrors the route service payload.
// http://project-osrm.org/docs/v5.5.1/api/#responses
type RouteServiceResponse struct {
	Code      string     `json:"code"`
	Waypoints []Waypoint `json:"waypoints"`
	Routes    []Route    `json:"routes"`
}

// Waypoint is an input coordinate snapped to the street network.
// http://project-osrm.org/docs/v5.5.1/api/#waypoint-object
type Waypoint struct {
	Name     string    `json:"name"`
	Location []float64 `json:"location"` // [lon, lat]
	Distance float64   `json:"distance"`
	Hint     string    `json:"hint"`
}

// Coordinate returns the snapped location in lat/lon order.
func (w Waypoint) Coordinate() (Coordinate, bool) {
	if len(w.Location) < 2 {
		return Coordinate{}, false
	}
	return Coordinate{Latitude: w.Location[1], Longitude: w.Location[0]}, true
}

// Route is one candidate path between the requested waypoints.
// http://project-osrm.org/docs/v5.5.1/api/#route-object
type Route struct {
	Distance float64    `json:"distance"` // meters
	Duration float64    `json:"duration"` // seconds
	Geometry LineString `json:"geometry"`
	Legs     []RouteLeg `json:"legs"`
}

// Equal is structural equality, used to find the selected route among
// alternatives.
func (r Route) Equal(other Route) bool {
	return r.Distance == other.Distance &&
		r.Duration == other.Duration &&
		r.Geometry.Equal(other.Geometry) &&
		slices.EqualFunc(r.Legs, other.Legs, RouteLeg.Equal)
}

// RouteLeg is the path between two consecutive waypoints.
// http://project-osrm.org/docs/v5.5.1/api/#routeleg-object
type RouteLeg struct {
	Distance float64     `json:"distance"`
	Duration float64     `json:"duration"`
	Summary  string      `json:"summary"`
	Steps    []RouteStep `json:"steps"`
}

// Equal is structural equality.
func (l RouteLeg) Equal(other RouteLeg) bool {
	return l.Distance == other.Distance &&
		l.Duration == other.Duration &&
		l.Summary == other.Summary &&
		slices.EqualFunc(l.Steps, other.Steps, RouteStep.Equal)
}

// RouteStep is one maneuver-level segment of a leg.
// http://project-osrm.org/docs/v5.5.1/api/#routestep-object
type RouteStep struct {
	Distance float64    `json:"distance"`
	Duration float64    `json:"duration"`
	Geometry LineString `json:"geometry"`
	Name     string     `json:"name"`
	Mode     TravelMode `json:"mode"`
}

// Equal is structural equality.
func (s RouteStep) Equal(other RouteStep) bool {
	return s.Distance == other.Distance &&
		s.Duration == other.Duration &&
		s.Name == other.Name &&
		s.Mode == other.Mode &&
		s.Geometry.Equal(other.Geometry)
}

// TravelMode is the mode of transportation for a step.
type TravelMode string

const (
	ModeCycling     TravelMode = "cycling"
	ModePushingBike TravelMode = "pushing bike"
)

// UnmarshalJSON rejects modes the bicycle profile never emits.
func (m *TravelMode) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch TravelMode(raw) {
	case ModeCycling, ModePushingBike:
		*m = TravelMode(raw)
		return nil
	default:
		return fmt.Errorf("osrm: unknown travel mode %q", raw)
	}
}

// IndexOf returns the position of route among the response routes, or -1.
func (r *RouteServiceResponse) IndexOf(route Route) int {
	return slices.IndexFunc(r.Routes, route.Equal)
}

// FeatureCollection renders routes as GeoJSON features. The selected index is
// flagged in the feature properties; pass -1 to flag none.
func FeatureCollection(routes []Route, selected int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, route := range routes {
		f := geojson.NewFeature(route.Geometry.Orb())
		f.Properties["index"] = i
		f.Properties["distance"] = route.Distance
		f.Properties["duration"] = route.Duration
		f.Properties["selected"] = i == selected
		fc.Append(f)
	}
	return fc
}
