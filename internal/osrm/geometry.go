// Package osrm holds the wire model of an OSRM-compatible directions
// response: waypoints, routes, legs, steps and their GeoJSON geometry.
package osrm

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"
)

// Coordinate is a WGS84 position in latitude/longitude order.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String formats the coordinate the way the directions path expects it:
// lon,lat in plain decimal, never exponent form.
func (c Coordinate) String() string {
	return formatDegrees(c.Longitude) + "," + formatDegrees(c.Latitude)
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LineString is an ordered path. On the wire it is a GeoJSON LineString whose
// positions are [longitude, latitude]; in memory every point is lat/lon.
type LineString []Coordinate

const lineStringType = "LineString"

type wireGeometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// UnmarshalJSON decodes a GeoJSON geometry, swapping each [lon, lat] pair.
func (l *LineString) UnmarshalJSON(data []byte) error {
	var wire wireGeometry
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Type != "" && wire.Type != lineStringType {
		return fmt.Errorf("osrm: unsupported geometry type %q", wire.Type)
	}

	out := make(LineString, 0, len(wire.Coordinates))
	for i, pair := range wire.Coordinates {
		if len(pair) < 2 {
			return fmt.Errorf("osrm: position %d has %d values, want 2", i, len(pair))
		}
		out = append(out, Coordinate{Latitude: pair[1], Longitude: pair[0]})
	}
	*l = out
	return nil
}

// MarshalJSON encodes the path as a GeoJSON geometry in [lon, lat] order.
func (l LineString) MarshalJSON() ([]byte, error) {
	wire := wireGeometry{
		Type:        lineStringType,
		Coordinates: make([][]float64, 0, len(l)),
	}
	for _, c := range l {
		wire.Coordinates = append(wire.Coordinates, []float64{c.Longitude, c.Latitude})
	}
	return json.Marshal(wire)
}

// Equal reports whether both paths hold the same points in the same order.
func (l LineString) Equal(other LineString) bool {
	return slices.Equal(l, other)
}

// Orb converts the path into an orb geometry for GeoJSON output.
func (l LineString) Orb() orb.LineString {
	out := make(orb.LineString, 0, len(l))
	for _, c := range l {
		out = append(out, orb.Point{c.Longitude, c.Latitude})
	}
	return out
}

// Polyline returns the path as an encoded polyline (precision 5), a compact
// preview that map tools accept directly.
func (l LineString) Polyline() string {
	coords := make([][]float64, 0, len(l))
	for _, c := range l {
		coords = append(coords, []float64{c.Latitude, c.Longitude})
	}
	return string(polyline.EncodeCoords(coords))
}

// Bounds returns the south-west and north-east corners of the path.
// ok is false for an empty path.
func (l LineString) Bounds() (sw, ne Coordinate, ok bool) {
	if len(l) == 0 {
		return Coordinate{}, Coordinate{}, false
	}
	sw, ne = l[0], l[0]
	for _, c := range l[1:] {
		sw.Latitude = min(sw.Latitude, c.Latitude)
		sw.Longitude = min(sw.Longitude, c.Longitude)
		ne.Latitude = max(ne.Latitude, c.Latitude)
		ne.Longitude = max(ne.Longitude, c.Longitude)
	}
	return sw, ne, true
}
