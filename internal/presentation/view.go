// Package presentation derives what a map client should show from the
// routing session state: camera mode, sheets, overlays and screen idling.
package presentation

import (
	"bikestreets_backend/internal/osrm"
	"bikestreets_backend/internal/session"
)

// CameraMode is the map camera behavior.
type CameraMode string

const (
	CameraFollowUserPosition CameraMode = "follow_user_position"
	CameraShowRoute          CameraMode = "show_route"
	CameraFollowUserHeading  CameraMode = "follow_user_heading"
)

// Camera is the camera target. Bounds are set only for CameraShowRoute.
type Camera struct {
	Mode      CameraMode       `json:"mode"`
	SouthWest *osrm.Coordinate `json:"southWest,omitempty"`
	NorthEast *osrm.Coordinate `json:"northEast,omitempty"`
}

// View is everything the client renders for one session state.
type View struct {
	State                string       `json:"state"`
	Camera               Camera       `json:"camera"`
	EditEndpoints        bool         `json:"editEndpoints"`
	BikeNetworkVisible   bool         `json:"bikeNetworkVisible"`
	KeepScreenAwake      bool         `json:"keepScreenAwake"`
	ShowInitialSearch    bool         `json:"showInitialSearch"`
	RestartedFromRouting bool         `json:"restartedFromRouting"` // Initial reached by ending a route
	SelectedRoute        *osrm.Route  `json:"selectedRoute,omitempty"`
	PotentialRoutes      []osrm.Route `json:"potentialRoutes"`
}

// Derive computes the view for a transition. old may be nil for the first
// view of a session.
func Derive(old, next session.State) View {
	v := View{
		State:              next.Kind().String(),
		Camera:             Camera{Mode: CameraFollowUserPosition},
		EditEndpoints:      true,
		BikeNetworkVisible: true,
		PotentialRoutes:    []osrm.Route{},
	}

	switch st := next.(type) {
	case session.Initial:
		v.ShowInitialSearch = true
		// Leaving routing means the route ended or was cancelled.
		_, v.RestartedFromRouting = old.(session.Routing)
	case session.RequestingRoutes:
	case session.PreviewDirections:
		v.showRoute(st.Directions)
	case session.UpdateOrigin:
		v.showRoute(st.Directions)
	case session.UpdateDestination:
		v.showRoute(st.Directions)
	case session.Routing:
		route := st.SelectedRoute
		v.Camera = Camera{Mode: CameraFollowUserHeading}
		v.EditEndpoints = false
		v.BikeNetworkVisible = false
		v.KeepScreenAwake = true
		v.SelectedRoute = &route
	}
	return v
}

func (v *View) showRoute(d session.Directions) {
	route := d.SelectedRoute
	v.Camera = Camera{Mode: CameraShowRoute}
	if sw, ne, ok := route.Geometry.Bounds(); ok {
		v.Camera.SouthWest, v.Camera.NorthEast = &sw, &ne
	}
	v.SelectedRoute = &route
	if d.Response != nil && len(d.Response.Routes) > 0 {
		v.PotentialRoutes = d.Response.Routes
	} else {
		v.PotentialRoutes = []osrm.Route{route}
	}
}
