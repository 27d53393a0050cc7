package navigation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apphttp "bikestreets_backend/internal/http"
	"bikestreets_backend/internal/osrm"
	"bikestreets_backend/internal/presentation"
	"bikestreets_backend/internal/session"
	"bikestreets_backend/platform/httpkit"
	"bikestreets_backend/platform/logger"
	"bikestreets_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedRequester struct {
	resp *osrm.RouteServiceResponse
}

func (r fixedRequester) RequestRoute(context.Context, osrm.Coordinate, osrm.Coordinate, string, string) (*osrm.RouteServiceResponse, error) {
	return r.resp, nil
}

func twoRoutes() *osrm.RouteServiceResponse {
	return &osrm.RouteServiceResponse{
		Code: "Ok",
		Routes: []osrm.Route{
			{Distance: 1200, Duration: 300, Geometry: osrm.LineString{
				{Latitude: 39.753, Longitude: -105.041},
				{Latitude: 39.755, Longitude: -105.000},
			}},
			{Distance: 1500, Duration: 360, Geometry: osrm.LineString{
				{Latitude: 39.753, Longitude: -105.041},
				{Latitude: 39.760, Longitude: -105.010},
				{Latitude: 39.755, Longitude: -105.000},
			}},
		},
	}
}

func newTestEngine(t *testing.T, resp *osrm.RouteServiceResponse) *gin.Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	log := logger.Discard()

	loop := session.NewLoop(log)
	machine := session.NewMachine(log)
	ctrl := session.NewController(ctx, loop, machine, fixedRequester{resp: resp}, nil, log)
	reactor := presentation.NewReactor()
	machine.Subscribe(reactor.Observe)

	go func() { _ = loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-loop.Stopped()
		ctrl.Wait()
	})

	engine := gin.New()
	rc := &apphttp.RouterContext{Engine: engine, V1: engine.Group("/api/v1"), Validator: validator.New()}
	NewModule(ctrl, reactor).RegisterRoutes(rc)
	return engine
}

func do(engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v (%s)", err, w.Body.String())
	}
	return snap
}

func waitForKind(t *testing.T, engine *gin.Engine, kind string) session.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := decodeSnapshot(t, do(engine, http.MethodGet, "/api/v1/session", nil))
		if snap.Kind == kind {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, last %s", kind, snap.Kind)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func point(lat, lon float64) map[string]float64 {
	return map[string]float64{"latitude": lat, "longitude": lon}
}

func TestSessionFlowOverHTTP(t *testing.T) {
	engine := newTestEngine(t, twoRoutes())

	if w := do(engine, http.MethodPost, "/api/v1/session/location", point(39.753, -105.041)); w.Code != http.StatusNoContent {
		t.Fatalf("location: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w := do(engine, http.MethodPost, "/api/v1/session/destination", map[string]interface{}{
		"name":  "  <b>Coffee</b>   Shop ",
		"point": point(39.755, -105.0),
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("destination: expected 202, got %d: %s", w.Code, w.Body.String())
	}

	snap := waitForKind(t, engine, "preview_directions")
	if snap.SelectedIndex == nil || *snap.SelectedIndex != 0 {
		t.Fatalf("expected first route selected, got %+v", snap.SelectedIndex)
	}
	if snap.Request == nil || !snap.Request.Origin.Current || snap.Request.Destination.Name != "Coffee Shop" {
		t.Fatalf("unexpected request view: %+v", snap.Request)
	}

	w = do(engine, http.MethodPost, "/api/v1/session/routes/1/select", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("select route: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeSnapshot(t, w); got.SelectedIndex == nil || *got.SelectedIndex != 1 {
		t.Fatalf("expected route 1 selected, got %+v", got.SelectedIndex)
	}

	w = do(engine, http.MethodGet, "/api/v1/session/route.geojson", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("geojson: expected 200, got %d", w.Code)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fc); err != nil {
		t.Fatalf("decode geojson: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("unexpected feature collection: %s", w.Body.String())
	}
	if fc.Features[1].Properties["selected"] != true || fc.Features[0].Properties["selected"] != false {
		t.Fatalf("expected second feature selected: %s", w.Body.String())
	}

	w = do(engine, http.MethodPost, "/api/v1/session/routing/start", nil)
	if w.Code != http.StatusOK || decodeSnapshot(t, w).Kind != "routing" {
		t.Fatalf("start routing: %d %s", w.Code, w.Body.String())
	}

	var view presentation.View
	w = do(engine, http.MethodGet, "/api/v1/session/view", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Camera.Mode != presentation.CameraFollowUserHeading || view.EditEndpoints {
		t.Fatalf("unexpected routing view: %+v", view)
	}

	w = do(engine, http.MethodPost, "/api/v1/session/routing/end", nil)
	if w.Code != http.StatusOK || decodeSnapshot(t, w).Kind != "initial" {
		t.Fatalf("end routing: %d %s", w.Code, w.Body.String())
	}
}

func TestEditAndCancelOverHTTP(t *testing.T) {
	engine := newTestEngine(t, twoRoutes())
	do(engine, http.MethodPost, "/api/v1/session/location", point(39.753, -105.041))
	do(engine, http.MethodPost, "/api/v1/session/destination", map[string]interface{}{
		"name":  "Coffee Shop",
		"point": point(39.755, -105.0),
	})
	waitForKind(t, engine, "preview_directions")

	w := do(engine, http.MethodPost, "/api/v1/session/origin/edit", nil)
	if w.Code != http.StatusOK || decodeSnapshot(t, w).Kind != "update_origin" {
		t.Fatalf("edit origin: %d %s", w.Code, w.Body.String())
	}
	w = do(engine, http.MethodPost, "/api/v1/session/edit/cancel", nil)
	if w.Code != http.StatusOK || decodeSnapshot(t, w).Kind != "preview_directions" {
		t.Fatalf("cancel edit: %d %s", w.Code, w.Body.String())
	}
	w = do(engine, http.MethodPost, "/api/v1/session/reset", nil)
	if w.Code != http.StatusOK || decodeSnapshot(t, w).Kind != "initial" {
		t.Fatalf("reset: %d %s", w.Code, w.Body.String())
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	engine := newTestEngine(t, twoRoutes())

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		kind   string
	}{
		{"latitude out of range", http.MethodPost, "/api/v1/session/location", point(91, 0), http.StatusBadRequest, "validation"},
		{"missing point", http.MethodPost, "/api/v1/session/destination", map[string]interface{}{"name": "x"}, http.StatusBadRequest, "validation"},
		{"current location unknown", http.MethodPost, "/api/v1/session/destination", map[string]interface{}{"currentLocation": true}, http.StatusBadRequest, "validation"},
		{"routing from initial", http.MethodPost, "/api/v1/session/routing/start", nil, http.StatusConflict, "invalid_transition"},
		{"origin from initial", http.MethodPost, "/api/v1/session/origin", map[string]interface{}{"point": point(1, 1)}, http.StatusConflict, "invalid_transition"},
		{"negative route index", http.MethodPost, "/api/v1/session/routes/-1/select", nil, http.StatusBadRequest, "validation"},
		{"no route for geojson", http.MethodGet, "/api/v1/session/route.geojson", nil, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(engine, tt.method, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			var resp httpkit.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Kind != tt.kind {
				t.Fatalf("expected kind %q, got %q", tt.kind, resp.Kind)
			}
		})
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	engine := newTestEngine(t, twoRoutes())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/location", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
