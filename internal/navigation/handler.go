package navigation

import (
	"context"
	"errors"
	"net/http"

	"bikestreets_backend/internal/osrm"
	"bikestreets_backend/internal/presentation"
	"bikestreets_backend/internal/session"
	"bikestreets_backend/platform/apperr"
	"bikestreets_backend/platform/httpkit"
	"bikestreets_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const msgInvalidRequest = "invalid request"

// Session is the part of session.Controller the handlers drive.
type Session interface {
	State(ctx context.Context) (session.State, error)
	Snapshot(ctx context.Context) (session.Snapshot, error)
	UpdateUserLocation(ctx context.Context, point osrm.Coordinate) error
	SelectDestination(ctx context.Context, sel session.Selection) error
	SelectOrigin(ctx context.Context, sel session.Selection) error
	BeginUpdateOrigin(ctx context.Context) error
	BeginUpdateDestination(ctx context.Context) error
	CancelUpdate(ctx context.Context) error
	SelectRoute(ctx context.Context, index int) error
	StartRouting(ctx context.Context) error
	EndRouting(ctx context.Context) error
	Reset(ctx context.Context) error
}

// ViewSource returns the latest presentation view.
type ViewSource interface {
	View() presentation.View
}

// Handler exposes the routing session over HTTP.
type Handler struct {
	session Session
	views   ViewSource
	val     *validator.Validator
}

func NewHandler(s Session, views ViewSource, val *validator.Validator) *Handler {
	return &Handler{session: s, views: views, val: val}
}

// GetSession handles GET /api/v1/session
func (h *Handler) GetSession(c *gin.Context) {
	h.respondSnapshot(c, http.StatusOK)
}

// GetView handles GET /api/v1/session/view
func (h *Handler) GetView(c *gin.Context) {
	httpkit.OK(c, h.views.View())
}

// UpdateLocation handles POST /api/v1/session/location
func (h *Handler) UpdateLocation(c *gin.Context) {
	var req PointRequest
	if !h.bind(c, &req) {
		return
	}
	if h.fail(c, h.session.UpdateUserLocation(c.Request.Context(), req.coordinate())) {
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectDestination handles POST /api/v1/session/destination
func (h *Handler) SelectDestination(c *gin.Context) {
	h.selectPlace(c, h.session.SelectDestination)
}

// SelectOrigin handles POST /api/v1/session/origin
func (h *Handler) SelectOrigin(c *gin.Context) {
	h.selectPlace(c, h.session.SelectOrigin)
}

func (h *Handler) selectPlace(c *gin.Context, apply func(context.Context, session.Selection) error) {
	var req SelectPlaceRequest
	if !h.bind(c, &req) {
		return
	}
	if req.missingPoint() {
		httpkit.HandleError(c, apperr.Validation("point is required unless currentLocation is set"))
		return
	}
	if h.fail(c, apply(c.Request.Context(), req.selection())) {
		return
	}
	// The route request runs in the background; clients follow the event stream.
	h.respondSnapshot(c, http.StatusAccepted)
}

// EditOrigin handles POST /api/v1/session/origin/edit
func (h *Handler) EditOrigin(c *gin.Context) {
	h.run(c, h.session.BeginUpdateOrigin)
}

// EditDestination handles POST /api/v1/session/destination/edit
func (h *Handler) EditDestination(c *gin.Context) {
	h.run(c, h.session.BeginUpdateDestination)
}

// CancelEdit handles POST /api/v1/session/edit/cancel
func (h *Handler) CancelEdit(c *gin.Context) {
	h.run(c, h.session.CancelUpdate)
}

// SelectRoute handles POST /api/v1/session/routes/:index/select
func (h *Handler) SelectRoute(c *gin.Context) {
	var uri SelectRouteURI
	if err := c.ShouldBindUri(&uri); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(uri); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	h.run(c, func(ctx context.Context) error {
		return h.session.SelectRoute(ctx, uri.Index)
	})
}

// StartRouting handles POST /api/v1/session/routing/start
func (h *Handler) StartRouting(c *gin.Context) {
	h.run(c, h.session.StartRouting)
}

// EndRouting handles POST /api/v1/session/routing/end
func (h *Handler) EndRouting(c *gin.Context) {
	h.run(c, h.session.EndRouting)
}

// Reset handles POST /api/v1/session/reset
func (h *Handler) Reset(c *gin.Context) {
	h.run(c, h.session.Reset)
}

// RouteGeoJSON handles GET /api/v1/session/route.geojson
func (h *Handler) RouteGeoJSON(c *gin.Context) {
	state, err := h.session.State(c.Request.Context())
	if h.fail(c, err) {
		return
	}
	d, ok := session.DirectionsOf(state)
	if !ok || d.Response == nil {
		httpkit.HandleError(c, apperr.NotFound("no route is selected").WithOp("navigation.RouteGeoJSON"))
		return
	}
	fc := osrm.FeatureCollection(d.Response.Routes, d.SelectedIndex())
	data, err := fc.MarshalJSON()
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

func (h *Handler) run(c *gin.Context, fn func(context.Context) error) {
	if h.fail(c, fn(c.Request.Context())) {
		return
	}
	h.respondSnapshot(c, http.StatusOK)
}

func (h *Handler) respondSnapshot(c *gin.Context, status int) {
	snap, err := h.session.Snapshot(c.Request.Context())
	if h.fail(c, err) {
		return
	}
	httpkit.JSON(c, status, snap)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, err)
		return false
	}
	return true
}

// fail writes err, if any. A stopped session loop reads as unavailable.
func (h *Handler) fail(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, session.ErrLoopStopped) {
		err = apperr.Unavailable("session is shutting down")
	}
	return httpkit.HandleError(c, err)
}
