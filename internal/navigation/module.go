// Package navigation exposes the routing session to clients over HTTP.
package navigation

import (
	apphttp "bikestreets_backend/internal/http"
)

// Module wires the routing session HTTP routes.
type Module struct {
	session Session
	views   ViewSource
}

func NewModule(s Session, views ViewSource) *Module {
	return &Module{session: s, views: views}
}

func (m *Module) Name() string {
	return "navigation"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	h := NewHandler(m.session, m.views, ctx.Validator)

	group := ctx.V1.Group("/session")
	group.GET("", h.GetSession)
	group.GET("/view", h.GetView)
	group.GET("/route.geojson", h.RouteGeoJSON)
	group.POST("/location", h.UpdateLocation)
	group.POST("/destination", h.SelectDestination)
	group.POST("/origin", h.SelectOrigin)
	group.POST("/origin/edit", h.EditOrigin)
	group.POST("/destination/edit", h.EditDestination)
	group.POST("/edit/cancel", h.CancelEdit)
	group.POST("/routes/:index/select", h.SelectRoute)
	group.POST("/routing/start", h.StartRouting)
	group.POST("/routing/end", h.EndRouting)
	group.POST("/reset", h.Reset)
}

var _ apphttp.Module = (*Module)(nil)
