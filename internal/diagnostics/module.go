// Package diagnostics serves the debug log table and its maintenance.
package diagnostics

import (
	apphttp "bikestreets_backend/internal/http"
)

// Module wires the debug log HTTP routes.
type Module struct {
	store Store
}

func NewModule(store Store) *Module {
	return &Module{store: store}
}

func (m *Module) Name() string {
	return "diagnostics"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	h := NewHandler(m.store, ctx.Validator)

	group := ctx.V1.Group("/debug")
	group.GET("/entries", h.ListEntries)
	group.GET("/rows", h.ListRows)
	group.POST("/cleanup", h.Cleanup)
}

var _ apphttp.Module = (*Module)(nil)
