package diagnostics

import (
	"context"
	"net/http"
	"time"

	"bikestreets_backend/internal/debuglog"
	"bikestreets_backend/platform/apperr"
	"bikestreets_backend/platform/httpkit"
	"bikestreets_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Store is the debug log store as seen by the handlers.
type Store interface {
	List(ctx context.Context) ([]debuglog.Item, error)
	Cleanup(maxAge time.Duration) int
}

// EntriesResponse lists decoded entries. Failures names the files that could
// not be read; they do not fail the request.
type EntriesResponse struct {
	Items    []debuglog.Item `json:"items"`
	Failures string          `json:"failures,omitempty"`
}

// RowsResponse is the flattened debug table.
type RowsResponse struct {
	Rows     []debuglog.Row `json:"rows"`
	Failures string         `json:"failures,omitempty"`
}

// CleanupRequest optionally overrides the retention horizon, e.g. "72h".
type CleanupRequest struct {
	MaxAge string `json:"maxAge" validate:"omitempty,max=32"`
}

// CleanupResponse reports how many entries were removed.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// Handler exposes the debug log over HTTP.
type Handler struct {
	store Store
	val   *validator.Validator
}

func NewHandler(store Store, val *validator.Validator) *Handler {
	return &Handler{store: store, val: val}
}

// ListEntries handles GET /api/v1/debug/entries
func (h *Handler) ListEntries(c *gin.Context) {
	items, failures, ok := h.list(c)
	if !ok {
		return
	}
	httpkit.OK(c, EntriesResponse{Items: items, Failures: failures})
}

// ListRows handles GET /api/v1/debug/rows
func (h *Handler) ListRows(c *gin.Context) {
	items, failures, ok := h.list(c)
	if !ok {
		return
	}
	httpkit.OK(c, RowsResponse{Rows: debuglog.Rows(items), Failures: failures})
}

// Cleanup handles POST /api/v1/debug/cleanup
func (h *Handler) Cleanup(c *gin.Context) {
	var req CleanupRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	var maxAge time.Duration
	if req.MaxAge != "" {
		d, err := time.ParseDuration(req.MaxAge)
		if err != nil || d <= 0 {
			httpkit.HandleError(c, apperr.Validation("maxAge must be a positive duration"))
			return
		}
		maxAge = d
	}

	httpkit.OK(c, CleanupResponse{Removed: h.store.Cleanup(maxAge)})
}

func (h *Handler) list(c *gin.Context) ([]debuglog.Item, string, bool) {
	items, err := h.store.List(c.Request.Context())
	if err == nil {
		return nonNil(items), "", true
	}
	if apperr.Is(err, apperr.KindDecodeFailure) {
		return nonNil(items), err.Error(), true
	}
	httpkit.HandleError(c, err)
	return nil, "", false
}

func nonNil(items []debuglog.Item) []debuglog.Item {
	if items == nil {
		return []debuglog.Item{}
	}
	return items
}
