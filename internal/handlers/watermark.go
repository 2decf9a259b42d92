package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/watermark"
)

// WatermarkStore is the part of the watermark store the admin API needs.
type WatermarkStore interface {
	watermark.Lister
	Delete(ctx context.Context, key string) error
}

// WatermarkHandler exposes stored sync positions.
type WatermarkHandler struct {
	store  WatermarkStore
	logger ectologger.Logger
}

// NewWatermarkHandler creates a new watermark handler
func NewWatermarkHandler(store WatermarkStore, logger ectologger.Logger) *WatermarkHandler {
	return &WatermarkHandler{store: store, logger: logger}
}

// Watermark is one stored position
type Watermark struct {
	Stream    string    `json:"stream"`
	Watermark time.Time `json:"watermark"`
	// Pending is true for cascade markers left by an unfinished run.
	Pending bool `json:"pending"`
}

// RegisterRoutes registers watermark routes
func (h *WatermarkHandler) RegisterRoutes(g *echo.Group) {
	wm := g.Group("/watermarks")
	wm.GET("", h.List)
	wm.DELETE("/:stream", h.Delete)
}

// List handles GET /watermarks
func (h *WatermarkHandler) List(c echo.Context) error {
	stored, err := h.store.List(c.Request().Context())
	if err != nil {
		return httperror.WrapError(http.StatusServiceUnavailable, err)
	}

	out := make([]Watermark, 0, len(stored))
	for stream, t := range stored {
		out = append(out, Watermark{
			Stream:    stream,
			Watermark: t,
			Pending:   stream == watermark.KeyMoviesByPerson || stream == watermark.KeyMoviesByGenre,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stream < out[j].Stream })
	return SuccessResponse(c, out)
}

// Delete handles DELETE /watermarks/:stream. The next run of that stream starts from scratch.
func (h *WatermarkHandler) Delete(c echo.Context) error {
	stream := c.Param("stream")
	if !watermark.IsKey(stream) {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid stream: must be one of %v", watermark.Keys)
	}

	ctx := c.Request().Context()
	if err := h.store.Delete(ctx, stream); err != nil {
		return httperror.WrapError(http.StatusServiceUnavailable, err)
	}
	h.logger.WithContext(ctx).WithField("stream", stream).Warn("Watermark reset")
	return NoContentResponse(c)
}
