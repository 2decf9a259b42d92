package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/syncer"
	"github.com/Ramsey-B/fern/pkg/watermark"
)

// SyncRunner executes one sync invocation.
type SyncRunner interface {
	Run(ctx context.Context, kind models.Kind, override *time.Time) (*syncer.Report, error)
}

// SyncHandler starts sync runs in the background.
type SyncHandler struct {
	runner SyncRunner
	logger ectologger.Logger

	mu      sync.Mutex
	running bool
	last    *syncer.Report
	wg      sync.WaitGroup
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(runner SyncRunner, logger ectologger.Logger) *SyncHandler {
	return &SyncHandler{runner: runner, logger: logger}
}

// SyncAccepted is returned when a run is started
type SyncAccepted struct {
	RunID string      `json:"run_id"`
	Kind  models.Kind `json:"kind"`
	Since *string     `json:"since,omitempty"`
}

// RegisterRoutes registers sync routes
func (h *SyncHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/sync/:kind", h.Start)
	g.GET("/sync/last", h.Last)
}

// Start handles POST /sync/:kind. The run outlives the request.
func (h *SyncHandler) Start(c echo.Context) error {
	kind, err := ParseKind(c)
	if err != nil {
		return err
	}
	since, err := ParseSince(c)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return httperror.NewHTTPError(http.StatusConflict, syncer.ErrSyncInProgress.Error())
	}
	h.running = true
	h.mu.Unlock()

	runID := uuid.New().String()
	ctx := fernctx.SetRunID(context.WithoutCancel(c.Request().Context()), runID)

	h.wg.Add(1)
	go h.run(ctx, kind, since)

	resp := SyncAccepted{RunID: runID, Kind: kind}
	if since != nil {
		s := watermark.Format(*since)
		resp.Since = &s
	}
	return AcceptedResponse(c, resp)
}

func (h *SyncHandler) run(ctx context.Context, kind models.Kind, since *time.Time) {
	defer h.wg.Done()

	report, err := h.runner.Run(ctx, kind, since)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Errorf("Triggered %s sync failed", kind)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	if report != nil {
		h.last = report
	}
}

// Last handles GET /sync/last
func (h *SyncHandler) Last(c echo.Context) error {
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "no sync has run yet")
	}
	return SuccessResponse(c, last)
}

// Wait blocks until every started run has finished.
func (h *SyncHandler) Wait() {
	h.wg.Wait()
}
