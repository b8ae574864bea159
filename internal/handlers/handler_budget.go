package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/dto"
	"github.com/SscSPs/allowance_tracker/internal/middleware"
	"github.com/gin-gonic/gin"
)

// streamKeepAlive is how often an idle snapshot stream sends a comment to keep proxies from closing it.
const streamKeepAlive = 25 * time.Second

// budgetHandler serves the derived views of the active period.
type budgetHandler struct {
	querySvc  portssvc.BudgetQuerySvc
	readModel portssvc.ReadModelSvc
}

func newBudgetHandler(qs portssvc.BudgetQuerySvc, rm portssvc.ReadModelSvc) *budgetHandler {
	return &budgetHandler{querySvc: qs, readModel: rm}
}

// registerBudgetRoutes registers the snapshot, aggregate and stream routes.
func registerBudgetRoutes(rg *gin.RouterGroup, qs portssvc.BudgetQuerySvc, rm portssvc.ReadModelSvc) {
	h := newBudgetHandler(qs, rm)

	budget := rg.Group("/budget")
	{
		budget.GET("/snapshot", h.getSnapshot)
		budget.GET("/aggregate", h.getAggregate)
		budget.GET("/stream", h.streamSnapshots)
	}
}

// getSnapshot returns the active period, its expenses and the aggregate from one consistent read.
// GET /api/v1/budget/snapshot
func (h *budgetHandler) getSnapshot(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	snapshot, err := h.querySvc.CurrentSnapshot(c.Request.Context())
	if err != nil {
		respondError(c, logger, "get snapshot", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToSnapshotResponse(*snapshot))
}

// getAggregate returns only the derived aggregate. With no active period every figure is zero.
// GET /api/v1/budget/aggregate
func (h *budgetHandler) getAggregate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	snapshot, err := h.querySvc.CurrentSnapshot(c.Request.Context())
	if err != nil {
		respondError(c, logger, "get aggregate", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToAggregateResponse(snapshot.Aggregate))
}

// streamSnapshots pushes the current snapshot and every later change as server-sent events.
// GET /api/v1/budget/stream
func (h *budgetHandler) streamSnapshots(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.GetLoggerFromCtx(ctx)
	snapshots := h.readModel.Subscribe(ctx)

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	logger.Debug("Snapshot stream opened")
	sent := 0
	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, ok := <-snapshots:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", dto.ToSnapshotResponse(snapshot))
			sent++
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		case <-ctx.Done():
			return false
		}
	})
	logger.Debug("Snapshot stream closed", slog.Int("events_sent", sent))
}
