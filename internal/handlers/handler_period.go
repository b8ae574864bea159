package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/dto"
	"github.com/SscSPs/allowance_tracker/internal/middleware"
	"github.com/gin-gonic/gin"
)

// periodHandler handles HTTP requests for the budget period lifecycle.
type periodHandler struct {
	periodService portssvc.BudgetSvcFacade
}

func newPeriodHandler(ps portssvc.BudgetSvcFacade) *periodHandler {
	return &periodHandler{periodService: ps}
}

// registerPeriodRoutes registers routes related to budget periods.
func registerPeriodRoutes(rg *gin.RouterGroup, ps portssvc.BudgetSvcFacade, commandMiddleware []gin.HandlerFunc) {
	h := newPeriodHandler(ps)

	periods := rg.Group("/periods")
	{
		periods.GET("/active", h.getActivePeriod)

		commands := periods.Group("", commandMiddleware...)
		commands.POST("", h.createPeriod)
		commands.POST("/renew", h.renewPeriod)
		commands.POST("/reset", h.resetPeriod)
		commands.DELETE("/:periodID", h.deletePeriod)
	}
}

// createPeriod starts a new active period, deactivating the previous one.
// POST /api/v1/periods
func (h *periodHandler) createPeriod(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, logger, "create period", err)
		return
	}

	period, err := h.periodService.CreatePeriod(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, "create period", err)
		return
	}

	logger.Info("Budget period created", slog.String("period_id", period.PeriodID))
	c.JSON(http.StatusCreated, dto.ToPeriodResponse(*period))
}

// renewPeriod starts the next cycle and keeps the previous period's expenses.
// POST /api/v1/periods/renew
func (h *periodHandler) renewPeriod(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, logger, "renew period", err)
		return
	}

	period, err := h.periodService.RenewPeriod(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, "renew period", err)
		return
	}

	logger.Info("Budget period renewed", slog.String("period_id", period.PeriodID))
	c.JSON(http.StatusCreated, dto.ToPeriodResponse(*period))
}

// resetPeriod starts the next cycle and deletes the previous period's expenses.
// POST /api/v1/periods/reset
func (h *periodHandler) resetPeriod(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, logger, "reset period", err)
		return
	}

	result, err := h.periodService.ResetPeriod(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, "reset period", err)
		return
	}

	logger.Info("Budget period reset",
		slog.String("period_id", result.Period.PeriodID),
		slog.Int64("expenses_deleted", result.ExpensesDeleted))
	c.JSON(http.StatusCreated, dto.ToResetPeriodResponse(*result))
}

// deletePeriod removes a period together with its expenses.
// DELETE /api/v1/periods/{periodID}
func (h *periodHandler) deletePeriod(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	periodID := c.Param("periodID")

	period, err := h.periodService.DeletePeriod(c.Request.Context(), periodID)
	if err != nil {
		respondError(c, logger.With(slog.String("period_id", periodID)), "delete period", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPeriodResponse(*period))
}

// getActivePeriod returns the active period, or 409 when there is none.
// GET /api/v1/periods/active
func (h *periodHandler) getActivePeriod(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	period, err := h.periodService.GetActivePeriod(c.Request.Context())
	if err != nil {
		respondError(c, logger, "get active period", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPeriodResponse(*period))
}
