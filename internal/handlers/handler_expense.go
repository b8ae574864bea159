package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/allowance_tracker/internal/apperrors"
	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/dto"
	"github.com/SscSPs/allowance_tracker/internal/middleware"
	"github.com/gin-gonic/gin"
)

// expenseHandler handles HTTP requests related to expenses.
type expenseHandler struct {
	expenseService portssvc.BudgetSvcFacade
}

func newExpenseHandler(es portssvc.BudgetSvcFacade) *expenseHandler {
	return &expenseHandler{expenseService: es}
}

// registerExpenseRoutes registers routes related to expenses.
func registerExpenseRoutes(rg *gin.RouterGroup, es portssvc.BudgetSvcFacade, commandMiddleware []gin.HandlerFunc) {
	h := newExpenseHandler(es)

	expenses := rg.Group("/expenses")
	{
		expenses.GET("", h.listExpenses)

		commands := expenses.Group("", commandMiddleware...)
		commands.POST("", h.addExpense)
		commands.POST("/batch-delete", h.deleteExpensesBatch)
		commands.DELETE("/:expenseID", h.deleteExpense)
	}
}

// addExpense records an expense and reports whether it overspends the period.
// POST /api/v1/expenses
func (h *expenseHandler) addExpense(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.AddExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, logger, "add expense", err)
		return
	}

	result, err := h.expenseService.AddExpense(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, "add expense", err)
		return
	}

	logger.Info("Expense added",
		slog.String("expense_id", result.ExpenseID()),
		slog.Bool("will_overspend", result.WillOverspend))
	c.JSON(http.StatusCreated, dto.ToAddExpenseResponse(*result))
}

// listExpenses lists the expenses of ?periodID, defaulting to the active period.
// GET /api/v1/expenses
func (h *expenseHandler) listExpenses(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	periodID := c.Query("periodID")

	expenses, err := h.expenseService.ListExpenses(c.Request.Context(), periodID)
	if err != nil {
		respondError(c, logger, "list expenses", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToExpenseResponses(expenses))
}

// deleteExpense removes one expense and returns it.
// DELETE /api/v1/expenses/{expenseID}
func (h *expenseHandler) deleteExpense(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	expenseID := c.Param("expenseID")

	expense, err := h.expenseService.DeleteExpense(c.Request.Context(), expenseID)
	if err != nil {
		respondError(c, logger.With(slog.String("expense_id", expenseID)), "delete expense", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToExpenseResponse(*expense))
}

// deleteExpensesBatch deletes several expenses. A partial failure answers 207 with the per-id summary.
// POST /api/v1/expenses/batch-delete
func (h *expenseHandler) deleteExpensesBatch(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.DeleteExpensesBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, logger, "delete expenses batch", err)
		return
	}

	result, err := h.expenseService.DeleteExpensesBatch(c.Request.Context(), req.ExpenseIDs)
	var partial *apperrors.PartialFailure
	switch {
	case err == nil:
		c.JSON(http.StatusOK, dto.ToDeleteExpensesBatchResponse(*result))
	case errors.As(err, &partial) && result != nil:
		logger.Warn("Batch delete partially failed",
			slog.Int("succeeded", result.SuccessCount()),
			slog.Int("failed", result.FailureCount()))
		c.JSON(http.StatusMultiStatus, dto.ToDeleteExpensesBatchResponse(*result))
	default:
		respondError(c, logger, "delete expenses batch", err)
	}
}
