package handlers

import (
	"net/http"

	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up all application routes. commandMiddleware is applied to mutating routes only.
func RegisterRoutes(
	r *gin.Engine,
	services *portssvc.ServiceContainer,
	commandMiddleware ...gin.HandlerFunc,
) {
	r.GET("/health", getHealth)

	setupAPIV1Routes(r, services, commandMiddleware)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	services *portssvc.ServiceContainer,
	commandMiddleware []gin.HandlerFunc,
) {
	v1 := r.Group("/api/v1")

	registerPeriodRoutes(v1, services.Budget, commandMiddleware)
	registerExpenseRoutes(v1, services.Budget, commandMiddleware)
	registerBudgetRoutes(v1, services.Budget, services.ReadModel)
}

func getHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
