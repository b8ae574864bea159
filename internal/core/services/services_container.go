package services

import (
	"log/slog"

	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, gateway portsrepo.BudgetGateway, logger *slog.Logger) *portssvc.ServiceContainer {
	return &portssvc.ServiceContainer{
		Budget: NewBudgetService(gateway,
			WithValidationRules(cfg.ValidationRules()),
			WithLogger(logger),
		),
		ReadModel: NewReadModel(gateway,
			WithRefreshInterval(cfg.ReadModelRefreshInterval),
			WithReadModelLogger(logger),
		),
	}
}
