package services

import (
	"context"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	"github.com/SscSPs/allowance_tracker/internal/dto"
)

// PeriodCommandSvc defines the period lifecycle commands.
type PeriodCommandSvc interface {
	// CreatePeriod validates input, deactivates any active period and activates a new one atomically.
	CreatePeriod(ctx context.Context, req dto.CreatePeriodRequest) (*domain.BudgetPeriod, error)

	// RenewPeriod starts a new cycle. Expenses of the previous period are kept.
	RenewPeriod(ctx context.Context, req dto.CreatePeriodRequest) (*domain.BudgetPeriod, error)

	// ResetPeriod starts a new cycle and deletes every expense of the previous active period.
	ResetPeriod(ctx context.Context, req dto.CreatePeriodRequest) (*domain.ResetResult, error)

	// DeletePeriod removes a period and cascades to its expenses.
	DeletePeriod(ctx context.Context, periodID string) (*domain.BudgetPeriod, error)
}

// ExpenseCommandSvc defines the expense commands.
type ExpenseCommandSvc interface {
	// AddExpense validates and inserts an expense, reporting whether it pushes the period over budget.
	AddExpense(ctx context.Context, req dto.AddExpenseRequest) (*domain.AddExpenseResult, error)

	// DeleteExpense removes one expense and returns the deleted record.
	DeleteExpense(ctx context.Context, expenseID string) (*domain.Expense, error)

	// DeleteExpensesBatch deletes each id independently and reports per-id outcomes.
	// A *apperrors.PartialFailure is returned alongside the result when any id failed.
	DeleteExpensesBatch(ctx context.Context, expenseIDs []string) (*domain.BatchDeleteResult, error)
}

// BudgetQuerySvc defines synchronous reads that are always consistent with the last committed write.
type BudgetQuerySvc interface {
	// GetActivePeriod returns the active period or a NoActivePeriodError.
	GetActivePeriod(ctx context.Context) (*domain.BudgetPeriod, error)

	// ListExpenses returns the expenses of periodID, or of the active period when periodID is empty.
	ListExpenses(ctx context.Context, periodID string) ([]domain.Expense, error)

	// CurrentSnapshot loads the active period and its expenses in one read and folds the aggregate.
	CurrentSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// BudgetSvcFacade combines all budget-related service interfaces.
type BudgetSvcFacade interface {
	PeriodCommandSvc
	ExpenseCommandSvc
	BudgetQuerySvc
}

// ReadModelSvc exposes the continuously updated views. Every stream emits the current
// value on subscription and again on each change; it is closed when ctx is done.
type ReadModelSvc interface {
	// Run keeps the model current until ctx is done. It must be called once.
	Run(ctx context.Context) error

	Subscribe(ctx context.Context) <-chan domain.Snapshot
	ActivePeriod(ctx context.Context) <-chan *domain.BudgetPeriod
	Expenses(ctx context.Context) <-chan []domain.Expense
	Aggregate(ctx context.Context) <-chan domain.Aggregate
}

// ServiceContainer holds instances of all the application services.
type ServiceContainer struct {
	Budget    BudgetSvcFacade
	ReadModel ReadModelSvc
}
