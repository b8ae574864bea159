package repositories

import (
	"context"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
)

// PeriodReader defines read operations for budget periods.
type PeriodReader interface {
	// GetActivePeriod returns the active period, or nil when none is active.
	GetActivePeriod(ctx context.Context) (*domain.BudgetPeriod, error)

	// GetPeriod returns the period with the given id, or nil when it does not exist.
	GetPeriod(ctx context.Context, periodID string) (*domain.BudgetPeriod, error)
}

// PeriodWriter defines write operations for budget periods.
type PeriodWriter interface {
	// InsertPeriod persists a period and returns the id assigned to it.
	InsertPeriod(ctx context.Context, period domain.BudgetPeriod) (string, error)

	// DeactivateAllPeriods clears the active flag on every period.
	DeactivateAllPeriods(ctx context.Context) error

	// DeletePeriod removes a period and every expense it owns. It returns the number of periods removed.
	DeletePeriod(ctx context.Context, periodID string) (int64, error)
}

// ExpenseReader defines read operations for expenses.
type ExpenseReader interface {
	// ListExpenses returns the expenses owned by a period, newest first.
	ListExpenses(ctx context.Context, periodID string) ([]domain.Expense, error)

	// GetExpense returns the expense with the given id, or nil when it does not exist.
	GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error)
}

// ExpenseWriter defines write operations for expenses.
type ExpenseWriter interface {
	// InsertExpense persists an expense and returns the id assigned to it.
	InsertExpense(ctx context.Context, expense domain.Expense) (string, error)

	// DeleteExpense removes one expense and returns the rows affected (0 or 1).
	DeleteExpense(ctx context.Context, expenseID string) (int64, error)

	// DeleteExpensesByPeriod removes every expense of a period and returns the rows affected.
	DeleteExpensesByPeriod(ctx context.Context, periodID string) (int64, error)
}

// BudgetStore is the CRUD surface available both directly on a gateway and inside an atomic block.
type BudgetStore interface {
	PeriodReader
	PeriodWriter
	ExpenseReader
	ExpenseWriter
}

// TransactionRunner runs a block of reads and writes all-or-nothing.
type TransactionRunner interface {
	// RunAtomically executes fn against a transactional view of the store. Writes made through
	// that view are committed only if fn returns nil; a returned error or a cancelled ctx rolls
	// every write back. Change notifications are emitted after commit, once per block.
	RunAtomically(ctx context.Context, fn func(ctx context.Context, store BudgetStore) error) error
}

// ChangeNotifier is the change-notification primitive the read model is built on.
type ChangeNotifier interface {
	// Subscribe returns a channel that receives an event after every committed write.
	// Slow subscribers see coalesced events; the channel is closed when ctx is done.
	Subscribe(ctx context.Context) <-chan domain.ChangeEvent
}

// BudgetGateway is the full persistence contract the engine depends on.
type BudgetGateway interface {
	BudgetStore
	TransactionRunner
	ChangeNotifier
	Close() error
}
