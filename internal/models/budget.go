package models

import (
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
)

// BudgetPeriod is the budget_periods row.
type BudgetPeriod struct {
	PeriodID              string    `json:"periodID"`              // Primary Key (UUID text)
	DisposableAmountCents int64     `json:"disposableAmountCents"` // Non-negative
	CreatedAt             time.Time `json:"createdAt"`
	RenewalAt             time.Time `json:"renewalAt"`
	IsActive              bool      `json:"isActive"` // Unique among TRUE rows
}

// Expense is the expenses row.
type Expense struct {
	ExpenseID   string    `json:"expenseID"`   // Primary Key (UUID text)
	PeriodID    string    `json:"periodID"`    // FK -> budget_periods, ON DELETE CASCADE
	Description string    `json:"description"` // Trimmed, non-empty
	AmountCents int64     `json:"amountCents"` // Strictly positive
	CreatedAt   time.Time `json:"createdAt"`
}

func FromDomainPeriod(p domain.BudgetPeriod) BudgetPeriod {
	return BudgetPeriod{
		PeriodID:              p.PeriodID,
		DisposableAmountCents: p.DisposableAmount.Cents(),
		CreatedAt:             p.CreatedAt.UTC(),
		RenewalAt:             p.RenewalAt.UTC(),
		IsActive:              p.IsActive,
	}
}

func (m BudgetPeriod) ToDomain() domain.BudgetPeriod {
	return domain.BudgetPeriod{
		PeriodID:         m.PeriodID,
		DisposableAmount: domain.Money(m.DisposableAmountCents),
		CreatedAt:        m.CreatedAt.UTC(),
		RenewalAt:        m.RenewalAt.UTC(),
		IsActive:         m.IsActive,
	}
}

func FromDomainExpense(e domain.Expense) Expense {
	return Expense{
		ExpenseID:   e.ExpenseID,
		PeriodID:    e.PeriodID,
		Description: e.Description,
		AmountCents: e.Amount.Cents(),
		CreatedAt:   e.CreatedAt.UTC(),
	}
}

func (m Expense) ToDomain() domain.Expense {
	return domain.Expense{
		ExpenseID:   m.ExpenseID,
		PeriodID:    m.PeriodID,
		Description: m.Description,
		Amount:      domain.Money(m.AmountCents),
		CreatedAt:   m.CreatedAt.UTC(),
	}
}
