package domain

import (
	"errors"
	"strings"
	"time"
)

// Expense is a planned or realized outflow against a period. Expenses are immutable;
// they are only ever inserted or deleted.
type Expense struct {
	ExpenseID   string    `json:"expenseID"`
	PeriodID    string    `json:"periodID"` // FK -> BudgetPeriod.PeriodID
	Description string    `json:"description"`
	Amount      Money     `json:"amount"` // Strictly positive
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate checks the record-level invariants of an expense.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.PeriodID) == "" {
		return errors.New("expense must reference a period")
	}
	if strings.TrimSpace(e.Description) == "" {
		return errors.New("expense description must not be blank")
	}
	if e.Amount <= 0 {
		return errors.New("expense amount must be positive")
	}
	return nil
}

// Equal compares two expenses by value.
func (e Expense) Equal(o Expense) bool {
	return e.ExpenseID == o.ExpenseID &&
		e.PeriodID == o.PeriodID &&
		e.Description == o.Description &&
		e.Amount == o.Amount &&
		e.CreatedAt.Equal(o.CreatedAt)
}

// ExpensesEqual compares two expense lists element-wise.
func ExpensesEqual(a, b []Expense) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
