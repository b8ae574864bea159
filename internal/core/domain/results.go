package domain

import "time"

// AddExpenseResult reports the inserted expense together with the overspend pre-check,
// which is computed from the aggregate as it stood before the insert.
type AddExpenseResult struct {
	Expense              Expense `json:"expense"`
	WillOverspend        bool    `json:"willOverspend"`
	OverspendAmount      Money   `json:"overspendAmount"`
	RemainingAmountAfter Money   `json:"remainingAmountAfter"`
}

// ExpenseID is a shortcut for the inserted expense's id.
func (r AddExpenseResult) ExpenseID() string {
	return r.Expense.ExpenseID
}

// BatchItemFailure is one id that could not be deleted in a batch.
type BatchItemFailure struct {
	ExpenseID string `json:"expenseID"`
	Reason    string `json:"reason"`
}

// BatchDeleteResult summarizes a best-effort batch delete.
type BatchDeleteResult struct {
	Deleted            []Expense          `json:"deleted"`
	Failed             []BatchItemFailure `json:"failed"`
	TotalAmountDeleted Money              `json:"totalAmountDeleted"`
}

func (r BatchDeleteResult) SuccessCount() int { return len(r.Deleted) }
func (r BatchDeleteResult) FailureCount() int { return len(r.Failed) }

// ResetResult reports a reset: the new active period and how many expenses of the
// previous period were removed.
type ResetResult struct {
	Period          BudgetPeriod `json:"period"`
	PreviousPeriod  string       `json:"previousPeriodID,omitempty"`
	ExpensesDeleted int64        `json:"expensesDeleted"`
}

// Snapshot is one coherent view of the engine state: the active period, its expenses
// and the aggregate folded from them.
type Snapshot struct {
	Period     *BudgetPeriod `json:"period"`
	Expenses   []Expense     `json:"expenses"`
	Aggregate  Aggregate     `json:"aggregate"`
	ComputedAt time.Time     `json:"computedAt"`
}

// SameState reports whether two snapshots describe the same data, ignoring ComputedAt.
func (s Snapshot) SameState(o Snapshot) bool {
	if (s.Period == nil) != (o.Period == nil) {
		return false
	}
	if s.Period != nil && !s.Period.Equal(*o.Period) {
		return false
	}
	return s.Aggregate == o.Aggregate && ExpensesEqual(s.Expenses, o.Expenses)
}
