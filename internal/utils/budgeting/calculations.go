// Package budgeting holds the pure derivations shared by the services, the read model
// and the gateways. Nothing here performs I/O.
package budgeting

import (
	"sort"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
)

// SumExpenses adds every amount. Integer cents make the result independent of order.
func SumExpenses(expenses []domain.Expense) domain.Money {
	var total domain.Money
	for _, e := range expenses {
		total += e.Amount
	}
	return total
}

// ComputeAggregate folds a period and its expenses into the derived aggregate at now.
// A nil period yields the zero aggregate. The caller passes only the period's expenses.
func ComputeAggregate(period *domain.BudgetPeriod, expenses []domain.Expense, now time.Time) domain.Aggregate {
	if period == nil {
		return domain.Aggregate{}
	}

	total := SumExpenses(expenses)
	remaining := period.DisposableAmount - total
	days := period.DaysUntilRenewal(now)

	agg := domain.Aggregate{
		PeriodID:         period.PeriodID,
		DisposableAmount: period.DisposableAmount,
		TotalExpenses:    total,
		RemainingAmount:  remaining,
		IsOverBudget:     remaining < 0,
		OverspendAmount:  Overspend(remaining),
		DaysUntilRenewal: days,
		ExpenseCount:     len(expenses),
	}
	if remaining > 0 && days > 0 {
		agg.DailyAllowance = remaining / domain.Money(days)
	}
	return agg
}

// Overspend is the magnitude by which remaining is below zero.
func Overspend(remaining domain.Money) domain.Money {
	if remaining < 0 {
		return -remaining
	}
	return 0
}

// Projection is the outcome of adding an amount to an aggregate.
type Projection struct {
	WillOverspend        bool
	OverspendAmount      domain.Money
	RemainingAmountAfter domain.Money
}

// ProjectExpense computes what the aggregate would look like after adding amount.
func ProjectExpense(before domain.Aggregate, amount domain.Money) Projection {
	after := before.RemainingAmount - amount
	return Projection{
		WillOverspend:        after < 0,
		OverspendAmount:      Overspend(after),
		RemainingAmountAfter: after,
	}
}

// SortExpenses orders expenses newest first, breaking ties by id so the order is total.
func SortExpenses(expenses []domain.Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		if !expenses[i].CreatedAt.Equal(expenses[j].CreatedAt) {
			return expenses[i].CreatedAt.After(expenses[j].CreatedAt)
		}
		return expenses[i].ExpenseID > expenses[j].ExpenseID
	})
}
