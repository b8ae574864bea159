package dto

import (
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreatePeriodRequest is used by create, renew and reset.
type CreatePeriodRequest struct {
	DisposableAmount float64    `json:"disposableAmount"`
	RenewalAt        *time.Time `json:"renewalAt,omitempty"` // Defaults to now + the configured period length
}

// AddExpenseRequest adds an expense to PeriodID, or to the active period when PeriodID is empty.
type AddExpenseRequest struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	PeriodID    string  `json:"periodID,omitempty" binding:"omitempty,uuid"`
}

// DeleteExpensesBatchRequest lists the expenses to delete.
type DeleteExpensesBatchRequest struct {
	ExpenseIDs []string `json:"expenseIDs" binding:"required,min=1,max=500,dive,required"`
}

// PeriodResponse is the transport shape of a budget period.
type PeriodResponse struct {
	PeriodID         string          `json:"periodID"`
	DisposableAmount decimal.Decimal `json:"disposableAmount"`
	CreatedAt        time.Time       `json:"createdAt"`
	RenewalAt        time.Time       `json:"renewalAt"`
	IsActive         bool            `json:"isActive"`
}

// ExpenseResponse is the transport shape of an expense.
type ExpenseResponse struct {
	ExpenseID   string          `json:"expenseID"`
	PeriodID    string          `json:"periodID"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// AggregateResponse is the transport shape of the derived aggregate.
type AggregateResponse struct {
	PeriodID         string          `json:"periodID,omitempty"`
	DisposableAmount decimal.Decimal `json:"disposableAmount"`
	TotalExpenses    decimal.Decimal `json:"totalExpenses"`
	RemainingAmount  decimal.Decimal `json:"remainingAmount"`
	IsOverBudget     bool            `json:"isOverBudget"`
	OverspendAmount  decimal.Decimal `json:"overspendAmount"`
	DaysUntilRenewal int             `json:"daysUntilRenewal"`
	ExpenseCount     int             `json:"expenseCount"`
	DailyAllowance   decimal.Decimal `json:"dailyAllowance"`
}

// AddExpenseResponse is returned after an expense is added.
type AddExpenseResponse struct {
	ExpenseID            string          `json:"expenseID"`
	Expense              ExpenseResponse `json:"expense"`
	WillOverspend        bool            `json:"willOverspend"`
	OverspendAmount      decimal.Decimal `json:"overspendAmount"`
	RemainingAmountAfter decimal.Decimal `json:"remainingAmountAfter"`
}

// BatchFailureResponse is one failed id of a batch delete.
type BatchFailureResponse struct {
	ExpenseID string `json:"expenseID"`
	Reason    string `json:"reason"`
}

// DeleteExpensesBatchResponse summarizes a batch delete.
type DeleteExpensesBatchResponse struct {
	Deleted            []ExpenseResponse      `json:"deleted"`
	Failed             []BatchFailureResponse `json:"failed"`
	SuccessCount       int                    `json:"successCount"`
	FailureCount       int                    `json:"failureCount"`
	TotalAmountDeleted decimal.Decimal        `json:"totalAmountDeleted"`
}

// ResetPeriodResponse is returned after a reset.
type ResetPeriodResponse struct {
	Period           PeriodResponse `json:"period"`
	PreviousPeriodID string         `json:"previousPeriodID,omitempty"`
	ExpensesDeleted  int64          `json:"expensesDeleted"`
}

// SnapshotResponse is the transport shape of a read-model snapshot.
type SnapshotResponse struct {
	Period     *PeriodResponse   `json:"period"`
	Expenses   []ExpenseResponse `json:"expenses"`
	Aggregate  AggregateResponse `json:"aggregate"`
	ComputedAt time.Time         `json:"computedAt"`
}

// ToPeriodResponse converts a domain.BudgetPeriod to PeriodResponse.
func ToPeriodResponse(p domain.BudgetPeriod) PeriodResponse {
	return PeriodResponse{
		PeriodID:         p.PeriodID,
		DisposableAmount: p.DisposableAmount.Decimal(),
		CreatedAt:        p.CreatedAt,
		RenewalAt:        p.RenewalAt,
		IsActive:         p.IsActive,
	}
}

// ToExpenseResponse converts a domain.Expense to ExpenseResponse.
func ToExpenseResponse(e domain.Expense) ExpenseResponse {
	return ExpenseResponse{
		ExpenseID:   e.ExpenseID,
		PeriodID:    e.PeriodID,
		Description: e.Description,
		Amount:      e.Amount.Decimal(),
		CreatedAt:   e.CreatedAt,
	}
}

// ToExpenseResponses converts a slice of domain.Expense. It never returns nil.
func ToExpenseResponses(expenses []domain.Expense) []ExpenseResponse {
	responses := make([]ExpenseResponse, len(expenses))
	for i, e := range expenses {
		responses[i] = ToExpenseResponse(e)
	}
	return responses
}

// ToAggregateResponse converts a domain.Aggregate to AggregateResponse.
func ToAggregateResponse(a domain.Aggregate) AggregateResponse {
	return AggregateResponse{
		PeriodID:         a.PeriodID,
		DisposableAmount: a.DisposableAmount.Decimal(),
		TotalExpenses:    a.TotalExpenses.Decimal(),
		RemainingAmount:  a.RemainingAmount.Decimal(),
		IsOverBudget:     a.IsOverBudget,
		OverspendAmount:  a.OverspendAmount.Decimal(),
		DaysUntilRenewal: a.DaysUntilRenewal,
		ExpenseCount:     a.ExpenseCount,
		DailyAllowance:   a.DailyAllowance.Decimal(),
	}
}

// ToAddExpenseResponse converts a domain.AddExpenseResult.
func ToAddExpenseResponse(r domain.AddExpenseResult) AddExpenseResponse {
	return AddExpenseResponse{
		ExpenseID:            r.ExpenseID(),
		Expense:              ToExpenseResponse(r.Expense),
		WillOverspend:        r.WillOverspend,
		OverspendAmount:      r.OverspendAmount.Decimal(),
		RemainingAmountAfter: r.RemainingAmountAfter.Decimal(),
	}
}

// ToDeleteExpensesBatchResponse converts a domain.BatchDeleteResult.
func ToDeleteExpensesBatchResponse(r domain.BatchDeleteResult) DeleteExpensesBatchResponse {
	failed := make([]BatchFailureResponse, len(r.Failed))
	for i, f := range r.Failed {
		failed[i] = BatchFailureResponse{ExpenseID: f.ExpenseID, Reason: f.Reason}
	}
	return DeleteExpensesBatchResponse{
		Deleted:            ToExpenseResponses(r.Deleted),
		Failed:             failed,
		SuccessCount:       r.SuccessCount(),
		FailureCount:       r.FailureCount(),
		TotalAmountDeleted: r.TotalAmountDeleted.Decimal(),
	}
}

// ToResetPeriodResponse converts a domain.ResetResult.
func ToResetPeriodResponse(r domain.ResetResult) ResetPeriodResponse {
	return ResetPeriodResponse{
		Period:           ToPeriodResponse(r.Period),
		PreviousPeriodID: r.PreviousPeriod,
		ExpensesDeleted:  r.ExpensesDeleted,
	}
}

// ToSnapshotResponse converts a domain.Snapshot.
func ToSnapshotResponse(s domain.Snapshot) SnapshotResponse {
	resp := SnapshotResponse{
		Expenses:   ToExpenseResponses(s.Expenses),
		Aggregate:  ToAggregateResponse(s.Aggregate),
		ComputedAt: s.ComputedAt,
	}
	if s.Period != nil {
		p := ToPeriodResponse(*s.Period)
		resp.Period = &p
	}
	return resp
}
