package domain

// Aggregate is the derived, never persisted, summary of the active period.
// The zero value is the aggregate reported when no period is active.
type Aggregate struct {
	PeriodID         string `json:"periodID"`
	DisposableAmount Money  `json:"disposableAmount"`
	TotalExpenses    Money  `json:"totalExpenses"`
	RemainingAmount  Money  `json:"remainingAmount"` // DisposableAmount - TotalExpenses, may be negative
	IsOverBudget     bool   `json:"isOverBudget"`
	OverspendAmount  Money  `json:"overspendAmount"` // max(0, -RemainingAmount)
	DaysUntilRenewal int    `json:"daysUntilRenewal"`
	ExpenseCount     int    `json:"expenseCount"`
	DailyAllowance   Money  `json:"dailyAllowance"` // Remaining spread over the days left, 0 when either is not positive
}
