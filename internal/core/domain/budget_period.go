package domain

import (
	"errors"
	"time"
)

// BudgetPeriod is one allowance cycle. Only IsActive ever changes after creation.
type BudgetPeriod struct {
	PeriodID         string    `json:"periodID"`         // Assigned by the gateway on insert
	DisposableAmount Money     `json:"disposableAmount"` // Non-negative allowance for the cycle
	CreatedAt        time.Time `json:"createdAt"`
	RenewalAt        time.Time `json:"renewalAt"` // Strictly after CreatedAt
	IsActive         bool      `json:"isActive"`  // At most one period is active at a time
}

// Validate checks the record-level invariants of a period.
func (p BudgetPeriod) Validate() error {
	if p.DisposableAmount < 0 {
		return errors.New("disposable amount must not be negative")
	}
	if p.CreatedAt.IsZero() {
		return errors.New("created at must be set")
	}
	if !p.RenewalAt.After(p.CreatedAt) {
		return errors.New("renewal must be after creation")
	}
	return nil
}

// DaysUntilRenewal is the number of whole days left before RenewalAt, never negative.
func (p BudgetPeriod) DaysUntilRenewal(now time.Time) int {
	left := p.RenewalAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / (24 * time.Hour))
}

// Equal compares two periods by value, using time.Equal for timestamps.
func (p BudgetPeriod) Equal(o BudgetPeriod) bool {
	return p.PeriodID == o.PeriodID &&
		p.DisposableAmount == o.DisposableAmount &&
		p.CreatedAt.Equal(o.CreatedAt) &&
		p.RenewalAt.Equal(o.RenewalAt) &&
		p.IsActive == o.IsActive
}
