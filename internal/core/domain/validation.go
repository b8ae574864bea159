package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/SscSPs/allowance_tracker/internal/apperrors"
	"github.com/shopspring/decimal"
)

const (
	DefaultMaxAmount            Money = 99999999 // 999,999.99
	DefaultMaxDescriptionLength       = 50
	DefaultPeriodLength               = 30 * 24 * time.Hour
	DefaultMaxRenewalHorizon          = 365 * 24 * time.Hour
)

// ValidationRules holds the tunable limits applied to command input.
type ValidationRules struct {
	MaxAmount            Money
	MaxDescriptionLength int
	DefaultPeriodLength  time.Duration
	MaxRenewalHorizon    time.Duration
}

// DefaultValidationRules returns the stock limits.
func DefaultValidationRules() ValidationRules {
	return ValidationRules{
		MaxAmount:            DefaultMaxAmount,
		MaxDescriptionLength: DefaultMaxDescriptionLength,
		DefaultPeriodLength:  DefaultPeriodLength,
		MaxRenewalHorizon:    DefaultMaxRenewalHorizon,
	}
}

// ExpenseInput is a validated and normalized expense request.
type ExpenseInput struct {
	Description string
	Amount      Money
}

// PeriodInput is a validated period request with the renewal date resolved.
type PeriodInput struct {
	DisposableAmount Money
	CreatedAt        time.Time
	RenewalAt        time.Time
}

// ValidateExpenseInput reports whether description and amount are acceptable.
func (r ValidationRules) ValidateExpenseInput(description string, amount float64) error {
	_, err := r.ParseExpenseInput(description, amount)
	return err
}

// ParseExpenseInput validates and normalizes an expense request.
// The description is trimmed and the amount is rounded to cents.
func (r ValidationRules) ParseExpenseInput(description string, amount float64) (ExpenseInput, error) {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return ExpenseInput{}, apperrors.NewValidationError(apperrors.ReasonEmptyDescription, "description must not be blank")
	}
	if n := utf8.RuneCountInString(desc); n > r.MaxDescriptionLength {
		return ExpenseInput{}, apperrors.NewValidationError(apperrors.ReasonDescriptionTooLong,
			"description has "+strconv.Itoa(n)+" characters, limit is "+strconv.Itoa(r.MaxDescriptionLength))
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ExpenseInput{}, apperrors.NewValidationError(apperrors.ReasonNonFiniteAmount, "amount must be a finite number")
	}
	if amount <= 0 {
		return ExpenseInput{}, apperrors.NewValidationError(apperrors.ReasonNonPositiveAmount, "amount must be greater than zero")
	}
	d := decimal.NewFromFloat(amount).Round(2)
	if d.GreaterThan(r.MaxAmount.Decimal()) {
		return ExpenseInput{}, apperrors.NewValidationError(apperrors.ReasonAmountTooLarge, "amount exceeds "+r.MaxAmount.String())
	}
	cents := MoneyFromDecimal(d)
	if cents <= 0 {
		return ExpenseInput{}, apperrors.NewValidationError(apperrors.ReasonNonPositiveAmount, "amount rounds to zero")
	}
	return ExpenseInput{Description: desc, Amount: cents}, nil
}

// ValidatePeriodInput reports whether a disposable amount and optional renewal date are acceptable at now.
func (r ValidationRules) ValidatePeriodInput(disposableAmount float64, renewalAt *time.Time, now time.Time) error {
	_, err := r.ParsePeriodInput(disposableAmount, renewalAt, now)
	return err
}

// ParsePeriodInput validates a period request. A nil renewalAt defaults to now plus DefaultPeriodLength.
func (r ValidationRules) ParsePeriodInput(disposableAmount float64, renewalAt *time.Time, now time.Time) (PeriodInput, error) {
	if math.IsNaN(disposableAmount) || math.IsInf(disposableAmount, 0) {
		return PeriodInput{}, apperrors.NewValidationError(apperrors.ReasonNonFiniteAmount, "disposable amount must be a finite number")
	}
	if disposableAmount < 0 {
		return PeriodInput{}, apperrors.NewValidationError(apperrors.ReasonNegativeAmount, "disposable amount must not be negative")
	}
	d := decimal.NewFromFloat(disposableAmount).Round(2)
	if d.GreaterThan(r.MaxAmount.Decimal()) {
		return PeriodInput{}, apperrors.NewValidationError(apperrors.ReasonAmountTooLarge, "disposable amount exceeds "+r.MaxAmount.String())
	}

	renewal := now.Add(r.DefaultPeriodLength)
	if renewalAt != nil {
		if !renewalAt.After(now) {
			return PeriodInput{}, apperrors.NewValidationError(apperrors.ReasonRenewalNotInFuture, "renewal date must be in the future")
		}
		if renewalAt.After(now.Add(r.MaxRenewalHorizon)) {
			return PeriodInput{}, apperrors.NewValidationError(apperrors.ReasonRenewalTooFarOut, "renewal date is too far in the future")
		}
		renewal = *renewalAt
	}

	return PeriodInput{
		DisposableAmount: MoneyFromDecimal(d),
		CreatedAt:        now,
		RenewalAt:        renewal,
	}, nil
}
