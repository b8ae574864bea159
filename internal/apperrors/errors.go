// Package apperrors defines the error taxonomy returned by every budget command.
// Callers discriminate with errors.Is against the sentinels, errors.As against
// the concrete types, or KindOf.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates the taxonomy.
type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindNoActivePeriod Kind = "NO_ACTIVE_PERIOD"
	KindPersistence    Kind = "PERSISTENCE"
	KindPartialFailure Kind = "PARTIAL_FAILURE"
)

// Sentinels for errors.Is matching.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("resource not found")
	ErrNoActivePeriod = errors.New("no active budget period")
	ErrPersistence    = errors.New("persistence failure")
	ErrPartialFailure = errors.New("batch partially failed")
)

// Error is implemented only by the types in this package.
type Error interface {
	error
	Kind() Kind
	sealed()
}

// Reason names why an input was rejected.
type Reason string

const (
	ReasonEmptyDescription   Reason = "EmptyDescription"
	ReasonDescriptionTooLong Reason = "DescriptionTooLong"
	ReasonNonPositiveAmount  Reason = "NonPositiveAmount"
	ReasonAmountTooLarge     Reason = "AmountTooLarge"
	ReasonNonFiniteAmount    Reason = "NonFiniteAmount"
	ReasonNegativeAmount     Reason = "NegativeAmount"
	ReasonRenewalNotInFuture Reason = "RenewalNotInFuture"
	ReasonRenewalTooFarOut   Reason = "RenewalTooFarOut"
	ReasonInvalidID          Reason = "InvalidID"
)

// ValidationError is returned for malformed input. It is never retried.
type ValidationError struct {
	Reason Reason
	Detail string
}

func NewValidationError(reason Reason, detail string) *ValidationError {
	return &ValidationError{Reason: reason, Detail: detail}
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Reason, e.Detail)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ValidationError) Kind() Kind           { return KindValidation }
func (e *ValidationError) sealed()              {}

// Entity names used in NotFoundError.
const (
	EntityPeriod  = "period"
	EntityExpense = "expense"
)

// NotFoundError reports a referenced period or expense that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) Kind() Kind           { return KindNotFound }
func (e *NotFoundError) sealed()              {}

// NoActivePeriodError is returned when a mutation needs an active cycle and none exists.
type NoActivePeriodError struct{}

func (e *NoActivePeriodError) Error() string        { return ErrNoActivePeriod.Error() }
func (e *NoActivePeriodError) Is(target error) bool { return target == ErrNoActivePeriod }
func (e *NoActivePeriodError) Kind() Kind           { return KindNoActivePeriod }
func (e *NoActivePeriodError) sealed()              {}

// PersistenceError wraps a gateway failure. The engine never retries it.
type PersistenceError struct {
	Op    string
	Cause error
}

// NewPersistenceError wraps cause unless it already belongs to the taxonomy,
// in which case it is returned unchanged.
func NewPersistenceError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var known Error
	if errors.As(cause, &known) {
		return cause
	}
	return &PersistenceError{Op: op, Cause: cause}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error        { return e.Cause }
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
func (e *PersistenceError) Kind() Kind           { return KindPersistence }
func (e *PersistenceError) sealed()              {}

// ItemFailure is one failed id inside a batch.
type ItemFailure struct {
	ID  string
	Err error
}

// PartialFailure is returned by batch operations when at least one item failed.
type PartialFailure struct {
	Succeeded []string
	Failed    []ItemFailure
}

func (e *PartialFailure) Error() string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.ID
	}
	return fmt.Sprintf("batch partially failed: %d succeeded, %d failed (%s)",
		len(e.Succeeded), len(e.Failed), strings.Join(ids, ", "))
}

func (e *PartialFailure) Is(target error) bool { return target == ErrPartialFailure }
func (e *PartialFailure) Kind() Kind           { return KindPartialFailure }
func (e *PartialFailure) sealed()              {}

// KindOf reports the taxonomy kind of err. Errors outside the taxonomy are
// treated as persistence failures; nil yields the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var known Error
	if errors.As(err, &known) {
		return known.Kind()
	}
	return KindPersistence
}
