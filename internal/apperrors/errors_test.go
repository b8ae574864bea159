package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"validation", NewValidationError(ReasonEmptyDescription, "x"), KindValidation},
		{"not found", NewNotFoundError(EntityExpense, "e1"), KindNotFound},
		{"no active", &NoActivePeriodError{}, KindNoActivePeriod},
		{"partial", &PartialFailure{}, KindPartialFailure},
		{"wrapped validation", fmt.Errorf("ctx: %w", NewValidationError(ReasonInvalidID, "")), KindValidation},
		{"foreign error", errors.New("boom"), KindPersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestNewPersistenceError(t *testing.T) {
	assert.Nil(t, NewPersistenceError("op", nil))

	nf := NewNotFoundError(EntityPeriod, "p1")
	assert.Same(t, nf, NewPersistenceError("op", nf))

	err := NewPersistenceError("add expense", context.Canceled)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "add expense")
}

func TestSentinelsMatch(t *testing.T) {
	assert.ErrorIs(t, NewValidationError(ReasonAmountTooLarge, ""), ErrValidation)
	assert.ErrorIs(t, NewNotFoundError(EntityExpense, "e"), ErrNotFound)
	assert.ErrorIs(t, &NoActivePeriodError{}, ErrNoActivePeriod)
	assert.NotErrorIs(t, NewNotFoundError(EntityExpense, "e"), ErrValidation)
}

func TestPartialFailure_Error(t *testing.T) {
	err := &PartialFailure{
		Succeeded: []string{"a", "c"},
		Failed:    []ItemFailure{{ID: "b", Err: NewNotFoundError(EntityExpense, "b")}},
	}
	assert.Equal(t, "batch partially failed: 2 succeeded, 1 failed (b)", err.Error())
	assert.ErrorIs(t, err, ErrPartialFailure)
}
