package memory

import (
	"context"
	"testing"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
	"github.com/SscSPs/allowance_tracker/internal/core/ports/repositories/gatewaytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayContract(t *testing.T) {
	gatewaytest.Run(t, func(t *testing.T) portsrepo.BudgetGateway {
		gw := NewGateway()
		t.Cleanup(func() { _ = gw.Close() })
		return gw
	})
}

func TestGateway_RejectsExpenseForUnknownPeriod(t *testing.T) {
	gw := NewGateway()
	defer gw.Close()

	_, err := gw.InsertExpense(context.Background(), domain.Expense{
		PeriodID: "missing", Description: "x", Amount: 1,
	})
	assert.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestGateway_ClosedRejectsUse(t *testing.T) {
	gw := NewGateway()
	require.NoError(t, gw.Close())

	_, err := gw.GetActivePeriod(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	err = gw.RunAtomically(context.Background(), func(context.Context, portsrepo.BudgetStore) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
