// Package gatewaytest is the behavioural contract every BudgetGateway must satisfy.
// Adapters call Run from their own tests.
package gatewaytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty gateway. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) portsrepo.BudgetGateway

// quiet is how long the suite waits to conclude that no further event is coming.
const quiet = 150 * time.Millisecond

var errBoom = errors.New("boom")

// Run executes the contract against gateways produced by newGateway.
func Run(t *testing.T, newGateway Factory) {
	base := time.Now().UTC().Truncate(time.Microsecond)

	period := func(active bool, disposable domain.Money) domain.BudgetPeriod {
		return domain.BudgetPeriod{
			DisposableAmount: disposable,
			CreatedAt:        base,
			RenewalAt:        base.Add(10 * 24 * time.Hour),
			IsActive:         active,
		}
	}
	expense := func(periodID, desc string, amount domain.Money, offset time.Duration) domain.Expense {
		return domain.Expense{
			PeriodID:    periodID,
			Description: desc,
			Amount:      amount,
			CreatedAt:   base.Add(offset),
		}
	}

	t.Run("InsertAndGetPeriod", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		id, err := gw.InsertPeriod(ctx, period(true, 100000))
		require.NoError(t, err)
		require.NotEmpty(t, id)

		got, err := gw.GetPeriod(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, id, got.PeriodID)
		assert.Equal(t, domain.Money(100000), got.DisposableAmount)
		assert.True(t, got.CreatedAt.Equal(base))
		assert.True(t, got.RenewalAt.Equal(base.Add(10*24*time.Hour)))
		assert.True(t, got.IsActive)

		active, err := gw.GetActivePeriod(ctx)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, id, active.PeriodID)

		missing, err := gw.GetPeriod(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("NoActivePeriodIsNil", func(t *testing.T) {
		gw := newGateway(t)
		active, err := gw.GetActivePeriod(context.Background())
		require.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("SwitchingActivePeriodKeepsOneActive", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		first, err := gw.InsertPeriod(ctx, period(true, 1000))
		require.NoError(t, err)

		var second string
		err = gw.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
			if err := s.DeactivateAllPeriods(ctx); err != nil {
				return err
			}
			second, err = s.InsertPeriod(ctx, period(true, 2000))
			return err
		})
		require.NoError(t, err)

		active, err := gw.GetActivePeriod(ctx)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, second, active.PeriodID)

		old, err := gw.GetPeriod(ctx, first)
		require.NoError(t, err)
		require.NotNil(t, old)
		assert.False(t, old.IsActive)
	})

	t.Run("ExpensesAreScopedAndNewestFirst", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		p1, err := gw.InsertPeriod(ctx, period(true, 1000))
		require.NoError(t, err)
		p2, err := gw.InsertPeriod(ctx, period(false, 1000))
		require.NoError(t, err)

		oldest, err := gw.InsertExpense(ctx, expense(p1, "coffee", 350, 0))
		require.NoError(t, err)
		newest, err := gw.InsertExpense(ctx, expense(p1, "lunch", 1200, 2*time.Second))
		require.NoError(t, err)
		middle, err := gw.InsertExpense(ctx, expense(p1, "bus", 250, time.Second))
		require.NoError(t, err)
		_, err = gw.InsertExpense(ctx, expense(p2, "other", 100, 0))
		require.NoError(t, err)

		list, err := gw.ListExpenses(ctx, p1)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{newest, middle, oldest},
			[]string{list[0].ExpenseID, list[1].ExpenseID, list[2].ExpenseID})
		assert.Equal(t, "lunch", list[0].Description)
		assert.Equal(t, domain.Money(1200), list[0].Amount)
		assert.Equal(t, p1, list[0].PeriodID)

		empty, err := gw.ListExpenses(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.Empty(t, empty)

		got, err := gw.GetExpense(ctx, middle)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "bus", got.Description)
		assert.True(t, got.CreatedAt.Equal(base.Add(time.Second)))
	})

	t.Run("DeleteExpenseReportsRowsAffected", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		p, err := gw.InsertPeriod(ctx, period(true, 1000))
		require.NoError(t, err)
		id, err := gw.InsertExpense(ctx, expense(p, "tea", 200, 0))
		require.NoError(t, err)

		n, err := gw.DeleteExpense(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = gw.DeleteExpense(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		got, err := gw.GetExpense(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeleteExpensesByPeriod", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		p, err := gw.InsertPeriod(ctx, period(true, 1000))
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := gw.InsertExpense(ctx, expense(p, "item", 100, time.Duration(i)*time.Second))
			require.NoError(t, err)
		}

		n, err := gw.DeleteExpensesByPeriod(ctx, p)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		list, err := gw.ListExpenses(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("DeletePeriodCascadesToExpenses", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		p, err := gw.InsertPeriod(ctx, period(true, 1000))
		require.NoError(t, err)
		e, err := gw.InsertExpense(ctx, expense(p, "rent", 900, 0))
		require.NoError(t, err)

		n, err := gw.DeletePeriod(ctx, p)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err := gw.GetExpense(ctx, e)
		require.NoError(t, err)
		assert.Nil(t, got)

		active, err := gw.GetActivePeriod(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)

		n, err = gw.DeletePeriod(ctx, p)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)
	})

	t.Run("FailedBlockRollsBack", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		err := gw.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
			if _, err := s.InsertPeriod(ctx, period(true, 1000)); err != nil {
				return err
			}
			return errBoom
		})
		require.ErrorIs(t, err, errBoom)

		active, err := gw.GetActivePeriod(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("CancelledBlockRollsBack", func(t *testing.T) {
		gw := newGateway(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		err := gw.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
			if _, err := s.InsertPeriod(ctx, period(true, 1000)); err != nil {
				return err
			}
			cancel()
			return nil
		})
		require.Error(t, err)

		active, err := gw.GetActivePeriod(context.Background())
		require.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("BlockSeesItsOwnWrites", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		err := gw.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
			p, err := s.InsertPeriod(ctx, period(true, 1000))
			if err != nil {
				return err
			}
			if _, err := s.InsertExpense(ctx, expense(p, "snack", 150, 0)); err != nil {
				return err
			}
			list, err := s.ListExpenses(ctx, p)
			if err != nil {
				return err
			}
			assert.Len(t, list, 1)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("OneNotificationPerCommit", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		gw := newGateway(t)
		events := gw.Subscribe(ctx)

		err := gw.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
			p, err := s.InsertPeriod(ctx, period(true, 1000))
			if err != nil {
				return err
			}
			if _, err := s.InsertExpense(ctx, expense(p, "a", 100, 0)); err != nil {
				return err
			}
			_, err = s.InsertExpense(ctx, expense(p, "b", 100, time.Second))
			return err
		})
		require.NoError(t, err)

		select {
		case ev := <-events:
			assert.True(t, ev.Touches(domain.ChangePeriods))
			assert.True(t, ev.Touches(domain.ChangeExpenses))
		case <-time.After(2 * time.Second):
			t.Fatal("no change event after commit")
		}
		assertQuiet(t, events)

		// Rolled back and read-only blocks are silent.
		_ = gw.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
			if _, err := s.InsertPeriod(ctx, period(false, 1)); err != nil {
				return err
			}
			return errBoom
		})
		require.NoError(t, gw.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
			_, err := s.GetActivePeriod(ctx)
			return err
		}))
		assertQuiet(t, events)
	})

	t.Run("SubscriptionClosesWithContext", func(t *testing.T) {
		gw := newGateway(t)
		ctx, cancel := context.WithCancel(context.Background())
		events := gw.Subscribe(ctx)
		cancel()

		select {
		case _, ok := <-events:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("subscription not closed after cancel")
		}
	})
}

func assertQuiet(t *testing.T, events <-chan domain.ChangeEvent) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected change event %+v", ev)
	case <-time.After(quiet):
	}
}
