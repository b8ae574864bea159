package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/core/services"
	"github.com/SscSPs/allowance_tracker/internal/dto"
	"github.com/SscSPs/allowance_tracker/internal/repositories/database/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	quiet   = 150 * time.Millisecond
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for emission")
	}
	var zero T
	return zero
}

func expectQuiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected emission %+v", v)
	case <-time.After(quiet):
	}
}

type readModelFixture struct {
	ctx     context.Context
	clock   *testClock
	gateway *memory.Gateway
	service portssvc.BudgetSvcFacade
	model   portssvc.ReadModelSvc
	done    chan error
}

func startReadModel(t *testing.T, interval time.Duration) *readModelFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f := &readModelFixture{
		ctx:     ctx,
		clock:   newTestClock(),
		gateway: memory.NewGateway(),
		done:    make(chan error, 1),
	}
	f.service = services.NewBudgetService(f.gateway, services.WithClock(f.clock.Now))
	f.model = services.NewReadModel(f.gateway,
		services.WithReadModelClock(f.clock.Now),
		services.WithRefreshInterval(interval))

	go func() { f.done <- f.model.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-f.done
		_ = f.gateway.Close()
	})
	return f
}

func TestReadModel_EmitsCurrentValueThenChanges(t *testing.T) {
	f := startReadModel(t, 0)
	aggregates := f.model.Aggregate(f.ctx)

	assert.Equal(t, domain.Aggregate{}, receive(t, aggregates))

	_, err := f.service.CreatePeriod(f.ctx, dto.CreatePeriodRequest{DisposableAmount: 1000})
	require.NoError(t, err)
	agg := receive(t, aggregates)
	assert.Equal(t, "1000.00", agg.RemainingAmount.String())
	assert.Equal(t, 30, agg.DaysUntilRenewal)

	_, err = f.service.AddExpense(f.ctx, dto.AddExpenseRequest{Description: "Groceries", Amount: 150})
	require.NoError(t, err)
	agg = receive(t, aggregates)
	assert.Equal(t, "850.00", agg.RemainingAmount.String())
	assert.Equal(t, 1, agg.ExpenseCount)
	assert.Equal(t, domain.Money(2833), agg.DailyAllowance)
}

func TestReadModel_OneEmissionPerMutation(t *testing.T) {
	f := startReadModel(t, 0)
	snapshots := f.model.Subscribe(f.ctx)
	receive(t, snapshots)

	_, err := f.service.CreatePeriod(f.ctx, dto.CreatePeriodRequest{DisposableAmount: 100})
	require.NoError(t, err)
	snap := receive(t, snapshots)
	require.NotNil(t, snap.Period)
	expectQuiet(t, snapshots)

	_, err = f.service.AddExpense(f.ctx, dto.AddExpenseRequest{Description: "A", Amount: 10})
	require.NoError(t, err)
	snap = receive(t, snapshots)
	assert.Len(t, snap.Expenses, 1)
	assert.Equal(t, snap.Aggregate.TotalExpenses, snap.Expenses[0].Amount)
	expectQuiet(t, snapshots)
}

func TestReadModel_LateSubscriberGetsLatest(t *testing.T) {
	f := startReadModel(t, 0)
	first := f.model.Subscribe(f.ctx)
	receive(t, first)

	_, err := f.service.CreatePeriod(f.ctx, dto.CreatePeriodRequest{DisposableAmount: 42})
	require.NoError(t, err)
	receive(t, first)

	periods := f.model.ActivePeriod(f.ctx)
	p := receive(t, periods)
	require.NotNil(t, p)
	assert.Equal(t, "42.00", p.DisposableAmount.String())
}

func TestReadModel_ViewsSkipUnrelatedChanges(t *testing.T) {
	f := startReadModel(t, 0)
	_, err := f.service.CreatePeriod(f.ctx, dto.CreatePeriodRequest{DisposableAmount: 100})
	require.NoError(t, err)

	periods := f.model.ActivePeriod(f.ctx)
	p := receive(t, periods)
	for p == nil {
		p = receive(t, periods)
	}

	_, err = f.service.AddExpense(f.ctx, dto.AddExpenseRequest{Description: "A", Amount: 10})
	require.NoError(t, err)
	expectQuiet(t, periods)

	expenses := f.model.Expenses(f.ctx)
	list := receive(t, expenses)
	assert.Len(t, list, 1)
}

func TestReadModel_TimerRecomputesDateDerivedFields(t *testing.T) {
	f := startReadModel(t, 20*time.Millisecond)
	aggregates := f.model.Aggregate(f.ctx)
	receive(t, aggregates)

	_, err := f.service.CreatePeriod(f.ctx, dto.CreatePeriodRequest{DisposableAmount: 300})
	require.NoError(t, err)
	agg := receive(t, aggregates)
	require.Equal(t, 30, agg.DaysUntilRenewal)

	// Same state on every tick is not re-emitted.
	expectQuiet(t, aggregates)

	f.clock.Advance(24 * time.Hour)
	agg = receive(t, aggregates)
	assert.Equal(t, 29, agg.DaysUntilRenewal)
	assert.Equal(t, domain.Money(1034), agg.DailyAllowance)
}

func TestReadModel_StreamsCloseWhenRunStops(t *testing.T) {
	gw := memory.NewGateway()
	defer gw.Close()
	model := services.NewReadModel(gw, services.WithRefreshInterval(0))

	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- model.Run(runCtx) }()

	snapshots := model.Subscribe(context.Background())
	receive(t, snapshots)
	stop()
	require.NoError(t, <-done)

	select {
	case _, ok := <-snapshots:
		assert.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("stream not closed")
	}
}
