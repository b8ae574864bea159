package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/utils/pubsub"
)

// readModel keeps the latest snapshot of the active period in memory and pushes it to
// subscribers. It reloads after every committed change and on a timer, since
// DaysUntilRenewal and DailyAllowance move with the clock alone.
type readModel struct {
	BaseService
	gateway         portsrepo.BudgetGateway
	hub             *pubsub.Hub[domain.Snapshot]
	clock           func() time.Time
	refreshInterval time.Duration
}

// ReadModelOption configures the read model.
type ReadModelOption func(*readModel)

// WithReadModelClock replaces time.Now.
func WithReadModelClock(clock func() time.Time) ReadModelOption {
	return func(r *readModel) { r.clock = clock }
}

// WithRefreshInterval sets the periodic recompute interval. Zero disables it.
func WithRefreshInterval(d time.Duration) ReadModelOption {
	return func(r *readModel) { r.refreshInterval = d }
}

// WithReadModelLogger sets the logger used for load failures.
func WithReadModelLogger(logger *slog.Logger) ReadModelOption {
	return func(r *readModel) {
		if logger != nil {
			r.logger = logger.With(slog.String("component", "readmodel"))
		}
	}
}

// NewReadModel creates a read model over gateway. Nothing is emitted until Run is called.
func NewReadModel(gateway portsrepo.BudgetGateway, options ...ReadModelOption) portssvc.ReadModelSvc {
	r := &readModel{
		gateway:         gateway,
		hub:             pubsub.NewHub[domain.Snapshot](true),
		clock:           time.Now,
		refreshInterval: time.Minute,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

var _ portssvc.ReadModelSvc = (*readModel)(nil)

func (r *readModel) Run(ctx context.Context) error {
	defer r.hub.Close()

	// Subscribe before the first load so no commit falls between the two.
	changes := r.gateway.Subscribe(ctx)
	r.refresh(ctx, "initial load")

	var tick <-chan time.Time
	if r.refreshInterval > 0 {
		ticker := time.NewTicker(r.refreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-changes:
			if !ok {
				r.LogInfo(ctx, "Change notifications closed, read model stopping")
				return nil
			}
			r.LogDebug(ctx, "Reloading read model after change", slog.Any("entities", ev.Entities))
			r.refresh(ctx, "change")
		case <-tick:
			r.refresh(ctx, "timer")
		}
	}
}

// refresh reloads and publishes unless nothing observable changed.
func (r *readModel) refresh(ctx context.Context, reason string) {
	snap, err := loadSnapshot(ctx, r.gateway, r.clock)
	if err != nil {
		if ctx.Err() == nil {
			r.LogError(ctx, err, "Failed to load read model", slog.String("reason", reason))
		}
		return
	}
	if last, ok := r.hub.Current(); ok && last.SameState(snap) {
		return
	}
	r.hub.Publish(snap)
}

func (r *readModel) Subscribe(ctx context.Context) <-chan domain.Snapshot {
	return r.hub.Subscribe(ctx)
}

func (r *readModel) ActivePeriod(ctx context.Context) <-chan *domain.BudgetPeriod {
	return pubsub.Distinct(r.hub.Subscribe(ctx),
		func(s domain.Snapshot) *domain.BudgetPeriod {
			if s.Period == nil {
				return nil
			}
			p := *s.Period
			return &p
		},
		func(a, b *domain.BudgetPeriod) bool {
			if a == nil || b == nil {
				return a == b
			}
			return a.Equal(*b)
		})
}

func (r *readModel) Expenses(ctx context.Context) <-chan []domain.Expense {
	return pubsub.Distinct(r.hub.Subscribe(ctx),
		func(s domain.Snapshot) []domain.Expense {
			return append([]domain.Expense{}, s.Expenses...)
		},
		domain.ExpensesEqual)
}

func (r *readModel) Aggregate(ctx context.Context) <-chan domain.Aggregate {
	return pubsub.Distinct(r.hub.Subscribe(ctx),
		func(s domain.Snapshot) domain.Aggregate { return s.Aggregate },
		func(a, b domain.Aggregate) bool { return a == b })
}
