package pgsql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
	"github.com/SscSPs/allowance_tracker/internal/utils/pubsub"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangeChannel is the LISTEN/NOTIFY channel every committed write is announced on.
const ChangeChannel = "budget_changes"

type changeMessage struct {
	Origin      string                `json:"origin"`
	Entities    []domain.ChangeEntity `json:"entities"`
	CommittedAt time.Time             `json:"committedAt"`
}

// BudgetGateway implements portsrepo.BudgetGateway on PostgreSQL.
type BudgetGateway struct {
	BaseRepository
	instanceID string
	hub        *pubsub.Hub[domain.ChangeEvent]
	clock      func() time.Time
	newID      func() string
}

var _ portsrepo.BudgetGateway = (*BudgetGateway)(nil)

// Option configures a BudgetGateway.
type Option func(*BudgetGateway)

// WithClock overrides the clock used to stamp change events.
func WithClock(clock func() time.Time) Option {
	return func(g *BudgetGateway) { g.clock = clock }
}

// NewBudgetGateway creates a gateway on an existing pool. The pool is owned by the
// caller; Close only stops notifications.
func NewBudgetGateway(pool *pgxpool.Pool, opts ...Option) *BudgetGateway {
	g := &BudgetGateway{
		BaseRepository: BaseRepository{Pool: pool},
		instanceID:     uuid.NewString(),
		hub:            pubsub.NewHub[domain.ChangeEvent](false),
		clock:          time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Close closes every subscription.
func (g *BudgetGateway) Close() error {
	g.hub.Close()
	return nil
}

// Subscribe implements portsrepo.ChangeNotifier. Local commits are delivered directly;
// commits from other processes arrive once Listen is running.
func (g *BudgetGateway) Subscribe(ctx context.Context) <-chan domain.ChangeEvent {
	return g.hub.Subscribe(ctx)
}

// RunAtomically runs fn in a READ COMMITTED transaction. The change notification is
// queued with pg_notify inside the transaction, so it is only delivered on commit.
func (g *BudgetGateway) RunAtomically(ctx context.Context, fn func(ctx context.Context, store portsrepo.BudgetStore) error) error {
	tx, err := g.Begin(ctx)
	if err != nil {
		return err
	}
	s := g.store(tx, true)

	if err := fn(ctx, s); err != nil {
		if rbErr := g.Rollback(ctx, tx); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}

	var event *domain.ChangeEvent
	if entities := s.entities(); len(entities) > 0 {
		event = &domain.ChangeEvent{Entities: entities, CommittedAt: g.clock()}
		payload, err := json.Marshal(changeMessage{Origin: g.instanceID, Entities: event.Entities, CommittedAt: event.CommittedAt})
		if err != nil {
			_ = g.Rollback(ctx, tx)
			return fmt.Errorf("encode change notification: %w", err)
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, string(payload)); err != nil {
			_ = g.Rollback(ctx, tx)
			return fmt.Errorf("queue change notification: %w", err)
		}
	}

	if err := g.Commit(ctx, tx); err != nil {
		return err
	}
	if event != nil {
		g.hub.Publish(*event)
	}
	return nil
}

// Listen relays notifications committed by other gateway instances until ctx is done.
func (g *BudgetGateway) Listen(ctx context.Context) error {
	conn, err := g.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer func() {
		// Return the connection to the pool without a lingering subscription.
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("listen on %s: %w", ChangeChannel, err)
	}
	slog.InfoContext(ctx, "Listening for budget changes", slog.String("channel", ChangeChannel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		var msg changeMessage
		if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
			slog.WarnContext(ctx, "Ignoring malformed change notification", slog.String("error", err.Error()))
			continue
		}
		if msg.Origin == g.instanceID {
			continue
		}
		g.hub.Publish(domain.ChangeEvent{Entities: msg.Entities, CommittedAt: msg.CommittedAt})
	}
}

func (g *BudgetGateway) store(q querier, inTx bool) *store {
	return &store{q: q, inTx: inTx, newID: g.newID, touched: make(map[domain.ChangeEntity]struct{})}
}

func (g *BudgetGateway) GetActivePeriod(ctx context.Context) (*domain.BudgetPeriod, error) {
	return g.store(g.Pool, false).GetActivePeriod(ctx)
}

func (g *BudgetGateway) GetPeriod(ctx context.Context, periodID string) (*domain.BudgetPeriod, error) {
	return g.store(g.Pool, false).GetPeriod(ctx, periodID)
}

func (g *BudgetGateway) ListExpenses(ctx context.Context, periodID string) ([]domain.Expense, error) {
	return g.store(g.Pool, false).ListExpenses(ctx, periodID)
}

func (g *BudgetGateway) GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error) {
	return g.store(g.Pool, false).GetExpense(ctx, expenseID)
}

func (g *BudgetGateway) InsertPeriod(ctx context.Context, period domain.BudgetPeriod) (id string, err error) {
	err = g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		id, err = s.InsertPeriod(ctx, period)
		return err
	})
	return id, err
}

func (g *BudgetGateway) DeactivateAllPeriods(ctx context.Context) error {
	return g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		return s.DeactivateAllPeriods(ctx)
	})
}

func (g *BudgetGateway) DeletePeriod(ctx context.Context, periodID string) (n int64, err error) {
	err = g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		n, err = s.DeletePeriod(ctx, periodID)
		return err
	})
	return n, err
}

func (g *BudgetGateway) InsertExpense(ctx context.Context, expense domain.Expense) (id string, err error) {
	err = g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		id, err = s.InsertExpense(ctx, expense)
		return err
	})
	return id, err
}

func (g *BudgetGateway) DeleteExpense(ctx context.Context, expenseID string) (n int64, err error) {
	err = g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		n, err = s.DeleteExpense(ctx, expenseID)
		return err
	})
	return n, err
}

func (g *BudgetGateway) DeleteExpensesByPeriod(ctx context.Context, periodID string) (n int64, err error) {
	err = g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		n, err = s.DeleteExpensesByPeriod(ctx, periodID)
		return err
	})
	return n, err
}

// IsUniqueViolation reports whether err is a unique constraint failure, e.g. a second
// active period written concurrently by another process.
func IsUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
