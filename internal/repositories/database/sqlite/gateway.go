// Package sqlite is the embedded BudgetGateway backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
	"github.com/SscSPs/allowance_tracker/internal/utils/pubsub"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Gateway implements portsrepo.BudgetGateway on a single SQLite file.
type Gateway struct {
	db    *sql.DB
	hub   *pubsub.Hub[domain.ChangeEvent]
	clock func() time.Time
	newID func() string
}

var _ portsrepo.BudgetGateway = (*Gateway)(nil)

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock overrides the clock used to stamp change events.
func WithClock(clock func() time.Time) Option {
	return func(g *Gateway) { g.clock = clock }
}

// DSN builds a connection string for path with the pragmas the gateway relies on.
func DSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + dsnPragmas
	}
	return "file:" + path + "?" + dsnPragmas
}

// NewGateway opens (creating if needed) the database at path and migrates it.
func NewGateway(ctx context.Context, path string, opts ...Option) (*Gateway, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(path)
	if err := RunMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; atomic blocks hold the only connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	g := &Gateway{
		db:    db,
		hub:   pubsub.NewHub[domain.ChangeEvent](false),
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	slog.DebugContext(ctx, "SQLite gateway ready", slog.String("path", path))
	return g, nil
}

// Close releases the database and closes every subscription.
func (g *Gateway) Close() error {
	g.hub.Close()
	return g.db.Close()
}

// Subscribe implements portsrepo.ChangeNotifier.
func (g *Gateway) Subscribe(ctx context.Context) <-chan domain.ChangeEvent {
	return g.hub.Subscribe(ctx)
}

// RunAtomically implements portsrepo.TransactionRunner with a database transaction.
func (g *Gateway) RunAtomically(ctx context.Context, fn func(ctx context.Context, store portsrepo.BudgetStore) error) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s := g.store(tx)
	if err := fn(ctx, s); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	g.notify(s)
	return nil
}

func (g *Gateway) store(q querier) *store {
	return &store{q: q, newID: g.newID, touched: make(map[domain.ChangeEntity]struct{})}
}

func (g *Gateway) notify(s *store) {
	if entities := s.entities(); len(entities) > 0 {
		g.hub.Publish(domain.ChangeEvent{Entities: entities, CommittedAt: g.clock()})
	}
}

func (g *Gateway) GetActivePeriod(ctx context.Context) (*domain.BudgetPeriod, error) {
	return g.store(g.db).GetActivePeriod(ctx)
}

func (g *Gateway) GetPeriod(ctx context.Context, periodID string) (*domain.BudgetPeriod, error) {
	return g.store(g.db).GetPeriod(ctx, periodID)
}

func (g *Gateway) ListExpenses(ctx context.Context, periodID string) ([]domain.Expense, error) {
	return g.store(g.db).ListExpenses(ctx, periodID)
}

func (g *Gateway) GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error) {
	return g.store(g.db).GetExpense(ctx, expenseID)
}

func (g *Gateway) InsertPeriod(ctx context.Context, period domain.BudgetPeriod) (id string, err error) {
	err = g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		id, err = s.InsertPeriod(ctx, period)
		return err
	})
	return id, err
}

func (g *Gateway) DeactivateAllPeriods(ctx context.Context) error {
	return g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		return s.DeactivateAllPeriods(ctx)
	})
}

func (g *Gateway) DeletePeriod(ctx context.Context, periodID string) (n int64, err error) {
	err = g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		n, err = s.DeletePeriod(ctx, periodID)
		return err
	})
	return n, err
}

func (g *Gateway) InsertExpense(ctx context.Context, expense domain.Expense) (id string, err error) {
	err = g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		id, err = s.InsertExpense(ctx, expense)
		return err
	})
	return id, err
}

func (g *Gateway) DeleteExpense(ctx context.Context, expenseID string) (n int64, err error) {
	err = g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		n, err = s.DeleteExpense(ctx, expenseID)
		return err
	})
	return n, err
}

func (g *Gateway) DeleteExpensesByPeriod(ctx context.Context, periodID string) (n int64, err error) {
	err = g.RunAtomically(ctx, func(ctx context.Context, s portsrepo.BudgetStore) error {
		n, err = s.DeleteExpensesByPeriod(ctx, periodID)
		return err
	})
	return n, err
}
