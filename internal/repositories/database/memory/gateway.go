// Package memory is an in-process BudgetGateway. Each atomic block runs against a
// private copy of the state that replaces the committed state only on success.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
	"github.com/SscSPs/allowance_tracker/internal/utils/budgeting"
	"github.com/SscSPs/allowance_tracker/internal/utils/pubsub"
	"github.com/google/uuid"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory gateway is closed")

// ErrUnknownPeriod is returned when an expense references a period that does not exist.
var ErrUnknownPeriod = errors.New("expense references unknown period")

type state struct {
	periods  map[string]domain.BudgetPeriod
	expenses map[string]domain.Expense
}

func newState() *state {
	return &state{
		periods:  make(map[string]domain.BudgetPeriod),
		expenses: make(map[string]domain.Expense),
	}
}

func (s *state) clone() *state {
	c := &state{
		periods:  make(map[string]domain.BudgetPeriod, len(s.periods)),
		expenses: make(map[string]domain.Expense, len(s.expenses)),
	}
	for k, v := range s.periods {
		c.periods[k] = v
	}
	for k, v := range s.expenses {
		c.expenses[k] = v
	}
	return c
}

// Gateway implements portsrepo.BudgetGateway in memory.
type Gateway struct {
	mu     sync.RWMutex
	st     *state
	closed bool
	hub    *pubsub.Hub[domain.ChangeEvent]
	clock  func() time.Time
	newID  func() string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock overrides the clock used to stamp change events.
func WithClock(clock func() time.Time) Option {
	return func(g *Gateway) { g.clock = clock }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(newID func() string) Option {
	return func(g *Gateway) { g.newID = newID }
}

// NewGateway creates an empty in-memory gateway.
func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		st:    newState(),
		hub:   pubsub.NewHub[domain.ChangeEvent](false),
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ portsrepo.BudgetGateway = (*Gateway)(nil)

// RunAtomically runs fn against a copy of the state and swaps it in when fn succeeds.
// Atomic blocks are serialized.
func (g *Gateway) RunAtomically(ctx context.Context, fn func(ctx context.Context, store portsrepo.BudgetStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	tx := &store{st: g.st.clone(), newID: g.newID, touched: make(map[domain.ChangeEntity]struct{})}
	if err := fn(ctx, tx); err != nil {
		g.mu.Unlock()
		return err
	}
	if err := ctx.Err(); err != nil {
		g.mu.Unlock()
		return err
	}
	g.st = tx.st
	entities := tx.entities()
	g.mu.Unlock()

	if len(entities) > 0 {
		g.hub.Publish(domain.ChangeEvent{Entities: entities, CommittedAt: g.clock()})
	}
	return nil
}

// Subscribe implements portsrepo.ChangeNotifier.
func (g *Gateway) Subscribe(ctx context.Context) <-chan domain.ChangeEvent {
	return g.hub.Subscribe(ctx)
}

// Close stops notifications and rejects further use.
func (g *Gateway) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.hub.Close()
	return nil
}

func (g *Gateway) read(ctx context.Context, fn func(s *store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return ErrClosed
	}
	return fn(&store{st: g.st})
}

func (g *Gateway) GetActivePeriod(ctx context.Context) (p *domain.BudgetPeriod, err error) {
	err = g.read(ctx, func(s *store) error {
		p, err = s.GetActivePeriod(ctx)
		return err
	})
	return p, err
}

func (g *Gateway) GetPeriod(ctx context.Context, periodID string) (p *domain.BudgetPeriod, err error) {
	err = g.read(ctx, func(s *store) error {
		p, err = s.GetPeriod(ctx, periodID)
		return err
	})
	return p, err
}

func (g *Gateway) ListExpenses(ctx context.Context, periodID string) (out []domain.Expense, err error) {
	err = g.read(ctx, func(s *store) error {
		out, err = s.ListExpenses(ctx, periodID)
		return err
	})
	return out, err
}

func (g *Gateway) GetExpense(ctx context.Context, expenseID string) (e *domain.Expense, err error) {
	err = g.read(ctx, func(s *store) error {
		e, err = s.GetExpense(ctx, expenseID)
		return err
	})
	return e, err
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

// store operates on one state value. Writes are only made on a private copy.
type store struct {
	st      *state
	newID   func() string
	touched map[domain.ChangeEntity]struct{}
}

var _ portsrepo.BudgetStore = (*store)(nil)

func (s *store) touch(entities ...domain.ChangeEntity) {
	for _, e := range entities {
		s.touched[e] = struct{}{}
	}
}

func (s *store) entities() []domain.ChangeEntity {
	out := make([]domain.ChangeEntity, 0, len(s.touched))
	for _, e := range []domain.ChangeEntity{domain.ChangePeriods, domain.ChangeExpenses} {
		if _, ok := s.touched[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (s *store) GetActivePeriod(_ context.Context) (*domain.BudgetPeriod, error) {
	for _, p := range s.st.periods {
		if p.IsActive {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *store) GetPeriod(_ context.Context, periodID string) (*domain.BudgetPeriod, error) {
	p, ok := s.st.periods[periodID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *store) InsertPeriod(_ context.Context, period domain.BudgetPeriod) (string, error) {
	if err := period.Validate(); err != nil {
		return "", fmt.Errorf("insert period: %w", err)
	}
	if period.IsActive {
		for _, p := range s.st.periods {
			if p.IsActive {
				return "", fmt.Errorf("insert period: period %s is already active", p.PeriodID)
			}
		}
	}
	period.PeriodID = s.newID()
	s.st.periods[period.PeriodID] = period
	s.touch(domain.ChangePeriods)
	return period.PeriodID, nil
}

func (s *store) DeactivateAllPeriods(_ context.Context) error {
	for id, p := range s.st.periods {
		if p.IsActive {
			p.IsActive = false
			s.st.periods[id] = p
			s.touch(domain.ChangePeriods)
		}
	}
	return nil
}

func (s *store) DeletePeriod(_ context.Context, periodID string) (int64, error) {
	if _, ok := s.st.periods[periodID]; !ok {
		return 0, nil
	}
	delete(s.st.periods, periodID)
	s.touch(domain.ChangePeriods)
	for id, e := range s.st.expenses {
		if e.PeriodID == periodID {
			delete(s.st.expenses, id)
			s.touch(domain.ChangeExpenses)
		}
	}
	return 1, nil
}

func (s *store) ListExpenses(_ context.Context, periodID string) ([]domain.Expense, error) {
	out := make([]domain.Expense, 0)
	for _, e := range s.st.expenses {
		if e.PeriodID == periodID {
			out = append(out, e)
		}
	}
	budgeting.SortExpenses(out)
	return out, nil
}

func (s *store) GetExpense(_ context.Context, expenseID string) (*domain.Expense, error) {
	e, ok := s.st.expenses[expenseID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *store) InsertExpense(_ context.Context, expense domain.Expense) (string, error) {
	if err := expense.Validate(); err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}
	if _, ok := s.st.periods[expense.PeriodID]; !ok {
		return "", fmt.Errorf("insert expense: %w: %s", ErrUnknownPeriod, expense.PeriodID)
	}
	expense.ExpenseID = s.newID()
	s.st.expenses[expense.ExpenseID] = expense
	s.touch(domain.ChangeExpenses)
	return expense.ExpenseID, nil
}

func (s *store) DeleteExpense(_ context.Context, expenseID string) (int64, error) {
	if _, ok := s.st.expenses[expenseID]; !ok {
		return 0, nil
	}
	delete(s.st.expenses, expenseID)
	s.touch(domain.ChangeExpenses)
	return 1, nil
}

func (s *store) DeleteExpensesByPeriod(_ context.Context, periodID string) (int64, error) {
	var n int64
	for id, e := range s.st.expenses {
		if e.PeriodID == periodID {
			delete(s.st.expenses, id)
			n++
		}
	}
	if n > 0 {
		s.touch(domain.ChangeExpenses)
	}
	return n, nil
}
