package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type store struct {
	q       querier
	newID   func() string
	touched map[domain.ChangeEntity]struct{}
}

var _ portsrepo.BudgetStore = (*store)(nil)

const (
	periodColumns  = `period_id, disposable_amount_cents, created_at, renewal_at, is_active`
	expenseColumns = `expense_id, period_id, description, amount_cents, created_at`
)

// Timestamps are stored as unix nanoseconds so they round-trip exactly.
func toUnix(t time.Time) int64 { return t.UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row rowScanner) (domain.BudgetPeriod, error) {
	var (
		p                   domain.BudgetPeriod
		cents               int64
		createdAt, renewsAt int64
		active              int64
	)
	if err := row.Scan(&p.PeriodID, &cents, &createdAt, &renewsAt, &active); err != nil {
		return domain.BudgetPeriod{}, err
	}
	p.DisposableAmount = domain.Money(cents)
	p.CreatedAt = fromUnix(createdAt)
	p.RenewalAt = fromUnix(renewsAt)
	p.IsActive = active == 1
	return p, nil
}

func scanExpense(row rowScanner) (domain.Expense, error) {
	var (
		e         domain.Expense
		cents     int64
		createdAt int64
	)
	if err := row.Scan(&e.ExpenseID, &e.PeriodID, &e.Description, &cents, &createdAt); err != nil {
		return domain.Expense{}, err
	}
	e.Amount = domain.Money(cents)
	e.CreatedAt = fromUnix(createdAt)
	return e, nil
}

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

func (s *store) getPeriod(ctx context.Context, where string, args ...any) (*domain.BudgetPeriod, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM budget_periods WHERE `+where, args...)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get period: %w", err)
	}
	return &p, nil
}

func (s *store) GetActivePeriod(ctx context.Context) (*domain.BudgetPeriod, error) {
	return s.getPeriod(ctx, `is_active = 1`)
}

func (s *store) GetPeriod(ctx context.Context, periodID string) (*domain.BudgetPeriod, error) {
	return s.getPeriod(ctx, `period_id = ?`, periodID)
}

func (s *store) InsertPeriod(ctx context.Context, period domain.BudgetPeriod) (string, error) {
	if err := period.Validate(); err != nil {
		return "", fmt.Errorf("insert period: %w", err)
	}
	id := s.newID()
	active := 0
	if period.IsActive {
		active = 1
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO budget_periods (`+periodColumns+`) VALUES (?, ?, ?, ?, ?)`,
		id, int64(period.DisposableAmount), toUnix(period.CreatedAt), toUnix(period.RenewalAt), active)
	if err != nil {
		return "", fmt.Errorf("insert period: %w", err)
	}
	s.touch(domain.ChangePeriods)
	return id, nil
}

func (s *store) DeactivateAllPeriods(ctx context.Context) error {
	res, err := s.q.ExecContext(ctx, `UPDATE budget_periods SET is_active = 0 WHERE is_active = 1`)
	if err != nil {
		return fmt.Errorf("deactivate periods: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.touch(domain.ChangePeriods)
	}
	return nil
}

func (s *store) DeletePeriod(ctx context.Context, periodID string) (int64, error) {
	// Explicit delete keeps the cascade independent of the foreign_keys pragma.
	expRes, err := s.q.ExecContext(ctx, `DELETE FROM expenses WHERE period_id = ?`, periodID)
	if err != nil {
		return 0, fmt.Errorf("delete period expenses: %w", err)
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM budget_periods WHERE period_id = ?`, periodID)
	if err != nil {
		return 0, fmt.Errorf("delete period: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete period: %w", err)
	}
	if n > 0 {
		s.touch(domain.ChangePeriods)
	}
	if m, _ := expRes.RowsAffected(); m > 0 {
		s.touch(domain.ChangeExpenses)
	}
	return n, nil
}

func (s *store) ListExpenses(ctx context.Context, periodID string) ([]domain.Expense, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE period_id = ? ORDER BY created_at DESC, expense_id DESC`,
		periodID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (s *store) GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE expense_id = ?`, expenseID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return &e, nil
}

func (s *store) InsertExpense(ctx context.Context, expense domain.Expense) (string, error) {
	if err := expense.Validate(); err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}
	id := s.newID()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?)`,
		id, expense.PeriodID, expense.Description, int64(expense.Amount), toUnix(expense.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}
	s.touch(domain.ChangeExpenses)
	return id, nil
}

func (s *store) DeleteExpense(ctx context.Context, expenseID string) (int64, error) {
	return s.deleteExpenses(ctx, `expense_id = ?`, expenseID)
}

func (s *store) DeleteExpensesByPeriod(ctx context.Context, periodID string) (int64, error) {
	return s.deleteExpenses(ctx, `period_id = ?`, periodID)
}

func (s *store) deleteExpenses(ctx context.Context, where string, arg string) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM expenses WHERE `+where, arg)
	if err != nil {
		return 0, fmt.Errorf("delete expenses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expenses: %w", err)
	}
	if n > 0 {
		s.touch(domain.ChangeExpenses)
	}
	return n, nil
}
