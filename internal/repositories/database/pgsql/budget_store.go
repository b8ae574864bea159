package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
	"github.com/SscSPs/allowance_tracker/internal/models"
	"github.com/jackc/pgx/v5"
)

type store struct {
	q       querier
	inTx    bool
	newID   func() string
	touched map[domain.ChangeEntity]struct{}
}

var _ portsrepo.BudgetStore = (*store)(nil)

const (
	periodColumns  = `period_id, disposable_amount_cents, created_at, renewal_at, is_active`
	expenseColumns = `expense_id, period_id, description, amount_cents, created_at`
)

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

func scanPeriod(row pgx.Row) (models.BudgetPeriod, error) {
	var m models.BudgetPeriod
	err := row.Scan(&m.PeriodID, &m.DisposableAmountCents, &m.CreatedAt, &m.RenewalAt, &m.IsActive)
	return m, err
}

func scanExpense(row pgx.Row) (models.Expense, error) {
	var m models.Expense
	err := row.Scan(&m.ExpenseID, &m.PeriodID, &m.Description, &m.AmountCents, &m.CreatedAt)
	return m, err
}

func (s *store) getPeriod(ctx context.Context, where string, args ...any) (*domain.BudgetPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM budget_periods WHERE ` + where
	if s.inTx {
		// Serializes writers on the same period across processes.
		query += ` FOR UPDATE`
	}
	m, err := scanPeriod(s.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get period: %w", err)
	}
	p := m.ToDomain()
	return &p, nil
}

func (s *store) GetActivePeriod(ctx context.Context) (*domain.BudgetPeriod, error) {
	return s.getPeriod(ctx, `is_active`)
}

func (s *store) GetPeriod(ctx context.Context, periodID string) (*domain.BudgetPeriod, error) {
	return s.getPeriod(ctx, `period_id = $1`, periodID)
}

func (s *store) InsertPeriod(ctx context.Context, period domain.BudgetPeriod) (string, error) {
	if err := period.Validate(); err != nil {
		return "", fmt.Errorf("failed to insert period: %w", err)
	}
	m := models.FromDomainPeriod(period)
	m.PeriodID = s.newID()
	_, err := s.q.Exec(ctx,
		`INSERT INTO budget_periods (`+periodColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		m.PeriodID, m.DisposableAmountCents, m.CreatedAt, m.RenewalAt, m.IsActive)
	if err != nil {
		return "", fmt.Errorf("failed to insert period: %w", err)
	}
	s.touch(domain.ChangePeriods)
	return m.PeriodID, nil
}

func (s *store) DeactivateAllPeriods(ctx context.Context) error {
	tag, err := s.q.Exec(ctx, `UPDATE budget_periods SET is_active = FALSE WHERE is_active`)
	if err != nil {
		return fmt.Errorf("failed to deactivate periods: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.touch(domain.ChangePeriods)
	}
	return nil
}

func (s *store) DeletePeriod(ctx context.Context, periodID string) (int64, error) {
	expTag, err := s.q.Exec(ctx, `DELETE FROM expenses WHERE period_id = $1`, periodID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete period expenses: %w", err)
	}
	tag, err := s.q.Exec(ctx, `DELETE FROM budget_periods WHERE period_id = $1`, periodID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete period: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.touch(domain.ChangePeriods)
	}
	if expTag.RowsAffected() > 0 {
		s.touch(domain.ChangeExpenses)
	}
	return tag.RowsAffected(), nil
}

func (s *store) ListExpenses(ctx context.Context, periodID string) ([]domain.Expense, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE period_id = $1 ORDER BY created_at DESC, expense_id DESC`,
		periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	modelExpenses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Expense, error) {
		return scanExpense(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan expenses: %w", err)
	}

	out := make([]domain.Expense, len(modelExpenses))
	for i, m := range modelExpenses {
		out[i] = m.ToDomain()
	}
	return out, nil
}

func (s *store) GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error) {
	m, err := scanExpense(s.q.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE expense_id = $1`, expenseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	e := m.ToDomain()
	return &e, nil
}

func (s *store) InsertExpense(ctx context.Context, expense domain.Expense) (string, error) {
	if err := expense.Validate(); err != nil {
		return "", fmt.Errorf("failed to insert expense: %w", err)
	}
	m := models.FromDomainExpense(expense)
	m.ExpenseID = s.newID()
	_, err := s.q.Exec(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		m.ExpenseID, m.PeriodID, m.Description, m.AmountCents, m.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert expense: %w", err)
	}
	s.touch(domain.ChangeExpenses)
	return m.ExpenseID, nil
}

func (s *store) DeleteExpense(ctx context.Context, expenseID string) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM expenses WHERE expense_id = $1`, expenseID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expense: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.touch(domain.ChangeExpenses)
	}
	return tag.RowsAffected(), nil
}

func (s *store) DeleteExpensesByPeriod(ctx context.Context, periodID string) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM expenses WHERE period_id = $1`, periodID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete period expenses: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.touch(domain.ChangeExpenses)
	}
	return tag.RowsAffected(), nil
}
