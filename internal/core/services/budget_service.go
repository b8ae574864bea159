package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/apperrors"
	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/dto"
	"github.com/SscSPs/allowance_tracker/internal/utils/budgeting"
)

// maxResolveAttempts bounds how often AddExpense re-resolves the active period when a
// lifecycle command switches it while the expense waits for its lock.
const maxResolveAttempts = 3

// budgetService implements portssvc.BudgetSvcFacade.
type budgetService struct {
	BaseService
	gateway portsrepo.BudgetGateway
	rules   domain.ValidationRules
	clock   func() time.Time
	locks   *keyedLocker
}

// ServiceOption is a functional option for configuring the budget service
type ServiceOption func(*budgetService)

// WithValidationRules replaces the default input limits.
func WithValidationRules(rules domain.ValidationRules) ServiceOption {
	return func(s *budgetService) {
		s.rules = rules
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *budgetService) {
		s.clock = clock
	}
}

// WithLogger sets the logger used when the context carries none.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *budgetService) {
		s.logger = logger
	}
}

// NewBudgetService creates the budget command and query service.
func NewBudgetService(gateway portsrepo.BudgetGateway, options ...ServiceOption) portssvc.BudgetSvcFacade {
	svc := &budgetService{
		gateway: gateway,
		rules:   domain.DefaultValidationRules(),
		clock:   time.Now,
		locks:   newKeyedLocker(),
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.BudgetSvcFacade = (*budgetService)(nil)

// lock acquires keys, mapping cancellation to a persistence failure of op.
func (s *budgetService) lock(ctx context.Context, op string, keys ...string) (func(), error) {
	unlock, err := s.locks.Lock(ctx, keys...)
	if err != nil {
		s.LogWarn(ctx, "Gave up waiting for lock", slog.String("op", op), slog.String("error", err.Error()))
		return nil, apperrors.NewPersistenceError(op, err)
	}
	return unlock, nil
}

func (s *budgetService) persistenceFailure(ctx context.Context, op string, err error, keyvals ...any) error {
	wrapped := apperrors.NewPersistenceError(op, err)
	if apperrors.KindOf(wrapped) == apperrors.KindPersistence {
		s.LogError(ctx, err, "Budget gateway failure", append([]any{slog.String("op", op)}, keyvals...)...)
	}
	return wrapped
}

// --- Period lifecycle ---

func (s *budgetService) CreatePeriod(ctx context.Context, req dto.CreatePeriodRequest) (*domain.BudgetPeriod, error) {
	res, err := s.startPeriod(ctx, "create period", req, false)
	if err != nil {
		return nil, err
	}
	return &res.Period, nil
}

func (s *budgetService) RenewPeriod(ctx context.Context, req dto.CreatePeriodRequest) (*domain.BudgetPeriod, error) {
	res, err := s.startPeriod(ctx, "renew period", req, false)
	if err != nil {
		return nil, err
	}
	return &res.Period, nil
}

func (s *budgetService) ResetPeriod(ctx context.Context, req dto.CreatePeriodRequest) (*domain.ResetResult, error) {
	return s.startPeriod(ctx, "reset period", req, true)
}

// startPeriod deactivates the current period and activates a new one in one atomic
// block. With clearExpenses the previous period's expenses are deleted in the same block.
func (s *budgetService) startPeriod(ctx context.Context, op string, req dto.CreatePeriodRequest, clearExpenses bool) (*domain.ResetResult, error) {
	input, err := s.rules.ParsePeriodInput(req.DisposableAmount, req.RenewalAt, s.clock())
	if err != nil {
		s.LogWarn(ctx, "Rejected period request", slog.String("op", op), slog.String("error", err.Error()))
		return nil, err
	}

	unlock, err := s.lock(ctx, op, lifecycleLockKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Expense writers on the outgoing period must finish before it is switched.
	previous, err := s.gateway.GetActivePeriod(ctx)
	if err != nil {
		return nil, s.persistenceFailure(ctx, op, err)
	}
	if previous != nil {
		unlockPrev, err := s.lock(ctx, op, periodLockKey(previous.PeriodID))
		if err != nil {
			return nil, err
		}
		defer unlockPrev()
	}

	result := &domain.ResetResult{}
	err = s.gateway.RunAtomically(ctx, func(ctx context.Context, store portsrepo.BudgetStore) error {
		prev, err := store.GetActivePeriod(ctx)
		if err != nil {
			return err
		}
		if err := store.DeactivateAllPeriods(ctx); err != nil {
			return err
		}
		if prev != nil {
			result.PreviousPeriod = prev.PeriodID
			if clearExpenses {
				n, err := store.DeleteExpensesByPeriod(ctx, prev.PeriodID)
				if err != nil {
					return err
				}
				result.ExpensesDeleted = n
			}
		}

		period := domain.BudgetPeriod{
			DisposableAmount: input.DisposableAmount,
			CreatedAt:        input.CreatedAt,
			RenewalAt:        input.RenewalAt,
			IsActive:         true,
		}
		id, err := store.InsertPeriod(ctx, period)
		if err != nil {
			return err
		}
		period.PeriodID = id
		result.Period = period
		return nil
	})
	if err != nil {
		return nil, s.persistenceFailure(ctx, op, err)
	}

	s.LogInfo(ctx, "Budget period started",
		slog.String("op", op),
		slog.String("period_id", result.Period.PeriodID),
		slog.String("previous_period_id", result.PreviousPeriod),
		slog.String("disposable_amount", result.Period.DisposableAmount.String()),
		slog.Time("renewal_at", result.Period.RenewalAt),
		slog.Int64("expenses_deleted", result.ExpensesDeleted))
	return result, nil
}

func (s *budgetService) DeletePeriod(ctx context.Context, periodID string) (*domain.BudgetPeriod, error) {
	const op = "delete period"
	id := strings.TrimSpace(periodID)
	if id == "" {
		return nil, apperrors.NewValidationError(apperrors.ReasonInvalidID, "period id must not be blank")
	}

	unlock, err := s.lock(ctx, op, lifecycleLockKey, periodLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var deleted *domain.BudgetPeriod
	err = s.gateway.RunAtomically(ctx, func(ctx context.Context, store portsrepo.BudgetStore) error {
		p, err := store.GetPeriod(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return apperrors.NewNotFoundError(apperrors.EntityPeriod, id)
		}
		n, err := store.DeletePeriod(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewNotFoundError(apperrors.EntityPeriod, id)
		}
		deleted = p
		return nil
	})
	if err != nil {
		return nil, s.persistenceFailure(ctx, op, err, slog.String("period_id", id))
	}

	s.LogInfo(ctx, "Budget period deleted", slog.String("period_id", id), slog.Bool("was_active", deleted.IsActive))
	return deleted, nil
}

// --- Expenses ---

func (s *budgetService) AddExpense(ctx context.Context, req dto.AddExpenseRequest) (*domain.AddExpenseResult, error) {
	const op = "add expense"
	input, err := s.rules.ParseExpenseInput(req.Description, req.Amount)
	if err != nil {
		s.LogWarn(ctx, "Rejected expense", slog.String("error", err.Error()))
		return nil, err
	}

	explicit := strings.TrimSpace(req.PeriodID)
	for attempt := 1; ; attempt++ {
		periodID := explicit
		if periodID == "" {
			active, err := s.gateway.GetActivePeriod(ctx)
			if err != nil {
				return nil, s.persistenceFailure(ctx, op, err)
			}
			if active == nil {
				return nil, &apperrors.NoActivePeriodError{}
			}
			periodID = active.PeriodID
		}

		result, err := s.addExpenseLocked(ctx, periodID, explicit == "", input)
		if errors.Is(err, errActivePeriodMoved) {
			if attempt < maxResolveAttempts {
				continue
			}
			return nil, &apperrors.NoActivePeriodError{}
		}
		if err != nil {
			return nil, err
		}

		s.LogInfo(ctx, "Expense added",
			slog.String("expense_id", result.Expense.ExpenseID),
			slog.String("period_id", periodID),
			slog.String("amount", result.Expense.Amount.String()),
			slog.Bool("will_overspend", result.WillOverspend))
		return result, nil
	}
}

var errActivePeriodMoved = errors.New("active period changed")

// addExpenseLocked runs the overspend pre-check and the insert under the period's
// writer lock, so the pre-check sees exactly the state the insert applies to.
func (s *budgetService) addExpenseLocked(ctx context.Context, periodID string, mustBeActive bool, input domain.ExpenseInput) (*domain.AddExpenseResult, error) {
	const op = "add expense"
	unlock, err := s.lock(ctx, op, periodLockKey(periodID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock()
	var result *domain.AddExpenseResult
	err = s.gateway.RunAtomically(ctx, func(ctx context.Context, store portsrepo.BudgetStore) error {
		period, err := store.GetPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		if period == nil {
			if mustBeActive {
				return errActivePeriodMoved
			}
			return apperrors.NewNotFoundError(apperrors.EntityPeriod, periodID)
		}
		if mustBeActive && !period.IsActive {
			return errActivePeriodMoved
		}

		existing, err := store.ListExpenses(ctx, periodID)
		if err != nil {
			return err
		}
		projection := budgeting.ProjectExpense(budgeting.ComputeAggregate(period, existing, now), input.Amount)

		expense := domain.Expense{
			PeriodID:    periodID,
			Description: input.Description,
			Amount:      input.Amount,
			CreatedAt:   now,
		}
		id, err := store.InsertExpense(ctx, expense)
		if err != nil {
			return err
		}
		expense.ExpenseID = id

		result = &domain.AddExpenseResult{
			Expense:              expense,
			WillOverspend:        projection.WillOverspend,
			OverspendAmount:      projection.OverspendAmount,
			RemainingAmountAfter: projection.RemainingAmountAfter,
		}
		return nil
	})
	if errors.Is(err, errActivePeriodMoved) {
		return nil, err
	}
	if err != nil {
		return nil, s.persistenceFailure(ctx, op, err, slog.String("period_id", periodID))
	}
	return result, nil
}

func (s *budgetService) DeleteExpense(ctx context.Context, expenseID string) (*domain.Expense, error) {
	const op = "delete expense"
	id := strings.TrimSpace(expenseID)
	if id == "" {
		return nil, apperrors.NewValidationError(apperrors.ReasonInvalidID, "expense id must not be blank")
	}

	owner, err := s.gateway.GetExpense(ctx, id)
	if err != nil {
		return nil, s.persistenceFailure(ctx, op, err, slog.String("expense_id", id))
	}
	if owner == nil {
		return nil, apperrors.NewNotFoundError(apperrors.EntityExpense, id)
	}

	unlock, err := s.lock(ctx, op, periodLockKey(owner.PeriodID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var deleted *domain.Expense
	err = s.gateway.RunAtomically(ctx, func(ctx context.Context, store portsrepo.BudgetStore) error {
		e, err := store.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if e == nil {
			return apperrors.NewNotFoundError(apperrors.EntityExpense, id)
		}
		n, err := store.DeleteExpense(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewNotFoundError(apperrors.EntityExpense, id)
		}
		deleted = e
		return nil
	})
	if err != nil {
		return nil, s.persistenceFailure(ctx, op, err, slog.String("expense_id", id))
	}

	s.LogInfo(ctx, "Expense deleted", slog.String("expense_id", id), slog.String("amount", deleted.Amount.String()))
	return deleted, nil
}

// DeleteExpensesBatch deletes every id it can. Unknown or blank ids are reported per id
// and do not stop the others. A gateway failure aborts the whole batch, in which case
// nothing is deleted.
func (s *budgetService) DeleteExpensesBatch(ctx context.Context, expenseIDs []string) (*domain.BatchDeleteResult, error) {
	const op = "delete expenses batch"
	if len(expenseIDs) == 0 {
		return nil, apperrors.NewValidationError(apperrors.ReasonInvalidID, "at least one expense id is required")
	}

	var (
		failed     []domain.BatchItemFailure
		itemErrors []apperrors.ItemFailure
		candidates []string
		lockKeys   []string
		seen       = make(map[string]struct{}, len(expenseIDs))
	)
	fail := func(id string, err error) {
		failed = append(failed, domain.BatchItemFailure{ExpenseID: id, Reason: err.Error()})
		itemErrors = append(itemErrors, apperrors.ItemFailure{ID: id, Err: err})
	}

	for _, raw := range expenseIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			fail(raw, apperrors.NewValidationError(apperrors.ReasonInvalidID, "expense id must not be blank"))
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		owner, err := s.gateway.GetExpense(ctx, id)
		if err != nil {
			return nil, s.persistenceFailure(ctx, op, err, slog.String("expense_id", id))
		}
		if owner == nil {
			fail(id, apperrors.NewNotFoundError(apperrors.EntityExpense, id))
			continue
		}
		candidates = append(candidates, id)
		lockKeys = append(lockKeys, periodLockKey(owner.PeriodID))
	}

	unlock, err := s.lock(ctx, op, lockKeys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		deleted    []domain.Expense
		txFailures []string
		total      domain.Money
	)
	err = s.gateway.RunAtomically(ctx, func(ctx context.Context, store portsrepo.BudgetStore) error {
		deleted, txFailures, total = deleted[:0], txFailures[:0], 0
		for _, id := range candidates {
			e, err := store.GetExpense(ctx, id)
			if err != nil {
				return err
			}
			if e == nil {
				txFailures = append(txFailures, id)
				continue
			}
			n, err := store.DeleteExpense(ctx, id)
			if err != nil {
				return err
			}
			if n == 0 {
				txFailures = append(txFailures, id)
				continue
			}
			deleted = append(deleted, *e)
			total += e.Amount
		}
		return nil
	})
	if err != nil {
		return nil, s.persistenceFailure(ctx, op, err, slog.Int("requested", len(expenseIDs)))
	}
	for _, id := range txFailures {
		fail(id, apperrors.NewNotFoundError(apperrors.EntityExpense, id))
	}

	result := &domain.BatchDeleteResult{
		Deleted:            deleted,
		Failed:             failed,
		TotalAmountDeleted: total,
	}
	if result.Deleted == nil {
		result.Deleted = []domain.Expense{}
	}
	if result.Failed == nil {
		result.Failed = []domain.BatchItemFailure{}
	}

	s.LogInfo(ctx, "Expense batch deleted",
		slog.Int("succeeded", result.SuccessCount()),
		slog.Int("failed", result.FailureCount()),
		slog.String("total_amount_deleted", total.String()))

	if len(itemErrors) > 0 {
		succeeded := make([]string, len(result.Deleted))
		for i, e := range result.Deleted {
			succeeded[i] = e.ExpenseID
		}
		return result, &apperrors.PartialFailure{Succeeded: succeeded, Failed: itemErrors}
	}
	return result, nil
}

// --- Queries ---

func (s *budgetService) GetActivePeriod(ctx context.Context) (*domain.BudgetPeriod, error) {
	p, err := s.gateway.GetActivePeriod(ctx)
	if err != nil {
		return nil, s.persistenceFailure(ctx, "get active period", err)
	}
	if p == nil {
		return nil, &apperrors.NoActivePeriodError{}
	}
	return p, nil
}

func (s *budgetService) ListExpenses(ctx context.Context, periodID string) ([]domain.Expense, error) {
	const op = "list expenses"
	id := strings.TrimSpace(periodID)
	if id == "" {
		active, err := s.GetActivePeriod(ctx)
		if err != nil {
			return nil, err
		}
		id = active.PeriodID
	} else {
		p, err := s.gateway.GetPeriod(ctx, id)
		if err != nil {
			return nil, s.persistenceFailure(ctx, op, err)
		}
		if p == nil {
			return nil, apperrors.NewNotFoundError(apperrors.EntityPeriod, id)
		}
	}

	expenses, err := s.gateway.ListExpenses(ctx, id)
	if err != nil {
		return nil, s.persistenceFailure(ctx, op, err, slog.String("period_id", id))
	}
	if expenses == nil {
		expenses = []domain.Expense{}
	}
	return expenses, nil
}

func (s *budgetService) CurrentSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := loadSnapshot(ctx, s.gateway, s.clock)
	if err != nil {
		return nil, s.persistenceFailure(ctx, "load snapshot", err)
	}
	return &snap, nil
}

// loadSnapshot reads the active period and its expenses in one atomic block and folds them.
func loadSnapshot(ctx context.Context, gateway portsrepo.TransactionRunner, clock func() time.Time) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := gateway.RunAtomically(ctx, func(ctx context.Context, store portsrepo.BudgetStore) error {
		period, err := store.GetActivePeriod(ctx)
		if err != nil {
			return err
		}
		expenses := []domain.Expense{}
		if period != nil {
			if expenses, err = store.ListExpenses(ctx, period.PeriodID); err != nil {
				return err
			}
		}
		now := clock()
		snap = domain.Snapshot{
			Period:     period,
			Expenses:   expenses,
			Aggregate:  budgeting.ComputeAggregate(period, expenses, now),
			ComputedAt: now,
		}
		return nil
	})
	return snap, err
}
