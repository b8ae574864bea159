package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/apperrors"
	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/dto"
	"github.com/SscSPs/allowance_tracker/internal/handlers"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock BudgetService ---
type MockBudgetService struct {
	mock.Mock
}

func (m *MockBudgetService) CreatePeriod(ctx context.Context, req dto.CreatePeriodRequest) (*domain.BudgetPeriod, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BudgetPeriod), args.Error(1)
}
func (m *MockBudgetService) RenewPeriod(ctx context.Context, req dto.CreatePeriodRequest) (*domain.BudgetPeriod, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BudgetPeriod), args.Error(1)
}
func (m *MockBudgetService) ResetPeriod(ctx context.Context, req dto.CreatePeriodRequest) (*domain.ResetResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResetResult), args.Error(1)
}
func (m *MockBudgetService) DeletePeriod(ctx context.Context, periodID string) (*domain.BudgetPeriod, error) {
	args := m.Called(ctx, periodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BudgetPeriod), args.Error(1)
}
func (m *MockBudgetService) AddExpense(ctx context.Context, req dto.AddExpenseRequest) (*domain.AddExpenseResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AddExpenseResult), args.Error(1)
}
func (m *MockBudgetService) DeleteExpense(ctx context.Context, expenseID string) (*domain.Expense, error) {
	args := m.Called(ctx, expenseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}
func (m *MockBudgetService) DeleteExpensesBatch(ctx context.Context, expenseIDs []string) (*domain.BatchDeleteResult, error) {
	args := m.Called(ctx, expenseIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchDeleteResult), args.Error(1)
}
func (m *MockBudgetService) GetActivePeriod(ctx context.Context) (*domain.BudgetPeriod, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BudgetPeriod), args.Error(1)
}
func (m *MockBudgetService) ListExpenses(ctx context.Context, periodID string) ([]domain.Expense, error) {
	args := m.Called(ctx, periodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Expense), args.Error(1)
}
func (m *MockBudgetService) CurrentSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Snapshot), args.Error(1)
}

// Ensure mock implements the interface
var _ portssvc.BudgetSvcFacade = (*MockBudgetService)(nil)

// --- Mock ReadModel ---
type MockReadModel struct {
	mock.Mock
}

func (m *MockReadModel) Run(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *MockReadModel) Subscribe(ctx context.Context) <-chan domain.Snapshot {
	return m.Called(ctx).Get(0).(<-chan domain.Snapshot)
}
func (m *MockReadModel) ActivePeriod(ctx context.Context) <-chan *domain.BudgetPeriod {
	return m.Called(ctx).Get(0).(<-chan *domain.BudgetPeriod)
}
func (m *MockReadModel) Expenses(ctx context.Context) <-chan []domain.Expense {
	return m.Called(ctx).Get(0).(<-chan []domain.Expense)
}
func (m *MockReadModel) Aggregate(ctx context.Context) <-chan domain.Aggregate {
	return m.Called(ctx).Get(0).(<-chan domain.Aggregate)
}

var _ portssvc.ReadModelSvc = (*MockReadModel)(nil)

// closeNotifyingRecorder lets gin's Stream run against a recorder.
type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyingRecorder) CloseNotify() <-chan bool { return r.closed }

// --- Test Suite ---
type BudgetHandlerTestSuite struct {
	suite.Suite
	router        *gin.Engine
	mockBudget    *MockBudgetService
	mockReadModel *MockReadModel
	now           time.Time
}

func (suite *BudgetHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.mockBudget = new(MockBudgetService)
	suite.mockReadModel = new(MockReadModel)
	suite.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	handlers.RegisterRoutes(suite.router, &portssvc.ServiceContainer{
		Budget:    suite.mockBudget,
		ReadModel: suite.mockReadModel,
	})
}

func (suite *BudgetHandlerTestSuite) do(method, url, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, url, nil)
	} else {
		req, _ = http.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *BudgetHandlerTestSuite) period(cents int64) *domain.BudgetPeriod {
	return &domain.BudgetPeriod{
		PeriodID:         uuid.NewString(),
		DisposableAmount: domain.MoneyFromCents(cents),
		CreatedAt:        suite.now,
		RenewalAt:        suite.now.AddDate(0, 0, 30),
		IsActive:         true,
	}
}

func (suite *BudgetHandlerTestSuite) decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// --- Test Cases ---

func (suite *BudgetHandlerTestSuite) TestHealth() {
	w := suite.do(http.MethodGet, "/health", "")
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("OK", w.Body.String())
}

func (suite *BudgetHandlerTestSuite) TestCreatePeriod_Success() {
	created := suite.period(100000)
	suite.mockBudget.On("CreatePeriod", mock.Anything, mock.MatchedBy(func(r dto.CreatePeriodRequest) bool {
		return r.DisposableAmount == 1000 && r.RenewalAt == nil
	})).Return(created, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/periods", `{"disposableAmount": 1000}`)

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.PeriodResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(created.PeriodID, resp.PeriodID)
	suite.True(resp.DisposableAmount.Equal(decimal.NewFromInt(1000)))
	suite.True(resp.IsActive)
	suite.mockBudget.AssertExpectations(suite.T())
}

func (suite *BudgetHandlerTestSuite) TestCreatePeriod_ValidationErrorIs400WithReason() {
	suite.mockBudget.On("CreatePeriod", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewValidationError(apperrors.ReasonNegativeAmount, "disposable amount must not be negative")).Once()

	w := suite.do(http.MethodPost, "/api/v1/periods", `{"disposableAmount": -5}`)

	suite.Equal(http.StatusBadRequest, w.Code)
	body := suite.decodeError(w)
	suite.Equal(string(apperrors.KindValidation), body["kind"])
	suite.Equal(string(apperrors.ReasonNegativeAmount), body["reason"])
}

func (suite *BudgetHandlerTestSuite) TestCreatePeriod_MalformedJSON() {
	w := suite.do(http.MethodPost, "/api/v1/periods", `{"disposableAmount":`)

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockBudget.AssertNotCalled(suite.T(), "CreatePeriod", mock.Anything, mock.Anything)
}

func (suite *BudgetHandlerTestSuite) TestResetPeriod_ReportsDeletedExpenses() {
	next := suite.period(50000)
	suite.mockBudget.On("ResetPeriod", mock.Anything, mock.Anything).Return(&domain.ResetResult{
		Period:          *next,
		PreviousPeriod:  "old-period",
		ExpensesDeleted: 3,
	}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/periods/reset", `{"disposableAmount": 500}`)

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.ResetPeriodResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(next.PeriodID, resp.Period.PeriodID)
	suite.Equal("old-period", resp.PreviousPeriodID)
	suite.EqualValues(3, resp.ExpensesDeleted)
}

func (suite *BudgetHandlerTestSuite) TestRenewPeriod_PersistenceErrorHidesCause() {
	cause := &apperrors.PersistenceError{Op: "insert period", Cause: context.DeadlineExceeded}
	suite.mockBudget.On("RenewPeriod", mock.Anything, mock.Anything).Return(nil, cause).Once()

	w := suite.do(http.MethodPost, "/api/v1/periods/renew", `{"disposableAmount": 500}`)

	suite.Equal(http.StatusInternalServerError, w.Code)
	body := suite.decodeError(w)
	suite.Equal(string(apperrors.KindPersistence), body["kind"])
	suite.NotContains(body["error"], "deadline")
}

func (suite *BudgetHandlerTestSuite) TestGetActivePeriod_NoneIsConflict() {
	suite.mockBudget.On("GetActivePeriod", mock.Anything).Return(nil, &apperrors.NoActivePeriodError{}).Once()

	w := suite.do(http.MethodGet, "/api/v1/periods/active", "")

	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal(string(apperrors.KindNoActivePeriod), suite.decodeError(w)["kind"])
}

func (suite *BudgetHandlerTestSuite) TestDeletePeriod_NotFound() {
	suite.mockBudget.On("DeletePeriod", mock.Anything, "missing").
		Return(nil, apperrors.NewNotFoundError(apperrors.EntityPeriod, "missing")).Once()

	w := suite.do(http.MethodDelete, "/api/v1/periods/missing", "")

	suite.Equal(http.StatusNotFound, w.Code)
	suite.mockBudget.AssertExpectations(suite.T())
}

func (suite *BudgetHandlerTestSuite) TestAddExpense_Success() {
	p := suite.period(10000)
	suite.mockBudget.On("AddExpense", mock.Anything, dto.AddExpenseRequest{Description: "Coffee", Amount: 4.5}).
		Return(&domain.AddExpenseResult{
			Expense: domain.Expense{
				ExpenseID:   uuid.NewString(),
				PeriodID:    p.PeriodID,
				Description: "Coffee",
				Amount:      domain.MoneyFromCents(450),
				CreatedAt:   suite.now,
			},
			RemainingAmountAfter: domain.MoneyFromCents(9550),
		}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/expenses", `{"description": "Coffee", "amount": 4.5}`)

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.AddExpenseResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.NotEmpty(resp.ExpenseID)
	suite.Equal(resp.ExpenseID, resp.Expense.ExpenseID)
	suite.False(resp.WillOverspend)
	suite.True(resp.RemainingAmountAfter.Equal(decimal.RequireFromString("95.50")))
}

func (suite *BudgetHandlerTestSuite) TestAddExpense_InvalidPeriodIDRejectedByBinding() {
	w := suite.do(http.MethodPost, "/api/v1/expenses", `{"description": "Coffee", "amount": 4.5, "periodID": "nope"}`)

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Contains(suite.decodeError(w)["error"], "PeriodID")
	suite.mockBudget.AssertNotCalled(suite.T(), "AddExpense", mock.Anything, mock.Anything)
}

func (suite *BudgetHandlerTestSuite) TestListExpenses_PassesPeriodQuery() {
	suite.mockBudget.On("ListExpenses", mock.Anything, "p-1").Return([]domain.Expense{}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/expenses?periodID=p-1", "")

	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`[]`, w.Body.String())
	suite.mockBudget.AssertExpectations(suite.T())
}

func (suite *BudgetHandlerTestSuite) TestDeleteExpense_NotFound() {
	suite.mockBudget.On("DeleteExpense", mock.Anything, "gone").
		Return(nil, apperrors.NewNotFoundError(apperrors.EntityExpense, "gone")).Once()

	w := suite.do(http.MethodDelete, "/api/v1/expenses/gone", "")

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *BudgetHandlerTestSuite) TestDeleteExpensesBatch_PartialFailureIs207() {
	kept := domain.Expense{ExpenseID: "a", PeriodID: "p", Description: "x", Amount: domain.MoneyFromCents(100), CreatedAt: suite.now}
	result := &domain.BatchDeleteResult{
		Deleted:            []domain.Expense{kept},
		Failed:             []domain.BatchItemFailure{{ExpenseID: "b", Reason: "expense \"b\" not found"}},
		TotalAmountDeleted: domain.MoneyFromCents(100),
	}
	partial := &apperrors.PartialFailure{
		Succeeded: []string{"a"},
		Failed:    []apperrors.ItemFailure{{ID: "b", Err: apperrors.NewNotFoundError(apperrors.EntityExpense, "b")}},
	}
	suite.mockBudget.On("DeleteExpensesBatch", mock.Anything, []string{"a", "b"}).Return(result, partial).Once()

	w := suite.do(http.MethodPost, "/api/v1/expenses/batch-delete", `{"expenseIDs": ["a", "b"]}`)

	suite.Equal(http.StatusMultiStatus, w.Code)
	var resp dto.DeleteExpensesBatchResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(1, resp.SuccessCount)
	suite.Equal(1, resp.FailureCount)
	suite.Equal("b", resp.Failed[0].ExpenseID)
	suite.True(resp.TotalAmountDeleted.Equal(decimal.NewFromInt(1)))
}

func (suite *BudgetHandlerTestSuite) TestDeleteExpensesBatch_EmptyListRejected() {
	w := suite.do(http.MethodPost, "/api/v1/expenses/batch-delete", `{"expenseIDs": []}`)

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockBudget.AssertNotCalled(suite.T(), "DeleteExpensesBatch", mock.Anything, mock.Anything)
}

func (suite *BudgetHandlerTestSuite) TestGetAggregate_NoActivePeriodIsZero() {
	suite.mockBudget.On("CurrentSnapshot", mock.Anything).
		Return(&domain.Snapshot{Expenses: []domain.Expense{}, ComputedAt: suite.now}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/budget/aggregate", "")

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.AggregateResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.True(resp.TotalExpenses.IsZero())
	suite.False(resp.IsOverBudget)
	suite.Equal(0, resp.ExpenseCount)
}

func (suite *BudgetHandlerTestSuite) TestGetSnapshot() {
	p := suite.period(20000)
	suite.mockBudget.On("CurrentSnapshot", mock.Anything).Return(&domain.Snapshot{
		Period:     p,
		Expenses:   []domain.Expense{},
		Aggregate:  domain.Aggregate{PeriodID: p.PeriodID, DisposableAmount: p.DisposableAmount, RemainingAmount: p.DisposableAmount},
		ComputedAt: suite.now,
	}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/budget/snapshot", "")

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.SnapshotResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Require().NotNil(resp.Period)
	suite.Equal(p.PeriodID, resp.Period.PeriodID)
	suite.True(resp.Aggregate.RemainingAmount.Equal(decimal.NewFromInt(200)))
}

func (suite *BudgetHandlerTestSuite) TestStreamSnapshots_WritesEventsUntilClosed() {
	snapshots := make(chan domain.Snapshot, 2)
	snapshots <- domain.Snapshot{Expenses: []domain.Expense{}, ComputedAt: suite.now}
	p := suite.period(1000)
	snapshots <- domain.Snapshot{Period: p, Expenses: []domain.Expense{}, ComputedAt: suite.now}
	close(snapshots)
	suite.mockReadModel.On("Subscribe", mock.Anything).Return((<-chan domain.Snapshot)(snapshots)).Once()

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/budget/stream", nil)
	w := &closeNotifyingRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Header().Get("Content-Type"), "text/event-stream")
	body := w.Body.String()
	suite.Equal(2, strings.Count(body, "event:snapshot"))
	suite.Contains(body, p.PeriodID)
}

// --- Run Test Suite ---
func TestBudgetHandler(t *testing.T) {
	suite.Run(t, new(BudgetHandlerTestSuite))
}
