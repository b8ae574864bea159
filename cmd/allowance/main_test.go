package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/SscSPs/allowance_tracker/internal/apperrors"
	"github.com/SscSPs/allowance_tracker/internal/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes one CLI invocation against the SQLite file at dbPath and returns stdout.
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--backend", "sqlite", "--sqlite-path", dbPath}, args...))
	err := root.ExecuteContext(testContext(t))
	return out.String(), err
}

func TestCLI_PeriodAndExpenseLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "allowance.db")

	out, err := run(t, dbPath, "period", "create", "--amount", "100", "--json")
	require.NoError(t, err)
	var period dto.PeriodResponse
	require.NoError(t, json.Unmarshal([]byte(out), &period))
	assert.True(t, period.IsActive)

	out, err = run(t, dbPath, "expense", "add", "Groceries", "120.50", "--json")
	require.NoError(t, err)
	var added dto.AddExpenseResponse
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	assert.True(t, added.WillOverspend)
	assert.True(t, added.OverspendAmount.Equal(decimal.RequireFromString("20.50")))

	out, err = run(t, dbPath, "status", "--json")
	require.NoError(t, err)
	var snapshot dto.SnapshotResponse
	require.NoError(t, json.Unmarshal([]byte(out), &snapshot))
	require.NotNil(t, snapshot.Period)
	assert.Equal(t, period.PeriodID, snapshot.Period.PeriodID)
	assert.True(t, snapshot.Aggregate.IsOverBudget)
	assert.Equal(t, 1, snapshot.Aggregate.ExpenseCount)

	out, err = run(t, dbPath, "expense", "delete-batch", added.ExpenseID, "missing-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPartialFailure)
	assert.Contains(t, out, "Deleted 1 expenses")
	assert.Contains(t, out, "missing-id")

	out, err = run(t, dbPath, "period", "reset", "--amount", "50", "--json")
	require.NoError(t, err)
	var reset dto.ResetPeriodResponse
	require.NoError(t, json.Unmarshal([]byte(out), &reset))
	assert.Equal(t, period.PeriodID, reset.PreviousPeriodID)
	assert.Zero(t, reset.ExpensesDeleted)
}

func TestCLI_StatusWithoutActivePeriod(t *testing.T) {
	out, err := run(t, filepath.Join(t.TempDir(), "empty.db"), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No active period")
}

func TestCLI_ValidationErrorsAreReturned(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "allowance.db")

	_, err := run(t, dbPath, "expense", "add", "Coffee", "4.50")
	assert.ErrorIs(t, err, apperrors.ErrNoActivePeriod)

	_, err = run(t, dbPath, "period", "create", "--amount=-1")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = run(t, dbPath, "expense", "add", "Coffee", "lots")
	assert.ErrorContains(t, err, `invalid amount "lots"`)
}

func TestParseRenewal(t *testing.T) {
	got, err := parseRenewal("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseRenewal("2025-04-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2025, got.Year())

	got, err = parseRenewal("2025-04-01")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Day())

	_, err = parseRenewal("next tuesday")
	assert.Error(t, err)
}
