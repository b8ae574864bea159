package pgsql

import (
	"context"
	"os"
	"testing"

	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
	"github.com/SscSPs/allowance_tracker/internal/core/ports/repositories/gatewaytest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set PGSQL_TEST_URL to a disposable database to run these tests.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("PGSQL_TEST_URL")
	if url == "" {
		t.Skip("PGSQL_TEST_URL not set")
	}
	_, err := RunMigrations(url)
	require.NoError(t, err)

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestBudgetGatewayContract(t *testing.T) {
	pool := testPool(t)
	gatewaytest.Run(t, func(t *testing.T) portsrepo.BudgetGateway {
		_, err := pool.Exec(context.Background(), `TRUNCATE expenses, budget_periods`)
		require.NoError(t, err)
		gw := NewBudgetGateway(pool)
		t.Cleanup(func() { _ = gw.Close() })
		return gw
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(assert.AnError))
}
