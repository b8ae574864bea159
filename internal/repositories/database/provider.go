// Package database selects and opens the configured BudgetGateway.
package database

import (
	"context"
	"fmt"
	"log/slog"

	portsrepo "github.com/SscSPs/allowance_tracker/internal/core/ports/repositories"
	"github.com/SscSPs/allowance_tracker/internal/platform/config"
	"github.com/SscSPs/allowance_tracker/internal/repositories/database/memory"
	"github.com/SscSPs/allowance_tracker/internal/repositories/database/pgsql"
	"github.com/SscSPs/allowance_tracker/internal/repositories/database/sqlite"
	pkgdb "github.com/SscSPs/allowance_tracker/pkg/database"
)

// Provider is an opened gateway plus the background work it needs.
type Provider struct {
	Gateway portsrepo.BudgetGateway

	// Listen relays changes committed by other processes. It is nil for backends
	// that are only ever written by this process.
	Listen func(ctx context.Context) error

	closers []func()
}

// Close closes the gateway and any resources opened for it.
func (p *Provider) Close() error {
	err := p.Gateway.Close()
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	return err
}

// NewProvider opens the backend named by cfg.DataBackend, applying migrations first.
func NewProvider(ctx context.Context, cfg *config.Config) (*Provider, error) {
	logger := slog.Default().With(slog.String("backend", cfg.DataBackend))

	switch cfg.DataBackend {
	case config.BackendMemory:
		logger.InfoContext(ctx, "Using in-memory storage; data is lost on exit")
		return &Provider{Gateway: memory.NewGateway()}, nil

	case config.BackendSQLite:
		gw, err := sqlite.NewGateway(ctx, cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite gateway: %w", err)
		}
		logger.InfoContext(ctx, "SQLite storage ready", slog.String("path", cfg.SQLiteDBPath))
		return &Provider{Gateway: gw}, nil

	case config.BackendPostgres:
		applied, err := pgsql.RunMigrations(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if applied {
			logger.InfoContext(ctx, "Database migrations applied successfully")
		} else {
			logger.InfoContext(ctx, "No new migrations to apply")
		}

		pool, err := pkgdb.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
		if err != nil {
			return nil, err
		}
		gw := pgsql.NewBudgetGateway(pool)
		return &Provider{
			Gateway: gw,
			Listen:  gw.Listen,
			closers: []func(){func() { pkgdb.ClosePgxPool(pool) }},
		}, nil

	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}
