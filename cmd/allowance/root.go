package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/core/services"
	"github.com/SscSPs/allowance_tracker/internal/platform/config"
	"github.com/SscSPs/allowance_tracker/internal/repositories/database"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	backend    string
	sqlitePath string
	jsonOutput bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "allowance",
		Short:         "Track a disposable allowance and what is left of it",
		Long:          "Manage budget periods and expenses, and serve the live budget over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "Storage backend: memory, sqlite or postgres (overrides DATA_BACKEND)")
	root.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite-path", "", "SQLite database file (overrides SQLITE_DB_PATH)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")

	root.AddCommand(
		newServeCmd(opts),
		newPeriodCmd(opts),
		newExpenseCmd(opts),
		newStatusCmd(opts),
	)
	return root
}

// loadConfig reads the environment and lets explicitly set flags override it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	cfg, err := config.LoadConfig(func(v *viper.Viper) error {
		if err := v.BindPFlag("DATA_BACKEND", flags.Lookup("backend")); err != nil {
			return err
		}
		return v.BindPFlag("SQLITE_DB_PATH", flags.Lookup("sqlite-path"))
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger: JSON in production, text otherwise.
func newLogger(cfg *config.Config, w io.Writer, level slog.Level) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// withBudget opens the configured backend, runs fn against the budget service and closes everything.
func withBudget(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, budget portssvc.BudgetSvcFacade) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = cfg.LogLevel
	}
	logger := newLogger(cfg, cmd.ErrOrStderr(), level)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	provider, err := database.NewProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := provider.Close(); cerr != nil {
			logger.Error("Failed to close storage", slog.String("error", cerr.Error()))
		}
	}()

	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Memory backend selected; changes made by this command are not kept")
	}

	container := services.NewServiceContainer(cfg, provider.Gateway, logger)
	return fn(ctx, container.Budget)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
