package main

import (
	"context"
	"fmt"
	"time"

	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/dto"
	"github.com/spf13/cobra"
)

type periodFlags struct {
	amount  float64
	renewal string
}

func newPeriodCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Create, renew, reset or delete budget periods",
	}
	cmd.AddCommand(
		newPeriodStartCmd(opts, "create", "Start a new active period", startCreate),
		newPeriodStartCmd(opts, "renew", "Start the next period and keep the previous expenses", startRenew),
		newPeriodStartCmd(opts, "reset", "Start the next period and delete the previous expenses", startReset),
		newPeriodDeleteCmd(opts),
		newPeriodShowCmd(opts),
	)
	return cmd
}

// startFunc runs one of the period lifecycle commands and returns what to print.
type startFunc func(ctx context.Context, budget portssvc.BudgetSvcFacade, req dto.CreatePeriodRequest) (any, func(*cobra.Command), error)

func newPeriodStartCmd(opts *globalOptions, use, short string, start startFunc) *cobra.Command {
	flags := &periodFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			renewalAt, err := parseRenewal(flags.renewal)
			if err != nil {
				return err
			}
			req := dto.CreatePeriodRequest{DisposableAmount: flags.amount, RenewalAt: renewalAt}

			return withBudget(cmd, opts, func(ctx context.Context, budget portssvc.BudgetSvcFacade) error {
				result, render, err := start(ctx, budget, req)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), result)
				}
				render(cmd)
				return nil
			})
		},
	}
	cmd.Flags().Float64VarP(&flags.amount, "amount", "a", 0, "Disposable amount for the period")
	cmd.Flags().StringVarP(&flags.renewal, "renews", "r", "", "Renewal date (YYYY-MM-DD or RFC 3339); defaults to the configured period length")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func startCreate(ctx context.Context, budget portssvc.BudgetSvcFacade, req dto.CreatePeriodRequest) (any, func(*cobra.Command), error) {
	period, err := budget.CreatePeriod(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	resp := dto.ToPeriodResponse(*period)
	return resp, func(cmd *cobra.Command) { writePeriod(cmd.OutOrStdout(), resp) }, nil
}

func startRenew(ctx context.Context, budget portssvc.BudgetSvcFacade, req dto.CreatePeriodRequest) (any, func(*cobra.Command), error) {
	period, err := budget.RenewPeriod(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	resp := dto.ToPeriodResponse(*period)
	return resp, func(cmd *cobra.Command) { writePeriod(cmd.OutOrStdout(), resp) }, nil
}

func startReset(ctx context.Context, budget portssvc.BudgetSvcFacade, req dto.CreatePeriodRequest) (any, func(*cobra.Command), error) {
	result, err := budget.ResetPeriod(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	resp := dto.ToResetPeriodResponse(*result)
	return resp, func(cmd *cobra.Command) {
		writePeriod(cmd.OutOrStdout(), resp.Period)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expenses from the previous period.\n", resp.ExpensesDeleted)
	}, nil
}

func newPeriodDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <period-id>",
		Short: "Delete a period and all of its expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBudget(cmd, opts, func(ctx context.Context, budget portssvc.BudgetSvcFacade) error {
				period, err := budget.DeletePeriod(ctx, args[0])
				if err != nil {
					return err
				}
				resp := dto.ToPeriodResponse(*period)
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted period %s.\n", resp.PeriodID)
				return nil
			})
		},
	}
}

func newPeriodShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBudget(cmd, opts, func(ctx context.Context, budget portssvc.BudgetSvcFacade) error {
				period, err := budget.GetActivePeriod(ctx)
				if err != nil {
					return err
				}
				resp := dto.ToPeriodResponse(*period)
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				writePeriod(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

// parseRenewal accepts a calendar date in local time or a full RFC 3339 timestamp.
func parseRenewal(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid renewal date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return &t, nil
}
