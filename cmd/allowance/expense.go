package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/SscSPs/allowance_tracker/internal/apperrors"
	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/dto"
	"github.com/spf13/cobra"
)

func newExpenseCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Add, list or delete expenses",
	}
	cmd.AddCommand(
		newExpenseAddCmd(opts),
		newExpenseListCmd(opts),
		newExpenseDeleteCmd(opts),
		newExpenseDeleteBatchCmd(opts),
	)
	return cmd
}

func newExpenseAddCmd(opts *globalOptions) *cobra.Command {
	var periodID string
	cmd := &cobra.Command{
		Use:   "add <description> <amount>",
		Short: "Record an expense against the active period",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			req := dto.AddExpenseRequest{Description: args[0], Amount: amount, PeriodID: periodID}

			return withBudget(cmd, opts, func(ctx context.Context, budget portssvc.BudgetSvcFacade) error {
				result, err := budget.AddExpense(ctx, req)
				if err != nil {
					return err
				}
				resp := dto.ToAddExpenseResponse(*result)
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Added %s (%s).\n", resp.ExpenseID, money(resp.Expense.Amount))
				if resp.WillOverspend {
					fmt.Fprintf(w, "Over budget by %s.\n", money(resp.OverspendAmount))
				} else {
					fmt.Fprintf(w, "Remaining: %s\n", money(resp.RemainingAmountAfter))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&periodID, "period", "", "Add to this period instead of the active one")
	return cmd
}

func newExpenseListCmd(opts *globalOptions) *cobra.Command {
	var periodID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBudget(cmd, opts, func(ctx context.Context, budget portssvc.BudgetSvcFacade) error {
				expenses, err := budget.ListExpenses(ctx, periodID)
				if err != nil {
					return err
				}
				resp := dto.ToExpenseResponses(expenses)
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				return writeExpenses(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVar(&periodID, "period", "", "List this period instead of the active one")
	return cmd
}

func newExpenseDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <expense-id>",
		Short: "Delete one expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBudget(cmd, opts, func(ctx context.Context, budget portssvc.BudgetSvcFacade) error {
				expense, err := budget.DeleteExpense(ctx, args[0])
				if err != nil {
					return err
				}
				resp := dto.ToExpenseResponse(*expense)
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s, %s).\n", resp.ExpenseID, resp.Description, money(resp.Amount))
				return nil
			})
		},
	}
}

func newExpenseDeleteBatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-batch <expense-id>...",
		Short: "Delete several expenses, reporting each one that could not be deleted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBudget(cmd, opts, func(ctx context.Context, budget portssvc.BudgetSvcFacade) error {
				result, err := budget.DeleteExpensesBatch(ctx, args)
				var partial *apperrors.PartialFailure
				if err != nil && !(errors.As(err, &partial) && result != nil) {
					return err
				}
				resp := dto.ToDeleteExpensesBatchResponse(*result)
				if opts.jsonOutput {
					if perr := printJSON(cmd.OutOrStdout(), resp); perr != nil {
						return perr
					}
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Deleted %d expenses totalling %s.\n", resp.SuccessCount, money(resp.TotalAmountDeleted))
				for _, f := range resp.Failed {
					fmt.Fprintf(w, "  %s: %s\n", f.ExpenseID, f.Reason)
				}
				return err
			})
		},
	}
}
