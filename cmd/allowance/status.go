package main

import (
	"context"
	"fmt"

	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/dto"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active period, its expenses and what is left",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBudget(cmd, opts, func(ctx context.Context, budget portssvc.BudgetSvcFacade) error {
				snapshot, err := budget.CurrentSnapshot(ctx)
				if err != nil {
					return err
				}
				resp := dto.ToSnapshotResponse(*snapshot)
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), resp)
				}

				w := cmd.OutOrStdout()
				if resp.Period == nil {
					fmt.Fprintln(w, "No active period. Start one with: allowance period create --amount <amount>")
					return nil
				}
				writePeriod(w, *resp.Period)
				fmt.Fprintln(w)
				writeAggregate(w, resp.Aggregate)
				fmt.Fprintln(w)
				return writeExpenses(w, resp.Expenses)
			})
		},
	}
}
