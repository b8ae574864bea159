package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/dto"
	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04"

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func writePeriod(w io.Writer, p dto.PeriodResponse) {
	state := "inactive"
	if p.IsActive {
		state = "active"
	}
	fmt.Fprintf(w, "Period %s (%s)\n", p.PeriodID, state)
	fmt.Fprintf(w, "  Disposable: %s\n", money(p.DisposableAmount))
	fmt.Fprintf(w, "  Created:    %s\n", p.CreatedAt.Local().Format(timeLayout))
	fmt.Fprintf(w, "  Renews:     %s\n", p.RenewalAt.Local().Format(timeLayout))
}

func writeExpenses(w io.Writer, expenses []dto.ExpenseResponse) error {
	if len(expenses) == 0 {
		fmt.Fprintln(w, "No expenses.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tDate\tAmount\tDescription\t")
	for _, e := range expenses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", e.ExpenseID, e.CreatedAt.Local().Format(time.DateOnly), money(e.Amount), e.Description)
	}
	return tw.Flush()
}

func writeAggregate(w io.Writer, a dto.AggregateResponse) {
	fmt.Fprintf(w, "Spent:      %s of %s (%d expenses)\n", money(a.TotalExpenses), money(a.DisposableAmount), a.ExpenseCount)
	if a.IsOverBudget {
		fmt.Fprintf(w, "Overspent:  %s\n", money(a.OverspendAmount))
	} else {
		fmt.Fprintf(w, "Remaining:  %s\n", money(a.RemainingAmount))
	}
	fmt.Fprintf(w, "Renews in:  %d days\n", a.DaysUntilRenewal)
	fmt.Fprintf(w, "Per day:    %s\n", money(a.DailyAllowance))
}
