package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

var (
	closeMonthEnd string
	closeAsync    bool
)

var closeMonthCmd = &cobra.Command{
	Use:   "close-month",
	Short: "Close a tenant's financial month",
	Long: `Close the calendar month containing --month-end for --tenant.

Months close strictly in order and a closed month never reopens. With
--async the close is queued for the worker instead of run inline.

Example:
  ledgerctl close-month --tenant 7 --month-end 2024-03-31 --actor 1`,
	RunE: runCloseMonth,
}

func init() {
	closeMonthCmd.Flags().StringVar(&closeMonthEnd, "month-end", "", "any date in the month to close (YYYY-MM-DD)")
	closeMonthCmd.Flags().BoolVar(&closeAsync, "async", false, "enqueue the close for the worker")
	_ = closeMonthCmd.MarkFlagRequired("month-end")
}

func runCloseMonth(cmd *cobra.Command, args []string) error {
	if err := requireTenant(); err != nil {
		return err
	}
	monthEnd, err := parseDate("month-end", closeMonthEnd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if closeAsync {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer client.Close()
		info, err := client.EnqueueCloseMonth(ctx, tenantID, monthEnd, actorID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
		return nil
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	return closeMonth(ctx, cmd, s.ledger.Periods, monthEnd)
}

func closeMonth(ctx context.Context, cmd *cobra.Command, closer jobs.MonthCloser, monthEnd time.Time) error {
	snap, err := closer.CloseMonth(ctx, periods.CloseInput{TenantID: tenantID, MonthEnd: monthEnd, ActorID: actorID})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "closed %s..%s for tenant %d\n",
		snap.Month.StartDate.Format(time.DateOnly), snap.Month.EndDate.Format(time.DateOnly), tenantID)
	fmt.Fprintf(out, "entries: %d  debit: %s  credit: %s\n", snap.EntryCount, snap.TotalDebit.StringFixed(2), snap.TotalCredit.StringFixed(2))
	return nil
}
