package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

var (
	eventType string
	eventFile string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Enqueue and inspect background jobs",
}

var jobsEnqueueCmd = &cobra.Command{
	Use:       "enqueue <integrity|warmup|prune>",
	Short:     "Enqueue a maintenance job",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"integrity", "warmup", "prune"},
	RunE:      runJobsEnqueue,
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue sizes",
	Args:  cobra.NoArgs,
	RunE:  runJobsStats,
}

var jobsEventCmd = &cobra.Command{
	Use:   "event",
	Short: "Publish a business event for posting",
	Long: `Publish a business event read from --file (or stdin) as JSON. The worker
posts it through the ledger hooks; replays of the same event are no-ops.

Example:
  ledgerctl jobs event --type invoice_posted --file invoice.json`,
	Args: cobra.NoArgs,
	RunE: runJobsEvent,
}

func init() {
	jobsEventCmd.Flags().StringVar(&eventType, "type", "", "event type, e.g. invoice_posted")
	jobsEventCmd.Flags().StringVar(&eventFile, "file", "", "JSON event body (default stdin)")
	_ = jobsEventCmd.MarkFlagRequired("type")

	jobsCmd.AddCommand(jobsEnqueueCmd)
	jobsCmd.AddCommand(jobsStatsCmd)
	jobsCmd.AddCommand(jobsEventCmd)
}

func newJobsClient() (*jobs.Client, *app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), cfg, nil
}

func runJobsEnqueue(cmd *cobra.Command, args []string) error {
	client, cfg, err := newJobsClient()
	if err != nil {
		return err
	}
	defer client.Close()

	var ids []int64
	if tenantID > 0 {
		ids = append(ids, tenantID)
	}
	var info *asynq.TaskInfo
	switch args[0] {
	case "integrity":
		info, err = client.EnqueueIntegrity(cmd.Context(), ids...)
	case "warmup":
		info, err = client.EnqueueReportsWarmup(cmd.Context(), ids...)
	case "prune":
		info, err = client.EnqueueIdempotencyPrune(cmd.Context(), cfg.IdempotencyRetention)
	default:
		return fmt.Errorf("unsupported job %q", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
	return nil
}

func runJobsStats(cmd *cobra.Command, args []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer inspector.Close()

	out := cmd.OutOrStdout()
	for _, queue := range []string{jobs.QueueCritical, jobs.QueueDefault} {
		info, err := inspector.GetQueueInfo(queue)
		if errors.Is(err, asynq.ErrQueueNotFound) {
			fmt.Fprintf(out, "%-8s empty\n", queue)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-8s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			queue, info.Pending, info.Active, info.Scheduled, info.Retry, info.Archived)
	}
	return nil
}

func runJobsEvent(cmd *cobra.Command, args []string) error {
	raw, err := readEventBody(cmd)
	if err != nil {
		return err
	}
	evt, err := decodeEvent(eventType, raw)
	if err != nil {
		return err
	}
	client, _, err := newJobsClient()
	if err != nil {
		return err
	}
	defer client.Close()

	info, err := client.EnqueueLedgerEvent(cmd.Context(), evt)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued %s event (%s)\n", eventType, info.ID)
	return nil
}

func readEventBody(cmd *cobra.Command) ([]byte, error) {
	if eventFile == "" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(eventFile)
}

// decodeEvent turns a JSON body into the integration event named by kind.
func decodeEvent(kind string, raw []byte) (any, error) {
	switch kind {
	case jobs.EventInvoicePosted:
		return decodeAs[integration.InvoicePosted](raw)
	case jobs.EventCustomerPayment:
		return decodeAs[integration.CustomerPaymentReceived](raw)
	case jobs.EventSupplierBill:
		return decodeAs[integration.SupplierBillPosted](raw)
	case jobs.EventBillPaid:
		return decodeAs[integration.BillPaid](raw)
	case jobs.EventPayslip:
		return decodeAs[integration.PayslipApproved](raw)
	case jobs.EventStockAdjusted:
		return decodeAs[integration.StockAdjusted](raw)
	case jobs.EventExpense:
		return decodeAs[integration.ExpenseApproved](raw)
	case jobs.EventGoodsReceived:
		return decodeAs[integration.GoodsReceived](raw)
	}
	return nil, fmt.Errorf("unknown event type %q", kind)
}

func decodeAs[E any](raw []byte) (any, error) {
	var evt E
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return evt, nil
}
