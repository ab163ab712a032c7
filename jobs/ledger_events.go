package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// TaskLedgerEvent carries a business event from an operational module to the
// ledger hooks.
const TaskLedgerEvent = "ledger:event"

// Event names carried in LedgerEventPayload.Type.
const (
	EventInvoicePosted   = "invoice_posted"
	EventCustomerPayment = "customer_payment"
	EventSupplierBill    = "supplier_bill"
	EventBillPaid        = "bill_paid"
	EventPayslip         = "payslip_approved"
	EventStockAdjusted   = "stock_adjusted"
	EventExpense         = "expense_approved"
	EventGoodsReceived   = "goods_received"
)

// LedgerEventPayload wraps one integration event.
type LedgerEventPayload struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event"`
}

// NewLedgerEventTask builds a TaskLedgerEvent task for evt, which must be one
// of the integration event types.
func NewLedgerEventTask(evt any) (*asynq.Task, error) {
	var name string
	switch evt.(type) {
	case integration.InvoicePosted:
		name = EventInvoicePosted
	case integration.CustomerPaymentReceived:
		name = EventCustomerPayment
	case integration.SupplierBillPosted:
		name = EventSupplierBill
	case integration.BillPaid:
		name = EventBillPaid
	case integration.PayslipApproved:
		name = EventPayslip
	case integration.StockAdjusted:
		name = EventStockAdjusted
	case integration.ExpenseApproved:
		name = EventExpense
	case integration.GoodsReceived:
		name = EventGoodsReceived
	default:
		return nil, fmt.Errorf("ledger event: unsupported type %T", evt)
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(LedgerEventPayload{Type: name, Event: raw})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerEvent, data, asynq.MaxRetry(5)), nil
}

// EventHooks is the set of posting hooks a ledger event can reach.
type EventHooks interface {
	HandleInvoicePosted(ctx context.Context, evt integration.InvoicePosted) error
	HandleCustomerPayment(ctx context.Context, evt integration.CustomerPaymentReceived) error
	HandleSupplierBill(ctx context.Context, evt integration.SupplierBillPosted) error
	HandleBillPaid(ctx context.Context, evt integration.BillPaid) error
	HandlePayslip(ctx context.Context, evt integration.PayslipApproved) error
	HandleStockAdjusted(ctx context.Context, evt integration.StockAdjusted) error
	HandleExpense(ctx context.Context, evt integration.ExpenseApproved) error
	HandleGoodsReceived(ctx context.Context, evt integration.GoodsReceived) error
}

// LedgerEventJob posts queued business events.
type LedgerEventJob struct {
	Hooks   EventHooks
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerEventJob wires dependencies for the event handler.
func NewLedgerEventJob(hooks EventHooks, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerEventJob {
	return &LedgerEventJob{Hooks: hooks, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLedgerEvent tasks. A missing account mapping is
// retried so operators can add it; other ledger rule violations are final.
func (j *LedgerEventJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Hooks == nil {
		return errors.New("ledger event: handler not configured")
	}
	var payload LedgerEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskLedgerEvent)
	logger := j.logger().With(slog.String("event", payload.Type))

	err := j.dispatch(ctx, payload)
	switch {
	case err == nil:
		logger.Debug("event posted")
		return tracker.End(nil)
	case errors.Is(err, errUnknownEvent), errors.Is(err, errMalformedEvent):
		logger.Warn("event dropped", slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %w", err, asynq.SkipRetry))
	case shared.KindOf(err) == shared.KindNotFound:
		logger.Warn("event waiting for account mapping", slog.Any("error", err))
		return tracker.End(err)
	case shared.KindOf(err) != "":
		logger.Warn("event rejected by ledger", slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %w", err, asynq.SkipRetry))
	default:
		logger.Error("event posting failed", slog.Any("error", err))
		return tracker.End(err)
	}
}

var (
	errUnknownEvent   = errors.New("ledger event: unknown type")
	errMalformedEvent = errors.New("ledger event: malformed body")
)

func (j *LedgerEventJob) dispatch(ctx context.Context, p LedgerEventPayload) error {
	switch p.Type {
	case EventInvoicePosted:
		return handleEvent(ctx, p.Event, j.Hooks.HandleInvoicePosted)
	case EventCustomerPayment:
		return handleEvent(ctx, p.Event, j.Hooks.HandleCustomerPayment)
	case EventSupplierBill:
		return handleEvent(ctx, p.Event, j.Hooks.HandleSupplierBill)
	case EventBillPaid:
		return handleEvent(ctx, p.Event, j.Hooks.HandleBillPaid)
	case EventPayslip:
		return handleEvent(ctx, p.Event, j.Hooks.HandlePayslip)
	case EventStockAdjusted:
		return handleEvent(ctx, p.Event, j.Hooks.HandleStockAdjusted)
	case EventExpense:
		return handleEvent(ctx, p.Event, j.Hooks.HandleExpense)
	case EventGoodsReceived:
		return handleEvent(ctx, p.Event, j.Hooks.HandleGoodsReceived)
	}
	return fmt.Errorf("%w: %q", errUnknownEvent, p.Type)
}

func handleEvent[E any](ctx context.Context, raw json.RawMessage, fn func(context.Context, E) error) error {
	var evt E
	if err := json.Unmarshal(raw, &evt); err != nil {
		return fmt.Errorf("%w: %w", errMalformedEvent, err)
	}
	return fn(ctx, evt)
}

func (j *LedgerEventJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerEvent))
	}
	return slog.Default().With(slog.String("job", TaskLedgerEvent))
}

func (j *LedgerEventJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
