package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
)

type recordingHooks struct {
	invoices []integration.InvoicePosted
	receipts []integration.GoodsReceived
	err      error
}

func (h *recordingHooks) HandleInvoicePosted(_ context.Context, evt integration.InvoicePosted) error {
	h.invoices = append(h.invoices, evt)
	return h.err
}

func (h *recordingHooks) HandleCustomerPayment(context.Context, integration.CustomerPaymentReceived) error {
	return h.err
}

func (h *recordingHooks) HandleSupplierBill(context.Context, integration.SupplierBillPosted) error {
	return h.err
}

func (h *recordingHooks) HandleBillPaid(context.Context, integration.BillPaid) error { return h.err }

func (h *recordingHooks) HandlePayslip(context.Context, integration.PayslipApproved) error {
	return h.err
}

func (h *recordingHooks) HandleStockAdjusted(context.Context, integration.StockAdjusted) error {
	return h.err
}

func (h *recordingHooks) HandleExpense(context.Context, integration.ExpenseApproved) error {
	return h.err
}

func (h *recordingHooks) HandleGoodsReceived(_ context.Context, evt integration.GoodsReceived) error {
	h.receipts = append(h.receipts, evt)
	return h.err
}

func TestLedgerEventRoundTripsToHook(t *testing.T) {
	evt := integration.InvoicePosted{
		TenantID:  4,
		InvoiceID: 77,
		Number:    "INV-77",
		Date:      time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC),
		Subtotal:  decimal.RequireFromString("1000.10"),
		Tax:       decimal.RequireFromString("110.01"),
	}
	task, err := NewLedgerEventTask(evt)
	require.NoError(t, err)
	require.Equal(t, TaskLedgerEvent, task.Type())

	hooks := &recordingHooks{}
	require.NoError(t, NewLedgerEventJob(hooks, nil, nil).Handle(context.Background(), task))
	require.Len(t, hooks.invoices, 1)
	got := hooks.invoices[0]
	require.Equal(t, int64(77), got.InvoiceID)
	require.True(t, got.Subtotal.Equal(evt.Subtotal))
	require.True(t, got.Date.Equal(evt.Date))

	receipt, err := NewLedgerEventTask(integration.GoodsReceived{
		TenantID: 4, PurchaseOrderID: 9, ReceiptID: 2,
		Lines: []integration.ReceiptLine{{Qty: decimal.NewFromInt(3), UnitCost: decimal.NewFromInt(5)}},
	})
	require.NoError(t, err)
	require.NoError(t, NewLedgerEventJob(hooks, nil, nil).Handle(context.Background(), receipt))
	require.Len(t, hooks.receipts, 1)
	require.Len(t, hooks.receipts[0].Lines, 1)
}

func TestLedgerEventRejectsUnsupportedType(t *testing.T) {
	_, err := NewLedgerEventTask(struct{}{})
	require.Error(t, err)

	hooks := &recordingHooks{}
	task := asynq.NewTask(TaskLedgerEvent, []byte(`{"type":"refund_issued","event":{}}`))
	err = NewLedgerEventJob(hooks, nil, nil).Handle(context.Background(), task)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestLedgerEventRetryPolicy(t *testing.T) {
	task, err := NewLedgerEventTask(integration.InvoicePosted{TenantID: 1, InvoiceID: 1})
	require.NoError(t, err)

	hooks := &recordingHooks{err: mappings.NotMapped(1, integration.ModuleSales, integration.KeyRevenue)}
	err = NewLedgerEventJob(hooks, nil, nil).Handle(context.Background(), task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))

	hooks.err = &shared.PeriodClosedError{TenantID: 1}
	err = NewLedgerEventJob(hooks, nil, nil).Handle(context.Background(), task)
	require.True(t, errors.Is(err, shared.ErrPeriodClosed))
	require.True(t, errors.Is(err, asynq.SkipRetry))

	hooks.err = errors.New("connection refused")
	err = NewLedgerEventJob(hooks, nil, nil).Handle(context.Background(), task)
	require.False(t, errors.Is(err, asynq.SkipRetry))
}
