package integration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/references"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
)

const tenantID = 1

type chart map[string]int64

func (c chart) Resolve(_ context.Context, tenantID int64, module, key string) (int64, error) {
	id, ok := c[module+"/"+key]
	if !ok {
		return 0, mappings.NotMapped(tenantID, module, key)
	}
	return id, nil
}

type fixture struct {
	store   *ledgertest.Store
	periods *periods.Service
	chart   chart
	hooks   *integration.Hooks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledgertest.New()
	add := func(code, name string, typ accounts.AccountType) int64 {
		return store.AddAccount(tenantID, code, name, typ).ID
	}
	cash := add("1000", "Cash", accounts.AccountTypeAsset)
	ar := add("1100", "Receivables", accounts.AccountTypeAsset)
	inventory := add("1300", "Inventory", accounts.AccountTypeAsset)
	ap := add("2000", "Payables", accounts.AccountTypeLiability)
	tax := add("2100", "Tax payable", accounts.AccountTypeLiability)
	withholding := add("2200", "Withholding", accounts.AccountTypeLiability)
	grir := add("2300", "GR/IR", accounts.AccountTypeLiability)
	revenue := add("4000", "Revenue", accounts.AccountTypeRevenue)
	gain := add("4900", "Stock gain", accounts.AccountTypeRevenue)
	cogs := add("5000", "COGS", accounts.AccountTypeExpense)
	salary := add("6000", "Salaries", accounts.AccountTypeExpense)
	general := add("6100", "General expense", accounts.AccountTypeExpense)
	travel := add("6200", "Travel", accounts.AccountTypeExpense)
	loss := add("6900", "Stock loss", accounts.AccountTypeExpense)

	c := chart{
		"SALES/" + integration.KeyReceivable:                 ar,
		"SALES/" + integration.KeyRevenue:                    revenue,
		"SALES/" + integration.KeyTaxPayable:                 tax,
		"SALES/" + integration.KeyCOGS:                       cogs,
		"SALES/" + integration.KeyInventory:                  inventory,
		"SALES/" + integration.KeyCash:                       cash,
		"PURCHASING/" + integration.KeyPayable:               ap,
		"PURCHASING/" + integration.KeyGRIR:                  grir,
		"PURCHASING/" + integration.KeyInventory:             inventory,
		"PURCHASING/" + integration.KeyCash:                  cash,
		"PAYROLL/" + integration.KeySalaryExpense:            salary,
		"PAYROLL/" + integration.KeyWithholding:              withholding,
		"PAYROLL/" + integration.KeyCash:                     cash,
		"INVENTORY/" + integration.KeyInventory:              inventory,
		"INVENTORY/" + integration.KeyAdjustmentGain:         gain,
		"INVENTORY/" + integration.KeyAdjustmentLoss:         loss,
		"EXPENSE/" + integration.KeyExpenseFallback:          general,
		"EXPENSE/" + integration.KeyExpensePrefix + "travel": travel,
		"EXPENSE/" + integration.KeyCash:                     cash,
	}

	periodSvc := periods.NewService(store.Periods(), nil, nil, nil, nil)
	periodSvc.WithNow(func() time.Time { return day(2024, time.June, 15) })
	engine := journals.NewService(store.Journals(), nil, nil, nil, nil)
	return &fixture{
		store:   store,
		periods: periodSvc,
		chart:   c,
		hooks:   integration.NewHooks(engine, c, periodSvc, nil),
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireBalanced(t *testing.T, e journals.Entry) {
	t.Helper()
	debit, credit := e.Totals()
	require.True(t, debit.Equal(credit), "entry %d debit %s credit %s", e.ID, debit, credit)
	require.True(t, debit.Equal(e.Total))
}

func TestInvoiceBooksRevenueAndCostOnceEach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	evt := integration.InvoicePosted{
		TenantID: tenantID, InvoiceID: 77, Number: "INV-77", Date: day(2024, time.May, 3),
		Subtotal: amt("1000"), Tax: amt("110"), COGS: amt("600"),
	}
	require.NoError(t, f.hooks.HandleInvoicePosted(ctx, evt))
	require.NoError(t, f.hooks.HandleInvoicePosted(ctx, evt))

	entries := f.store.Entries(tenantID)
	require.Len(t, entries, 2)
	require.Equal(t, "revenue", entries[0].Reference.Qualifier)
	require.Equal(t, "cogs", entries[1].Reference.Qualifier)
	require.Len(t, entries[0].Lines, 3)
	require.True(t, entries[0].Total.Equal(amt("1110")))
	for _, e := range entries {
		require.Equal(t, references.KindInvoice, e.Reference.Kind)
		require.Equal(t, int64(77), e.Reference.SourceID)
		requireBalanced(t, e)
	}
}

func TestClosedPeriodFailsUnlessRedating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.hooks.HandleCustomerPayment(ctx, integration.CustomerPaymentReceived{
		TenantID: tenantID, PaymentID: 1, Number: "RCPT-1", Date: day(2024, time.March, 5), Amount: amt("50"),
	}))
	_, err := f.periods.CloseMonth(ctx, periods.CloseInput{TenantID: tenantID, MonthEnd: day(2024, time.March, 31)})
	require.NoError(t, err)

	late := integration.ExpenseApproved{
		TenantID: tenantID, ExpenseID: 9, Category: "travel", Description: "Taxi",
		Date: day(2024, time.March, 20), Amount: amt("12.5"),
	}
	err = f.hooks.HandleExpense(ctx, late)
	require.True(t, errors.Is(err, shared.ErrPeriodClosed))
	require.Equal(t, 1, f.store.EntryCount(tenantID))

	require.NoError(t, f.hooks.WithRedate(true).HandleExpense(ctx, late))
	entries := f.store.Entries(tenantID)
	require.Len(t, entries, 2)
	require.Equal(t, day(2024, time.April, 1), entries[1].Date)
	require.Equal(t, f.chart["EXPENSE/"+integration.KeyExpensePrefix+"travel"], entries[1].Lines[0].AccountID)
}

func TestExpenseFallsBackToGeneralAccount(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hooks.HandleExpense(context.Background(), integration.ExpenseApproved{
		TenantID: tenantID, ExpenseID: 3, Category: "meals", Date: day(2024, time.May, 9), Amount: amt("20"),
	}))
	entries := f.store.Entries(tenantID)
	require.Len(t, entries, 1)
	require.Equal(t, f.chart["EXPENSE/"+integration.KeyExpenseFallback], entries[0].Lines[0].AccountID)
}

func TestNegativeStockAdjustmentBooksLoss(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hooks.HandleStockAdjusted(context.Background(), integration.StockAdjusted{
		TenantID: tenantID, AdjustmentID: 4, Code: "ADJ-4", ProductID: 8,
		Date: day(2024, time.May, 2), Qty: amt("-3"), UnitCost: amt("2.5"),
	}))
	entries := f.store.Entries(tenantID)
	require.Len(t, entries, 1)
	e := entries[0]
	requireBalanced(t, e)
	require.True(t, e.Total.Equal(amt("7.5")))
	require.Equal(t, f.chart["INVENTORY/"+integration.KeyAdjustmentLoss], e.Lines[0].AccountID)
	require.Equal(t, f.chart["INVENTORY/"+integration.KeyInventory], e.Lines[1].AccountID)
	require.Equal(t, "product:8", e.Reference.Qualifier)
}

func TestPayslipSplitsNetAndWithholding(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hooks.HandlePayslip(context.Background(), integration.PayslipApproved{
		TenantID: tenantID, PayslipID: 5, Employee: "E-5", Date: day(2024, time.May, 31),
		Gross: amt("3000"), Withholding: amt("450"),
	}))
	e := f.store.Entries(tenantID)[0]
	requireBalanced(t, e)
	require.Len(t, e.Lines, 3)
	require.True(t, e.Lines[2].Credit.Equal(amt("2550")))

	err := f.hooks.HandlePayslip(context.Background(), integration.PayslipApproved{
		TenantID: tenantID, PayslipID: 6, Date: day(2024, time.May, 31), Gross: amt("10"), Withholding: amt("11"),
	})
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestReceiptsOfOnePurchaseOrderPostSeparately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for receipt := int64(1); receipt <= 2; receipt++ {
		require.NoError(t, f.hooks.HandleGoodsReceived(ctx, integration.GoodsReceived{
			TenantID: tenantID, PurchaseOrderID: 40, ReceiptID: receipt, Number: "GRN",
			Date:  day(2024, time.May, 10),
			Lines: []integration.ReceiptLine{{Qty: amt("2"), UnitCost: amt("10")}, {Qty: amt("1"), UnitCost: amt("5")}},
		}))
	}
	require.NoError(t, f.hooks.HandleSupplierBill(ctx, integration.SupplierBillPosted{
		TenantID: tenantID, BillID: 11, Number: "BILL-11", Date: day(2024, time.May, 12), Amount: amt("50"), AgainstReceipt: true,
	}))
	require.NoError(t, f.hooks.HandleBillPaid(ctx, integration.BillPaid{
		TenantID: tenantID, PaymentID: 12, Number: "PAY-12", Date: day(2024, time.May, 20), Amount: amt("50"),
	}))

	entries := f.store.Entries(tenantID)
	require.Len(t, entries, 4)
	require.True(t, entries[0].Total.Equal(amt("25")))
	require.NotEqual(t, entries[0].Reference.Qualifier, entries[1].Reference.Qualifier)
	for _, e := range entries {
		requireBalanced(t, e)
	}
}

func TestMissingMappingPostsNothing(t *testing.T) {
	f := newFixture(t)
	delete(f.chart, "SALES/"+integration.KeyTaxPayable)
	err := f.hooks.HandleInvoicePosted(context.Background(), integration.InvoicePosted{
		TenantID: tenantID, InvoiceID: 1, Date: day(2024, time.May, 1), Subtotal: amt("10"), Tax: amt("1.1"),
	})
	require.True(t, errors.Is(err, shared.ErrNotFound))
	require.Zero(t, f.store.EntryCount(tenantID))
}

func TestTaxAndWithholdingMappingsOptionalWhenZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	delete(f.chart, "SALES/"+integration.KeyTaxPayable)
	delete(f.chart, "PAYROLL/"+integration.KeyWithholding)

	require.NoError(t, f.hooks.HandleInvoicePosted(ctx, integration.InvoicePosted{
		TenantID: tenantID, InvoiceID: 2, Number: "INV-2", Date: day(2024, time.May, 3), Subtotal: amt("80"),
	}))
	require.NoError(t, f.hooks.HandlePayslip(ctx, integration.PayslipApproved{
		TenantID: tenantID, PayslipID: 9, Employee: "E-9", Date: day(2024, time.May, 31), Gross: amt("1200"),
	}))

	entries := f.store.Entries(tenantID)
	require.Len(t, entries, 2)
	for _, e := range entries {
		requireBalanced(t, e)
		require.Len(t, e.Lines, 2)
	}
	require.True(t, entries[0].Total.Equal(amt("80")))
	require.Equal(t, f.chart["PAYROLL/"+integration.KeyCash], entries[1].Lines[1].AccountID)
}
