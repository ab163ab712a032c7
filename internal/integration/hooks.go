// Package integration turns collaborator events into ledger postings.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/references"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Mapping modules and keys collaborators resolve their accounts through.
const (
	ModuleSales      = "SALES"
	ModulePurchasing = "PURCHASING"
	ModulePayroll    = "PAYROLL"
	ModuleInventory  = "INVENTORY"
	ModuleExpense    = "EXPENSE"

	KeyReceivable      = "invoice.receivable"
	KeyRevenue         = "invoice.revenue"
	KeyTaxPayable      = "invoice.tax"
	KeyCOGS            = "invoice.cogs"
	KeyInventory       = "inventory"
	KeyCash            = "cash"
	KeyPayable         = "bill.payable"
	KeyBillExpense     = "bill.expense"
	KeyGRIR            = "grir"
	KeySalaryExpense   = "payslip.salary"
	KeyWithholding     = "payslip.withholding"
	KeyAdjustmentGain  = "adjustment.gain"
	KeyAdjustmentLoss  = "adjustment.loss"
	KeyExpensePrefix   = "expense."
	KeyExpenseFallback = "expense.general"
)

// Ledger is the posting engine.
type Ledger interface {
	Post(ctx context.Context, draft journals.DraftEntry) (journals.Entry, error)
}

// AccountResolver maps (module, key) to a tenant's account.
type AccountResolver interface {
	Resolve(ctx context.Context, tenantID int64, module, key string) (int64, error)
}

// PeriodOpener lazily creates the month row an event posts into.
type PeriodOpener interface {
	OpenMonth(ctx context.Context, tenantID int64, date time.Time) (periods.FinancialMonth, error)
}

// Hooks wires domain events from operational modules into the general ledger.
// Replayed events are no-ops: every hook binds its entry exclusively to the
// source document.
type Hooks struct {
	ledger   Ledger
	accounts AccountResolver
	periods  PeriodOpener
	logger   *slog.Logger
	redate   bool
}

// NewHooks constructs integration hooks. periods may be nil.
func NewHooks(ledger Ledger, accounts AccountResolver, periods PeriodOpener, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, accounts: accounts, periods: periods, logger: logger}
}

// WithRedate makes hooks move events dated in a closed month to the first
// open date instead of failing.
func (h *Hooks) WithRedate(on bool) *Hooks {
	h.redate = on
	return h
}

func (h *Hooks) ready() bool {
	return h != nil && h.ledger != nil && h.accounts != nil
}

func (h *Hooks) resolve(ctx context.Context, tenantID int64, module string, keys ...string) ([]int64, error) {
	out := make([]int64, len(keys))
	for i, key := range keys {
		id, err := h.accounts.Resolve(ctx, tenantID, module, key)
		if err != nil {
			return nil, fmt.Errorf("integration: resolve %s/%s: %w", module, key, err)
		}
		out[i] = id
	}
	return out, nil
}

func (h *Hooks) post(ctx context.Context, draft journals.DraftEntry) error {
	for attempt := 0; ; attempt++ {
		err := h.postOnce(ctx, draft)
		var closed *shared.PeriodClosedError
		switch {
		case err == nil:
			return nil
		case errors.Is(err, shared.ErrDuplicatePosting):
			h.logger.Debug("event already posted",
				slog.Int64("tenant_id", draft.TenantID),
				slog.String("reference", draft.Reference.String()))
			return nil
		case h.redate && attempt == 0 && errors.As(err, &closed):
			h.logger.Info("event redated into open period",
				slog.Int64("tenant_id", draft.TenantID),
				slog.String("reference", draft.Reference.String()),
				slog.Time("from", draft.Date),
				slog.Time("to", closed.OpenFrom))
			draft.Date = closed.OpenFrom
		default:
			return err
		}
	}
}

func (h *Hooks) postOnce(ctx context.Context, draft journals.DraftEntry) error {
	if h.periods != nil {
		if _, err := h.periods.OpenMonth(ctx, draft.TenantID, draft.Date); err != nil {
			return err
		}
	}
	_, err := h.ledger.Post(ctx, draft)
	return err
}

func requireDate(name string, d time.Time) error {
	if d.IsZero() {
		return shared.Validation("date", "%s date required", name)
	}
	return nil
}

func nonNegative(field string, amounts ...decimal.Decimal) error {
	for _, a := range amounts {
		if a.IsNegative() {
			return shared.Validation(field, "must not be negative")
		}
	}
	return nil
}

func debit(account int64, amount decimal.Decimal) journals.DraftLine {
	return journals.DraftLine{AccountID: account, Debit: amount, Credit: decimal.Zero}
}

func credit(account int64, amount decimal.Decimal) journals.DraftLine {
	return journals.DraftLine{AccountID: account, Debit: decimal.Zero, Credit: amount}
}

func binding(kind references.Kind, sourceID int64, qualifier string) *references.Binding {
	b := references.Exclusive(kind, sourceID, qualifier)
	return &b
}

// HandleInvoicePosted books revenue and, for goods, the cost of sale. Each
// leg binds to the invoice under its own qualifier.
func (h *Hooks) HandleInvoicePosted(ctx context.Context, evt InvoicePosted) error {
	if !h.ready() {
		return nil
	}
	if err := requireDate("invoice", evt.Date); err != nil {
		return err
	}
	if err := nonNegative("amount", evt.Subtotal, evt.Tax, evt.COGS); err != nil {
		return err
	}
	gross := evt.Subtotal.Add(evt.Tax)
	if gross.IsPositive() {
		ids, err := h.resolve(ctx, evt.TenantID, ModuleSales, KeyReceivable)
		if err != nil {
			return err
		}
		lines := []journals.DraftLine{debit(ids[0], gross)}
		if evt.Subtotal.IsPositive() {
			ids, err := h.resolve(ctx, evt.TenantID, ModuleSales, KeyRevenue)
			if err != nil {
				return err
			}
			lines = append(lines, credit(ids[0], evt.Subtotal))
		}
		// Tax-free tenants need no tax mapping.
		if evt.Tax.IsPositive() {
			ids, err := h.resolve(ctx, evt.TenantID, ModuleSales, KeyTaxPayable)
			if err != nil {
				return err
			}
			lines = append(lines, credit(ids[0], evt.Tax))
		}
		if err := h.post(ctx, journals.DraftEntry{
			TenantID:    evt.TenantID,
			Date:        evt.Date,
			Description: fmt.Sprintf("Invoice %s", evt.Number),
			SourceTag:   "sales.invoice",
			CreatedBy:   evt.ActorID,
			Lines:       lines,
			Reference:   binding(references.KindInvoice, evt.InvoiceID, "revenue"),
		}); err != nil {
			return err
		}
	}
	if !evt.COGS.IsPositive() {
		return nil
	}
	ids, err := h.resolve(ctx, evt.TenantID, ModuleSales, KeyCOGS, KeyInventory)
	if err != nil {
		return err
	}
	return h.post(ctx, journals.DraftEntry{
		TenantID:    evt.TenantID,
		Date:        evt.Date,
		Description: fmt.Sprintf("Cost of sale %s", evt.Number),
		SourceTag:   "sales.cogs",
		CreatedBy:   evt.ActorID,
		Lines:       []journals.DraftLine{debit(ids[0], evt.COGS), credit(ids[1], evt.COGS)},
		Reference:   binding(references.KindInvoice, evt.InvoiceID, "cogs"),
	})
}

// HandleCustomerPayment books cash against receivables.
func (h *Hooks) HandleCustomerPayment(ctx context.Context, evt CustomerPaymentReceived) error {
	if !h.ready() {
		return nil
	}
	if err := requireDate("payment", evt.Date); err != nil {
		return err
	}
	if err := nonNegative("amount", evt.Amount); err != nil {
		return err
	}
	if evt.Amount.IsZero() {
		return nil
	}
	ids, err := h.resolve(ctx, evt.TenantID, ModuleSales, KeyCash, KeyReceivable)
	if err != nil {
		return err
	}
	return h.post(ctx, journals.DraftEntry{
		TenantID:    evt.TenantID,
		Date:        evt.Date,
		Description: fmt.Sprintf("Customer payment %s", evt.Number),
		SourceTag:   "sales.payment",
		CreatedBy:   evt.ActorID,
		Lines:       []journals.DraftLine{debit(ids[0], evt.Amount), credit(ids[1], evt.Amount)},
		Reference:   binding(references.KindCustomerPayment, evt.PaymentID, ""),
	})
}

// HandleSupplierBill books a supplier bill to payables.
func (h *Hooks) HandleSupplierBill(ctx context.Context, evt SupplierBillPosted) error {
	if !h.ready() {
		return nil
	}
	if err := requireDate("bill", evt.Date); err != nil {
		return err
	}
	if err := nonNegative("amount", evt.Amount); err != nil {
		return err
	}
	if evt.Amount.IsZero() {
		return nil
	}
	debitKey := KeyBillExpense
	if evt.AgainstReceipt {
		debitKey = KeyGRIR
	}
	ids, err := h.resolve(ctx, evt.TenantID, ModulePurchasing, debitKey, KeyPayable)
	if err != nil {
		return err
	}
	return h.post(ctx, journals.DraftEntry{
		TenantID:    evt.TenantID,
		Date:        evt.Date,
		Description: fmt.Sprintf("Supplier bill %s", evt.Number),
		SourceTag:   "purchasing.bill",
		CreatedBy:   evt.ActorID,
		Lines:       []journals.DraftLine{debit(ids[0], evt.Amount), credit(ids[1], evt.Amount)},
		Reference:   binding(references.KindSupplierBill, evt.BillID, ""),
	})
}

// HandleBillPaid books the settlement of payables.
func (h *Hooks) HandleBillPaid(ctx context.Context, evt BillPaid) error {
	if !h.ready() {
		return nil
	}
	if err := requireDate("bill payment", evt.Date); err != nil {
		return err
	}
	if err := nonNegative("amount", evt.Amount); err != nil {
		return err
	}
	if evt.Amount.IsZero() {
		return nil
	}
	ids, err := h.resolve(ctx, evt.TenantID, ModulePurchasing, KeyPayable, KeyCash)
	if err != nil {
		return err
	}
	return h.post(ctx, journals.DraftEntry{
		TenantID:    evt.TenantID,
		Date:        evt.Date,
		Description: fmt.Sprintf("Bill payment %s", evt.Number),
		SourceTag:   "purchasing.payment",
		CreatedBy:   evt.ActorID,
		Lines:       []journals.DraftLine{debit(ids[0], evt.Amount), credit(ids[1], evt.Amount)},
		Reference:   binding(references.KindBillPayment, evt.PaymentID, ""),
	})
}

// HandlePayslip books gross salary, withheld tax and the net cash paid.
func (h *Hooks) HandlePayslip(ctx context.Context, evt PayslipApproved) error {
	if !h.ready() {
		return nil
	}
	if err := requireDate("payslip", evt.Date); err != nil {
		return err
	}
	if err := nonNegative("amount", evt.Gross, evt.Withholding); err != nil {
		return err
	}
	if evt.Withholding.GreaterThan(evt.Gross) {
		return shared.Validation("withholding", "exceeds gross pay")
	}
	if evt.Gross.IsZero() {
		return nil
	}
	ids, err := h.resolve(ctx, evt.TenantID, ModulePayroll, KeySalaryExpense)
	if err != nil {
		return err
	}
	lines := []journals.DraftLine{debit(ids[0], evt.Gross)}
	if evt.Withholding.IsPositive() {
		ids, err := h.resolve(ctx, evt.TenantID, ModulePayroll, KeyWithholding)
		if err != nil {
			return err
		}
		lines = append(lines, credit(ids[0], evt.Withholding))
	}
	if net := evt.Gross.Sub(evt.Withholding); net.IsPositive() {
		ids, err := h.resolve(ctx, evt.TenantID, ModulePayroll, KeyCash)
		if err != nil {
			return err
		}
		lines = append(lines, credit(ids[0], net))
	}
	return h.post(ctx, journals.DraftEntry{
		TenantID:    evt.TenantID,
		Date:        evt.Date,
		Description: fmt.Sprintf("Payslip %s", evt.Employee),
		SourceTag:   "payroll.payslip",
		CreatedBy:   evt.ActorID,
		Lines:       lines,
		Reference:   binding(references.KindPayslip, evt.PayslipID, ""),
	})
}

// HandleStockAdjusted books an inventory count correction.
func (h *Hooks) HandleStockAdjusted(ctx context.Context, evt StockAdjusted) error {
	if !h.ready() {
		return nil
	}
	if err := requireDate("adjustment", evt.Date); err != nil {
		return err
	}
	if err := nonNegative("unit_cost", evt.UnitCost); err != nil {
		return err
	}
	amount := lineValue(evt.Qty.Abs(), evt.UnitCost)
	if amount.IsZero() {
		return nil
	}
	ids, err := h.resolve(ctx, evt.TenantID, ModuleInventory, KeyInventory, KeyAdjustmentGain, KeyAdjustmentLoss)
	if err != nil {
		return err
	}
	lines := []journals.DraftLine{debit(ids[0], amount), credit(ids[1], amount)}
	if evt.Qty.IsNegative() {
		lines = []journals.DraftLine{debit(ids[2], amount), credit(ids[0], amount)}
	}
	return h.post(ctx, journals.DraftEntry{
		TenantID:    evt.TenantID,
		Date:        evt.Date,
		Description: fmt.Sprintf("Inventory adjustment %s", evt.Code),
		SourceTag:   "inventory.adjustment",
		CreatedBy:   evt.ActorID,
		Lines:       lines,
		Reference:   binding(references.KindStockAdjustment, evt.AdjustmentID, fmt.Sprintf("product:%d", evt.ProductID)),
	})
}

// HandleExpense books an approved expense claim paid in cash. The expense
// account is mapped per category, falling back to the general key.
func (h *Hooks) HandleExpense(ctx context.Context, evt ExpenseApproved) error {
	if !h.ready() {
		return nil
	}
	if err := requireDate("expense", evt.Date); err != nil {
		return err
	}
	if err := nonNegative("amount", evt.Amount); err != nil {
		return err
	}
	if evt.Amount.IsZero() {
		return nil
	}
	expenseKey := KeyExpenseFallback
	if evt.Category != "" {
		expenseKey = KeyExpensePrefix + evt.Category
	}
	expenseAccount, err := h.accounts.Resolve(ctx, evt.TenantID, ModuleExpense, expenseKey)
	if errors.Is(err, shared.ErrNotFound) && expenseKey != KeyExpenseFallback {
		expenseAccount, err = h.accounts.Resolve(ctx, evt.TenantID, ModuleExpense, KeyExpenseFallback)
	}
	if err != nil {
		return fmt.Errorf("integration: resolve %s/%s: %w", ModuleExpense, expenseKey, err)
	}
	ids, err := h.resolve(ctx, evt.TenantID, ModuleExpense, KeyCash)
	if err != nil {
		return err
	}
	return h.post(ctx, journals.DraftEntry{
		TenantID:    evt.TenantID,
		Date:        evt.Date,
		Description: evt.Description,
		SourceTag:   "expense.claim",
		CreatedBy:   evt.ActorID,
		Lines:       []journals.DraftLine{debit(expenseAccount, evt.Amount), credit(ids[0], evt.Amount)},
		Reference:   binding(references.KindExpense, evt.ExpenseID, ""),
	})
}

// HandleGoodsReceived books received stock against GR/IR. A purchase order
// may have many receipts; each binds under its own qualifier.
func (h *Hooks) HandleGoodsReceived(ctx context.Context, evt GoodsReceived) error {
	if !h.ready() {
		return nil
	}
	if err := requireDate("receipt", evt.Date); err != nil {
		return err
	}
	total := decimal.Zero
	for _, l := range evt.Lines {
		if err := nonNegative("lines", l.Qty, l.UnitCost); err != nil {
			return err
		}
		total = total.Add(lineValue(l.Qty, l.UnitCost))
	}
	if total.IsZero() {
		return nil
	}
	ids, err := h.resolve(ctx, evt.TenantID, ModulePurchasing, KeyInventory, KeyGRIR)
	if err != nil {
		return err
	}
	return h.post(ctx, journals.DraftEntry{
		TenantID:    evt.TenantID,
		Date:        evt.Date,
		Description: fmt.Sprintf("Goods receipt %s", evt.Number),
		SourceTag:   "purchasing.receipt",
		CreatedBy:   evt.ActorID,
		Lines:       []journals.DraftLine{debit(ids[0], total), credit(ids[1], total)},
		Reference:   binding(references.KindPurchaseOrder, evt.PurchaseOrderID, fmt.Sprintf("receipt:%d", evt.ReceiptID)),
	})
}

func lineValue(qty, unitCost decimal.Decimal) decimal.Decimal {
	return qty.Mul(unitCost).Round(journals.AmountScale)
}
