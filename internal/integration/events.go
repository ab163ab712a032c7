package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoicePosted is raised by sales when a customer invoice is issued.
// COGS is the inventory cost of the goods shipped; zero for services.
type InvoicePosted struct {
	TenantID  int64           `json:"tenant_id"`
	ActorID   int64           `json:"actor_id"`
	InvoiceID int64           `json:"invoice_id"`
	Number    string          `json:"number"`
	Date      time.Time       `json:"date"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	COGS      decimal.Decimal `json:"cogs"`
}

// CustomerPaymentReceived is raised when cash is applied to receivables.
type CustomerPaymentReceived struct {
	TenantID  int64           `json:"tenant_id"`
	ActorID   int64           `json:"actor_id"`
	PaymentID int64           `json:"payment_id"`
	Number    string          `json:"number"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
}

// SupplierBillPosted is raised by purchasing when a bill is approved.
// Bills matched to a goods receipt clear GR/IR instead of hitting expense.
type SupplierBillPosted struct {
	TenantID       int64           `json:"tenant_id"`
	ActorID        int64           `json:"actor_id"`
	BillID         int64           `json:"bill_id"`
	Number         string          `json:"number"`
	Date           time.Time       `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	AgainstReceipt bool            `json:"against_receipt"`
}

// BillPaid is raised when a supplier bill is paid.
type BillPaid struct {
	TenantID  int64           `json:"tenant_id"`
	ActorID   int64           `json:"actor_id"`
	PaymentID int64           `json:"payment_id"`
	Number    string          `json:"number"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
}

// PayslipApproved is raised by payroll.
type PayslipApproved struct {
	TenantID    int64           `json:"tenant_id"`
	ActorID     int64           `json:"actor_id"`
	PayslipID   int64           `json:"payslip_id"`
	Employee    string          `json:"employee"`
	Date        time.Time       `json:"date"`
	Gross       decimal.Decimal `json:"gross"`
	Withholding decimal.Decimal `json:"withholding"`
}

// StockAdjusted is raised by inventory for count corrections. A positive
// quantity is a gain.
type StockAdjusted struct {
	TenantID     int64           `json:"tenant_id"`
	ActorID      int64           `json:"actor_id"`
	AdjustmentID int64           `json:"adjustment_id"`
	Code         string          `json:"code"`
	ProductID    int64           `json:"product_id"`
	Date         time.Time       `json:"date"`
	Qty          decimal.Decimal `json:"qty"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
}

// ExpenseApproved is raised when an employee expense claim is approved and paid.
type ExpenseApproved struct {
	TenantID    int64           `json:"tenant_id"`
	ActorID     int64           `json:"actor_id"`
	ExpenseID   int64           `json:"expense_id"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
}

// ReceiptLine is one received item.
type ReceiptLine struct {
	Qty      decimal.Decimal `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// GoodsReceived is raised when stock is received against a purchase order.
type GoodsReceived struct {
	TenantID        int64         `json:"tenant_id"`
	ActorID         int64         `json:"actor_id"`
	PurchaseOrderID int64         `json:"purchase_order_id"`
	ReceiptID       int64         `json:"receipt_id"`
	Number          string        `json:"number"`
	Date            time.Time     `json:"date"`
	Lines           []ReceiptLine `json:"lines"`
}
