// Package references links ledger entries to the business documents that caused them.
package references

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of source document types an entry may point at.
type Kind string

const (
	KindNone            Kind = "NONE"
	KindInvoice         Kind = "INVOICE"
	KindSalesOrder      Kind = "SALES_ORDER"
	KindPurchaseOrder   Kind = "PURCHASE_ORDER"
	KindPayslip         Kind = "PAYSLIP"
	KindStockAdjustment Kind = "STOCK_ADJUSTMENT"
	KindExpense         Kind = "EXPENSE"
	KindSupplierBill    Kind = "SUPPLIER_BILL"
	KindBillPayment     Kind = "BILL_PAYMENT"
	KindCustomerPayment Kind = "CUSTOMER_PAYMENT"
)

var kinds = []Kind{
	KindNone, KindInvoice, KindSalesOrder, KindPurchaseOrder, KindPayslip,
	KindStockAdjustment, KindExpense, KindSupplierBill, KindBillPayment, KindCustomerPayment,
}

// Kinds returns every valid kind.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Valid reports whether k belongs to the closed set.
func (k Kind) Valid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind normalises and validates a kind string.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(raw)))
	if k == "" {
		return KindNone, nil
	}
	if !k.Valid() {
		return "", fmt.Errorf("references: unknown kind %q", raw)
	}
	return k, nil
}

// Binding is the tagged pointer from an entry to its source document.
// Exclusive bindings admit at most one entry per (tenant, kind, source, qualifier).
type Binding struct {
	Kind      Kind
	SourceID  int64
	Qualifier string
	Exclusive bool
}

// None is the binding of manual entries.
func None() Binding {
	return Binding{Kind: KindNone}
}

// Exclusive builds a binding that allows one entry per source and qualifier.
func Exclusive(kind Kind, sourceID int64, qualifier string) Binding {
	return Binding{Kind: kind, SourceID: sourceID, Qualifier: qualifier, Exclusive: true}
}

// Shared builds a binding that only records provenance.
func Shared(kind Kind, sourceID int64) Binding {
	return Binding{Kind: kind, SourceID: sourceID}
}

// ReversalQualifierPrefix marks the binding of a reversing entry.
const ReversalQualifierPrefix = "reversal:"

// ReversalOf binds a reversing entry to the original's source, qualified by the original id.
func ReversalOf(entryID int64, original Binding) Binding {
	kind := original.Kind
	if kind == "" {
		kind = KindNone
	}
	source := original.SourceID
	if kind == KindNone {
		source = 0
	}
	return Binding{
		Kind:      kind,
		SourceID:  source,
		Qualifier: ReversalQualifierPrefix + strconv.FormatInt(entryID, 10),
		Exclusive: true,
	}
}

// IsReversal reports whether b was produced by ReversalOf.
func (b Binding) IsReversal() bool {
	return strings.HasPrefix(b.Qualifier, ReversalQualifierPrefix)
}

func (b Binding) String() string {
	s := fmt.Sprintf("%s#%d", b.Kind, b.SourceID)
	if b.Qualifier != "" {
		s += "/" + b.Qualifier
	}
	return s
}

// Token is a validated binding ready to be stored with an entry.
type Token struct {
	TenantID int64
	Binding  Binding
}
