package journals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/references"
)

// Status enumerates entry states. Entries exist only once posted.
type Status string

const StatusPosted Status = "POSTED"

// Entry is a posted, balanced journal entry.
type Entry struct {
	ID          int64
	TenantID    int64
	Date        time.Time
	Description string
	SourceTag   string
	Total       decimal.Decimal
	Status      Status
	CreatedBy   int64
	Reference   references.Binding
	ReversalOf  *int64
	Digest      string
	PostedAt    time.Time
	Lines       []Line
}

// Totals sums the debit and credit columns of the loaded lines.
func (e Entry) Totals() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Line is one debit or credit of an entry.
type Line struct {
	ID           int64
	EntryID      int64
	TenantID     int64
	LineNo       int
	AccountID    int64
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Memo         string
	IsReconciled bool
	ReconciledAt *time.Time
}

// ListFilter narrows entry listings. TenantID is mandatory.
type ListFilter struct {
	TenantID  int64
	From      *time.Time
	To        *time.Time
	SourceTag string
	Kind      references.Kind
	SourceID  int64
	Limit     int
	Offset    int
}
