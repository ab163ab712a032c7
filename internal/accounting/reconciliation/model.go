// Package reconciliation matches imported bank statement lines against posted
// ledger lines. It only ever flips match and reconciliation flags.
package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatementLine is one imported bank statement row, in book perspective:
// a debit increases the bank asset.
type StatementLine struct {
	ID           int64
	TenantID     int64
	AccountID    int64
	BatchID      uuid.UUID
	Date         time.Time
	Description  string
	Reference    string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	IsMatched    bool
	LedgerLineID *int64
	MatchedAt    *time.Time
	CreatedAt    time.Time
}

// Amount returns the nonzero side.
func (l StatementLine) Amount() decimal.Decimal {
	return l.Debit.Add(l.Credit)
}

// IsDebit reports whether the line increases the bank balance.
func (l StatementLine) IsDebit() bool {
	return l.Debit.IsPositive()
}

// LedgerLine is the slice of a posted line the matcher reads.
type LedgerLine struct {
	ID           int64
	TenantID     int64
	EntryID      int64
	EntryDate    time.Time
	AccountID    int64
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	IsReconciled bool
	ReconciledAt *time.Time
}

// Amount returns the nonzero side.
func (l LedgerLine) Amount() decimal.Decimal {
	return l.Debit.Add(l.Credit)
}

// IsDebit reports whether the line is a debit.
func (l LedgerLine) IsDebit() bool {
	return l.Debit.IsPositive()
}

// ImportLine is one row handed in by the statement importer.
type ImportLine struct {
	Date        time.Time
	Description string
	Reference   string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// ImportInput groups a statement upload for one bank account.
type ImportInput struct {
	TenantID  int64
	AccountID int64
	ActorID   int64
	Lines     []ImportLine
}

// ImportResult identifies the stored batch.
type ImportResult struct {
	BatchID uuid.UUID
	Lines   []StatementLine
}

// MatchInput links a statement line to a ledger line.
type MatchInput struct {
	TenantID        int64
	StatementLineID int64
	LedgerLineID    int64
	ActorID         int64
}

// UnmatchInput clears the link of a statement line.
type UnmatchInput struct {
	TenantID        int64
	StatementLineID int64
	ActorID         int64
}

// MatchResult reports both sides after a match or unmatch.
type MatchResult struct {
	Statement StatementLine
	Ledger    LedgerLine
}

// ListFilter narrows statement line listings.
type ListFilter struct {
	TenantID  int64
	AccountID int64
	Matched   *bool
	Limit     int
	Offset    int
}
