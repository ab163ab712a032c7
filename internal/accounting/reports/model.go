package reports

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// AccountBalance models a general ledger account with aggregated movements.
type AccountBalance struct {
	AccountID int64                `json:"account_id"`
	Code      string               `json:"code"`
	Name      string               `json:"name"`
	Type      accounts.AccountType `json:"type"`
	Opening   decimal.Decimal      `json:"opening"`
	Debit     decimal.Decimal      `json:"debit"`
	Credit    decimal.Decimal      `json:"credit"`
}

// Side returns the normal balance side of the account.
func (a AccountBalance) Side() accounts.Side {
	return a.Type.NormalSide()
}

// Net is opening + debit - credit, debit positive regardless of the account type.
func (a AccountBalance) Net() decimal.Decimal {
	return a.Opening.Add(a.Debit).Sub(a.Credit)
}

// Closing is the balance signed by the normal side: positive when the account
// carries a balance on the side it normally accumulates.
func (a AccountBalance) Closing() decimal.Decimal {
	if a.Side() == accounts.SideDebit {
		return a.Net()
	}
	return a.Net().Neg()
}

// GroupKey returns a key used for grouping trial balance rows.
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// Balance is the answer to a single-account balance query.
type Balance struct {
	Account accounts.Account `json:"account"`
	AsOf    time.Time        `json:"as_of"`
	Debit   decimal.Decimal  `json:"debit"`
	Credit  decimal.Decimal  `json:"credit"`
	Balance decimal.Decimal  `json:"balance"`
	Side    accounts.Side    `json:"side"`
}

// LineActivity is one posted line as seen from its account.
type LineActivity struct {
	LineID       int64           `json:"line_id"`
	EntryID      int64           `json:"entry_id"`
	Date         time.Time       `json:"date"`
	Description  string          `json:"description"`
	SourceTag    string          `json:"source_tag"`
	Memo         string          `json:"memo,omitempty"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	IsReconciled bool            `json:"is_reconciled"`
	ReconciledAt *time.Time      `json:"reconciled_at,omitempty"`
}

// StatementLine adds the running balance after the line.
type StatementLine struct {
	LineActivity
	Running decimal.Decimal `json:"running"`
}

// Statement lists an account's lines over a date range.
type Statement struct {
	Account accounts.Account `json:"account"`
	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
	Opening decimal.Decimal  `json:"opening"`
	Lines   []StatementLine  `json:"lines"`
	Closing decimal.Decimal  `json:"closing"`
}

// ReconciliationStatus summarises bank matching progress of an account.
type ReconciliationStatus struct {
	Account           accounts.Account `json:"account"`
	AsOf              time.Time        `json:"as_of"`
	ReconciledCount   int              `json:"reconciled_count"`
	ReconciledTotal   decimal.Decimal  `json:"reconciled_total"`
	UnreconciledCount int              `json:"unreconciled_count"`
	UnreconciledTotal decimal.Decimal  `json:"unreconciled_total"`
	Unreconciled      []LineActivity   `json:"unreconciled"`
}
