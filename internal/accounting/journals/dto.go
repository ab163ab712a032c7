package journals

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/references"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// AmountScale is the number of fractional digits the ledger stores.
const AmountScale = 4

// DraftLine is one requested posting line.
type DraftLine struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// DraftEntry is what collaborators hand to the engine. The engine derives the total.
type DraftEntry struct {
	TenantID    int64
	Date        time.Time
	Description string
	SourceTag   string
	CreatedBy   int64
	Lines       []DraftLine
	Reference   *references.Binding
}

// Validate performs the structural line checks that need no database access.
func (d DraftEntry) Validate() error {
	if err := tenant.Require(d.TenantID); err != nil {
		return err
	}
	if d.Date.IsZero() {
		return shared.Validation("date", "required")
	}
	if strings.TrimSpace(d.SourceTag) == "" {
		return shared.Validation("source_tag", "required")
	}
	if len(d.SourceTag) > 64 {
		return shared.Validation("source_tag", "longer than 64 characters")
	}
	if len(d.Description) > 255 {
		return shared.Validation("description", "longer than 255 characters")
	}
	if len(d.Lines) == 0 {
		return shared.Validation("lines", "at least one line required")
	}
	for i, line := range d.Lines {
		if err := validateLine(i, line); err != nil {
			return err
		}
	}
	return nil
}

func validateLine(i int, line DraftLine) error {
	field := fmt.Sprintf("lines[%d]", i)
	if line.AccountID <= 0 {
		return shared.Validation(field+".account_id", "required")
	}
	if line.Debit.IsNegative() || line.Credit.IsNegative() {
		return shared.Validation(field, "amounts must not be negative")
	}
	if line.Debit.IsZero() == line.Credit.IsZero() {
		return shared.Validation(field, "exactly one of debit or credit must be nonzero")
	}
	for _, amount := range []decimal.Decimal{line.Debit, line.Credit} {
		if !amount.Equal(amount.Truncate(AmountScale)) {
			return shared.Validation(field, "amount %s exceeds %d decimal places", amount.String(), AmountScale)
		}
	}
	if len(line.Memo) > 255 {
		return shared.Validation(field+".memo", "longer than 255 characters")
	}
	return nil
}

// Sums returns the debit and credit totals of the draft.
func (d DraftEntry) Sums() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range d.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// ReverseInput requests a reversing entry for EntryID dated Date.
type ReverseInput struct {
	TenantID    int64
	EntryID     int64
	Date        time.Time
	ActorID     int64
	Description string
}

// Validate checks the request shape.
func (in ReverseInput) Validate() error {
	if err := tenant.Require(in.TenantID); err != nil {
		return err
	}
	if in.EntryID <= 0 {
		return shared.Validation("entry_id", "required")
	}
	if in.Date.IsZero() {
		return shared.Validation("date", "required")
	}
	return nil
}

// swapLines mirrors every line of an entry.
func swapLines(lines []Line) []DraftLine {
	out := make([]DraftLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, DraftLine{
			AccountID: l.AccountID,
			Debit:     l.Credit,
			Credit:    l.Debit,
			Memo:      l.Memo,
		})
	}
	return out
}

func defaultReversalDescription(desc string, original Entry) string {
	if strings.TrimSpace(desc) != "" {
		return desc
	}
	return fmt.Sprintf("Reversal of entry #%d", original.ID)
}
