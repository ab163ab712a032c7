package periods

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Reader is the slice of period state the posting path needs inside its transaction.
type Reader interface {
	// LockTenant takes the tenant's period lock, shared for postings and exclusive for closes.
	LockTenant(ctx context.Context, tenantID int64, exclusive bool) error
	MonthCovering(ctx context.Context, tenantID int64, date time.Time) (FinancialMonth, bool, error)
	// ClosedThrough returns the end date of the latest closed month.
	ClosedThrough(ctx context.Context, tenantID int64) (time.Time, bool, error)
}

// AssertOpen fails with PeriodClosed when date lies in a closed month of tenantID.
// A date without a month row is open unless it precedes the closed-through boundary.
// The shared lock it takes is held until the caller's transaction ends, so a
// concurrent close cannot slip between this check and the caller's commit.
func AssertOpen(ctx context.Context, r Reader, tenantID int64, date time.Time) error {
	if date.IsZero() {
		return shared.Validation("date", "required")
	}
	date = DateOf(date)
	if err := r.LockTenant(ctx, tenantID, false); err != nil {
		return err
	}
	month, found, err := r.MonthCovering(ctx, tenantID, date)
	if err != nil {
		return err
	}
	if found {
		if err := tenant.Check(tenantID, month.TenantID, "financial_month", month.ID); err != nil {
			return err
		}
	}
	through, anyClosed, err := r.ClosedThrough(ctx, tenantID)
	if err != nil {
		return err
	}
	rowClosed := found && month.Status == StatusClosed
	beforeBoundary := anyClosed && !date.After(through)
	if !rowClosed && !beforeBoundary {
		return nil
	}
	start, end := MonthBounds(date)
	openFrom := end.AddDate(0, 0, 1)
	if anyClosed && through.After(end) {
		openFrom = through.AddDate(0, 0, 1)
	}
	return &shared.PeriodClosedError{
		TenantID:    tenantID,
		Date:        date,
		PeriodStart: start,
		PeriodEnd:   end,
		OpenFrom:    openFrom,
	}
}
