package periods

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates financial month states. Closing is one-way.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// FinancialMonth is one calendar month of a tenant's books.
type FinancialMonth struct {
	ID        int64
	TenantID  int64
	Year      int
	Month     time.Month
	StartDate time.Time
	EndDate   time.Time
	Status    Status
	ClosedBy  *int64
	ClosedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Covers reports whether date falls inside the month.
func (m FinancialMonth) Covers(date time.Time) bool {
	d := DateOf(date)
	return !d.Before(m.StartDate) && !d.After(m.EndDate)
}

// DateOf truncates t to a UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthBounds returns the first and last calendar day of the month containing date.
func MonthBounds(date time.Time) (time.Time, time.Time) {
	y, m, _ := date.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// CloseInput requests the close of the month containing MonthEnd.
type CloseInput struct {
	TenantID int64
	MonthEnd time.Time
	ActorID  int64
}

// AccountActivity sums one account's lines within a month.
type AccountActivity struct {
	AccountID int64
	Code      string
	Name      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// MonthActivity aggregates the entries dated inside a month.
type MonthActivity struct {
	EntryCount int64
	Accounts   []AccountActivity
}

// CloseSnapshot captures the totals of a month at the moment it became immutable.
type CloseSnapshot struct {
	Month       FinancialMonth
	EntryCount  int64
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Accounts    []AccountActivity
}

func newSnapshot(month FinancialMonth, activity MonthActivity) CloseSnapshot {
	snap := CloseSnapshot{
		Month:       month,
		EntryCount:  activity.EntryCount,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		Accounts:    activity.Accounts,
	}
	for _, a := range activity.Accounts {
		snap.TotalDebit = snap.TotalDebit.Add(a.Debit)
		snap.TotalCredit = snap.TotalCredit.Add(a.Credit)
	}
	return snap
}
