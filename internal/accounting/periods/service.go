package periods

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	appshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// TxRepository exposes period state inside a transaction.
type TxRepository interface {
	Reader
	// LockMonths row-locks every month of the tenant for update.
	LockMonths(ctx context.Context, tenantID int64) ([]FinancialMonth, error)
	// EarliestActivity returns the date of the tenant's oldest entry.
	EarliestActivity(ctx context.Context, tenantID int64) (time.Time, bool, error)
	EnsureMonth(ctx context.Context, tenantID int64, start, end time.Time) (FinancialMonth, error)
	MarkClosed(ctx context.Context, tenantID int64, start, end time.Time, actorID int64, at time.Time) (FinancialMonth, error)
	MonthActivity(ctx context.Context, tenantID int64, start, end time.Time) (MonthActivity, error)
}

// Repository runs period transactions and listings.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, tenantID int64) ([]FinancialMonth, error)
}

// AuditPort records period events.
type AuditPort interface {
	Record(ctx context.Context, log appshared.AuditLog) error
}

// Invalidator drops cached projections of a tenant.
type Invalidator interface {
	Bump(ctx context.Context, tenantID int64) error
}

// Recorder counts close outcomes.
type Recorder interface {
	ObserveClose(outcome string)
}

// Service owns the month lifecycle of every tenant.
type Service struct {
	repo        Repository
	logger      *slog.Logger
	audit       AuditPort
	invalidator Invalidator
	metrics     Recorder
	now         func() time.Time
}

// NewService constructs the period service. audit, invalidator and metrics are optional.
func NewService(repo Repository, logger *slog.Logger, audit AuditPort, invalidator Invalidator, metrics Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, audit: audit, invalidator: invalidator, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns the tenant's month rows, oldest first.
func (s *Service) List(ctx context.Context, tenantID int64) ([]FinancialMonth, error) {
	if err := tenant.Require(tenantID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID)
}

// AssertOpen checks date against the tenant's closed months in its own transaction.
func (s *Service) AssertOpen(ctx context.Context, tenantID int64, date time.Time) error {
	if err := tenant.Require(tenantID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return AssertOpen(ctx, tx, tenantID, date)
	})
}

// Current returns the first date that still accepts postings.
func (s *Service) Current(ctx context.Context, tenantID int64) (time.Time, error) {
	if err := tenant.Require(tenantID); err != nil {
		return time.Time{}, err
	}
	var from time.Time
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		through, closed, err := tx.ClosedThrough(ctx, tenantID)
		if err != nil {
			return err
		}
		if closed {
			from = through.AddDate(0, 0, 1)
			return nil
		}
		earliest, ok, err := tx.EarliestActivity(ctx, tenantID)
		if err != nil {
			return err
		}
		if ok {
			from, _ = MonthBounds(earliest)
			return nil
		}
		from, _ = MonthBounds(s.now())
		return nil
	})
	return from, err
}

// OpenMonth lazily creates the OPEN row for the month containing date.
func (s *Service) OpenMonth(ctx context.Context, tenantID int64, date time.Time) (FinancialMonth, error) {
	if err := tenant.Require(tenantID); err != nil {
		return FinancialMonth{}, err
	}
	start, end := MonthBounds(date)
	var month FinancialMonth
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := AssertOpen(ctx, tx, tenantID, start); err != nil {
			return err
		}
		var err error
		month, err = tx.EnsureMonth(ctx, tenantID, start, end)
		return err
	})
	return month, err
}

// CloseMonth closes the month containing in.MonthEnd. Months close in calendar
// order and the close excludes concurrent postings for the tenant.
func (s *Service) CloseMonth(ctx context.Context, in CloseInput) (CloseSnapshot, error) {
	snap, err := s.closeMonth(ctx, in)
	outcome := "closed"
	if err != nil {
		outcome = string(shared.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveClose(outcome)
	}
	if err != nil {
		return CloseSnapshot{}, err
	}

	s.logger.Info("financial month closed",
		slog.Int64("tenant_id", in.TenantID),
		slog.String("month", snap.Month.StartDate.Format("2006-01")),
		slog.Int64("entries", snap.EntryCount),
		slog.String("total_debit", snap.TotalDebit.String()))
	if s.invalidator != nil {
		if err := s.invalidator.Bump(ctx, in.TenantID); err != nil {
			s.logger.Warn("invalidate report cache", slog.Int64("tenant_id", in.TenantID), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, appshared.AuditLog{
			TenantID: in.TenantID,
			ActorID:  in.ActorID,
			Action:   "accounting.period.close",
			Entity:   "financial_month",
			EntityID: strconv.FormatInt(snap.Month.ID, 10),
			Meta: map[string]any{
				"month":        snap.Month.StartDate.Format("2006-01"),
				"entry_count":  snap.EntryCount,
				"total_debit":  snap.TotalDebit.String(),
				"total_credit": snap.TotalCredit.String(),
			},
			At: s.now(),
		}); err != nil {
			s.logger.Warn("audit period close", slog.Int64("tenant_id", in.TenantID), slog.Any("error", err))
		}
	}
	return snap, nil
}

func (s *Service) closeMonth(ctx context.Context, in CloseInput) (CloseSnapshot, error) {
	if err := tenant.Require(in.TenantID); err != nil {
		return CloseSnapshot{}, err
	}
	if in.MonthEnd.IsZero() {
		return CloseSnapshot{}, shared.Validation("month_end", "required")
	}
	start, end := MonthBounds(in.MonthEnd)
	if !DateOf(s.now()).After(end) {
		return CloseSnapshot{}, shared.Validation("month_end", "month %s has not ended", start.Format("2006-01"))
	}

	var snap CloseSnapshot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTenant(ctx, in.TenantID, true); err != nil {
			return err
		}
		months, err := tx.LockMonths(ctx, in.TenantID)
		if err != nil {
			return err
		}
		through, anyClosed := closedThrough(months)
		if anyClosed && !end.After(through) {
			return &shared.Error{
				Kind:    shared.KindPeriodAlreadyClosed,
				Field:   "month_end",
				Message: fmt.Sprintf("%s is already closed (closed through %s)", start.Format("2006-01"), through.Format(time.DateOnly)),
			}
		}
		expected, err := s.nextToClose(ctx, tx, in.TenantID, months, through, anyClosed, start)
		if err != nil {
			return err
		}
		if start.After(expected) {
			return &shared.OutOfOrderCloseError{TenantID: in.TenantID, Month: start, PendingFrom: expected}
		}
		// Entries are written only by committed posting transactions, so
		// every entry dated inside the month is already posted here.
		month, err := tx.MarkClosed(ctx, in.TenantID, start, end, in.ActorID, s.now())
		if err != nil {
			return err
		}
		activity, err := tx.MonthActivity(ctx, in.TenantID, start, end)
		if err != nil {
			return err
		}
		snap = newSnapshot(month, activity)
		return nil
	})
	return snap, err
}

// nextToClose returns the start of the month that must be closed next.
func (s *Service) nextToClose(ctx context.Context, tx TxRepository, tenantID int64, months []FinancialMonth, through time.Time, anyClosed bool, requested time.Time) (time.Time, error) {
	if anyClosed {
		return through.AddDate(0, 0, 1), nil
	}
	expected := requested
	for _, m := range months {
		if m.Status == StatusOpen && m.StartDate.Before(expected) {
			expected = m.StartDate
		}
	}
	earliest, ok, err := tx.EarliestActivity(ctx, tenantID)
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		if first, _ := MonthBounds(earliest); first.Before(expected) {
			expected = first
		}
	}
	return expected, nil
}

func closedThrough(months []FinancialMonth) (time.Time, bool) {
	var through time.Time
	found := false
	for _, m := range months {
		if m.Status != StatusClosed {
			continue
		}
		if !found || m.EndDate.After(through) {
			through = m.EndDate
			found = true
		}
	}
	return through, found
}
