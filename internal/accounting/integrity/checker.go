// Package integrity re-derives the ledger invariants from stored rows.
package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

// AnomalyKind classifies integrity failures.
type AnomalyKind string

const (
	AnomalyUnbalancedEntry AnomalyKind = "ENTRY_UNBALANCED"
	AnomalyTotalMismatch   AnomalyKind = "TOTAL_MISMATCH"
	AnomalyDigestMismatch  AnomalyKind = "DIGEST_MISMATCH"
	AnomalyMalformedLine   AnomalyKind = "MALFORMED_LINE"
	AnomalyTrialBalance    AnomalyKind = "TRIAL_BALANCE"
)

// Anomaly is one violated invariant.
type Anomaly struct {
	TenantID int64       `json:"tenant_id"`
	EntryID  int64       `json:"entry_id,omitempty"`
	Kind     AnomalyKind `json:"kind"`
	Detail   string      `json:"detail"`
}

// Report is the outcome of checking one tenant.
type Report struct {
	TenantID  int64     `json:"tenant_id"`
	Entries   int       `json:"entries"`
	Anomalies []Anomaly `json:"anomalies"`
	CheckedAt time.Time `json:"checked_at"`
}

// OK reports whether no anomaly was found.
func (r Report) OK() bool { return len(r.Anomalies) == 0 }

// Repository reads what the checker verifies.
type Repository interface {
	Tenants(ctx context.Context) ([]int64, error)
	EntriesAfter(ctx context.Context, tenantID, afterID int64, limit int) ([]journals.Entry, error)
	Balances(ctx context.Context, tenantID int64, from *time.Time, to time.Time) ([]reports.AccountBalance, error)
}

// Checker scans tenants for invariant violations.
type Checker struct {
	repo        Repository
	logger      *slog.Logger
	batchSize   int
	concurrency int
	now         func() time.Time
}

// NewChecker constructs a Checker.
func NewChecker(repo Repository, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{repo: repo, logger: logger, batchSize: 500, concurrency: 4, now: time.Now}
}

// WithConcurrency bounds the number of tenants scanned in parallel.
func (c *Checker) WithConcurrency(n int) *Checker {
	if n > 0 {
		c.concurrency = n
	}
	return c
}

// WithNow overrides the clock for testing.
func (c *Checker) WithNow(now func() time.Time) *Checker {
	if now != nil {
		c.now = now
	}
	return c
}

// Run checks the given tenants, or every tenant when none is given. Reports
// are ordered by tenant id.
func (c *Checker) Run(ctx context.Context, tenantIDs ...int64) ([]Report, error) {
	if len(tenantIDs) == 0 {
		ids, err := c.repo.Tenants(ctx)
		if err != nil {
			return nil, fmt.Errorf("integrity: list tenants: %w", err)
		}
		tenantIDs = ids
	}
	var (
		mu  sync.Mutex
		out = make([]Report, 0, len(tenantIDs))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, id := range tenantIDs {
		id := id
		g.Go(func() error {
			rep, err := c.CheckTenant(ctx, id)
			if err != nil {
				return fmt.Errorf("integrity: tenant %d: %w", id, err)
			}
			mu.Lock()
			out = append(out, rep)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// CheckTenant verifies every entry of tenantID and its trial balance.
func (c *Checker) CheckTenant(ctx context.Context, tenantID int64) (Report, error) {
	rep := Report{TenantID: tenantID, CheckedAt: c.now()}
	var after int64
	for {
		entries, err := c.repo.EntriesAfter(ctx, tenantID, after, c.batchSize)
		if err != nil {
			return Report{}, err
		}
		for _, e := range entries {
			rep.Anomalies = append(rep.Anomalies, CheckEntry(e)...)
			after = e.ID
		}
		rep.Entries += len(entries)
		if len(entries) < c.batchSize {
			break
		}
	}

	asOf := c.now().UTC().AddDate(100, 0, 0)
	balances, err := c.repo.Balances(ctx, tenantID, nil, asOf)
	if err != nil {
		return Report{}, err
	}
	tb := reports.BuildTrialBalance(balances)
	if !tb.Balanced() {
		rep.Anomalies = append(rep.Anomalies, Anomaly{
			TenantID: tenantID,
			Kind:     AnomalyTrialBalance,
			Detail:   fmt.Sprintf("debit %s credit %s", tb.TotalDebit.String(), tb.TotalCredit.String()),
		})
	}
	for _, a := range rep.Anomalies {
		c.logger.Error("ledger integrity anomaly",
			slog.Int64("tenant_id", a.TenantID),
			slog.Int64("entry_id", a.EntryID),
			slog.String("kind", string(a.Kind)),
			slog.String("detail", a.Detail))
	}
	return rep, nil
}

// CheckEntry verifies the per-entry invariants of a stored entry.
func CheckEntry(e journals.Entry) []Anomaly {
	var out []Anomaly
	add := func(kind AnomalyKind, format string, args ...any) {
		out = append(out, Anomaly{TenantID: e.TenantID, EntryID: e.ID, Kind: kind, Detail: fmt.Sprintf(format, args...)})
	}
	for _, l := range e.Lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() || l.Debit.IsZero() == l.Credit.IsZero() {
			add(AnomalyMalformedLine, "line %d debit %s credit %s", l.LineNo, l.Debit.String(), l.Credit.String())
		}
		if l.TenantID != e.TenantID {
			add(AnomalyMalformedLine, "line %d belongs to tenant %d", l.LineNo, l.TenantID)
		}
	}
	debit, credit := e.Totals()
	if !debit.Equal(credit) {
		add(AnomalyUnbalancedEntry, "debit %s credit %s", debit.String(), credit.String())
	}
	if !debit.Equal(e.Total) {
		add(AnomalyTotalMismatch, "total %s lines %s", e.Total.String(), debit.String())
	}
	if e.Digest != journals.Digest(e) {
		add(AnomalyDigestMismatch, "stored digest does not match content")
	}
	return out
}
