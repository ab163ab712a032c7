package reconciliation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store   *ledgertest.Store
	svc     *reconciliation.Service
	periods *periods.Service
	reports *reports.Service
	bank    accounts.Account
	sales   accounts.Account
	entry   journals.Entry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledgertest.New()
	f := &fixture{
		store:   store,
		svc:     reconciliation.NewService(store.Reconciliation(), nil, store),
		periods: periods.NewService(store.Periods(), nil, nil, nil, nil),
		reports: reports.NewService(store.Reports(), nil, nil),
		bank:    store.AddAccount(1, "1100", "Bank", accounts.AccountTypeAsset),
		sales:   store.AddAccount(1, "4000", "Sales", accounts.AccountTypeRevenue),
	}
	f.periods.WithNow(func() time.Time { return day(2024, time.June, 1) })
	engine := journals.NewService(store.Journals(), nil, nil, nil, nil)
	entry, err := engine.Post(context.Background(), journals.DraftEntry{
		TenantID:  1,
		Date:      day(2024, time.March, 10),
		SourceTag: "sales.receipt",
		Lines: []journals.DraftLine{
			{AccountID: f.bank.ID, Debit: amt("100"), Credit: decimal.Zero},
			{AccountID: f.sales.ID, Debit: decimal.Zero, Credit: amt("100")},
		},
	})
	require.NoError(t, err)
	f.entry = entry
	return f
}

func (f *fixture) importLines(t *testing.T, lines ...reconciliation.ImportLine) []reconciliation.StatementLine {
	t.Helper()
	res, err := f.svc.Import(context.Background(), reconciliation.ImportInput{TenantID: 1, AccountID: f.bank.ID, Lines: lines})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.BatchID)
	return res.Lines
}

func deposit(a string) reconciliation.ImportLine {
	return reconciliation.ImportLine{Date: day(2024, time.March, 11), Debit: amt(a), Credit: decimal.Zero}
}

func TestPartialMatchesReconcileWhenFullyCovered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lines := f.importLines(t, deposit("60"), deposit("40"))
	ledgerLine := f.entry.Lines[0].ID

	res, err := f.svc.Match(ctx, reconciliation.MatchInput{TenantID: 1, StatementLineID: lines[0].ID, LedgerLineID: ledgerLine})
	require.NoError(t, err)
	require.True(t, res.Statement.IsMatched)
	require.False(t, res.Ledger.IsReconciled)

	res, err = f.svc.Match(ctx, reconciliation.MatchInput{TenantID: 1, StatementLineID: lines[1].ID, LedgerLineID: ledgerLine})
	require.NoError(t, err)
	require.True(t, res.Ledger.IsReconciled)
	require.NotNil(t, res.Ledger.ReconciledAt)

	status, err := f.reports.ReconciliationStatus(ctx, 1, f.bank.ID, day(2024, time.March, 31))
	require.NoError(t, err)
	require.Equal(t, 1, status.ReconciledCount)
	require.Zero(t, status.UnreconciledCount)

	entries := f.store.Entries(1)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Lines[0].Debit.Equal(amt("100")))
	require.Equal(t, journals.Digest(entries[0]), entries[0].Digest)

	res, err = f.svc.Unmatch(ctx, reconciliation.UnmatchInput{TenantID: 1, StatementLineID: lines[1].ID})
	require.NoError(t, err)
	require.False(t, res.Statement.IsMatched)
	require.False(t, res.Ledger.IsReconciled)
}

func TestMatchRejectsMismatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lines := f.importLines(t,
		deposit("150"),
		reconciliation.ImportLine{Date: day(2024, time.March, 12), Debit: decimal.Zero, Credit: amt("100")},
		deposit("100"),
	)

	_, err := f.svc.Match(ctx, reconciliation.MatchInput{TenantID: 1, StatementLineID: lines[0].ID, LedgerLineID: f.entry.Lines[0].ID})
	require.True(t, errors.Is(err, shared.ErrValidation), "over match")

	_, err = f.svc.Match(ctx, reconciliation.MatchInput{TenantID: 1, StatementLineID: lines[1].ID, LedgerLineID: f.entry.Lines[0].ID})
	require.True(t, errors.Is(err, shared.ErrValidation), "opposite sign")

	_, err = f.svc.Match(ctx, reconciliation.MatchInput{TenantID: 1, StatementLineID: lines[2].ID, LedgerLineID: f.entry.Lines[1].ID})
	require.True(t, errors.Is(err, shared.ErrValidation), "other account")

	_, err = f.svc.Match(ctx, reconciliation.MatchInput{TenantID: 2, StatementLineID: lines[2].ID, LedgerLineID: f.entry.Lines[0].ID})
	require.True(t, errors.Is(err, shared.ErrCrossTenant))

	_, err = f.svc.Unmatch(ctx, reconciliation.UnmatchInput{TenantID: 1, StatementLineID: lines[2].ID})
	require.True(t, errors.Is(err, shared.ErrValidation), "not matched")
}

func TestMatchRespectsClosedPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lines := f.importLines(t, deposit("100"))

	_, err := f.periods.CloseMonth(ctx, periods.CloseInput{TenantID: 1, MonthEnd: day(2024, time.March, 31)})
	require.NoError(t, err)

	_, err = f.svc.Match(ctx, reconciliation.MatchInput{TenantID: 1, StatementLineID: lines[0].ID, LedgerLineID: f.entry.Lines[0].ID})
	require.True(t, errors.Is(err, shared.ErrPeriodClosed))

	matched := false
	open, err := f.svc.List(ctx, reconciliation.ListFilter{TenantID: 1, Matched: &matched})
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestImportValidatesLinesAndAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Import(ctx, reconciliation.ImportInput{TenantID: 1, AccountID: f.bank.ID, Lines: []reconciliation.ImportLine{
		{Date: day(2024, time.March, 1), Debit: amt("1"), Credit: amt("1")},
	}})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = f.svc.Import(ctx, reconciliation.ImportInput{TenantID: 1, AccountID: f.sales.ID, Lines: []reconciliation.ImportLine{deposit("1")}})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = f.svc.Import(ctx, reconciliation.ImportInput{TenantID: 2, AccountID: f.bank.ID, Lines: []reconciliation.ImportLine{deposit("1")}})
	require.True(t, errors.Is(err, shared.ErrCrossTenant))

	require.Len(t, f.store.AuditLogs(), 0)
}
