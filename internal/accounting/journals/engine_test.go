package journals_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/references"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/internal/testenv"
)

const tenantA, tenantB int64 = 1, 2

type fixture struct {
	store   *ledgertest.Store
	engine  *journals.Service
	periods *periods.Service
	reports *reports.Service
	cash    accounts.Account
	revenue accounts.Account
	foreign accounts.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledgertest.New()
	f := &fixture{
		store:   store,
		engine:  journals.NewService(store.Journals(), nil, store, store, nil),
		periods: periods.NewService(store.Periods(), nil, store, store, nil),
		reports: reports.NewService(store.Reports(), nil, nil),
		cash:    store.AddAccount(tenantA, "1000", "Cash", accounts.AccountTypeAsset),
		revenue: store.AddAccount(tenantA, "4000", "Revenue", accounts.AccountTypeRevenue),
		foreign: store.AddAccount(tenantB, "1000", "Cash", accounts.AccountTypeAsset),
	}
	f.periods.WithNow(func() time.Time { return day(2024, time.June, 15) })
	return f
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) draft(date time.Time, debit, credit string) journals.DraftEntry {
	return journals.DraftEntry{
		TenantID:    tenantA,
		Date:        date,
		Description: "cash sale",
		SourceTag:   "manual",
		Lines: []journals.DraftLine{
			{AccountID: f.cash.ID, Debit: amt(debit), Credit: decimal.Zero},
			{AccountID: f.revenue.ID, Debit: decimal.Zero, Credit: amt(credit)},
		},
	}
}

func (f *fixture) balance(t *testing.T, acc accounts.Account, asOf time.Time) decimal.Decimal {
	t.Helper()
	b, err := f.reports.Balance(context.Background(), acc.TenantID, acc.ID, asOf)
	require.NoError(t, err)
	return b.Balance
}

func TestPostBalancedEntryMovesBothBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.engine.Post(ctx, f.draft(day(2024, time.January, 10), "1000", "1000"))
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.True(t, entry.Total.Equal(amt("1000")))
	require.Equal(t, journals.StatusPosted, entry.Status)
	require.Equal(t, references.KindNone, entry.Reference.Kind)
	require.Equal(t, journals.Digest(entry), entry.Digest)

	asOf := day(2024, time.January, 31)
	require.True(t, f.balance(t, f.cash, asOf).Equal(amt("1000")))
	require.True(t, f.balance(t, f.revenue, asOf).Equal(amt("1000")))

	require.Equal(t, 1, f.store.Bumps(tenantA))
	logs := f.store.AuditLogs()
	require.Len(t, logs, 1)
	require.Equal(t, "accounting.entry.post", logs[0].Action)
	require.Equal(t, tenantA, logs[0].TenantID)
}

func TestUnbalancedEntryLeavesNoRows(t *testing.T) {
	f := newFixture(t)
	before := f.store.EntryCount(tenantA)

	_, err := f.engine.Post(context.Background(), f.draft(day(2024, time.January, 10), "1000", "900"))
	require.True(t, errors.Is(err, shared.ErrUnbalanced))
	var unbalanced *shared.UnbalancedError
	require.True(t, errors.As(err, &unbalanced))
	require.True(t, unbalanced.Debit.Equal(amt("1000")))
	require.True(t, unbalanced.Credit.Equal(amt("900")))

	require.Equal(t, before, f.store.EntryCount(tenantA))
	require.Empty(t, f.store.AuditLogs())
}

func TestEveryPostedEntryBalancesToItsTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, a := range []string{"0.0001", "12.5", "999999.9999", "42"} {
		_, err := f.engine.Post(ctx, f.draft(day(2024, time.February, 2), a, a))
		require.NoError(t, err)
	}
	for _, e := range f.store.Entries(tenantA) {
		debit, credit := e.Totals()
		require.True(t, debit.Equal(credit))
		require.True(t, debit.Equal(e.Total))
	}
	tb, err := f.reports.TrialBalance(ctx, tenantA, day(2024, time.December, 31))
	require.NoError(t, err)
	require.True(t, tb.Balanced())
}

func TestPostingIntoClosedMonthFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Post(ctx, f.draft(day(2024, time.January, 10), "50", "50"))
	require.NoError(t, err)
	_, err = f.periods.CloseMonth(ctx, periods.CloseInput{TenantID: tenantA, MonthEnd: day(2024, time.January, 31), ActorID: 9})
	require.NoError(t, err)

	before := f.store.EntryCount(tenantA)
	_, err = f.engine.Post(ctx, f.draft(day(2024, time.January, 20), "50", "50"))
	require.True(t, errors.Is(err, shared.ErrPeriodClosed))
	var closed *shared.PeriodClosedError
	require.True(t, errors.As(err, &closed))
	require.Equal(t, day(2024, time.February, 1), closed.OpenFrom)
	require.Equal(t, before, f.store.EntryCount(tenantA))

	_, err = f.engine.Post(ctx, f.draft(day(2024, time.February, 1), "50", "50"))
	require.NoError(t, err)
}

func TestDuplicateBindingPersistsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	binding := references.Exclusive(references.KindInvoice, 77, "revenue")

	d := f.draft(day(2024, time.March, 3), "300", "300")
	d.Reference = &binding
	first, err := f.engine.Post(ctx, d)
	require.NoError(t, err)

	_, err = f.engine.Post(ctx, d)
	require.True(t, errors.Is(err, shared.ErrDuplicatePosting))
	var dup *shared.DuplicatePostingError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, first.ID, dup.EntryID)
	require.Equal(t, 1, f.store.EntryCount(tenantA))

	provenance := references.Shared(references.KindInvoice, 77)
	d.Reference = &provenance
	_, err = f.engine.Post(ctx, d)
	require.NoError(t, err)
	_, err = f.engine.Post(ctx, d)
	require.NoError(t, err)
}

func TestConcurrentDuplicatePostsCommitOnce(t *testing.T) {
	f := newFixture(t)
	binding := references.Exclusive(references.KindPayslip, 5, "")
	d := f.draft(day(2024, time.March, 3), "10", "10")
	d.Reference = &binding

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Post(context.Background(), d)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, shared.ErrDuplicatePosting) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, f.store.EntryCount(tenantA))
}

func TestReverseNegatesEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asOf := day(2024, time.April, 30)

	original, err := f.engine.Post(ctx, f.draft(day(2024, time.April, 2), "250.5", "250.5"))
	require.NoError(t, err)
	cashBefore := f.balance(t, f.cash, asOf)

	reversal, err := f.engine.Reverse(ctx, journals.ReverseInput{TenantID: tenantA, EntryID: original.ID, Date: day(2024, time.April, 3)})
	require.NoError(t, err)
	require.NotNil(t, reversal.ReversalOf)
	require.Equal(t, original.ID, *reversal.ReversalOf)
	require.True(t, reversal.Reference.Exclusive)
	require.True(t, reversal.Reference.IsReversal())

	require.True(t, f.balance(t, f.cash, asOf).IsZero())
	require.True(t, f.balance(t, f.revenue, asOf).IsZero())
	require.True(t, cashBefore.Equal(amt("250.5")))

	stored, err := f.engine.Get(ctx, tenantA, original.ID)
	require.NoError(t, err)
	require.Equal(t, original.Digest, stored.Digest)
	require.Len(t, stored.Lines, 2)
	require.True(t, stored.Lines[0].Debit.Equal(amt("250.5")))

	_, err = f.engine.Reverse(ctx, journals.ReverseInput{TenantID: tenantA, EntryID: original.ID, Date: day(2024, time.April, 4)})
	require.True(t, errors.Is(err, shared.ErrDuplicatePosting))
}

func TestReverseRespectsPeriodLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.engine.Post(ctx, f.draft(day(2024, time.January, 5), "10", "10"))
	require.NoError(t, err)
	_, err = f.periods.CloseMonth(ctx, periods.CloseInput{TenantID: tenantA, MonthEnd: day(2024, time.January, 31)})
	require.NoError(t, err)

	_, err = f.engine.Reverse(ctx, journals.ReverseInput{TenantID: tenantA, EntryID: original.ID, Date: day(2024, time.January, 31)})
	require.True(t, errors.Is(err, shared.ErrPeriodClosed))

	_, err = f.engine.Reverse(ctx, journals.ReverseInput{TenantID: tenantA, EntryID: original.ID, Date: day(2024, time.February, 1)})
	require.NoError(t, err)
}

func TestCrossTenantAccountIsRejected(t *testing.T) {
	f := newFixture(t)
	d := f.draft(day(2024, time.May, 1), "10", "10")
	d.Lines[0].AccountID = f.foreign.ID

	_, err := f.engine.Post(context.Background(), d)
	require.True(t, errors.Is(err, shared.ErrCrossTenant))
	var cross *shared.CrossTenantError
	require.True(t, errors.As(err, &cross))
	require.Equal(t, tenantB, cross.OwnerID)

	d.Lines[1].Credit = amt("11")
	_, err = f.engine.Post(context.Background(), d)
	require.True(t, errors.Is(err, shared.ErrCrossTenant))
	require.Zero(t, f.store.EntryCount(tenantA))
}

func TestCrossTenantReadsAreRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry, err := f.engine.Post(ctx, f.draft(day(2024, time.May, 1), "10", "10"))
	require.NoError(t, err)

	_, err = f.engine.Get(ctx, tenantB, entry.ID)
	require.True(t, errors.Is(err, shared.ErrCrossTenant))
	_, err = f.engine.Reverse(ctx, journals.ReverseInput{TenantID: tenantB, EntryID: entry.ID, Date: day(2024, time.May, 2)})
	require.True(t, errors.Is(err, shared.ErrCrossTenant))
}

func TestUnknownAccountIsValidationError(t *testing.T) {
	f := newFixture(t)
	d := f.draft(day(2024, time.May, 1), "10", "10")
	d.Lines[1].AccountID = 9999

	_, err := f.engine.Post(context.Background(), d)
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestInactiveAccountRejectedButReversible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chart := accounts.NewService(f.store.Accounts(), nil)

	original, err := f.engine.Post(ctx, f.draft(day(2024, time.May, 1), "10", "10"))
	require.NoError(t, err)
	require.NoError(t, chart.Deactivate(ctx, tenantA, f.revenue.ID))

	_, err = f.engine.Post(ctx, f.draft(day(2024, time.May, 2), "10", "10"))
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = f.engine.Reverse(ctx, journals.ReverseInput{TenantID: tenantA, EntryID: original.ID, Date: day(2024, time.May, 3)})
	require.NoError(t, err)
}

func TestListFiltersByTenantAndReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	binding := references.Exclusive(references.KindExpense, 3, "")
	d := f.draft(day(2024, time.May, 1), "10", "10")
	d.Reference = &binding
	_, err := f.engine.Post(ctx, d)
	require.NoError(t, err)
	_, err = f.engine.Post(ctx, f.draft(day(2024, time.May, 2), "10", "10"))
	require.NoError(t, err)

	all, total, err := f.engine.List(ctx, journals.ListFilter{TenantID: tenantA})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, all, 2)
	require.Equal(t, day(2024, time.May, 2), all[0].Date)

	byRef, total, err := f.engine.List(ctx, journals.ListFilter{TenantID: tenantA, Kind: references.KindExpense, SourceID: 3})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, byRef, 1)

	none, _, err := f.engine.List(ctx, journals.ListFilter{TenantID: tenantB})
	require.NoError(t, err)
	require.Empty(t, none)
}
