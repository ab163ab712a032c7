package reports

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type stubRepo struct {
	mu           sync.Mutex
	accounts     map[int64]accounts.Account
	balances     []AccountBalance
	lines        []LineActivity
	balanceCalls int
}

func (s *stubRepo) AccountsByID(_ context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account)
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (s *stubRepo) Balances(context.Context, int64, *time.Time, time.Time) ([]AccountBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceCalls++
	return s.balances, nil
}

func (s *stubRepo) AccountSums(_ context.Context, _ int64, _ int64, from *time.Time, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range s.lines {
		if (from != nil && l.Date.Before(*from)) || l.Date.After(to) {
			continue
		}
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit, nil
}

func (s *stubRepo) AccountLines(_ context.Context, _ int64, _ int64, from *time.Time, to time.Time) ([]LineActivity, error) {
	var out []LineActivity
	for _, l := range s.lines {
		if (from != nil && l.Date.Before(*from)) || l.Date.After(to) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func bankRepo() *stubRepo {
	return &stubRepo{
		accounts: map[int64]accounts.Account{
			1: {ID: 1, TenantID: 7, Code: "1100", Name: "Bank", Type: accounts.AccountTypeAsset, IsActive: true},
			2: {ID: 2, TenantID: 8, Code: "1100", Name: "Bank", Type: accounts.AccountTypeAsset, IsActive: true},
		},
		balances: []AccountBalance{
			{AccountID: 1, Code: "1100", Name: "Bank", Type: accounts.AccountTypeAsset, Opening: d("0"), Debit: d("150"), Credit: d("40")},
			{AccountID: 3, Code: "4000", Name: "Sales", Type: accounts.AccountTypeRevenue, Opening: d("0"), Debit: d("40"), Credit: d("150")},
		},
		lines: []LineActivity{
			{LineID: 1, EntryID: 1, Date: day(2024, time.January, 5), Debit: d("100"), Credit: d("0"), IsReconciled: true},
			{LineID: 2, EntryID: 2, Date: day(2024, time.February, 3), Debit: d("0"), Credit: d("40")},
			{LineID: 3, EntryID: 3, Date: day(2024, time.February, 20), Debit: d("50"), Credit: d("0")},
		},
	}
}

func TestCacheVersionBump(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, 7, "tb", "2024-01-31")
	require.NoError(t, err)
	require.Equal(t, "ledger:reports:7:tb:2024-01-31:v1", key)

	require.NoError(t, cache.Bump(ctx, 7))
	key, err = cache.BuildKey(ctx, 7, "tb", "2024-01-31")
	require.NoError(t, err)
	require.Equal(t, "ledger:reports:7:tb:2024-01-31:v2", key)

	other, err := cache.BuildKey(ctx, 8, "tb", "2024-01-31")
	require.NoError(t, err)
	require.Equal(t, "ledger:reports:8:tb:2024-01-31:v1", other)
}

func TestNilCachePassesThrough(t *testing.T) {
	var cache *Cache
	var out int
	err := cache.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, out)
	require.NoError(t, cache.Bump(context.Background(), 1))
}

func TestTrialBalanceIsCachedUntilBump(t *testing.T) {
	cache, _ := newCache(t)
	repo := bankRepo()
	svc := NewService(repo, cache, nil)
	ctx := context.Background()

	tb, err := svc.TrialBalance(ctx, 7, day(2024, time.March, 31))
	require.NoError(t, err)
	require.True(t, tb.Balanced())
	require.True(t, tb.DebitNormalTotal.Equal(d("110")))

	_, err = svc.TrialBalance(ctx, 7, day(2024, time.March, 31))
	require.NoError(t, err)
	require.Equal(t, 1, repo.balanceCalls)

	require.NoError(t, cache.Bump(ctx, 7))
	_, err = svc.TrialBalance(ctx, 7, day(2024, time.March, 31))
	require.NoError(t, err)
	require.Equal(t, 2, repo.balanceCalls)
}

func TestBalanceRejectsForeignAccount(t *testing.T) {
	svc := NewService(bankRepo(), nil, nil)
	_, err := svc.Balance(context.Background(), 7, 2, day(2024, time.March, 31))
	require.True(t, errors.Is(err, shared.ErrCrossTenant))

	_, err = svc.Balance(context.Background(), 7, 99, day(2024, time.March, 31))
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestBalanceSignedByNormalSide(t *testing.T) {
	svc := NewService(bankRepo(), nil, nil)
	bal, err := svc.Balance(context.Background(), 7, 1, day(2024, time.February, 10))
	require.NoError(t, err)
	require.Equal(t, accounts.SideDebit, bal.Side)
	require.True(t, bal.Balance.Equal(d("60")), bal.Balance.String())
}

func TestStatementRunningBalance(t *testing.T) {
	svc := NewService(bankRepo(), nil, nil)
	stmt, err := svc.Statement(context.Background(), 7, 1, day(2024, time.February, 1), day(2024, time.February, 29))
	require.NoError(t, err)
	require.True(t, stmt.Opening.Equal(d("100")))
	require.Len(t, stmt.Lines, 2)
	require.True(t, stmt.Lines[0].Running.Equal(d("60")))
	require.True(t, stmt.Lines[1].Running.Equal(d("110")))
	require.True(t, stmt.Closing.Equal(d("110")))

	_, err = svc.Statement(context.Background(), 7, 1, day(2024, time.March, 1), day(2024, time.February, 1))
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestReconciliationStatus(t *testing.T) {
	svc := NewService(bankRepo(), nil, nil)
	status, err := svc.ReconciliationStatus(context.Background(), 7, 1, day(2024, time.March, 31))
	require.NoError(t, err)
	require.Equal(t, 1, status.ReconciledCount)
	require.True(t, status.ReconciledTotal.Equal(d("100")))
	require.Equal(t, 2, status.UnreconciledCount)
	require.True(t, status.UnreconciledTotal.Equal(d("10")))
	require.Len(t, status.Unreconciled, 2)
}
