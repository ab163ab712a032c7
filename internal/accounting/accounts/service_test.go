package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type memoryRepo struct {
	nextID   int64
	accounts map[int64]Account
	postings map[int64]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: map[int64]Account{}, postings: map[int64]bool{}}
}

func (m *memoryRepo) AccountsByID(_ context.Context, ids []int64) (map[int64]Account, error) {
	out := map[int64]Account{}
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (m *memoryRepo) List(_ context.Context, tenantID int64, includeInactive bool) ([]Account, error) {
	var out []Account
	for _, a := range m.accounts {
		if a.TenantID == tenantID && (includeInactive || a.IsActive) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, shared.NotFound("account", id)
	}
	return a, nil
}

func (m *memoryRepo) Create(_ context.Context, in CreateInput) (Account, error) {
	for _, a := range m.accounts {
		if a.TenantID == in.TenantID && a.Code == in.Code {
			return Account{}, shared.Validation("code", "%q already exists", in.Code)
		}
	}
	m.nextID++
	a := Account{ID: m.nextID, TenantID: in.TenantID, Code: in.Code, Name: in.Name, Type: in.Type, Subtype: in.Subtype, ParentID: in.ParentID, IsActive: true}
	m.accounts[a.ID] = a
	return a, nil
}

func (m *memoryRepo) SetActive(_ context.Context, id int64, active bool, at time.Time) error {
	a := m.accounts[id]
	a.IsActive = active
	a.UpdatedAt = at
	m.accounts[id] = a
	return nil
}

func (m *memoryRepo) HasPostings(_ context.Context, id int64) (bool, error) {
	return m.postings[id], nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(m.accounts, id)
	return nil
}

func TestNormalSide(t *testing.T) {
	require.Equal(t, SideDebit, NormalSide(Account{Type: AccountTypeAsset}))
	require.Equal(t, SideDebit, NormalSide(Account{Type: AccountTypeExpense}))
	require.Equal(t, SideCredit, NormalSide(Account{Type: AccountTypeLiability}))
	require.Equal(t, SideCredit, NormalSide(Account{Type: AccountTypeEquity}))
	require.Equal(t, SideCredit, NormalSide(Account{Type: AccountTypeRevenue}))

	d := decimal.RequireFromString("1000")
	c := decimal.RequireFromString("250.50")
	require.True(t, SideDebit.Signed(d, c).Equal(decimal.RequireFromString("749.50")))
	require.True(t, SideCredit.Signed(d, c).Equal(decimal.RequireFromString("-749.50")))
}

func TestResolveAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	cash, err := svc.Create(ctx, CreateInput{TenantID: 1, Code: "1100", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	foreign, err := svc.Create(ctx, CreateInput{TenantID: 2, Code: "1100", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)

	got, err := svc.ResolveAccount(ctx, 1, cash.ID)
	require.NoError(t, err)
	require.Equal(t, "Cash", got.Name)

	_, err = svc.ResolveAccount(ctx, 1, foreign.ID)
	require.True(t, errors.Is(err, shared.ErrCrossTenant))

	_, err = svc.ResolveAccount(ctx, 1, 999)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestResolveAllReportsForeignBeforeMissing(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[3] = Account{ID: 3, TenantID: 1, Code: "1000", IsActive: true}
	repo.accounts[10] = Account{ID: 10, TenantID: 2, Code: "1000", IsActive: true}

	_, err := ResolveAll(context.Background(), repo, 1, []int64{10, 3, 4})
	require.True(t, errors.Is(err, shared.ErrCrossTenant))

	_, err = ResolveAll(context.Background(), repo, 1, []int64{3, 4})
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{TenantID: 1, Code: "", Name: "Cash", Type: AccountTypeAsset})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Create(ctx, CreateInput{TenantID: 1, Code: "1", Name: "Cash", Type: "CONTRA"})
	require.True(t, errors.Is(err, shared.ErrValidation))

	parent, err := svc.Create(ctx, CreateInput{TenantID: 1, Code: "1000", Name: "Assets", Type: AccountTypeAsset})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{TenantID: 1, Code: "2000", Name: "Debt", Type: AccountTypeLiability, ParentID: &parent.ID})
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestDeleteRefusesAccountWithPostings(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	used, err := svc.Create(ctx, CreateInput{TenantID: 1, Code: "1100", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	unused, err := svc.Create(ctx, CreateInput{TenantID: 1, Code: "1200", Name: "Bank", Type: AccountTypeAsset})
	require.NoError(t, err)
	repo.postings[used.ID] = true

	err = svc.Delete(ctx, 1, used.ID)
	require.True(t, errors.Is(err, shared.ErrAccountInUse))
	require.Contains(t, repo.accounts, used.ID)

	require.NoError(t, svc.Deactivate(ctx, 1, used.ID))
	require.False(t, repo.accounts[used.ID].IsActive)

	require.NoError(t, svc.Delete(ctx, 1, unused.ID))
	require.NotContains(t, repo.accounts, unused.ID)

	err = svc.Delete(ctx, 2, used.ID)
	require.True(t, errors.Is(err, shared.ErrCrossTenant))
}

func TestSeedDefaultTemplate(t *testing.T) {
	tpl, err := DefaultTemplate()
	require.NoError(t, err)
	require.NotEmpty(t, tpl.Accounts)

	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	created, err := svc.SeedTemplate(context.Background(), 5, tpl)
	require.NoError(t, err)
	require.Equal(t, len(tpl.Accounts), created)

	again, err := svc.SeedTemplate(context.Background(), 5, tpl)
	require.NoError(t, err)
	require.Zero(t, again)
}

func TestLoadTemplateRejectsUnknownParent(t *testing.T) {
	_, err := LoadTemplate(strings.NewReader(`
name: broken
accounts:
  - {code: "1100", name: Cash, type: ASSET, parent: "1000"}
`))
	require.True(t, errors.Is(err, shared.ErrValidation))
}
