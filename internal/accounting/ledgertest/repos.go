package ledgertest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Journals returns the posting engine's repository.
func (s *Store) Journals() journals.Repository { return journalRepo{s} }

// Periods returns the period lock's repository.
func (s *Store) Periods() periods.Repository { return periodRepo{s} }

// Accounts returns the chart of accounts repository.
func (s *Store) Accounts() accounts.Repository { return accountRepo{s} }

// Reports returns the balance projector's repository.
func (s *Store) Reports() reports.Repository { return reportRepo{s} }

// Reconciliation returns the bank matcher's repository.
func (s *Store) Reconciliation() reconciliation.Repository { return reconRepo{s} }

// Integrity returns the integrity checker's repository.
func (s *Store) Integrity() integrity.Repository { return integrityRepo{s} }

type journalRepo struct{ s *Store }

func (r journalRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (r journalRepo) Get(_ context.Context, entryID int64) (journals.Entry, error) {
	var (
		e  journals.Entry
		ok bool
	)
	r.s.read(func(st *state) {
		e, ok = st.entries[entryID]
		e.Lines = append([]journals.Line(nil), e.Lines...)
	})
	if !ok {
		return journals.Entry{}, shared.NotFound("ledger_entry", entryID)
	}
	return e, nil
}

func (r journalRepo) List(_ context.Context, f journals.ListFilter) ([]journals.Entry, int, error) {
	var matched []journals.Entry
	for _, e := range r.s.Entries(f.TenantID) {
		switch {
		case f.From != nil && e.Date.Before(*f.From),
			f.To != nil && e.Date.After(*f.To),
			f.SourceTag != "" && e.SourceTag != f.SourceTag,
			f.Kind != "" && e.Reference.Kind != f.Kind,
			f.SourceID > 0 && e.Reference.SourceID != f.SourceID:
			continue
		}
		e.Lines = nil
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (r journalRepo) EntriesAfter(_ context.Context, tenantID, afterID int64, limit int) ([]journals.Entry, error) {
	var out []journals.Entry
	for _, e := range r.s.Entries(tenantID) {
		if e.ID > afterID {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type periodRepo struct{ s *Store }

func (r periodRepo) WithTx(ctx context.Context, fn func(context.Context, periods.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (r periodRepo) List(ctx context.Context, tenantID int64) ([]periods.FinancialMonth, error) {
	var out []periods.FinancialMonth
	r.s.read(func(st *state) {
		out = (&tx{state: st}).tenantMonths(tenantID)
	})
	return out, nil
}

type accountRepo struct{ s *Store }

func (r accountRepo) AccountsByID(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	var out map[int64]accounts.Account
	r.s.read(func(st *state) {
		out, _ = (&tx{state: st}).AccountsByID(ctx, ids)
	})
	return out, nil
}

func (r accountRepo) List(_ context.Context, tenantID int64, includeInactive bool) ([]accounts.Account, error) {
	var out []accounts.Account
	r.s.read(func(st *state) {
		for _, a := range st.accounts {
			if a.TenantID == tenantID && (includeInactive || a.IsActive) {
				out = append(out, a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r accountRepo) Get(_ context.Context, id int64) (accounts.Account, error) {
	var (
		a  accounts.Account
		ok bool
	)
	r.s.read(func(st *state) { a, ok = st.accounts[id] })
	if !ok {
		return accounts.Account{}, shared.NotFound("account", id)
	}
	return a, nil
}

func (r accountRepo) Create(ctx context.Context, in accounts.CreateInput) (accounts.Account, error) {
	var acc accounts.Account
	err := r.s.withTx(ctx, func(t *tx) error {
		for _, a := range t.state.accounts {
			if a.TenantID != in.TenantID {
				continue
			}
			if a.Code == in.Code {
				return shared.Validation("code", "%q already exists", in.Code)
			}
			if strings.EqualFold(a.Name, in.Name) {
				return shared.Validation("name", "%q already exists", in.Name)
			}
		}
		acc = accounts.Account{
			ID:       t.state.next(),
			TenantID: in.TenantID,
			Code:     in.Code,
			Name:     in.Name,
			Type:     in.Type,
			Subtype:  in.Subtype,
			ParentID: in.ParentID,
			IsActive: true,
		}
		t.state.accounts[acc.ID] = acc
		return nil
	})
	return acc, err
}

func (r accountRepo) SetActive(ctx context.Context, id int64, active bool, at time.Time) error {
	return r.s.withTx(ctx, func(t *tx) error {
		a, ok := t.state.accounts[id]
		if !ok {
			return shared.NotFound("account", id)
		}
		a.IsActive = active
		a.UpdatedAt = at
		t.state.accounts[id] = a
		return nil
	})
}

func (r accountRepo) HasPostings(_ context.Context, id int64) (bool, error) {
	found := false
	r.s.read(func(st *state) {
		for _, e := range st.entries {
			for _, l := range e.Lines {
				if l.AccountID == id {
					found = true
				}
			}
		}
	})
	return found, nil
}

func (r accountRepo) Delete(ctx context.Context, id int64) error {
	inUse, _ := r.HasPostings(ctx, id)
	if inUse {
		return shared.AccountInUse(id)
	}
	return r.s.withTx(ctx, func(t *tx) error {
		if _, ok := t.state.accounts[id]; !ok {
			return shared.NotFound("account", id)
		}
		delete(t.state.accounts, id)
		return nil
	})
}

type reportRepo struct{ s *Store }

func (r reportRepo) AccountsByID(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	return accountRepo(r).AccountsByID(ctx, ids)
}

func inRange(d time.Time, from *time.Time, to time.Time) bool {
	return (from == nil || !d.Before(*from)) && !d.After(to)
}

func (r reportRepo) Balances(_ context.Context, tenantID int64, from *time.Time, to time.Time) ([]reports.AccountBalance, error) {
	var out []reports.AccountBalance
	r.s.read(func(st *state) {
		sums := map[int64]*reports.AccountBalance{}
		for _, a := range st.accounts {
			if a.TenantID != tenantID {
				continue
			}
			sums[a.ID] = &reports.AccountBalance{
				AccountID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type,
				Opening: decimal.Zero, Debit: decimal.Zero, Credit: decimal.Zero,
			}
		}
		for _, e := range st.entries {
			if e.TenantID != tenantID || !inRange(e.Date, from, to) {
				continue
			}
			for _, l := range e.Lines {
				if b, ok := sums[l.AccountID]; ok {
					b.Debit = b.Debit.Add(l.Debit)
					b.Credit = b.Credit.Add(l.Credit)
				}
			}
		}
		for _, b := range sums {
			out = append(out, *b)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r reportRepo) AccountSums(ctx context.Context, tenantID, accountID int64, from *time.Time, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	lines, _ := r.AccountLines(ctx, tenantID, accountID, from, to)
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit, nil
}

func (r reportRepo) AccountLines(_ context.Context, tenantID, accountID int64, from *time.Time, to time.Time) ([]reports.LineActivity, error) {
	var out []reports.LineActivity
	for _, e := range r.s.Entries(tenantID) {
		if !inRange(e.Date, from, to) {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID != accountID {
				continue
			}
			out = append(out, reports.LineActivity{
				LineID:       l.ID,
				EntryID:      e.ID,
				Date:         e.Date,
				Description:  e.Description,
				SourceTag:    e.SourceTag,
				Memo:         l.Memo,
				Debit:        l.Debit,
				Credit:       l.Credit,
				IsReconciled: l.IsReconciled,
				ReconciledAt: l.ReconciledAt,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

type reconRepo struct{ s *Store }

func (r reconRepo) WithTx(ctx context.Context, fn func(context.Context, reconciliation.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (r reconRepo) List(_ context.Context, f reconciliation.ListFilter) ([]reconciliation.StatementLine, error) {
	var out []reconciliation.StatementLine
	r.s.read(func(st *state) {
		for _, l := range st.statements {
			switch {
			case l.TenantID != f.TenantID,
				f.AccountID > 0 && l.AccountID != f.AccountID,
				f.Matched != nil && l.IsMatched != *f.Matched:
				continue
			}
			out = append(out, l)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type integrityRepo struct{ s *Store }

func (r integrityRepo) Tenants(context.Context) ([]int64, error) {
	seen := map[int64]bool{}
	r.s.read(func(st *state) {
		for _, a := range st.accounts {
			seen[a.TenantID] = true
		}
	})
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r integrityRepo) EntriesAfter(ctx context.Context, tenantID, afterID int64, limit int) ([]journals.Entry, error) {
	return journalRepo(r).EntriesAfter(ctx, tenantID, afterID, limit)
}

func (r integrityRepo) Balances(ctx context.Context, tenantID int64, from *time.Time, to time.Time) ([]reports.AccountBalance, error) {
	return reportRepo(r).Balances(ctx, tenantID, from, to)
}
