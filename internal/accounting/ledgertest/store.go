// Package ledgertest provides an in-memory ledger store implementing every
// repository port, for tests that exercise several services together.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/references"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	appshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type state struct {
	seq        int64
	accounts   map[int64]accounts.Account
	months     map[int64]periods.FinancialMonth
	entries    map[int64]journals.Entry
	statements map[int64]reconciliation.StatementLine
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	out := &state{
		seq:        s.seq,
		accounts:   make(map[int64]accounts.Account, len(s.accounts)),
		months:     make(map[int64]periods.FinancialMonth, len(s.months)),
		entries:    make(map[int64]journals.Entry, len(s.entries)),
		statements: make(map[int64]reconciliation.StatementLine, len(s.statements)),
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.months {
		out.months[k] = v
	}
	for k, v := range s.entries {
		v.Lines = append([]journals.Line(nil), v.Lines...)
		out.entries[k] = v
	}
	for k, v := range s.statements {
		out.statements[k] = v
	}
	return out
}

// Store is a transactional in-memory ledger. Transactions are serialised;
// a failing transaction leaves no trace.
type Store struct {
	mu    sync.Mutex
	state *state
	audit []appshared.AuditLog
	bumps map[int64]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		state: &state{
			accounts:   map[int64]accounts.Account{},
			months:     map[int64]periods.FinancialMonth{},
			entries:    map[int64]journals.Entry{},
			statements: map[int64]reconciliation.StatementLine{},
		},
		bumps: map[int64]int{},
	}
}

func (s *Store) withTx(ctx context.Context, fn func(*tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := &tx{state: s.state.clone()}
	if err := fn(work); err != nil {
		return err
	}
	s.state = work.state
	return nil
}

func (s *Store) read(fn func(*state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// AddAccount stores an account directly and returns it with its id.
func (s *Store) AddAccount(tenantID int64, code, name string, typ accounts.AccountType) accounts.Account {
	var acc accounts.Account
	_ = s.withTx(context.Background(), func(t *tx) error {
		acc = accounts.Account{ID: t.state.next(), TenantID: tenantID, Code: code, Name: name, Type: typ, IsActive: true}
		t.state.accounts[acc.ID] = acc
		return nil
	})
	return acc
}

// Entries returns the tenant's entries ordered by id.
func (s *Store) Entries(tenantID int64) []journals.Entry {
	var out []journals.Entry
	s.read(func(st *state) {
		for _, e := range st.entries {
			if e.TenantID == tenantID {
				e.Lines = append([]journals.Line(nil), e.Lines...)
				out = append(out, e)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EntryCount returns the number of entries of the tenant.
func (s *Store) EntryCount(tenantID int64) int {
	return len(s.Entries(tenantID))
}

// Tamper rewrites a stored entry in place, bypassing every check.
func (s *Store) Tamper(entryID int64, fn func(*journals.Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.state.entries[entryID]
	e.Lines = append([]journals.Line(nil), e.Lines...)
	fn(&e)
	s.state.entries[entryID] = e
}

// Record implements the services' audit ports.
func (s *Store) Record(_ context.Context, log appshared.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, log)
	return nil
}

// AuditLogs returns the recorded audit entries.
func (s *Store) AuditLogs() []appshared.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]appshared.AuditLog(nil), s.audit...)
}

// Bump implements the services' cache invalidation ports.
func (s *Store) Bump(_ context.Context, tenantID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumps[tenantID]++
	return nil
}

// Bumps returns how often the tenant's cache was invalidated.
func (s *Store) Bumps(tenantID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bumps[tenantID]
}

// tx is the view a transaction works on. It implements every TxRepository.
type tx struct {
	state *state
}

func (t *tx) LockTenant(context.Context, int64, bool) error { return nil }

func (t *tx) tenantMonths(tenantID int64) []periods.FinancialMonth {
	var out []periods.FinancialMonth
	for _, m := range t.state.months {
		if m.TenantID == tenantID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func (t *tx) MonthCovering(_ context.Context, tenantID int64, date time.Time) (periods.FinancialMonth, bool, error) {
	for _, m := range t.tenantMonths(tenantID) {
		if m.Covers(date) {
			return m, true, nil
		}
	}
	return periods.FinancialMonth{}, false, nil
}

func (t *tx) ClosedThrough(_ context.Context, tenantID int64) (time.Time, bool, error) {
	var (
		through time.Time
		found   bool
	)
	for _, m := range t.tenantMonths(tenantID) {
		if m.Status == periods.StatusClosed && (!found || m.EndDate.After(through)) {
			through, found = m.EndDate, true
		}
	}
	return through, found, nil
}

func (t *tx) LockMonths(_ context.Context, tenantID int64) ([]periods.FinancialMonth, error) {
	return t.tenantMonths(tenantID), nil
}

func (t *tx) EarliestActivity(_ context.Context, tenantID int64) (time.Time, bool, error) {
	var (
		first time.Time
		found bool
	)
	for _, e := range t.state.entries {
		if e.TenantID == tenantID && (!found || e.Date.Before(first)) {
			first, found = e.Date, true
		}
	}
	return first, found, nil
}

func (t *tx) EnsureMonth(_ context.Context, tenantID int64, start, end time.Time) (periods.FinancialMonth, error) {
	for _, m := range t.tenantMonths(tenantID) {
		if m.StartDate.Equal(start) {
			return m, nil
		}
	}
	m := periods.FinancialMonth{
		ID:        t.state.next(),
		TenantID:  tenantID,
		Year:      start.Year(),
		Month:     start.Month(),
		StartDate: start,
		EndDate:   end,
		Status:    periods.StatusOpen,
	}
	t.state.months[m.ID] = m
	return m, nil
}

func (t *tx) MarkClosed(ctx context.Context, tenantID int64, start, end time.Time, actorID int64, at time.Time) (periods.FinancialMonth, error) {
	m, err := t.EnsureMonth(ctx, tenantID, start, end)
	if err != nil {
		return periods.FinancialMonth{}, err
	}
	m.Status = periods.StatusClosed
	m.ClosedBy = &actorID
	m.ClosedAt = &at
	m.UpdatedAt = at
	t.state.months[m.ID] = m
	return m, nil
}

func (t *tx) MonthActivity(_ context.Context, tenantID int64, start, end time.Time) (periods.MonthActivity, error) {
	var out periods.MonthActivity
	sums := map[int64]*periods.AccountActivity{}
	for _, e := range t.state.entries {
		if e.TenantID != tenantID || e.Date.Before(start) || e.Date.After(end) {
			continue
		}
		out.EntryCount++
		for _, l := range e.Lines {
			a, ok := sums[l.AccountID]
			if !ok {
				acc := t.state.accounts[l.AccountID]
				a = &periods.AccountActivity{AccountID: acc.ID, Code: acc.Code, Name: acc.Name, Debit: decimal.Zero, Credit: decimal.Zero}
				sums[l.AccountID] = a
			}
			a.Debit = a.Debit.Add(l.Debit)
			a.Credit = a.Credit.Add(l.Credit)
		}
	}
	for _, a := range sums {
		out.Accounts = append(out.Accounts, *a)
	}
	sort.Slice(out.Accounts, func(i, j int) bool { return out.Accounts[i].Code < out.Accounts[j].Code })
	return out, nil
}

func (t *tx) AccountsByID(_ context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if a, ok := t.state.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (t *tx) EntryByReference(_ context.Context, tenantID int64, b references.Binding) (int64, bool, error) {
	for _, e := range t.state.entries {
		r := e.Reference
		if e.TenantID == tenantID && r.Exclusive && r.Kind == b.Kind && r.SourceID == b.SourceID && r.Qualifier == b.Qualifier {
			return e.ID, true, nil
		}
	}
	return 0, false, nil
}

func (t *tx) EntryWithLines(_ context.Context, entryID int64) (journals.Entry, error) {
	e, ok := t.state.entries[entryID]
	if !ok {
		return journals.Entry{}, shared.NotFound("ledger_entry", entryID)
	}
	e.Lines = append([]journals.Line(nil), e.Lines...)
	return e, nil
}

// InsertEntry enforces the same constraints as the database schema.
func (t *tx) InsertEntry(_ context.Context, e journals.Entry) (journals.Entry, error) {
	for _, other := range t.state.entries {
		if e.Reference.Exclusive && other.TenantID == e.TenantID && other.Reference == e.Reference {
			return journals.Entry{}, references.Duplicate(e.TenantID, e.Reference, other.ID)
		}
		if e.ReversalOf != nil && other.ReversalOf != nil && *other.ReversalOf == *e.ReversalOf {
			return journals.Entry{}, references.Duplicate(e.TenantID, e.Reference, other.ID)
		}
	}
	e.ID = t.state.next()
	for i := range e.Lines {
		if _, ok := t.state.accounts[e.Lines[i].AccountID]; !ok {
			return journals.Entry{}, shared.Validation("lines.account_id", "account %d does not exist", e.Lines[i].AccountID)
		}
		e.Lines[i].ID = t.state.next()
		e.Lines[i].EntryID = e.ID
	}
	t.state.entries[e.ID] = e
	out := e
	out.Lines = append([]journals.Line(nil), e.Lines...)
	return out, nil
}

func (t *tx) InsertStatementLines(_ context.Context, lines []reconciliation.StatementLine) ([]reconciliation.StatementLine, error) {
	out := make([]reconciliation.StatementLine, 0, len(lines))
	for _, l := range lines {
		l.ID = t.state.next()
		t.state.statements[l.ID] = l
		out = append(out, l)
	}
	return out, nil
}

func (t *tx) StatementLineForUpdate(_ context.Context, id int64) (reconciliation.StatementLine, error) {
	l, ok := t.state.statements[id]
	if !ok {
		return reconciliation.StatementLine{}, shared.NotFound("bank_statement_line", id)
	}
	return l, nil
}

func (t *tx) findLine(id int64) (journals.Entry, int, bool) {
	for _, e := range t.state.entries {
		for i, l := range e.Lines {
			if l.ID == id {
				return e, i, true
			}
		}
	}
	return journals.Entry{}, 0, false
}

func (t *tx) LedgerLineForUpdate(_ context.Context, id int64) (reconciliation.LedgerLine, error) {
	e, i, ok := t.findLine(id)
	if !ok {
		return reconciliation.LedgerLine{}, shared.NotFound("ledger_line", id)
	}
	l := e.Lines[i]
	return reconciliation.LedgerLine{
		ID:           l.ID,
		TenantID:     l.TenantID,
		EntryID:      e.ID,
		EntryDate:    e.Date,
		AccountID:    l.AccountID,
		Debit:        l.Debit,
		Credit:       l.Credit,
		IsReconciled: l.IsReconciled,
		ReconciledAt: l.ReconciledAt,
	}, nil
}

func (t *tx) MatchedTotal(_ context.Context, ledgerLineID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, s := range t.state.statements {
		if s.IsMatched && s.LedgerLineID != nil && *s.LedgerLineID == ledgerLineID {
			total = total.Add(s.Amount())
		}
	}
	return total, nil
}

func (t *tx) SetStatementMatch(_ context.Context, id int64, ledgerLineID *int64, at *time.Time) error {
	s := t.state.statements[id]
	s.IsMatched = ledgerLineID != nil
	s.LedgerLineID = ledgerLineID
	s.MatchedAt = at
	t.state.statements[id] = s
	return nil
}

func (t *tx) SetLineReconciled(_ context.Context, ledgerLineID int64, reconciled bool, at *time.Time) error {
	e, i, ok := t.findLine(ledgerLineID)
	if !ok {
		return shared.NotFound("ledger_line", ledgerLineID)
	}
	e.Lines[i].IsReconciled = reconciled
	e.Lines[i].ReconciledAt = at
	t.state.entries[e.ID] = e
	return nil
}
