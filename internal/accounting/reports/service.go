package reports

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Repository reads posted lines. A nil from means "since the first entry";
// to is inclusive.
type Repository interface {
	accounts.Lookup
	// Balances returns every account of the tenant with its movements in range.
	Balances(ctx context.Context, tenantID int64, from *time.Time, to time.Time) ([]AccountBalance, error)
	AccountSums(ctx context.Context, tenantID, accountID int64, from *time.Time, to time.Time) (decimal.Decimal, decimal.Decimal, error)
	AccountLines(ctx context.Context, tenantID, accountID int64, from *time.Time, to time.Time) ([]LineActivity, error)
}

// Service projects balances and statements from posted ledger lines.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs the projector. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (s *Service) account(ctx context.Context, tenantID, accountID int64) (accounts.Account, error) {
	if err := tenant.Require(tenantID); err != nil {
		return accounts.Account{}, err
	}
	found, err := accounts.ResolveAll(ctx, s.repo, tenantID, []int64{accountID})
	if err != nil {
		if shared.KindOf(err) == shared.KindCrossTenant {
			s.logger.Error("cross-tenant report read rejected", slog.Int64("tenant_id", tenantID), slog.Int64("account_id", accountID))
		}
		return accounts.Account{}, err
	}
	return found[accountID], nil
}

// Balance returns the balance of accountID on its normal side as of asOf.
func (s *Service) Balance(ctx context.Context, tenantID, accountID int64, asOf time.Time) (Balance, error) {
	acc, err := s.account(ctx, tenantID, accountID)
	if err != nil {
		return Balance{}, err
	}
	asOf = periods.DateOf(asOf)
	key, err := s.cache.BuildKey(ctx, tenantID, "balance", strconv.FormatInt(accountID, 10), asOf.Format(time.DateOnly))
	if err != nil {
		return Balance{}, err
	}
	var out Balance
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		debit, credit, err := s.repo.AccountSums(ctx, tenantID, accountID, nil, asOf)
		if err != nil {
			return nil, err
		}
		side := accounts.NormalSide(acc)
		return Balance{
			Account: acc,
			AsOf:    asOf,
			Debit:   debit,
			Credit:  credit,
			Balance: side.Signed(debit, credit),
			Side:    side,
		}, nil
	})
	return out, err
}

// TrialBalance lists every account's cumulative balance as of asOf.
func (s *Service) TrialBalance(ctx context.Context, tenantID int64, asOf time.Time) (TrialBalance, error) {
	if err := tenant.Require(tenantID); err != nil {
		return TrialBalance{}, err
	}
	asOf = periods.DateOf(asOf)
	key, err := s.cache.BuildKey(ctx, tenantID, "tb", asOf.Format(time.DateOnly))
	if err != nil {
		return TrialBalance{}, err
	}
	var out TrialBalance
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		balances, err := s.repo.Balances(ctx, tenantID, nil, asOf)
		if err != nil {
			return nil, err
		}
		tb := BuildTrialBalance(balances)
		if !tb.Balanced() {
			s.logger.Error("trial balance does not net to zero",
				slog.Int64("tenant_id", tenantID),
				slog.String("as_of", asOf.Format(time.DateOnly)),
				slog.String("debit", tb.TotalDebit.String()),
				slog.String("credit", tb.TotalCredit.String()))
		}
		return tb, nil
	})
	return out, err
}

// ProfitAndLoss summarises revenue and expense movements between from and to inclusive.
func (s *Service) ProfitAndLoss(ctx context.Context, tenantID int64, from, to time.Time) (ProfitAndLoss, error) {
	if err := tenant.Require(tenantID); err != nil {
		return ProfitAndLoss{}, err
	}
	from, to = periods.DateOf(from), periods.DateOf(to)
	if to.Before(from) {
		return ProfitAndLoss{}, shared.Validation("to", "must not precede from")
	}
	key, err := s.cache.BuildKey(ctx, tenantID, "pl", from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return ProfitAndLoss{}, err
	}
	var out ProfitAndLoss
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		balances, err := s.repo.Balances(ctx, tenantID, &from, to)
		if err != nil {
			return nil, err
		}
		return BuildProfitAndLoss(balances), nil
	})
	return out, err
}

// BalanceSheet reports assets, liabilities and equity as of asOf.
func (s *Service) BalanceSheet(ctx context.Context, tenantID int64, asOf time.Time) (BalanceSheet, error) {
	if err := tenant.Require(tenantID); err != nil {
		return BalanceSheet{}, err
	}
	asOf = periods.DateOf(asOf)
	key, err := s.cache.BuildKey(ctx, tenantID, "bs", asOf.Format(time.DateOnly))
	if err != nil {
		return BalanceSheet{}, err
	}
	var out BalanceSheet
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		balances, err := s.repo.Balances(ctx, tenantID, nil, asOf)
		if err != nil {
			return nil, err
		}
		return BuildBalanceSheet(balances), nil
	})
	return out, err
}

// Statement lists the account's lines between from and to with a running
// balance on the account's normal side. It reads live reconciliation flags
// and is therefore never cached.
func (s *Service) Statement(ctx context.Context, tenantID, accountID int64, from, to time.Time) (Statement, error) {
	acc, err := s.account(ctx, tenantID, accountID)
	if err != nil {
		return Statement{}, err
	}
	from, to = periods.DateOf(from), periods.DateOf(to)
	if to.Before(from) {
		return Statement{}, shared.Validation("to", "must not precede from")
	}
	side := accounts.NormalSide(acc)
	debit, credit, err := s.repo.AccountSums(ctx, tenantID, accountID, nil, from.AddDate(0, 0, -1))
	if err != nil {
		return Statement{}, err
	}
	lines, err := s.repo.AccountLines(ctx, tenantID, accountID, &from, to)
	if err != nil {
		return Statement{}, err
	}
	stmt := Statement{Account: acc, From: from, To: to, Opening: side.Signed(debit, credit)}
	running := stmt.Opening
	stmt.Lines = make([]StatementLine, 0, len(lines))
	for _, l := range lines {
		running = running.Add(side.Signed(l.Debit, l.Credit))
		stmt.Lines = append(stmt.Lines, StatementLine{LineActivity: l, Running: running})
	}
	stmt.Closing = running
	return stmt, nil
}

// ReconciliationStatus splits the account's lines up to asOf into reconciled
// and unreconciled, with totals on the normal side.
func (s *Service) ReconciliationStatus(ctx context.Context, tenantID, accountID int64, asOf time.Time) (ReconciliationStatus, error) {
	acc, err := s.account(ctx, tenantID, accountID)
	if err != nil {
		return ReconciliationStatus{}, err
	}
	asOf = periods.DateOf(asOf)
	lines, err := s.repo.AccountLines(ctx, tenantID, accountID, nil, asOf)
	if err != nil {
		return ReconciliationStatus{}, err
	}
	side := accounts.NormalSide(acc)
	out := ReconciliationStatus{
		Account:           acc,
		AsOf:              asOf,
		ReconciledTotal:   decimal.Zero,
		UnreconciledTotal: decimal.Zero,
		Unreconciled:      []LineActivity{},
	}
	for _, l := range lines {
		amount := side.Signed(l.Debit, l.Credit)
		if l.IsReconciled {
			out.ReconciledCount++
			out.ReconciledTotal = out.ReconciledTotal.Add(amount)
			continue
		}
		out.UnreconciledCount++
		out.UnreconciledTotal = out.UnreconciledTotal.Add(amount)
		out.Unreconciled = append(out.Unreconciled, l)
	}
	return out, nil
}
