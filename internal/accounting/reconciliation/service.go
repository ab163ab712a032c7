package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	appshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

const amountScale = 4

// TxRepository exposes statement and ledger line state inside one transaction.
type TxRepository interface {
	periods.Reader
	accounts.Lookup
	InsertStatementLines(ctx context.Context, lines []StatementLine) ([]StatementLine, error)
	// StatementLineForUpdate row-locks a statement line of any tenant.
	StatementLineForUpdate(ctx context.Context, id int64) (StatementLine, error)
	// LedgerLineForUpdate row-locks a ledger line of any tenant.
	LedgerLineForUpdate(ctx context.Context, id int64) (LedgerLine, error)
	// MatchedTotal sums statement amounts already linked to a ledger line.
	MatchedTotal(ctx context.Context, ledgerLineID int64) (decimal.Decimal, error)
	SetStatementMatch(ctx context.Context, id int64, ledgerLineID *int64, at *time.Time) error
	SetLineReconciled(ctx context.Context, ledgerLineID int64, reconciled bool, at *time.Time) error
}

// Repository runs reconciliation transactions and listings.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]StatementLine, error)
}

// AuditPort records reconciliation events.
type AuditPort interface {
	Record(ctx context.Context, log appshared.AuditLog) error
}

// Service is the bank matching collaborator.
type Service struct {
	repo   Repository
	logger *slog.Logger
	audit  AuditPort
	now    func() time.Time
}

// NewService constructs the reconciliation service. audit may be nil.
func NewService(repo Repository, logger *slog.Logger, audit AuditPort) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Import stores statement lines for a bank account under a fresh batch id.
func (s *Service) Import(ctx context.Context, in ImportInput) (ImportResult, error) {
	if err := tenant.Require(in.TenantID); err != nil {
		return ImportResult{}, err
	}
	if len(in.Lines) == 0 {
		return ImportResult{}, shared.Validation("lines", "at least one line required")
	}
	for i, l := range in.Lines {
		if err := validateImportLine(i, l); err != nil {
			return ImportResult{}, err
		}
	}
	batch := uuid.New()
	var result ImportResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, err := accounts.ResolveAll(ctx, tx, in.TenantID, []int64{in.AccountID})
		if err != nil {
			return err
		}
		if found[in.AccountID].Type != accounts.AccountTypeAsset {
			return shared.Validation("account_id", "account %d is not an asset account", in.AccountID)
		}
		rows := make([]StatementLine, 0, len(in.Lines))
		for _, l := range in.Lines {
			rows = append(rows, StatementLine{
				TenantID:    in.TenantID,
				AccountID:   in.AccountID,
				BatchID:     batch,
				Date:        periods.DateOf(l.Date),
				Description: strings.TrimSpace(l.Description),
				Reference:   strings.TrimSpace(l.Reference),
				Debit:       l.Debit,
				Credit:      l.Credit,
				CreatedAt:   s.now(),
			})
		}
		stored, err := tx.InsertStatementLines(ctx, rows)
		if err != nil {
			return err
		}
		result = ImportResult{BatchID: batch, Lines: stored}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	s.logger.Info("bank statement imported",
		slog.Int64("tenant_id", in.TenantID),
		slog.Int64("account_id", in.AccountID),
		slog.String("batch_id", batch.String()),
		slog.Int("lines", len(result.Lines)))
	s.record(ctx, in.TenantID, in.ActorID, "accounting.bank.import", "bank_statement_batch", batch.String(), map[string]any{
		"account_id": in.AccountID,
		"lines":      len(result.Lines),
	})
	return result, nil
}

func validateImportLine(i int, l ImportLine) error {
	field := fmt.Sprintf("lines[%d]", i)
	if l.Date.IsZero() {
		return shared.Validation(field+".date", "required")
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return shared.Validation(field, "amounts must not be negative")
	}
	if l.Debit.IsZero() == l.Credit.IsZero() {
		return shared.Validation(field, "exactly one of debit or credit must be nonzero")
	}
	for _, amount := range []decimal.Decimal{l.Debit, l.Credit} {
		if !amount.Equal(amount.Truncate(amountScale)) {
			return shared.Validation(field, "amount %s exceeds %d decimal places", amount.String(), amountScale)
		}
	}
	if len(l.Description) > 255 || len(l.Reference) > 128 {
		return shared.Validation(field, "description or reference too long")
	}
	return nil
}

// Match links a statement line to a ledger line of the same account and sign.
// The ledger line becomes reconciled once its linked statement amounts reach
// its own amount. Amounts are never modified.
func (s *Service) Match(ctx context.Context, in MatchInput) (MatchResult, error) {
	if err := tenant.Require(in.TenantID); err != nil {
		return MatchResult{}, err
	}
	var result MatchResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stmt, err := tx.StatementLineForUpdate(ctx, in.StatementLineID)
		if err != nil {
			return err
		}
		if err := tenant.Check(in.TenantID, stmt.TenantID, "bank_statement_line", stmt.ID); err != nil {
			return err
		}
		if stmt.IsMatched {
			return shared.Validation("statement_line_id", "line %d is already matched", stmt.ID)
		}
		line, err := tx.LedgerLineForUpdate(ctx, in.LedgerLineID)
		if err != nil {
			return err
		}
		if err := tenant.Check(in.TenantID, line.TenantID, "ledger_line", line.ID); err != nil {
			return err
		}
		if line.AccountID != stmt.AccountID {
			return shared.Validation("ledger_line_id", "line %d is posted to another account", line.ID)
		}
		if line.IsDebit() != stmt.IsDebit() {
			return shared.Validation("ledger_line_id", "line %d has the opposite sign", line.ID)
		}
		if err := periods.AssertOpen(ctx, tx, in.TenantID, line.EntryDate); err != nil {
			return err
		}
		matched, err := tx.MatchedTotal(ctx, line.ID)
		if err != nil {
			return err
		}
		after := matched.Add(stmt.Amount())
		if after.GreaterThan(line.Amount()) {
			return shared.Validation("statement_line_id", "matched %s exceeds ledger amount %s", after.String(), line.Amount().String())
		}

		at := s.now()
		if err := tx.SetStatementMatch(ctx, stmt.ID, &line.ID, &at); err != nil {
			return err
		}
		stmt.IsMatched, stmt.LedgerLineID, stmt.MatchedAt = true, &line.ID, &at
		if after.Equal(line.Amount()) {
			if err := tx.SetLineReconciled(ctx, line.ID, true, &at); err != nil {
				return err
			}
			line.IsReconciled, line.ReconciledAt = true, &at
		}
		result = MatchResult{Statement: stmt, Ledger: line}
		return nil
	})
	if err != nil {
		s.reject(ctx, "match", in.TenantID, err)
		return MatchResult{}, err
	}
	s.record(ctx, in.TenantID, in.ActorID, "accounting.bank.match", "bank_statement_line", strconv.FormatInt(in.StatementLineID, 10), map[string]any{
		"ledger_line_id": in.LedgerLineID,
		"reconciled":     result.Ledger.IsReconciled,
	})
	return result, nil
}

// Unmatch removes the link of a statement line and clears the ledger line's
// reconciled flag.
func (s *Service) Unmatch(ctx context.Context, in UnmatchInput) (MatchResult, error) {
	if err := tenant.Require(in.TenantID); err != nil {
		return MatchResult{}, err
	}
	var result MatchResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stmt, err := tx.StatementLineForUpdate(ctx, in.StatementLineID)
		if err != nil {
			return err
		}
		if err := tenant.Check(in.TenantID, stmt.TenantID, "bank_statement_line", stmt.ID); err != nil {
			return err
		}
		if !stmt.IsMatched || stmt.LedgerLineID == nil {
			return shared.Validation("statement_line_id", "line %d is not matched", stmt.ID)
		}
		line, err := tx.LedgerLineForUpdate(ctx, *stmt.LedgerLineID)
		if err != nil {
			return err
		}
		if err := periods.AssertOpen(ctx, tx, in.TenantID, line.EntryDate); err != nil {
			return err
		}
		if err := tx.SetStatementMatch(ctx, stmt.ID, nil, nil); err != nil {
			return err
		}
		stmt.IsMatched, stmt.LedgerLineID, stmt.MatchedAt = false, nil, nil
		if line.IsReconciled {
			if err := tx.SetLineReconciled(ctx, line.ID, false, nil); err != nil {
				return err
			}
			line.IsReconciled, line.ReconciledAt = false, nil
		}
		result = MatchResult{Statement: stmt, Ledger: line}
		return nil
	})
	if err != nil {
		s.reject(ctx, "unmatch", in.TenantID, err)
		return MatchResult{}, err
	}
	s.record(ctx, in.TenantID, in.ActorID, "accounting.bank.unmatch", "bank_statement_line", strconv.FormatInt(in.StatementLineID, 10), map[string]any{
		"ledger_line_id": result.Ledger.ID,
	})
	return result, nil
}

// List returns statement lines of a tenant.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]StatementLine, error) {
	if err := tenant.Require(filter.TenantID); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) reject(ctx context.Context, op string, tenantID int64, err error) {
	level := slog.LevelDebug
	switch shared.KindOf(err) {
	case shared.KindCrossTenant, "":
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "bank "+op+" rejected", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
}

func (s *Service) record(ctx context.Context, tenantID, actorID int64, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, appshared.AuditLog{
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit bank reconciliation", slog.String("action", action), slog.Any("error", err))
	}
}
