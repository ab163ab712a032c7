package journals

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/references"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	appshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// TxRepository exposes everything the posting path reads and writes inside one transaction.
type TxRepository interface {
	periods.Reader
	accounts.Lookup
	references.Lookup
	// EntryWithLines loads an entry of any tenant; callers check ownership.
	EntryWithLines(ctx context.Context, entryID int64) (Entry, error)
	// InsertEntry stores the header and lines and returns them with ids assigned.
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
}

// Repository runs posting transactions and entry reads.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, entryID int64) (Entry, error)
	List(ctx context.Context, filter ListFilter) ([]Entry, int, error)
	// EntriesAfter pages through a tenant's entries by id, lines included.
	EntriesAfter(ctx context.Context, tenantID, afterID int64, limit int) ([]Entry, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log appshared.AuditLog) error
}

// Invalidator drops cached projections of a tenant.
type Invalidator interface {
	Bump(ctx context.Context, tenantID int64) error
}

// Recorder counts posting outcomes.
type Recorder interface {
	ObservePosting(source, outcome string)
}

// Service is the posting engine: the only writer of ledger entries.
type Service struct {
	repo        Repository
	logger      *slog.Logger
	audit       AuditPort
	invalidator Invalidator
	metrics     Recorder
	now         func() time.Time
}

// NewService constructs the posting engine. audit, invalidator and metrics are optional.
func NewService(repo Repository, logger *slog.Logger, audit AuditPort, invalidator Invalidator, metrics Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, audit: audit, invalidator: invalidator, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

type postOptions struct {
	reversalOf    *int64
	allowInactive bool
}

// Post validates a draft and commits it atomically. It fails with
// ValidationError, CrossTenantViolation, PeriodClosed, DuplicatePosting or
// UnbalancedEntry, in that order of evaluation, and persists nothing on failure.
func (s *Service) Post(ctx context.Context, draft DraftEntry) (Entry, error) {
	var entry Entry
	err := draft.Validate()
	if err == nil {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var e error
			entry, e = s.post(ctx, tx, draft, postOptions{})
			return e
		})
	}
	s.finish(ctx, "accounting.entry.post", draft.TenantID, draft.CreatedBy, draft.SourceTag, entry, err)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Reverse posts a new entry mirroring entryID, dated in.Date, through the same
// path as Post. The original is left untouched.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (Entry, error) {
	var (
		entry     Entry
		sourceTag string
	)
	err := in.Validate()
	if err == nil {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			original, err := tx.EntryWithLines(ctx, in.EntryID)
			if err != nil {
				return err
			}
			if err := tenant.Check(in.TenantID, original.TenantID, "ledger_entry", original.ID); err != nil {
				return err
			}
			sourceTag = original.SourceTag
			binding := references.ReversalOf(original.ID, original.Reference)
			draft := DraftEntry{
				TenantID:    in.TenantID,
				Date:        in.Date,
				Description: defaultReversalDescription(in.Description, original),
				SourceTag:   original.SourceTag,
				CreatedBy:   in.ActorID,
				Lines:       swapLines(original.Lines),
				Reference:   &binding,
			}
			if err := draft.Validate(); err != nil {
				return err
			}
			entry, err = s.post(ctx, tx, draft, postOptions{reversalOf: &original.ID, allowInactive: true})
			return err
		})
	}
	s.finish(ctx, "accounting.entry.reverse", in.TenantID, in.ActorID, sourceTag, entry, err)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *Service) post(ctx context.Context, tx TxRepository, draft DraftEntry, opts postOptions) (Entry, error) {
	ids := make([]int64, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		ids = append(ids, line.AccountID)
	}
	resolved, err := accounts.ResolveAll(ctx, tx, draft.TenantID, ids)
	if err != nil {
		var missing *shared.Error
		if errors.As(err, &missing) && missing.Kind == shared.KindNotFound {
			return Entry{}, shared.Validation("lines.account_id", "account %s", missing.Message)
		}
		return Entry{}, err
	}
	if !opts.allowInactive {
		for _, id := range ids {
			if !resolved[id].IsActive {
				return Entry{}, shared.Validation("lines.account_id", "account %d is inactive", id)
			}
		}
	}

	date := periods.DateOf(draft.Date)
	if err := periods.AssertOpen(ctx, tx, draft.TenantID, date); err != nil {
		return Entry{}, err
	}

	binding := references.None()
	if draft.Reference != nil {
		binding = *draft.Reference
	}
	token, err := references.Bind(ctx, tx, draft.TenantID, binding)
	if err != nil {
		return Entry{}, err
	}

	debit, credit := draft.Sums()
	if !debit.Equal(credit) {
		return Entry{}, &shared.UnbalancedError{Debit: debit, Credit: credit}
	}

	entry := Entry{
		TenantID:    draft.TenantID,
		Date:        date,
		Description: draft.Description,
		SourceTag:   draft.SourceTag,
		Total:       debit,
		Status:      StatusPosted,
		CreatedBy:   draft.CreatedBy,
		Reference:   token.Binding,
		ReversalOf:  opts.reversalOf,
		PostedAt:    s.now(),
		Lines:       make([]Line, 0, len(draft.Lines)),
	}
	for i, l := range draft.Lines {
		entry.Lines = append(entry.Lines, Line{
			TenantID:  draft.TenantID,
			LineNo:    i + 1,
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Memo:      l.Memo,
		})
	}
	entry.Digest = Digest(entry)
	return tx.InsertEntry(ctx, entry)
}

func (s *Service) finish(ctx context.Context, action string, tenantID, actorID int64, source string, entry Entry, err error) {
	outcome := "posted"
	if err != nil {
		outcome = string(shared.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	if s.metrics != nil {
		s.metrics.ObservePosting(source, outcome)
	}
	if err != nil {
		attrs := []any{slog.String("action", action), slog.Int64("tenant_id", tenantID), slog.String("source_tag", source), slog.Any("error", err)}
		switch shared.KindOf(err) {
		case shared.KindCrossTenant:
			s.logger.Error("cross-tenant reference rejected", attrs...)
		case "":
			s.logger.Error("posting failed", attrs...)
		default:
			s.logger.Debug("posting rejected", attrs...)
		}
		return
	}

	s.logger.Info("ledger entry posted",
		slog.String("action", action),
		slog.Int64("tenant_id", tenantID),
		slog.Int64("entry_id", entry.ID),
		slog.String("total", entry.Total.String()),
		slog.String("reference", entry.Reference.String()))
	if s.invalidator != nil {
		if err := s.invalidator.Bump(ctx, tenantID); err != nil {
			s.logger.Warn("invalidate report cache", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		meta := map[string]any{
			"source_tag": entry.SourceTag,
			"total":      entry.Total.String(),
			"reference":  entry.Reference.String(),
			"digest":     entry.Digest,
		}
		if entry.ReversalOf != nil {
			meta["reversal_of"] = *entry.ReversalOf
		}
		if err := s.audit.Record(ctx, appshared.AuditLog{
			TenantID: tenantID,
			ActorID:  actorID,
			Action:   action,
			Entity:   "ledger_entry",
			EntityID: strconv.FormatInt(entry.ID, 10),
			Meta:     meta,
			At:       s.now(),
		}); err != nil {
			s.logger.Warn("audit ledger entry", slog.Int64("entry_id", entry.ID), slog.Any("error", err))
		}
	}
}

// Get returns an entry of tenantID with its lines.
func (s *Service) Get(ctx context.Context, tenantID, entryID int64) (Entry, error) {
	if err := tenant.Require(tenantID); err != nil {
		return Entry{}, err
	}
	entry, err := s.repo.Get(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	if err := tenant.Check(tenantID, entry.TenantID, "ledger_entry", entryID); err != nil {
		s.logger.Error("cross-tenant entry read rejected", slog.Int64("tenant_id", tenantID), slog.Int64("entry_id", entryID))
		return Entry{}, err
	}
	return entry, nil
}

// List returns entry headers matching filter and the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	if err := tenant.Require(filter.TenantID); err != nil {
		return nil, 0, err
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}
