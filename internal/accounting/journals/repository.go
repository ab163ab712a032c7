package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/references"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

const constraintReversalOf = "uq_ledger_entries_reversal_of"

const entryColumns = `id, tenant_id, entry_date, description, source_tag, total, status, created_by,
ref_kind, ref_id, ref_qualifier, ref_exclusive, reversal_of, digest, posted_at`

const lineColumns = `id, entry_id, tenant_id, line_no, account_id, debit, credit, memo, is_reconciled, reconciled_at`

type repository struct {
	runner *db.TxRunner
}

// NewRepository returns a Postgres backed Repository.
func NewRepository(runner *db.TxRunner) Repository {
	return &repository{runner: runner}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, newTxRepository(tx))
	})
}

func (r *repository) Get(ctx context.Context, entryID int64) (Entry, error) {
	return loadEntry(ctx, r.runner.Pool(), entryID, false)
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Entry, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{f.TenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.From != nil {
		add("entry_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("entry_date <= $%d", *f.To)
	}
	if f.SourceTag != "" {
		add("source_tag = $%d", f.SourceTag)
	}
	if f.Kind != "" {
		add("ref_kind = $%d", f.Kind)
	}
	if f.SourceID > 0 {
		add("ref_id = $%d", f.SourceID)
	}
	args = append(args, f.Limit, f.Offset)
	sql := fmt.Sprintf(`SELECT %s, COUNT(*) OVER () FROM ledger_entries WHERE %s
ORDER BY entry_date DESC, id DESC LIMIT $%d OFFSET $%d`, entryColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.runner.Pool().Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		entries []Entry
		total   int
	)
	for rows.Next() {
		e, err := scanEntry(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

type txRepository struct {
	*periods.MonthQueries
	*accounts.AccountQueries
	*references.BindingQueries
	tx pgx.Tx
}

func newTxRepository(tx pgx.Tx) *txRepository {
	return &txRepository{
		MonthQueries:   periods.NewMonthQueries(tx),
		AccountQueries: accounts.NewAccountQueries(tx),
		BindingQueries: references.NewBindingQueries(tx),
		tx:             tx,
	}
}

func (t *txRepository) EntryWithLines(ctx context.Context, entryID int64) (Entry, error) {
	return loadEntry(ctx, t.tx, entryID, true)
}

func (t *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO ledger_entries (tenant_id, entry_date, description, source_tag, total, status, created_by,
ref_kind, ref_id, ref_qualifier, ref_exclusive, reversal_of, digest, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), $8, $9, $10, $11, $12, $13, $14)
RETURNING id`,
		e.TenantID, e.Date, e.Description, e.SourceTag, e.Total, e.Status, e.CreatedBy,
		e.Reference.Kind, e.Reference.SourceID, e.Reference.Qualifier, e.Reference.Exclusive,
		e.ReversalOf, e.Digest, e.PostedAt).Scan(&e.ID)
	if err != nil {
		return Entry{}, mapInsertError(e, err)
	}

	batch := &pgx.Batch{}
	for _, l := range e.Lines {
		batch.Queue(`INSERT INTO ledger_lines (entry_id, tenant_id, line_no, account_id, debit, credit, memo)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`, e.ID, e.TenantID, l.LineNo, l.AccountID, l.Debit, l.Credit, l.Memo)
	}
	results := t.tx.SendBatch(ctx, batch)
	for i := range e.Lines {
		if err := results.QueryRow().Scan(&e.Lines[i].ID); err != nil {
			_ = results.Close()
			if db.PgCode(err) == db.CodeForeignKeyViolation {
				return Entry{}, shared.Validation(fmt.Sprintf("lines[%d].account_id", i), "account %d no longer exists", e.Lines[i].AccountID)
			}
			return Entry{}, fmt.Errorf("journals: insert line %d: %w", i+1, err)
		}
		e.Lines[i].EntryID = e.ID
	}
	if err := results.Close(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func mapInsertError(e Entry, err error) error {
	if db.PgCode(err) != db.CodeUniqueViolation {
		return fmt.Errorf("journals: insert entry: %w", err)
	}
	switch db.ConstraintName(err) {
	case references.ConstraintExclusive, constraintReversalOf:
		return references.Duplicate(e.TenantID, e.Reference, 0)
	}
	return fmt.Errorf("journals: insert entry: %w", err)
}

func (r *repository) EntriesAfter(ctx context.Context, tenantID, afterID int64, limit int) ([]Entry, error) {
	rows, err := r.runner.Pool().Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE tenant_id = $1 AND id > $2 ORDER BY id LIMIT $3`, tenantID, afterID, limit)
	if err != nil {
		return nil, err
	}
	var (
		entries []Entry
		ids     []int64
		index   = map[int64]int{}
	)
	for rows.Next() {
		e, err := scanEntry(rows, nil)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[e.ID] = len(entries)
		ids = append(ids, e.ID)
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return entries, nil
	}
	lines, err := r.runner.Pool().Query(ctx, `SELECT `+lineColumns+` FROM ledger_lines WHERE entry_id = ANY($1) ORDER BY entry_id, line_no`, ids)
	if err != nil {
		return nil, err
	}
	defer lines.Close()
	for lines.Next() {
		var l Line
		if err := lines.Scan(&l.ID, &l.EntryID, &l.TenantID, &l.LineNo, &l.AccountID, &l.Debit, &l.Credit, &l.Memo, &l.IsReconciled, &l.ReconciledAt); err != nil {
			return nil, err
		}
		i := index[l.EntryID]
		entries[i].Lines = append(entries[i].Lines, l)
	}
	return entries, lines.Err()
}

func loadEntry(ctx context.Context, q db.Querier, entryID int64, lock bool) (Entry, error) {
	sql := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`
	if lock {
		sql += ` FOR SHARE`
	}
	e, err := scanEntry(q.QueryRow(ctx, sql, entryID), nil)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, shared.NotFound("ledger_entry", entryID)
	}
	if err != nil {
		return Entry{}, err
	}
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM ledger_lines WHERE entry_id = $1 ORDER BY line_no`, entryID)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.EntryID, &l.TenantID, &l.LineNo, &l.AccountID, &l.Debit, &l.Credit, &l.Memo, &l.IsReconciled, &l.ReconciledAt); err != nil {
			return Entry{}, err
		}
		e.Lines = append(e.Lines, l)
	}
	return e, rows.Err()
}

func scanEntry(row pgx.Row, total *int) (Entry, error) {
	var (
		e         Entry
		createdBy *int64
	)
	dest := []any{&e.ID, &e.TenantID, &e.Date, &e.Description, &e.SourceTag, &e.Total, &e.Status, &createdBy,
		&e.Reference.Kind, &e.Reference.SourceID, &e.Reference.Qualifier, &e.Reference.Exclusive,
		&e.ReversalOf, &e.Digest, &e.PostedAt}
	if total != nil {
		dest = append(dest, total)
	}
	if err := row.Scan(dest...); err != nil {
		return Entry{}, err
	}
	if createdBy != nil {
		e.CreatedBy = *createdBy
	}
	e.Date = periods.DateOf(e.Date)
	return e, nil
}
