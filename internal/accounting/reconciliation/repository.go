package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

const statementColumns = `id, tenant_id, account_id, batch_id, txn_date, description, reference,
debit, credit, is_matched, ledger_line_id, matched_at, created_at`

type repository struct {
	runner *db.TxRunner
}

// NewRepository returns a Postgres backed Repository.
func NewRepository(runner *db.TxRunner) Repository {
	return &repository{runner: runner}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			MonthQueries:   periods.NewMonthQueries(tx),
			AccountQueries: accounts.NewAccountQueries(tx),
			tx:             tx,
		})
	})
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]StatementLine, error) {
	where := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	if filter.AccountID > 0 {
		args = append(args, filter.AccountID)
		where = append(where, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.Matched != nil {
		args = append(args, *filter.Matched)
		where = append(where, fmt.Sprintf("is_matched = $%d", len(args)))
	}
	args = append(args, filter.Limit, filter.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM bank_statement_lines WHERE %s ORDER BY txn_date, id LIMIT $%d OFFSET $%d`,
		statementColumns, strings.Join(where, " AND "), len(args)-1, len(args))
	rows, err := r.runner.Pool().Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatementLine
	for rows.Next() {
		l, err := scanStatementLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type txRepository struct {
	*periods.MonthQueries
	*accounts.AccountQueries
	tx pgx.Tx
}

func (t *txRepository) InsertStatementLines(ctx context.Context, lines []StatementLine) ([]StatementLine, error) {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO bank_statement_lines (tenant_id, account_id, batch_id, txn_date, description, reference, debit, credit, is_matched, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
RETURNING `+statementColumns,
			l.TenantID, l.AccountID, l.BatchID, l.Date, l.Description, l.Reference, l.Debit, l.Credit, l.CreatedAt)
	}
	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()
	out := make([]StatementLine, 0, len(lines))
	for range lines {
		stored, err := scanStatementLine(results.QueryRow())
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}

func (t *txRepository) StatementLineForUpdate(ctx context.Context, id int64) (StatementLine, error) {
	l, err := scanStatementLine(t.tx.QueryRow(ctx, `SELECT `+statementColumns+` FROM bank_statement_lines WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return StatementLine{}, shared.NotFound("bank_statement_line", id)
	}
	return l, err
}

func (t *txRepository) LedgerLineForUpdate(ctx context.Context, id int64) (LedgerLine, error) {
	var l LedgerLine
	err := t.tx.QueryRow(ctx, `SELECT l.id, l.tenant_id, l.entry_id, e.entry_date, l.account_id, l.debit, l.credit, l.is_reconciled, l.reconciled_at
FROM ledger_lines l
JOIN ledger_entries e ON e.id = l.entry_id
WHERE l.id = $1
FOR UPDATE OF l`, id).Scan(&l.ID, &l.TenantID, &l.EntryID, &l.EntryDate, &l.AccountID, &l.Debit, &l.Credit, &l.IsReconciled, &l.ReconciledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return LedgerLine{}, shared.NotFound("ledger_line", id)
	}
	return l, err
}

func (t *txRepository) MatchedTotal(ctx context.Context, ledgerLineID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(debit + credit), 0) FROM bank_statement_lines WHERE ledger_line_id = $1 AND is_matched`, ledgerLineID).Scan(&total)
	return total, err
}

func (t *txRepository) SetStatementMatch(ctx context.Context, id int64, ledgerLineID *int64, at *time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE bank_statement_lines SET is_matched = $2, ledger_line_id = $3, matched_at = $4 WHERE id = $1`,
		id, ledgerLineID != nil, ledgerLineID, at)
	return err
}

func (t *txRepository) SetLineReconciled(ctx context.Context, ledgerLineID int64, reconciled bool, at *time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE ledger_lines SET is_reconciled = $2, reconciled_at = $3 WHERE id = $1`, ledgerLineID, reconciled, at)
	return err
}

func scanStatementLine(row pgx.Row) (StatementLine, error) {
	var l StatementLine
	err := row.Scan(&l.ID, &l.TenantID, &l.AccountID, &l.BatchID, &l.Date, &l.Description, &l.Reference,
		&l.Debit, &l.Credit, &l.IsMatched, &l.LedgerLineID, &l.MatchedAt, &l.CreatedAt)
	return l, err
}
