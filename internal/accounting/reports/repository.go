package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

type repository struct {
	accounts.Lookup
	db *pgxpool.Pool
}

// NewRepository returns a Postgres backed Repository reading posted lines.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{Lookup: accounts.NewRepository(pool), db: pool}
}

func (r *repository) Balances(ctx context.Context, tenantID int64, from *time.Time, to time.Time) ([]AccountBalance, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, a.type,
       COALESCE(t.debit, 0), COALESCE(t.credit, 0)
FROM accounts a
LEFT JOIN (
    SELECT l.account_id, SUM(l.debit) AS debit, SUM(l.credit) AS credit
    FROM ledger_lines l
    JOIN ledger_entries e ON e.id = l.entry_id
    WHERE l.tenant_id = $1 AND e.status = 'POSTED'
      AND ($2::date IS NULL OR e.entry_date >= $2) AND e.entry_date <= $3
    GROUP BY l.account_id
) t ON t.account_id = a.id
WHERE a.tenant_id = $1
ORDER BY a.code`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		b.Opening = decimal.Zero
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) AccountSums(ctx context.Context, tenantID, accountID int64, from *time.Time, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM ledger_lines l
JOIN ledger_entries e ON e.id = l.entry_id
WHERE l.tenant_id = $1 AND l.account_id = $2 AND e.status = 'POSTED'
  AND ($3::date IS NULL OR e.entry_date >= $3) AND e.entry_date <= $4`,
		tenantID, accountID, from, to).Scan(&debit, &credit)
	return debit, credit, err
}

func (r *repository) AccountLines(ctx context.Context, tenantID, accountID int64, from *time.Time, to time.Time) ([]LineActivity, error) {
	rows, err := r.db.Query(ctx, `SELECT l.id, e.id, e.entry_date, e.description, e.source_tag, l.memo,
       l.debit, l.credit, l.is_reconciled, l.reconciled_at
FROM ledger_lines l
JOIN ledger_entries e ON e.id = l.entry_id
WHERE l.tenant_id = $1 AND l.account_id = $2 AND e.status = 'POSTED'
  AND ($3::date IS NULL OR e.entry_date >= $3) AND e.entry_date <= $4
ORDER BY e.entry_date, e.id, l.line_no`, tenantID, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LineActivity
	for rows.Next() {
		var l LineActivity
		if err := rows.Scan(&l.LineID, &l.EntryID, &l.Date, &l.Description, &l.SourceTag, &l.Memo,
			&l.Debit, &l.Credit, &l.IsReconciled, &l.ReconciledAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
