package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	appshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const monthColumns = `id, tenant_id, year, month, start_date, end_date, status, closed_by, closed_at, created_at, updated_at`

type repository struct {
	runner *db.TxRunner
}

// NewRepository returns a Postgres backed Repository.
func NewRepository(runner *db.TxRunner) Repository {
	return &repository{runner: runner}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewMonthQueries(tx))
	})
}

func (r *repository) List(ctx context.Context, tenantID int64) ([]FinancialMonth, error) {
	rows, err := r.runner.Pool().Query(ctx, `SELECT `+monthColumns+` FROM financial_months WHERE tenant_id = $1 ORDER BY start_date`, tenantID)
	if err != nil {
		return nil, err
	}
	return collectMonths(rows)
}

// MonthQueries implements TxRepository on a pgx transaction. The posting and
// reconciliation repositories embed it to share the period lock.
type MonthQueries struct {
	tx pgx.Tx
}

// NewMonthQueries binds period queries to tx.
func NewMonthQueries(tx pgx.Tx) *MonthQueries {
	return &MonthQueries{tx: tx}
}

func (q *MonthQueries) LockTenant(ctx context.Context, tenantID int64, exclusive bool) error {
	sql := `SELECT pg_advisory_xact_lock_shared(hashtextextended($1, 0))`
	if exclusive {
		sql = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	}
	_, err := q.tx.Exec(ctx, sql, appshared.PeriodLockKey(tenantID))
	return err
}

func (q *MonthQueries) MonthCovering(ctx context.Context, tenantID int64, date time.Time) (FinancialMonth, bool, error) {
	m, err := scanMonth(q.tx.QueryRow(ctx, `SELECT `+monthColumns+` FROM financial_months
WHERE tenant_id = $1 AND $2 BETWEEN start_date AND end_date
FOR SHARE`, tenantID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return FinancialMonth{}, false, nil
	}
	if err != nil {
		return FinancialMonth{}, false, err
	}
	return m, true, nil
}

func (q *MonthQueries) ClosedThrough(ctx context.Context, tenantID int64) (time.Time, bool, error) {
	var through *time.Time
	err := q.tx.QueryRow(ctx, `SELECT MAX(end_date) FROM financial_months WHERE tenant_id = $1 AND status = 'CLOSED'`, tenantID).Scan(&through)
	if err != nil || through == nil {
		return time.Time{}, false, err
	}
	return DateOf(*through), true, nil
}

func (q *MonthQueries) LockMonths(ctx context.Context, tenantID int64) ([]FinancialMonth, error) {
	rows, err := q.tx.Query(ctx, `SELECT `+monthColumns+` FROM financial_months WHERE tenant_id = $1 ORDER BY start_date FOR UPDATE`, tenantID)
	if err != nil {
		return nil, err
	}
	return collectMonths(rows)
}

func (q *MonthQueries) EarliestActivity(ctx context.Context, tenantID int64) (time.Time, bool, error) {
	var first *time.Time
	err := q.tx.QueryRow(ctx, `SELECT MIN(entry_date) FROM ledger_entries WHERE tenant_id = $1`, tenantID).Scan(&first)
	if err != nil || first == nil {
		return time.Time{}, false, err
	}
	return DateOf(*first), true, nil
}

func (q *MonthQueries) EnsureMonth(ctx context.Context, tenantID int64, start, end time.Time) (FinancialMonth, error) {
	return scanMonth(q.tx.QueryRow(ctx, `INSERT INTO financial_months (tenant_id, year, month, start_date, end_date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'OPEN', NOW(), NOW())
ON CONFLICT (tenant_id, year, month) DO UPDATE SET updated_at = financial_months.updated_at
RETURNING `+monthColumns, tenantID, start.Year(), int(start.Month()), start, end))
}

func (q *MonthQueries) MarkClosed(ctx context.Context, tenantID int64, start, end time.Time, actorID int64, at time.Time) (FinancialMonth, error) {
	return scanMonth(q.tx.QueryRow(ctx, `INSERT INTO financial_months (tenant_id, year, month, start_date, end_date, status, closed_by, closed_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'CLOSED', NULLIF($6, 0), $7, $7, $7)
ON CONFLICT (tenant_id, year, month) DO UPDATE
SET status = 'CLOSED', closed_by = EXCLUDED.closed_by, closed_at = EXCLUDED.closed_at, updated_at = EXCLUDED.updated_at
RETURNING `+monthColumns, tenantID, start.Year(), int(start.Month()), start, end, actorID, at))
}

func (q *MonthQueries) MonthActivity(ctx context.Context, tenantID int64, start, end time.Time) (MonthActivity, error) {
	var activity MonthActivity
	if err := q.tx.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE tenant_id = $1 AND entry_date BETWEEN $2 AND $3`, tenantID, start, end).
		Scan(&activity.EntryCount); err != nil {
		return MonthActivity{}, err
	}
	rows, err := q.tx.Query(ctx, `SELECT a.id, a.code, a.name, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM ledger_lines l
JOIN ledger_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.tenant_id = $1 AND e.entry_date BETWEEN $2 AND $3
GROUP BY a.id, a.code, a.name
ORDER BY a.code`, tenantID, start, end)
	if err != nil {
		return MonthActivity{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var a AccountActivity
		if err := rows.Scan(&a.AccountID, &a.Code, &a.Name, &a.Debit, &a.Credit); err != nil {
			return MonthActivity{}, err
		}
		activity.Accounts = append(activity.Accounts, a)
	}
	return activity, rows.Err()
}

func collectMonths(rows pgx.Rows) ([]FinancialMonth, error) {
	defer rows.Close()
	var months []FinancialMonth
	for rows.Next() {
		m, err := scanMonth(rows)
		if err != nil {
			return nil, err
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

func scanMonth(row pgx.Row) (FinancialMonth, error) {
	var (
		m     FinancialMonth
		month int
	)
	err := row.Scan(&m.ID, &m.TenantID, &m.Year, &month, &m.StartDate, &m.EndDate, &m.Status, &m.ClosedBy, &m.ClosedAt, &m.CreatedAt, &m.UpdatedAt)
	m.Month = time.Month(month)
	m.StartDate = DateOf(m.StartDate)
	m.EndDate = DateOf(m.EndDate)
	return m, err
}
