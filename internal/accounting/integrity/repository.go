package integrity

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type repository struct {
	pool     *pgxpool.Pool
	journals journals.Repository
	reports  reports.Repository
}

// NewRepository composes the journal and report readers over pool.
func NewRepository(runner *db.TxRunner) Repository {
	return &repository{
		pool:     runner.Pool(),
		journals: journals.NewRepository(runner),
		reports:  reports.NewRepository(runner.Pool()),
	}
}

func (r *repository) Tenants(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM accounts ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) EntriesAfter(ctx context.Context, tenantID, afterID int64, limit int) ([]journals.Entry, error) {
	return r.journals.EntriesAfter(ctx, tenantID, afterID, limit)
}

func (r *repository) Balances(ctx context.Context, tenantID int64, from *time.Time, to time.Time) ([]reports.AccountBalance, error) {
	return r.reports.Balances(ctx, tenantID, from, to)
}
