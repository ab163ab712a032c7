package mappings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists account mappings.
type Repository interface {
	Get(ctx context.Context, tenantID int64, module, key string) (AccountMapping, error)
	List(ctx context.Context, tenantID int64) ([]AccountMapping, error)
	Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const mappingColumns = `tenant_id, module, key, account_id, created_at, updated_at`

func scanMapping(row pgx.Row) (AccountMapping, error) {
	var m AccountMapping
	err := row.Scan(&m.TenantID, &m.Module, &m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// Get resolves the mapping for the specified key.
func (r *repository) Get(ctx context.Context, tenantID int64, module, key string) (AccountMapping, error) {
	module = NormalizeModule(module)
	m, err := scanMapping(r.db.QueryRow(ctx, `SELECT `+mappingColumns+` FROM account_mappings
WHERE tenant_id = $1 AND module = $2 AND key = $3`, tenantID, module, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return AccountMapping{}, NotMapped(tenantID, module, key)
	}
	return m, err
}

func (r *repository) List(ctx context.Context, tenantID int64) ([]AccountMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT `+mappingColumns+` FROM account_mappings
WHERE tenant_id = $1 ORDER BY module, key`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error) {
	return scanMapping(r.db.QueryRow(ctx, `INSERT INTO account_mappings (tenant_id, module, key, account_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (tenant_id, module, key) DO UPDATE SET account_id = EXCLUDED.account_id, updated_at = EXCLUDED.updated_at
RETURNING `+mappingColumns, m.TenantID, NormalizeModule(m.Module), m.Key, m.AccountID, m.UpdatedAt))
}
