package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists the chart of accounts.
type Repository interface {
	Lookup
	List(ctx context.Context, tenantID int64, includeInactive bool) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	Create(ctx context.Context, in CreateInput) (Account, error)
	SetActive(ctx context.Context, id int64, active bool, at time.Time) error
	HasPostings(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

const (
	constraintTenantCode = "uq_accounts_tenant_code"
	constraintTenantName = "uq_accounts_tenant_name"
)

const accountColumns = `id, tenant_id, code, name, type, subtype, parent_id, is_active, created_at, updated_at`

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) List(ctx context.Context, tenantID int64, includeInactive bool) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE tenant_id = $1 AND ($2 OR is_active)
ORDER BY code`, tenantID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NotFound("account", id)
	}
	return a, err
}

func (r *repository) AccountsByID(ctx context.Context, ids []int64) (map[int64]Account, error) {
	return accountsByID(ctx, r.db, ids, false)
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `INSERT INTO accounts (tenant_id, code, name, type, subtype, parent_id, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
RETURNING `+accountColumns, in.TenantID, in.Code, in.Name, in.Type, in.Subtype, in.ParentID))
	if err != nil {
		if db.PgCode(err) == db.CodeUniqueViolation {
			switch db.ConstraintName(err) {
			case constraintTenantCode:
				return Account{}, shared.Validation("code", "%q already exists", in.Code)
			case constraintTenantName:
				return Account{}, shared.Validation("name", "%q already exists", in.Name)
			}
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET is_active = $2, updated_at = $3 WHERE id = $1`, id, active, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("account", id)
	}
	return nil
}

func (r *repository) HasPostings(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_lines WHERE account_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		if db.PgCode(err) == db.CodeForeignKeyViolation {
			return shared.AccountInUse(id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("account", id)
	}
	return nil
}

// AccountQueries runs account lookups inside a caller's transaction.
type AccountQueries struct {
	tx pgx.Tx
}

// NewAccountQueries binds account queries to tx.
func NewAccountQueries(tx pgx.Tx) *AccountQueries {
	return &AccountQueries{tx: tx}
}

// AccountsByID share-locks the rows so they cannot be deleted before commit.
func (q *AccountQueries) AccountsByID(ctx context.Context, ids []int64) (map[int64]Account, error) {
	return accountsByID(ctx, q.tx, ids, true)
}

func accountsByID(ctx context.Context, q db.Querier, ids []int64, lock bool) (map[int64]Account, error) {
	out := make(map[int64]Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	sql := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1)`
	if lock {
		sql += ` FOR KEY SHARE`
	}
	rows, err := q.Query(ctx, sql, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
