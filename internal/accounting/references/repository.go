package references

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ConstraintExclusive is the partial unique index over exclusive bindings.
const ConstraintExclusive = "uq_ledger_entries_reference"

// BindingQueries runs binding lookups inside the posting transaction.
type BindingQueries struct {
	tx pgx.Tx
}

// NewBindingQueries binds reference queries to tx.
func NewBindingQueries(tx pgx.Tx) *BindingQueries {
	return &BindingQueries{tx: tx}
}

func (q *BindingQueries) EntryByReference(ctx context.Context, tenantID int64, b Binding) (int64, bool, error) {
	var id int64
	err := q.tx.QueryRow(ctx, `SELECT id FROM ledger_entries
WHERE tenant_id = $1 AND ref_kind = $2 AND ref_id = $3 AND ref_qualifier = $4 AND ref_exclusive
LIMIT 1`, tenantID, b.Kind, b.SourceID, b.Qualifier).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
