package accounts

import (
	"context"
	"sort"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Lookup loads accounts by id regardless of tenant so ownership can be checked explicitly.
type Lookup interface {
	AccountsByID(ctx context.Context, ids []int64) (map[int64]Account, error)
}

// ResolveAll loads every id and verifies each belongs to tenantID.
// Foreign ids fail with CrossTenantViolation, checked before missing ids
// fail with NotFound.
func ResolveAll(ctx context.Context, q Lookup, tenantID int64, ids []int64) (map[int64]Account, error) {
	unique := dedupe(ids)
	found, err := q.AccountsByID(ctx, unique)
	if err != nil {
		return nil, err
	}
	// Foreign ids win over missing ones whatever their order.
	for _, id := range unique {
		if acc, ok := found[id]; ok {
			if err := tenant.Check(tenantID, acc.TenantID, "account", id); err != nil {
				return nil, err
			}
		}
	}
	for _, id := range unique {
		if _, ok := found[id]; !ok {
			return nil, shared.NotFound("account", id)
		}
	}
	return found, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
