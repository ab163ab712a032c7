// Package tenant carries the company identity through requests and guards
// every ledger read and write against cross-tenant references.
package tenant

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type tenantContextKey struct{}

type actorContextKey struct{}

// ContextWithTenant stores the tenant id in ctx.
func ContextWithTenant(ctx context.Context, tenantID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// FromContext reads the tenant id from ctx.
func FromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(tenantContextKey{}).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// ContextWithActor stores the acting user id in ctx.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext returns the acting user id, zero when unknown.
func ActorFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}

// Require validates a tenant id supplied by a caller.
func Require(tenantID int64) error {
	if tenantID <= 0 {
		return shared.Validation("tenant_id", "must be positive")
	}
	return nil
}

// Check fails with a CrossTenantError when ownerID differs from tenantID.
func Check(tenantID, ownerID int64, resource string, resourceID int64) error {
	if ownerID == tenantID {
		return nil
	}
	return &shared.CrossTenantError{
		TenantID:   tenantID,
		OwnerID:    ownerID,
		Resource:   resource,
		ResourceID: resourceID,
	}
}
