package tenant

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

const (
	// HeaderTenant carries the company id set by the upstream gateway.
	HeaderTenant = "X-Tenant-ID"
	// HeaderActor carries the authenticated user id.
	HeaderActor = "X-Actor-ID"
)

// Middleware rejects requests without a tenant header and stores tenant and actor in the request context.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := parseID(r.Header.Get(HeaderTenant))
			if err != nil || tenantID <= 0 {
				if logger != nil {
					logger.Warn("request without tenant", slog.String("path", r.URL.Path))
				}
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing or invalid "+HeaderTenant+" header")
				return
			}
			ctx := ContextWithTenant(r.Context(), tenantID)
			if actorID, err := parseID(r.Header.Get(HeaderActor)); err == nil && actorID > 0 {
				ctx = ContextWithActor(ctx, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyByTenant is an httprate key func that limits per tenant.
func KeyByTenant(r *http.Request) (string, error) {
	if id, ok := FromContext(r.Context()); ok {
		return "tenant:" + strconv.FormatInt(id, 10), nil
	}
	return "tenant:" + strings.TrimSpace(r.Header.Get(HeaderTenant)), nil
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}
