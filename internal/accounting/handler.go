// Package accounting mounts the ledger HTTP surface.
package accounting

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Handler wires the ledger endpoints under one tenant-scoped router.
type Handler struct {
	logger         *slog.Logger
	accounts       *accounts.Handler
	journals       *journals.Handler
	periods        *periods.Handler
	reports        *reports.Handler
	reconciliation *reconciliation.Handler
	mappings       *mappings.Handler
	writeLimit     int
}

// Handlers groups the sub-handlers. Nil members are not mounted.
type Handlers struct {
	Accounts       *accounts.Handler
	Journals       *journals.Handler
	Periods        *periods.Handler
	Reports        *reports.Handler
	Reconciliation *reconciliation.Handler
	Mappings       *mappings.Handler
}

// NewHandler builds a Handler. writesPerMinute bounds mutating requests per
// tenant; zero disables the limiter.
func NewHandler(logger *slog.Logger, handlers Handlers, writesPerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		accounts:       handlers.Accounts,
		journals:       handlers.Journals,
		periods:        handlers.Periods,
		reports:        handlers.Reports,
		reconciliation: handlers.Reconciliation,
		mappings:       handlers.Mappings,
		writeLimit:     writesPerMinute,
	}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(tenant.Middleware(h.logger))

	if h.accounts != nil {
		h.accounts.MountRoutes(r)
	}
	if h.journals != nil {
		h.journals.MountRoutes(r)
	}
	if h.periods != nil {
		h.periods.MountRoutes(r)
	}
	if h.reports != nil {
		h.reports.MountRoutes(r)
	}
	if h.reconciliation != nil {
		h.reconciliation.MountRoutes(r)
	}
	if h.mappings != nil {
		h.mappings.MountRoutes(r)
	}

	r.Group(func(r chi.Router) {
		if h.writeLimit > 0 {
			r.Use(httprate.Limit(h.writeLimit, time.Minute,
				httprate.WithKeyFuncs(tenant.KeyByTenant),
				httprate.WithLimitHandler(h.limited)))
		}
		if h.journals != nil {
			h.journals.MountWriteRoutes(r)
		}
		if h.periods != nil {
			h.periods.MountWriteRoutes(r)
		}
		if h.reconciliation != nil {
			h.reconciliation.MountWriteRoutes(r)
		}
	})
}

func (h *Handler) limited(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	h.logger.Warn("ledger write rate limited", slog.Int64("tenant_id", tenantID), slog.String("path", r.URL.Path))
	httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "write rate limit exceeded for tenant")
}
