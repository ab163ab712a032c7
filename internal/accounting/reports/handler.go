package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Handler exposes read-only projections.
type Handler struct {
	service *Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler constructs the reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, now: time.Now}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/balance/{accountID}", h.Balance)
		r.Get("/trial-balance", h.TrialBalance)
		r.Get("/profit-loss", h.ProfitAndLoss)
		r.Get("/balance-sheet", h.BalanceSheet)
		r.Get("/statement/{accountID}", h.Statement)
		r.Get("/reconciliation/{accountID}", h.Reconciliation)
	})
}

func (h *Handler) today() time.Time {
	y, m, d := h.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (h *Handler) monthRange(r *http.Request) (time.Time, time.Time, error) {
	today := h.today()
	from, err := httpx.DateQuery(r, "from", time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := httpx.DateQuery(r, "to", today)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.Int64Param(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.DateQuery(r, "as_of", h.today())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	out, err := h.service.Balance(r.Context(), tenantID, accountID, asOf)
	if err != nil {
		h.fail(w, "balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.DateQuery(r, "as_of", h.today())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	tb, err := h.service.TrialBalance(r.Context(), tenantID, asOf)
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"as_of":    asOf.Format(time.DateOnly),
		"report":   tb,
		"balanced": tb.Balanced(),
	})
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.monthRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	pl, err := h.service.ProfitAndLoss(r.Context(), tenantID, from, to)
	if err != nil {
		h.fail(w, "profit and loss", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"from":   from.Format(time.DateOnly),
		"to":     to.Format(time.DateOnly),
		"report": pl,
	})
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.DateQuery(r, "as_of", h.today())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	bs, err := h.service.BalanceSheet(r.Context(), tenantID, asOf)
	if err != nil {
		h.fail(w, "balance sheet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"as_of":    asOf.Format(time.DateOnly),
		"report":   bs,
		"balanced": bs.Balanced(),
	})
}

func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.Int64Param(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, to, err := h.monthRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	stmt, err := h.service.Statement(r.Context(), tenantID, accountID, from, to)
	if err != nil {
		h.fail(w, "statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stmt)
}

func (h *Handler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.Int64Param(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.DateQuery(r, "as_of", h.today())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	status, err := h.service.ReconciliationStatus(r.Context(), tenantID, accountID, asOf)
	if err != nil {
		h.fail(w, "reconciliation status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
