package periods

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Handler exposes month listing and closing.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs the period handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validator: validator.New()}
}

// MountRoutes registers read routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/periods", h.List)
	r.Get("/periods/current", h.Current)
}

// MountWriteRoutes registers routes that take the exclusive period lock.
func (h *Handler) MountWriteRoutes(r chi.Router) {
	r.Post("/periods/close", h.Close)
}

type closeRequest struct {
	MonthEnd string `json:"month_end" validate:"required,datetime=2006-01-02"`
}

type monthResponse struct {
	ID       int64      `json:"id"`
	Year     int        `json:"year"`
	Month    int        `json:"month"`
	Start    string     `json:"start_date"`
	End      string     `json:"end_date"`
	Status   Status     `json:"status"`
	ClosedBy *int64     `json:"closed_by,omitempty"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

func toMonthResponse(m FinancialMonth) monthResponse {
	return monthResponse{
		ID:       m.ID,
		Year:     m.Year,
		Month:    int(m.Month),
		Start:    m.StartDate.Format(time.DateOnly),
		End:      m.EndDate.Format(time.DateOnly),
		Status:   m.Status,
		ClosedBy: m.ClosedBy,
		ClosedAt: m.ClosedAt,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	months, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.fail(w, "list periods", err)
		return
	}
	out := make([]monthResponse, 0, len(months))
	for _, m := range months {
		out = append(out, toMonthResponse(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": out})
}

func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	from, err := h.service.Current(r.Context(), tenantID)
	if err != nil {
		h.fail(w, "current period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"open_from": from.Format(time.DateOnly)})
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	monthEnd, err := httpx.ParseDate("month_end", req.MonthEnd)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	snap, err := h.service.CloseMonth(r.Context(), CloseInput{
		TenantID: tenantID,
		MonthEnd: monthEnd,
		ActorID:  tenant.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "close month", err)
		return
	}
	accounts := make([]map[string]any, 0, len(snap.Accounts))
	for _, a := range snap.Accounts {
		accounts = append(accounts, map[string]any{
			"account_id": a.AccountID,
			"code":       a.Code,
			"name":       a.Name,
			"debit":      a.Debit,
			"credit":     a.Credit,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"month":        toMonthResponse(snap.Month),
		"entry_count":  snap.EntryCount,
		"total_debit":  snap.TotalDebit,
		"total_credit": snap.TotalCredit,
		"accounts":     accounts,
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
