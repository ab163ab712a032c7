package mappings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Handler exposes mapping administration.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs the mappings handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers mapping routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/mappings", h.List)
	r.Put("/mappings", h.Put)
}

type putRequest struct {
	Module    string `json:"module" validate:"required,max=64"`
	Key       string `json:"key" validate:"required,max=128"`
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
}

type mappingResponse struct {
	Module    string `json:"module"`
	Key       string `json:"key"`
	AccountID int64  `json:"account_id"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	items, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.fail(w, "list mappings", err)
		return
	}
	out := make([]mappingResponse, 0, len(items))
	for _, m := range items {
		out = append(out, mappingResponse{Module: m.Module, Key: m.Key, AccountID: m.AccountID})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "put mapping", err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, req); err != nil {
		h.fail(w, "put mapping", err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	m, err := h.service.Set(r.Context(), tenantID, req.Module, req.Key, req.AccountID)
	if err != nil {
		h.fail(w, "put mapping", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mappingResponse{Module: m.Module, Key: m.Key, AccountID: m.AccountID})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
