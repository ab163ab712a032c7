package reconciliation

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Handler exposes statement import and matching.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs the reconciliation handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validator: validator.New()}
}

// MountRoutes registers read routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/bank/lines", h.List)
}

// MountWriteRoutes registers import and matching routes.
func (h *Handler) MountWriteRoutes(r chi.Router) {
	r.Post("/bank/statements", h.Import)
	r.Post("/bank/lines/{id}/match", h.Match)
	r.Post("/bank/lines/{id}/unmatch", h.Unmatch)
}

type importLineRequest struct {
	Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
	Description string          `json:"description" validate:"max=255"`
	Reference   string          `json:"reference" validate:"max=128"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

type importRequest struct {
	AccountID int64               `json:"account_id" validate:"required,gt=0"`
	Lines     []importLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type matchRequest struct {
	LedgerLineID int64 `json:"ledger_line_id" validate:"required,gt=0"`
}

type statementLineResponse struct {
	ID           int64           `json:"id"`
	AccountID    int64           `json:"account_id"`
	BatchID      uuid.UUID       `json:"batch_id"`
	Date         string          `json:"date"`
	Description  string          `json:"description"`
	Reference    string          `json:"reference,omitempty"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	IsMatched    bool            `json:"is_matched"`
	LedgerLineID *int64          `json:"ledger_line_id,omitempty"`
	MatchedAt    *time.Time      `json:"matched_at,omitempty"`
}

func toStatementLineResponse(l StatementLine) statementLineResponse {
	return statementLineResponse{
		ID:           l.ID,
		AccountID:    l.AccountID,
		BatchID:      l.BatchID,
		Date:         l.Date.Format(time.DateOnly),
		Description:  l.Description,
		Reference:    l.Reference,
		Debit:        l.Debit,
		Credit:       l.Credit,
		IsMatched:    l.IsMatched,
		LedgerLineID: l.LedgerLineID,
		MatchedAt:    l.MatchedAt,
	}
}

func toMatchResponse(res MatchResult) map[string]any {
	return map[string]any{
		"statement_line": toStatementLineResponse(res.Statement),
		"ledger_line": map[string]any{
			"id":            res.Ledger.ID,
			"entry_id":      res.Ledger.EntryID,
			"is_reconciled": res.Ledger.IsReconciled,
			"reconciled_at": res.Ledger.ReconciledAt,
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	filter := ListFilter{TenantID: tenantID}
	accountID, err := httpx.IntQuery(r, "account_id", 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.AccountID = int64(accountID)
	if raw := r.URL.Query().Get("matched"); raw != "" {
		matched, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "matched must be a boolean")
			return
		}
		filter.Matched = &matched
	}
	if filter.Limit, err = httpx.IntQuery(r, "limit", 100); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.Offset, err = httpx.IntQuery(r, "offset", 0); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list statement lines", err)
		return
	}
	out := make([]statementLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, toStatementLineResponse(l))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lines": out})
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	in := ImportInput{TenantID: tenantID, AccountID: req.AccountID, ActorID: tenant.ActorFromContext(r.Context())}
	for _, l := range req.Lines {
		date, err := httpx.ParseDate("lines.date", l.Date)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.Lines = append(in.Lines, ImportLine{Date: date, Description: l.Description, Reference: l.Reference, Debit: l.Debit, Credit: l.Credit})
	}
	res, err := h.service.Import(r.Context(), in)
	if err != nil {
		h.fail(w, "import statement", err)
		return
	}
	out := make([]statementLineResponse, 0, len(res.Lines))
	for _, l := range res.Lines {
		out = append(out, toStatementLineResponse(l))
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"batch_id": res.BatchID, "lines": out})
}

func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req matchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	res, err := h.service.Match(r.Context(), MatchInput{
		TenantID:        tenantID,
		StatementLineID: id,
		LedgerLineID:    req.LedgerLineID,
		ActorID:         tenant.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "match statement line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMatchResponse(res))
}

func (h *Handler) Unmatch(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	res, err := h.service.Unmatch(r.Context(), UnmatchInput{
		TenantID:        tenantID,
		StatementLineID: id,
		ActorID:         tenant.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "unmatch statement line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMatchResponse(res))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
