package journals

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/references"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	appshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

const idempotencyModule = "ledger.entries"

// IdempotencyStore deduplicates client submissions carrying an Idempotency-Key header.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, tenantID int64, key, module string) error
	Delete(ctx context.Context, tenantID int64, key, module string) error
}

// Handler exposes posting and reversal over JSON.
type Handler struct {
	service     *Service
	logger      *slog.Logger
	validator   *validator.Validate
	idempotency IdempotencyStore
}

// NewHandler constructs the journals handler. idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, idempotency IdempotencyStore) *Handler {
	return &Handler{service: service, logger: logger, validator: validator.New(), idempotency: idempotency}
}

type referenceRequest struct {
	Kind      string `json:"kind" validate:"required"`
	SourceID  int64  `json:"source_id" validate:"gte=0"`
	Qualifier string `json:"qualifier" validate:"max=64"`
	Exclusive bool   `json:"exclusive"`
}

type lineRequest struct {
	AccountID int64           `json:"account_id" validate:"required,gt=0"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo" validate:"max=255"`
}

type postRequest struct {
	Date        string            `json:"date" validate:"required,datetime=2006-01-02"`
	Description string            `json:"description" validate:"max=255"`
	SourceTag   string            `json:"source_tag" validate:"required,max=64"`
	Reference   *referenceRequest `json:"reference,omitempty"`
	Lines       []lineRequest     `json:"lines" validate:"required,min=1,dive"`
}

type reverseRequest struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description" validate:"max=255"`
}

type lineResponse struct {
	ID           int64           `json:"id"`
	LineNo       int             `json:"line_no"`
	AccountID    int64           `json:"account_id"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Memo         string          `json:"memo,omitempty"`
	IsReconciled bool            `json:"is_reconciled"`
	ReconciledAt *time.Time      `json:"reconciled_at,omitempty"`
}

type entryResponse struct {
	ID          int64           `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	SourceTag   string          `json:"source_tag"`
	Total       decimal.Decimal `json:"total"`
	Status      Status          `json:"status"`
	CreatedBy   int64           `json:"created_by,omitempty"`
	Reference   map[string]any  `json:"reference"`
	ReversalOf  *int64          `json:"reversal_of,omitempty"`
	Digest      string          `json:"digest"`
	PostedAt    time.Time       `json:"posted_at"`
	Lines       []lineResponse  `json:"lines,omitempty"`
}

func toEntryResponse(e Entry) entryResponse {
	out := entryResponse{
		ID:          e.ID,
		Date:        e.Date.Format(time.DateOnly),
		Description: e.Description,
		SourceTag:   e.SourceTag,
		Total:       e.Total,
		Status:      e.Status,
		CreatedBy:   e.CreatedBy,
		Reference: map[string]any{
			"kind":      e.Reference.Kind,
			"source_id": e.Reference.SourceID,
			"qualifier": e.Reference.Qualifier,
			"exclusive": e.Reference.Exclusive,
		},
		ReversalOf: e.ReversalOf,
		Digest:     e.Digest,
		PostedAt:   e.PostedAt,
	}
	for _, l := range e.Lines {
		out.Lines = append(out.Lines, lineResponse{
			ID:           l.ID,
			LineNo:       l.LineNo,
			AccountID:    l.AccountID,
			Debit:        l.Debit,
			Credit:       l.Credit,
			Memo:         l.Memo,
			IsReconciled: l.IsReconciled,
			ReconciledAt: l.ReconciledAt,
		})
	}
	return out
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	filter := ListFilter{TenantID: tenantID, SourceTag: r.URL.Query().Get("source_tag")}
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := httpx.ParseDate("from", raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.From = &from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := httpx.ParseDate("to", raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.To = &to
	}
	if raw := r.URL.Query().Get("ref_kind"); raw != "" {
		kind, err := references.ParseKind(raw)
		if err != nil {
			httpx.RespondError(w, errors.Join(httpx.ErrBadRequest, err))
			return
		}
		filter.Kind = kind
	}
	refID, err := httpx.IntQuery(r, "ref_id", 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.SourceID = int64(refID)
	page, err := httpx.IntQuery(r, "page", 1)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perPage, err := httpx.IntQuery(r, "per_page", 50)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	paging := appshared.NewPagination(page, perPage)
	filter.Limit = paging.PerPage
	filter.Offset = paging.Offset()

	entries, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list entries", err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out, "pagination": paging.WithTotal(total)})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	entry, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, "get entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	draft := DraftEntry{
		TenantID:    tenantID,
		Date:        date,
		Description: req.Description,
		SourceTag:   req.SourceTag,
		CreatedBy:   tenant.ActorFromContext(r.Context()),
	}
	for _, l := range req.Lines {
		draft.Lines = append(draft.Lines, DraftLine{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo})
	}
	if req.Reference != nil {
		kind, err := references.ParseKind(req.Reference.Kind)
		if err != nil {
			httpx.RespondError(w, errors.Join(httpx.ErrBadRequest, err))
			return
		}
		draft.Reference = &references.Binding{
			Kind:      kind,
			SourceID:  req.Reference.SourceID,
			Qualifier: req.Reference.Qualifier,
			Exclusive: req.Reference.Exclusive,
		}
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), tenantID, key, idempotencyModule); err != nil {
			if errors.Is(err, appshared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", "Idempotency-Key already used")
				return
			}
			h.fail(w, "idempotency check", err)
			return
		}
	}

	entry, err := h.service.Post(r.Context(), draft)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(r.Context(), tenantID, key, idempotencyModule); delErr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		h.fail(w, "post entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	entry, err := h.service.Reverse(r.Context(), ReverseInput{
		TenantID:    tenantID,
		EntryID:     id,
		Date:        date,
		ActorID:     tenant.ActorFromContext(r.Context()),
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, "reverse entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
