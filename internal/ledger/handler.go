package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kitarena/kitarena/internal/platform/httpx"
	"github.com/kitarena/kitarena/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

type recordRequest struct {
	Type        string  `json:"type" validate:"required,oneof=INCOME EXPENSE"`
	Amount      int64   `json:"amount" validate:"gte=0"`
	Description string  `json:"description" validate:"max=500"`
	Category    string  `json:"category" validate:"max=100"`
	OccurredAt  *string `json:"occurredAt,omitempty"`
}

type updateRequest struct {
	Type        *string `json:"type,omitempty" validate:"omitempty,oneof=INCOME EXPENSE"`
	Amount      *int64  `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Category    *string `json:"category,omitempty" validate:"omitempty,max=100"`
	OccurredAt  *string `json:"occurredAt,omitempty"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.IdentityFromContext(r.Context())

	filter := ListFilter{
		Limit:  parseInt(r.URL.Query().Get("limit"), 50),
		Offset: parseInt(r.URL.Query().Get("offset"), 0),
	}
	if t := r.URL.Query().Get("type"); t != "" {
		typ := Type(t)
		filter.Type = &typ
	}
	if c := r.URL.Query().Get("category"); c != "" {
		filter.Category = &c
	}
	if from := parseDate(r.URL.Query().Get("from")); from != nil {
		filter.DateFrom = from
	}
	if to := parseDate(r.URL.Query().Get("to")); to != nil {
		filter.DateTo = to
	}
	// Sellers see only their own entries; admins see everything.
	if actor.Role != shared.RoleAdmin {
		filter.UserID = &actor.UserID
	}

	txs, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list transactions failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": txs, "total": total})
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
		return
	}

	actor, _ := shared.IdentityFromContext(r.Context())
	input := RecordInput{
		UserID:      &actor.UserID,
		Type:        Type(req.Type),
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
	}
	if req.OccurredAt != nil {
		t, err := time.Parse(time.RFC3339, *req.OccurredAt)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "occurredAt must be RFC3339")
			return
		}
		input.OccurredAt = &t
	}

	tx, err := h.service.Record(r.Context(), input)
	if err != nil {
		h.logger.Error("record transaction failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid transaction id")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
		return
	}

	fields := UpdateFields{
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
	}
	if req.Type != nil {
		typ := Type(*req.Type)
		fields.Type = &typ
	}
	if req.OccurredAt != nil {
		t, err := time.Parse(time.RFC3339, *req.OccurredAt)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "occurredAt must be RFC3339")
			return
		}
		fields.OccurredAt = &t
	}

	actor, _ := shared.IdentityFromContext(r.Context())
	tx, err := h.service.Update(r.Context(), id, actor, fields)
	if err != nil {
		h.logger.Error("update transaction failed", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid transaction id")
		return
	}
	actor, _ := shared.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id, actor); err != nil {
		h.logger.Error("delete transaction failed", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
