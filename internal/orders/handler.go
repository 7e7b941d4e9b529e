package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kitarena/kitarena/internal/platform/httpx"
	"github.com/kitarena/kitarena/internal/pricing"
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

// Create is the public checkout endpoint. Guests place orders anonymously;
// logged-in customers get the order attached to their account.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
		return
	}

	var userID *int64
	if identity, ok := shared.IdentityFromContext(r.Context()); ok {
		userID = &identity.UserID
	}

	order, err := h.service.Create(r.Context(), req, userID)
	if err != nil {
		h.respondOrderErr(w, err, "create order failed")
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Limit:  parseInt(r.URL.Query().Get("limit"), 50),
		Offset: parseInt(r.URL.Query().Get("offset"), 0),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := Status(s)
		if !status.Valid() {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "unknown status filter")
			return
		}
		filter.Status = &status
	}
	if from := parseDate(r.URL.Query().Get("from")); from != nil {
		filter.DateFrom = from
	}
	if to := parseDate(r.URL.Query().Get("to")); to != nil {
		filter.DateTo = to
	}

	list, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list orders failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": list, "total": total})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid order id")
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// Transition changes the payment status. Only pending orders move.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid order id")
		return
	}
	var req TransitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
		return
	}

	actor, _ := shared.IdentityFromContext(r.Context())
	order, err := h.service.Transition(r.Context(), id, Status(req.Status), actor)
	if err != nil {
		h.respondOrderErr(w, err, "transition failed")
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) RecordDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid order id")
		return
	}
	var req DepositRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
		return
	}

	actor, _ := shared.IdentityFromContext(r.Context())
	order, err := h.service.RecordDeposit(r.Context(), id, req.DepositAmount, actor)
	if err != nil {
		h.logger.Error("record deposit failed", slog.Any("error", err), slog.Int64("order_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// respondOrderErr maps the pricing-specific failures before falling back to
// the shared taxonomy.
func (h *Handler) respondOrderErr(w http.ResponseWriter, err error, msg string) {
	var oos *pricing.OutOfStockError
	switch {
	case errors.As(err, &oos):
		httpx.Error(w, http.StatusConflict, httpx.CodeOutOfStock, oos.Error())
	case errors.Is(err, pricing.ErrOutOfStock):
		httpx.Error(w, http.StatusConflict, httpx.CodeOutOfStock, err.Error())
	case errors.Is(err, pricing.ErrProductMismatch):
		httpx.Error(w, http.StatusBadRequest, httpx.CodeProductMismatch, err.Error())
	default:
		if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrConflict) && !errors.Is(err, shared.ErrValidation) {
			h.logger.Error(msg, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
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
