package close

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes period close operations over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches period close routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/pnl", h.MonthPnL)
	r.Post("/", h.CloseMonth)
	r.Post("/{id}/reopen", h.Reopen)
}

type closeMonthRequest struct {
	Year  int `json:"year" validate:"required,gte=2000,lte=2100"`
	Month int `json:"month" validate:"required,gte=1,lte=12"`
}

type reopenRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list period closes", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, records)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get period close", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, record)
}

func (h *Handler) MonthPnL(w http.ResponseWriter, r *http.Request) {
	year, month, err := parsePeriodQuery(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	pnl, err := h.service.MonthPnL(r.Context(), year, month)
	if err != nil {
		h.logger.Error("month pnl", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, pnl)
}

func (h *Handler) CloseMonth(w http.ResponseWriter, r *http.Request) {
	var req closeMonthRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	record, err := h.service.CloseMonth(r.Context(), req.Year, time.Month(req.Month), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, "close month", err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, record)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	var req reopenRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	record, err := h.service.Reopen(r.Context(), id, req.Reason, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, "reopen period", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, record)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	var tbErr *actshared.TrialBalanceError
	switch {
	case errors.Is(err, ErrCloseNotFound):
		shared.RespondError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrAlreadyClosed), errors.Is(err, ErrAlreadyReopened):
		shared.RespondError(w, http.StatusConflict, err)
	case errors.Is(err, ErrReasonRequired):
		shared.RespondError(w, http.StatusUnprocessableEntity, err)
	case errors.As(err, &tbErr):
		shared.RespondJSON(w, http.StatusConflict, map[string]any{
			"error":   tbErr.Error(),
			"debits":  tbErr.Debits,
			"credits": tbErr.Credits,
		})
	default:
		h.logger.Error(op, slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
	}
}

func parsePeriodQuery(r *http.Request) (int, time.Month, error) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		return 0, 0, errors.New("close: invalid year query parameter")
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, errors.New("close: invalid month query parameter")
	}
	return year, time.Month(month), nil
}
