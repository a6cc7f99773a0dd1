package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler serves report data structures as JSON.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/profit-and-loss", h.ProfitAndLoss)
	r.Get("/balance-sheet", h.BalanceSheet)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, tb)
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	from, err := queryDate(r, "from", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	to, err := queryDate(r, "to", now)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	if from.After(to) {
		shared.RespondError(w, http.StatusBadRequest, errors.New("reports: from must not be after to"))
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), from, to)
	if err != nil {
		h.logger.Error("profit and loss", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, pl)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), asOf)
	if err != nil {
		h.logger.Error("balance sheet", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, bs)
}

func queryDate(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", raw)
}
