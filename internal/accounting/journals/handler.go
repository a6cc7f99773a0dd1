package journals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes journal operations over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Post("/{id}/reverse", h.Reverse)
}

type createLineRequest struct {
	AccountCode string  `json:"account_code" validate:"required"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Description string  `json:"description"`
}

type createEntryRequest struct {
	Date        time.Time           `json:"date" validate:"required"`
	Description string              `json:"description"`
	ReferenceID *uuid.UUID          `json:"reference_id"`
	Lines       []createLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type reverseEntryRequest struct {
	Description string `json:"description"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, entries)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get journal", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, entry)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	refID := uuid.New()
	if req.ReferenceID != nil {
		refID = *req.ReferenceID
	}
	input := PostingInput{
		Date:          req.Date,
		Description:   req.Description,
		ReferenceType: RefTypeManual,
		ReferenceID:   refID,
		CreatedBy:     shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, CodeLine{
			AccountCode: line.AccountCode,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	entry, err := h.service.PostEntry(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, "create journal", err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	var req reverseEntryRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	entry, err := h.service.ReverseEntry(r.Context(), id, req.Description, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, "reverse journal", err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, actshared.ErrJournalNotFound):
		shared.RespondError(w, http.StatusNotFound, err)
	case errors.Is(err, accounts.ErrAccountNotFound),
		errors.Is(err, actshared.ErrUnbalancedEntry),
		errors.Is(err, actshared.ErrTooFewLines),
		errors.Is(err, actshared.ErrNegativeAmount),
		errors.Is(err, actshared.ErrEmptyLine),
		errors.Is(err, actshared.ErrInvalidStatus):
		shared.RespondError(w, http.StatusUnprocessableEntity, err)
	default:
		h.logger.Error(op, slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
	}
}
