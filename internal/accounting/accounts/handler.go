package accounts

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes read access to the chart of accounts.
type Handler struct {
	repo     Repository
	resolver *Resolver
	logger   *slog.Logger
}

func NewHandler(logger *slog.Logger, repo Repository, resolver *Resolver) *Handler {
	return &Handler{logger: logger, repo: repo, resolver: resolver}
}

// MountRoutes attaches chart-of-accounts routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{code}", h.GetByCode)
	r.Get("/{code}/ref", h.ResolveRef)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	heads, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, heads)
}

func (h *Handler) GetByCode(w http.ResponseWriter, r *http.Request) {
	account, err := h.repo.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			shared.RespondError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("get account", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, account)
}

// ResolveRef serves the cached id/type lookup used by posting callers.
func (h *Handler) ResolveRef(w http.ResponseWriter, r *http.Request) {
	ref, err := h.resolver.Resolve(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			shared.RespondError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("resolve account", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, ref)
}
