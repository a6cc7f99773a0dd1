package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes stock operations over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/availability", h.Availability)
	r.Get("/movements", h.Movements)
	r.Post("/receipts", h.Receipt)
	r.Post("/deductions", h.Deduct)
}

type receiptRequest struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	VariantID   *int64  `json:"variant_id"`
	WarehouseID int64   `json:"warehouse_id" validate:"required,gt=0"`
	BatchNo     string  `json:"batch_no" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	UnitCost    float64 `json:"unit_cost" validate:"gte=0"`
	RefType     string  `json:"ref_type" validate:"required"`
	RefID       string  `json:"ref_id" validate:"required,uuid"`
}

type deductionRequest struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	VariantID   *int64  `json:"variant_id"`
	WarehouseID int64   `json:"warehouse_id" validate:"required,gt=0"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	RefType     string  `json:"ref_type" validate:"required"`
	RefID       string  `json:"ref_id" validate:"required,uuid"`
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	productID, err := queryInt64(r, "product_id")
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	warehouseID, err := queryInt64(r, "warehouse_id")
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	var variantID *int64
	if raw := r.URL.Query().Get("variant_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			shared.RespondError(w, http.StatusBadRequest, err)
			return
		}
		variantID = &v
	}
	qty, err := h.service.AvailableQuantity(r.Context(), productID, variantID, warehouseID)
	if err != nil {
		h.logger.Error("availability", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]float64{"available": qty})
}

func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	productID, err := queryInt64(r, "product_id")
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	warehouseID, err := queryInt64(r, "warehouse_id")
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, err)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	movements, err := h.service.ListMovements(r.Context(), productID, warehouseID, limit)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, movements)
}

func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	refID, err := uuid.Parse(req.RefID)
	if err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	batch, err := h.service.RecordReceipt(r.Context(), ReceiptInput{
		ProductID:   req.ProductID,
		VariantID:   req.VariantID,
		WarehouseID: req.WarehouseID,
		BatchNo:     req.BatchNo,
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		RefType:     req.RefType,
		RefID:       refID,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondServiceError(w, "record receipt", err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, batch)
}

func (h *Handler) Deduct(w http.ResponseWriter, r *http.Request) {
	var req deductionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	refID, err := uuid.Parse(req.RefID)
	if err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	plan, err := h.service.Deduct(r.Context(), DeductionRequest{
		ProductID:   req.ProductID,
		VariantID:   req.VariantID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
	}, Reference{Type: req.RefType, ID: refID, ActorID: shared.ActorFromContext(r.Context())})
	if err != nil {
		h.respondServiceError(w, "deduct stock", err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, map[string]any{
		"deductions": plan,
		"total_cost": PlanCost(plan),
	})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	var shortfall *InsufficientStockError
	switch {
	case errors.As(err, &shortfall):
		shared.RespondJSON(w, http.StatusConflict, map[string]any{
			"error":     shortfall.Error(),
			"available": shortfall.Available,
			"required":  shortfall.Required,
		})
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost):
		shared.RespondError(w, http.StatusUnprocessableEntity, err)
	default:
		h.logger.Error(op, slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
	}
}

func queryInt64(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, errors.New("inventory: missing query parameter " + key)
	}
	return strconv.ParseInt(raw, 10, 64)
}
