package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements FIFO stock consumption. Planning and applying are
// separate steps so a caller can price a sale, post its journal legs, and
// commit the batch decrements inside one unit of work.
type Service struct {
	repo        Repository
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds a Service.
func NewService(repo Repository, audit AuditPort, idem *shared.IdempotencyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idempotency: idem, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AvailableQuantity returns the total positive quantity across batches for
// the product/variant/warehouse tuple. Callers use it to reject a business
// transaction before any side effects occur.
func (s *Service) AvailableQuantity(ctx context.Context, productID int64, variantID *int64, warehouseID int64) (float64, error) {
	return s.repo.AvailableQuantity(ctx, productID, variantID, warehouseID)
}

// ListMovements lists recent stock ledger rows for the product/warehouse.
func (s *Service) ListMovements(ctx context.Context, productID, warehouseID int64, limit int) ([]Movement, error) {
	return s.repo.ListMovements(ctx, productID, warehouseID, limit)
}

// PlanDeductionTx selects the oldest available batches (FIFO) and computes
// per-batch deduction quantities and costs. The batch rows come back locked,
// so the plan stays valid until the transaction commits. Returns
// InsufficientStockError without touching any batch when supply is short.
func (s *Service) PlanDeductionTx(ctx context.Context, tx TxRepository, req DeductionRequest) ([]BatchDeduction, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	batches, err := tx.BatchesForUpdate(ctx, req.ProductID, req.VariantID, req.WarehouseID)
	if err != nil {
		return nil, err
	}
	var available float64
	for _, b := range batches {
		available += b.Quantity
	}
	if available < req.Quantity {
		return nil, &InsufficientStockError{
			ProductID:   req.ProductID,
			WarehouseID: req.WarehouseID,
			Available:   available,
			Required:    req.Quantity,
		}
	}
	remaining := req.Quantity
	plan := make([]BatchDeduction, 0, len(batches))
	for _, batch := range batches {
		if remaining <= 0 {
			break
		}
		take := batch.Quantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, BatchDeduction{
			BatchID:  batch.ID,
			BatchNo:  batch.BatchNo,
			Quantity: take,
			UnitCost: batch.UnitCost,
		})
		remaining -= take
	}
	return plan, nil
}

// ApplyDeductionsTx commits a plan: decrements each consumed batch and
// appends one stock movement per slice. Must run in the same transaction
// that produced the plan.
func (s *Service) ApplyDeductionsTx(ctx context.Context, tx TxRepository, req DeductionRequest, plan []BatchDeduction, ref Reference) error {
	for _, d := range plan {
		if err := tx.DecrementBatch(ctx, d.BatchID, d.Quantity); err != nil {
			return err
		}
		movement := Movement{
			BatchID:     d.BatchID,
			ProductID:   req.ProductID,
			VariantID:   req.VariantID,
			WarehouseID: req.WarehouseID,
			Type:        MovementTypeDeduction,
			Quantity:    -d.Quantity,
			RefType:     ref.Type,
			RefID:       ref.ID,
			CreatedBy:   ref.ActorID,
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
	}
	return nil
}

// Deduct plans and applies a FIFO deduction in one standalone transaction,
// returning the consumed slices for COGS pricing.
func (s *Service) Deduct(ctx context.Context, req DeductionRequest, ref Reference) ([]BatchDeduction, error) {
	var plan []BatchDeduction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var txErr error
		plan, txErr = s.PlanDeductionTx(ctx, tx, req)
		if txErr != nil {
			return txErr
		}
		return s.ApplyDeductionsTx(ctx, tx, req, plan, ref)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "inventory.deduct", req.ProductID, req.WarehouseID, ref, map[string]any{
		"quantity": req.Quantity,
		"batches":  len(plan),
		"cost":     PlanCost(plan),
	})
	return plan, nil
}

// RecordReceipt creates a new batch with its cost snapshot and the matching
// RECEIPT movement. Receipts carry an idempotency key so a replayed GRN does
// not double-count stock.
func (s *Service) RecordReceipt(ctx context.Context, in ReceiptInput) (Batch, error) {
	if in.Quantity <= 0 {
		return Batch{}, ErrInvalidQuantity
	}
	if in.UnitCost < 0 {
		return Batch{}, ErrInvalidUnitCost
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = s.now().UTC()
	}
	key := fmt.Sprintf("receipt:%s:%s:%d:%d", in.RefID, in.BatchNo, in.WarehouseID, in.ProductID)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return Batch{}, err
		}
		insertedKey = true
	}
	var batch Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var txErr error
		batch, txErr = tx.InsertBatch(ctx, Batch{
			ProductID:   in.ProductID,
			VariantID:   in.VariantID,
			WarehouseID: in.WarehouseID,
			BatchNo:     in.BatchNo,
			Quantity:    in.Quantity,
			UnitCost:    in.UnitCost,
			ReceivedAt:  in.ReceivedAt,
		})
		if txErr != nil {
			return txErr
		}
		return tx.InsertMovement(ctx, Movement{
			BatchID:     batch.ID,
			ProductID:   in.ProductID,
			VariantID:   in.VariantID,
			WarehouseID: in.WarehouseID,
			Type:        MovementTypeReceipt,
			Quantity:    in.Quantity,
			RefType:     in.RefType,
			RefID:       in.RefID,
			CreatedBy:   in.ActorID,
		})
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Batch{}, err
	}
	s.recordAudit(ctx, "inventory.receipt", in.ProductID, in.WarehouseID, Reference{Type: in.RefType, ID: in.RefID, ActorID: in.ActorID}, map[string]any{
		"quantity":  in.Quantity,
		"unit_cost": in.UnitCost,
		"batch_no":  in.BatchNo,
	})
	return batch, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, productID, warehouseID int64, ref Reference, meta map[string]any) {
	if s.audit == nil {
		return
	}
	meta["warehouse_id"] = warehouseID
	meta["reference_type"] = ref.Type
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  ref.ActorID,
		Action:   action,
		Entity:   "inventory",
		EntityID: fmt.Sprintf("%d", productID),
		Meta:     meta,
		At:       s.now(),
	})
}
