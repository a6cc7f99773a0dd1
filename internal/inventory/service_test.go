package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	batches   []*Batch
	movements []Movement
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{}
}

func (r *memoryRepo) addBatch(productID, warehouseID int64, batchNo string, qty, unitCost float64, receivedAt time.Time) {
	r.nextID++
	r.batches = append(r.batches, &Batch{
		ID:          r.nextID,
		ProductID:   productID,
		WarehouseID: warehouseID,
		BatchNo:     batchNo,
		Quantity:    qty,
		UnitCost:    unitCost,
		ReceivedAt:  receivedAt,
	})
}

func (r *memoryRepo) batchQty(batchNo string) float64 {
	for _, b := range r.batches {
		if b.BatchNo == batchNo {
			return b.Quantity
		}
	}
	return -1
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) ListMovements(ctx context.Context, productID, warehouseID int64, limit int) ([]Movement, error) {
	out := make([]Movement, len(r.movements))
	copy(out, r.movements)
	return out, nil
}

func (r *memoryRepo) BatchesForUpdate(ctx context.Context, productID int64, variantID *int64, warehouseID int64) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.ProductID == productID && b.WarehouseID == warehouseID && b.Quantity > 0 && equalVariant(b.VariantID, variantID) {
			out = append(out, *b)
		}
	}
	// batches were added oldest-first; preserve that order
	return out, nil
}

func (r *memoryRepo) AvailableQuantity(ctx context.Context, productID int64, variantID *int64, warehouseID int64) (float64, error) {
	var total float64
	for _, b := range r.batches {
		if b.ProductID == productID && b.WarehouseID == warehouseID && b.Quantity > 0 && equalVariant(b.VariantID, variantID) {
			total += b.Quantity
		}
	}
	return total, nil
}

func (r *memoryRepo) DecrementBatch(ctx context.Context, batchID int64, qty float64) error {
	for _, b := range r.batches {
		if b.ID == batchID && b.Quantity >= qty {
			b.Quantity -= qty
			return nil
		}
	}
	return ErrBatchNotFound
}

func (r *memoryRepo) InsertBatch(ctx context.Context, batch Batch) (Batch, error) {
	r.nextID++
	batch.ID = r.nextID
	stored := batch
	r.batches = append(r.batches, &stored)
	return batch, nil
}

func (r *memoryRepo) InsertMovement(ctx context.Context, movement Movement) error {
	r.movements = append(r.movements, movement)
	return nil
}

func equalVariant(a, b *int64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func seedTwoBatches(repo *memoryRepo) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	repo.addBatch(1, 1, "B1", 10, 5, base)
	repo.addBatch(1, 1, "B2", 20, 6, base.AddDate(0, 0, 2))
}

func TestFifoDeductionConsumesOldestFirst(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	svc := NewService(repo, nil, nil, nil)

	plan, err := svc.Deduct(context.Background(), DeductionRequest{ProductID: 1, WarehouseID: 1, Quantity: 15}, Reference{Type: "INVOICE", ID: uuid.New()})
	require.NoError(t, err)
	require.Len(t, plan, 2)

	require.Equal(t, "B1", plan[0].BatchNo)
	require.InDelta(t, 10, plan[0].Quantity, 0.0001)
	require.InDelta(t, 5, plan[0].UnitCost, 0.0001)

	require.Equal(t, "B2", plan[1].BatchNo)
	require.InDelta(t, 5, plan[1].Quantity, 0.0001)
	require.InDelta(t, 6, plan[1].UnitCost, 0.0001)

	require.InDelta(t, 0, repo.batchQty("B1"), 0.0001)
	require.InDelta(t, 15, repo.batchQty("B2"), 0.0001)

	// Cost-weighted total: 10*5 + 5*6.
	require.InDelta(t, 80, PlanCost(plan), 0.001)

	// One movement per consumed slice, negative quantities.
	require.Len(t, repo.movements, 2)
	require.Equal(t, MovementTypeDeduction, repo.movements[0].Type)
	require.InDelta(t, -10, repo.movements[0].Quantity, 0.0001)
	require.InDelta(t, -5, repo.movements[1].Quantity, 0.0001)
}

func TestInsufficientStockRejectsWholeDeduction(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Deduct(context.Background(), DeductionRequest{ProductID: 1, WarehouseID: 1, Quantity: 50}, Reference{Type: "INVOICE", ID: uuid.New()})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.InDelta(t, 30, stockErr.Available, 0.0001)
	require.InDelta(t, 50, stockErr.Required, 0.0001)

	// No batch mutated, no movement written.
	require.InDelta(t, 10, repo.batchQty("B1"), 0.0001)
	require.InDelta(t, 20, repo.batchQty("B2"), 0.0001)
	require.Empty(t, repo.movements)
}

func TestDeductionExactlyDrainsSupply(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	svc := NewService(repo, nil, nil, nil)

	plan, err := svc.Deduct(context.Background(), DeductionRequest{ProductID: 1, WarehouseID: 1, Quantity: 30}, Reference{Type: "INVOICE", ID: uuid.New()})
	require.NoError(t, err)

	var deducted float64
	for _, d := range plan {
		deducted += d.Quantity
	}
	require.InDelta(t, 30, deducted, 0.0001)
	require.InDelta(t, 0, repo.batchQty("B1"), 0.0001)
	require.InDelta(t, 0, repo.batchQty("B2"), 0.0001)
}

func TestInvalidQuantityRejected(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Deduct(context.Background(), DeductionRequest{ProductID: 1, WarehouseID: 1, Quantity: 0}, Reference{})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Deduct(context.Background(), DeductionRequest{ProductID: 1, WarehouseID: 1, Quantity: -3}, Reference{})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestRecordReceiptCreatesBatchAndMovement(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	batch, err := svc.RecordReceipt(context.Background(), ReceiptInput{
		ProductID:   1,
		WarehouseID: 1,
		BatchNo:     "GRN-7",
		Quantity:    12,
		UnitCost:    4.5,
		RefType:     "PO",
		RefID:       uuid.New(),
	})
	require.NoError(t, err)
	require.NotZero(t, batch.ID)
	require.InDelta(t, 12, repo.batchQty("GRN-7"), 0.0001)

	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementTypeReceipt, repo.movements[0].Type)
	require.InDelta(t, 12, repo.movements[0].Quantity, 0.0001)

	_, err = svc.RecordReceipt(context.Background(), ReceiptInput{ProductID: 1, WarehouseID: 1, Quantity: -1})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestVariantScopedAvailability(t *testing.T) {
	repo := newMemoryRepo()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	repo.addBatch(1, 1, "PLAIN", 5, 2, base)
	variant := int64(9)
	repo.nextID++
	repo.batches = append(repo.batches, &Batch{ID: repo.nextID, ProductID: 1, VariantID: &variant, WarehouseID: 1, BatchNo: "VAR", Quantity: 7, UnitCost: 3, ReceivedAt: base})
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	plain, err := svc.AvailableQuantity(ctx, 1, nil, 1)
	require.NoError(t, err)
	require.InDelta(t, 5, plain, 0.0001)

	varQty, err := svc.AvailableQuantity(ctx, 1, &variant, 1)
	require.NoError(t, err)
	require.InDelta(t, 7, varQty, 0.0001)
}
