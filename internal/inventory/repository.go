package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository encapsulates DB operations for inventory batches and movements.
type Repository interface {
	AvailableQuantity(ctx context.Context, productID int64, variantID *int64, warehouseID int64) (float64, error)
	ListMovements(ctx context.Context, productID, warehouseID int64, limit int) ([]Movement, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes batch operations inside a transaction. BatchesForUpdate
// locks the candidate rows so two concurrent sales cannot double-spend the
// same batch.
type TxRepository interface {
	BatchesForUpdate(ctx context.Context, productID int64, variantID *int64, warehouseID int64) ([]Batch, error)
	AvailableQuantity(ctx context.Context, productID int64, variantID *int64, warehouseID int64) (float64, error)
	DecrementBatch(ctx context.Context, batchID int64, qty float64) error
	InsertBatch(ctx context.Context, batch Batch) (Batch, error)
	InsertMovement(ctx context.Context, movement Movement) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) AvailableQuantity(ctx context.Context, productID int64, variantID *int64, warehouseID int64) (float64, error) {
	return availableQuantity(ctx, r.db, productID, variantID, warehouseID)
}

func (r *repository) ListMovements(ctx context.Context, productID, warehouseID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT id, batch_id, product_id, variant_id, warehouse_id, movement_type, quantity, reference_type, reference_id, created_by, tenant_id, created_at
FROM stock_movements WHERE product_id=$1 AND warehouse_id=$2 ORDER BY id DESC LIMIT $3`, productID, warehouseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.BatchID, &m.ProductID, &m.VariantID, &m.WarehouseID, &m.Type, &m.Quantity, &m.RefType, &m.RefID, &m.CreatedBy, &m.TenantID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// NewTxRepository wraps an open transaction so deductions can share a unit of
// work with the journal postings they feed.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

const batchColumns = `id, product_id, variant_id, warehouse_id, COALESCE(batch_no, ''), quantity, unit_cost, tenant_id, received_at`

func (r *txRepository) BatchesForUpdate(ctx context.Context, productID int64, variantID *int64, warehouseID int64) ([]Batch, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+batchColumns+` FROM inventory_batches
WHERE product_id=$1 AND warehouse_id=$2 AND variant_id IS NOT DISTINCT FROM $3 AND quantity > 0
ORDER BY received_at ASC, id ASC FOR UPDATE`, productID, warehouseID, variantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.ProductID, &b.VariantID, &b.WarehouseID, &b.BatchNo, &b.Quantity, &b.UnitCost, &b.TenantID, &b.ReceivedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (r *txRepository) AvailableQuantity(ctx context.Context, productID int64, variantID *int64, warehouseID int64) (float64, error) {
	return availableQuantity(ctx, r.tx, productID, variantID, warehouseID)
}

func (r *txRepository) DecrementBatch(ctx context.Context, batchID int64, qty float64) error {
	// The quantity guard keeps a batch from ever going below zero, even if a
	// plan raced a concurrent writer.
	cmd, err := r.tx.Exec(ctx, `UPDATE inventory_batches SET quantity = quantity - $2 WHERE id=$1 AND quantity >= $2`, batchID, qty)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (r *txRepository) InsertBatch(ctx context.Context, batch Batch) (Batch, error) {
	batch.TenantID = shared.TenantFromContext(ctx)
	row := r.tx.QueryRow(ctx, `INSERT INTO inventory_batches (product_id, variant_id, warehouse_id, batch_no, quantity, unit_cost, tenant_id, received_at)
VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8) RETURNING id`,
		batch.ProductID, batch.VariantID, batch.WarehouseID, batch.BatchNo, batch.Quantity, batch.UnitCost, batch.TenantID, batch.ReceivedAt)
	if err := row.Scan(&batch.ID); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, movement Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements (batch_id, product_id, variant_id, warehouse_id, movement_type, quantity, reference_type, reference_id, created_by, tenant_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		movement.BatchID, movement.ProductID, movement.VariantID, movement.WarehouseID, movement.Type, movement.Quantity, movement.RefType, movement.RefID, nullInt(movement.CreatedBy), shared.TenantFromContext(ctx))
	return err
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func availableQuantity(ctx context.Context, q rowQuerier, productID int64, variantID *int64, warehouseID int64) (float64, error) {
	var total float64
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM inventory_batches
WHERE product_id=$1 AND warehouse_id=$2 AND variant_id IS NOT DISTINCT FROM $3 AND quantity > 0`, productID, warehouseID, variantID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return total, nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
