package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

var (
	// ErrInvalidQuantity indicates a zero or negative quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be non-negative")
	// ErrBatchNotFound indicates a missing or already-exhausted batch row.
	ErrBatchNotFound = errors.New("inventory: batch not found")
)

// InsufficientStockError reports a FIFO shortfall with the conflicting
// quantities so callers can surface a precise message.
type InsufficientStockError struct {
	ProductID   int64
	WarehouseID int64
	Available   float64
	Required    float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %d in warehouse %d: available %.2f, required %.2f",
		e.ProductID, e.WarehouseID, e.Available, e.Required)
}

// Batch is a quantity of a product received into a warehouse. UnitCost is a
// point-in-time snapshot taken at receipt; deductions price against it, never
// against the live product master.
type Batch struct {
	ID          int64
	ProductID   int64
	VariantID   *int64
	WarehouseID int64
	BatchNo     string
	Quantity    float64
	UnitCost    float64
	TenantID    string
	ReceivedAt  time.Time
}

// MovementType enumerates stock movement causes.
type MovementType string

const (
	MovementTypeReceipt    MovementType = "RECEIPT"
	MovementTypeDeduction  MovementType = "DEDUCTION"
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
)

// Movement is one row of the append-only stock ledger. Movements are created
// once per deduction/receipt/adjustment and never mutated or deleted.
type Movement struct {
	ID          int64
	BatchID     int64
	ProductID   int64
	VariantID   *int64
	WarehouseID int64
	Type        MovementType
	Quantity    float64
	RefType     string
	RefID       uuid.UUID
	CreatedBy   int64
	TenantID    string
	CreatedAt   time.Time
}

// DeductionRequest identifies the product/variant/warehouse tuple and the
// quantity to consume.
type DeductionRequest struct {
	ProductID   int64
	VariantID   *int64
	WarehouseID int64
	Quantity    float64
}

// BatchDeduction is one consumed slice of a batch, carrying the receipt-time
// unit cost that downstream COGS journal lines use.
type BatchDeduction struct {
	BatchID  int64
	BatchNo  string
	Quantity float64
	UnitCost float64
}

// Cost returns the monetary cost of the slice.
func (d BatchDeduction) Cost() float64 {
	return actshared.Monetary(d.Quantity, d.UnitCost)
}

// PlanCost sums the cost of every slice in a deduction plan. Mixing batches
// of different cost yields a cost-weighted total, not a single unit price.
func PlanCost(plan []BatchDeduction) float64 {
	var total float64
	for _, d := range plan {
		total += d.Cost()
	}
	return actshared.Round2(total)
}

// ReceiptInput describes an inbound batch (GRN line).
type ReceiptInput struct {
	ProductID   int64
	VariantID   *int64
	WarehouseID int64
	BatchNo     string
	Quantity    float64
	UnitCost    float64
	RefType     string
	RefID       uuid.UUID
	ActorID     int64
	ReceivedAt  time.Time
}

// Reference is the business-object tag stamped on movements.
type Reference struct {
	Type    string
	ID      uuid.UUID
	ActorID int64
}
