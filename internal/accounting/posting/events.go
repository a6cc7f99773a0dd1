package posting

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceItem identifies stock that leaves the warehouse when an invoice or
// delivery note is fulfilled.
type InvoiceItem struct {
	ProductID   int64
	VariantID   *int64
	WarehouseID int64
	Quantity    float64
}

// InvoiceEvent describes a created sales invoice. Items may be empty when the
// invoice carries no stock movement (service invoices, or delivery-note flows
// where dispatch already consumed the stock).
type InvoiceEvent struct {
	ID            uuid.UUID
	InvoiceNumber string
	Subtotal      float64
	TaxAmount     float64
	Total         float64
	Date          time.Time
	Items         []InvoiceItem
	SkipCOGS      bool
	ActorID       int64
}

// InvoiceVoidEvent reverses a previously posted invoice. COGS carries the cost
// that was capitalised at creation time so the restoration entry mirrors it
// exactly.
type InvoiceVoidEvent struct {
	ID            uuid.UUID
	InvoiceNumber string
	Subtotal      float64
	TaxAmount     float64
	Total         float64
	COGS          float64
	ActorID       int64
}

// DeliveryEvent describes a dispatched delivery note. Stock leaves the
// warehouse at dispatch, so cost of goods sold is recognised here.
type DeliveryEvent struct {
	ID             uuid.UUID
	DeliveryNumber string
	Date           time.Time
	Items          []InvoiceItem
	ActorID        int64
}

// PaymentEvent covers both client receipts and supplier payments.
// BankAccountCode is optional and falls back to the main bank account.
type PaymentEvent struct {
	ID              uuid.UUID
	Amount          float64
	Date            time.Time
	BankAccountCode string
	ActorID         int64
}

// GoodsReceiptEvent describes goods received against a purchase order.
// TotalAmount includes tax; the inventory leg capitalises the net cost.
type GoodsReceiptEvent struct {
	ID          uuid.UUID
	PONumber    string
	TotalAmount float64
	TaxAmount   float64
	Date        time.Time
	ActorID     int64
}

// LandedCostEvent adds freight, duty, or similar cost to inventory after the
// fact, referenced to the PO or GRN document it belongs to.
type LandedCostEvent struct {
	ID        uuid.UUID
	DocNumber string
	CostType  string
	Amount    float64
	Date      time.Time
	ActorID   int64
}

// ExpenseEvent describes an operating expense paid in cash or from the bank.
type ExpenseEvent struct {
	ID            uuid.UUID
	Category      ExpenseCategory
	Amount        float64
	PaymentMethod PaymentMethod
	Description   string
	Date          time.Time
	ActorID       int64
}

// AdjustmentType classifies a stock adjustment.
type AdjustmentType string

const (
	AdjustmentWastage  AdjustmentType = "WASTAGE"
	AdjustmentDamage   AdjustmentType = "DAMAGE"
	AdjustmentTheft    AdjustmentType = "THEFT"
	AdjustmentIncrease AdjustmentType = "INCREASE"
	AdjustmentRecount  AdjustmentType = "RECOUNT"
)

// IsLoss reports whether the adjustment destroys value and therefore needs an
// inventory-loss posting. Increases and recounts are corrections, not
// purchases, and never touch the ledger.
func (t AdjustmentType) IsLoss() bool {
	switch t {
	case AdjustmentWastage, AdjustmentDamage, AdjustmentTheft:
		return true
	}
	return false
}

// AdjustmentEvent describes an approved stock adjustment.
type AdjustmentEvent struct {
	ID        uuid.UUID
	Type      AdjustmentType
	Quantity  float64
	CostPrice float64
	Reason    string
	ActorID   int64
}

// CreditNoteEvent describes a customer return credited against receivables.
type CreditNoteEvent struct {
	ID               uuid.UUID
	CreditNoteNumber string
	TotalAmount      float64
	Date             time.Time
	ActorID          int64
}
