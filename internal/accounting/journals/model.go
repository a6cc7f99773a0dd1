package journals

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus enumerates journal lifecycle values. Only POSTED is ever
// written: the ledger is append-only, and corrections post mirror entries
// instead of mutating status. Report aggregation still filters on it so
// rows with any other status never reach a balance.
type EntryStatus string

const EntryStatusPosted EntryStatus = "POSTED"

// Entry captures one atomic accounting transaction. Entries are immutable
// once posted; corrections post a new entry with swapped legs.
type Entry struct {
	ID            int64
	EntryNumber   string
	Date          time.Time
	Description   string
	Status        EntryStatus
	ReferenceType string
	ReferenceID   uuid.UUID
	CreatedBy     int64
	ApprovedBy    int64
	TenantID      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []Line
}

// Line stores the debit or credit amount for one account. Exactly one side is
// non-zero by convention; both are non-negative.
type Line struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
}

// Reference types tagged on entries for traceability and idempotent backfill.
const (
	RefTypeInvoice      = "INVOICE"
	RefTypeDeliveryNote = "DELIVERY_NOTE"
	RefTypePayment      = "PAYMENT"
	RefTypePurchase     = "PO"
	RefTypeExpense      = "EXPENSE"
	RefTypeAdjustment   = "ADJUSTMENT"
	RefTypeCreditNote   = "CREDIT_NOTE"
	RefTypeManual       = "MANUAL"
	RefTypePeriodClose  = "PERIOD_CLOSE"
)
