package close

import (
	"errors"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
)

// PeriodType enumerates closeable period granularities. Only months close
// today; the column exists so quarters or years can join later without a
// migration.
type PeriodType string

const PeriodTypeMonth PeriodType = "MONTH"

// Status is the lifecycle of a close record. REOPENED is an administrative
// acknowledgment: it does not reverse the closing entry or unlock postings
// into the period.
type Status string

const (
	StatusClosed   Status = "CLOSED"
	StatusReopened Status = "REOPENED"
)

// PeriodClose records one executed month-end close. ClosingEntryID is nil
// when the period had no net revenue or expense movement.
type PeriodClose struct {
	ID             int64
	PeriodType     PeriodType
	PeriodDate     time.Time
	NetProfit      float64
	Status         Status
	ClosedBy       int64
	ReopenReason   string
	ClosingEntryID *int64
	TenantID       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NetMovement is one revenue or expense account's net activity within the
// period, keyed by resolved account identity so the closing entry can post
// directly against it.
type NetMovement struct {
	Account accounts.Ref
	Code    string
	Net     float64
}

// PnLLine is one account row in a month's profit and loss summary.
type PnLLine struct {
	Code   string
	Name   string
	Amount float64
}

// MonthPnL summarises a month's activity excluding closing entries.
type MonthPnL struct {
	Period        string
	Revenues      []PnLLine
	Expenses      []PnLLine
	TotalRevenue  float64
	TotalExpenses float64
	NetProfit     float64
}

// ErrAlreadyClosed is returned when a CLOSED record exists for the period.
var ErrAlreadyClosed = errors.New("close: period is already closed")

// ErrAlreadyReopened indicates a second reopen of the same record.
var ErrAlreadyReopened = errors.New("close: period is already reopened")

// ErrCloseNotFound indicates a missing period close record.
var ErrCloseNotFound = errors.New("close: record not found")

// ErrReasonRequired is returned when reopening without a reason.
var ErrReasonRequired = errors.New("close: reopen reason is required")
