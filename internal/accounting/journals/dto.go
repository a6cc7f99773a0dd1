package journals

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// CodeLine expresses one posting leg against a stable account code, the way
// business events describe themselves before resolution.
type CodeLine struct {
	AccountCode string
	Debit       float64
	Credit      float64
	Description string
}

// PostingInput describes a journal entry to create as POSTED.
type PostingInput struct {
	Date          time.Time
	Description   string
	ReferenceType string
	ReferenceID   uuid.UUID
	CreatedBy     int64
	Lines         []CodeLine
}

// Validate checks structural invariants before any storage work happens.
func (in PostingInput) Validate() error {
	if in.Date.IsZero() {
		return errors.New("accounting: entry date required")
	}
	if in.ReferenceType == "" {
		return errors.New("accounting: reference type required")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	var debits, credits float64
	for _, line := range in.Lines {
		if line.AccountCode == "" {
			return errors.New("accounting: line account code required")
		}
		if line.Debit < 0 || line.Credit < 0 {
			return shared.ErrNegativeAmount
		}
		if line.Debit == 0 && line.Credit == 0 {
			return shared.ErrEmptyLine
		}
		debits += line.Debit
		credits += line.Credit
	}
	if !shared.Balanced(debits, credits) {
		return shared.ErrUnbalancedEntry
	}
	return nil
}

// ResolvedLine is a posting leg after code resolution, carrying the account
// type so balance deltas can be computed without another lookup.
type ResolvedLine struct {
	Account     accounts.Ref
	Debit       float64
	Credit      float64
	Description string
}

// ResolvedInput is a posting whose accounts are already resolved to ids.
// The period close service builds these directly from aggregation rows.
type ResolvedInput struct {
	Date          time.Time
	Description   string
	ReferenceType string
	ReferenceID   uuid.UUID
	CreatedBy     int64
	Lines         []ResolvedLine
}

// Validate checks the resolved line set balances.
func (in ResolvedInput) Validate() error {
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	var debits, credits float64
	for _, line := range in.Lines {
		if line.Account.ID == 0 {
			return errors.New("accounting: resolved line requires account id")
		}
		if line.Debit < 0 || line.Credit < 0 {
			return shared.ErrNegativeAmount
		}
		debits += line.Debit
		credits += line.Credit
	}
	if !shared.Balanced(debits, credits) {
		return shared.ErrUnbalancedEntry
	}
	return nil
}
