package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrUnbalancedEntry indicates debit != credit on a constructed entry.
	// Line sets are built internally, so this is a programming-fault signal,
	// not a user error.
	ErrUnbalancedEntry = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrNegativeAmount indicates a line with a negative debit or credit.
	ErrNegativeAmount = errors.New("accounting: line amounts must be non-negative")
	// ErrEmptyLine indicates a line with neither side set.
	ErrEmptyLine = errors.New("accounting: line requires a debit or credit amount")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrMissingSystemAccount indicates a fatal configuration gap: a fixed
	// system code (e.g. Retained Earnings 3200) is absent from the chart of
	// accounts. Administrative, never retryable.
	ErrMissingSystemAccount = errors.New("accounting: required system account missing")
)

// TrialBalanceError reports a failed trial-balance precondition with the
// conflicting totals, so operators can investigate ledger configuration
// instead of retrying.
type TrialBalanceError struct {
	Debits  float64
	Credits float64
}

func (e *TrialBalanceError) Error() string {
	return fmt.Sprintf("accounting: trial balance out of balance: debits %.2f, credits %.2f", e.Debits, e.Credits)
}
