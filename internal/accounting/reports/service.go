package reports

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// Service produces ledger reports. Trial balance reads are deduplicated with
// singleflight since dashboards tend to hammer the same as-of date.
type Service struct {
	repo  Repository
	group singleflight.Group
}

// NewService builds the reporting service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// TrialBalance aggregates all POSTED lines dated on/before asOf into the
// grouped trial balance structure.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	key := "tb:" + asOf.Format("2006-01-02")
	v, err, _ := s.group.Do(key, func() (any, error) {
		balances, err := s.repo.BalancesAsOf(ctx, asOf)
		if err != nil {
			return nil, err
		}
		return BuildTrialBalance(balances), nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return v.(TrialBalance), nil
}

// Validate checks the ledger-wide debit/credit equality as of a date.
// Returns a TrialBalanceError carrying both totals when the books are out of
// balance beyond tolerance.
func (s *Service) Validate(ctx context.Context, asOf time.Time) error {
	tb, err := s.TrialBalance(ctx, asOf)
	if err != nil {
		return err
	}
	if !actshared.Balanced(tb.TotalDebit, tb.TotalCredit) {
		return &actshared.TrialBalanceError{Debits: tb.TotalDebit, Credits: tb.TotalCredit}
	}
	return nil
}

// ProfitAndLoss nets revenue against expenses for the window. Closing entries
// are excluded so a closed month still reports its real activity.
func (s *Service) ProfitAndLoss(ctx context.Context, from, to time.Time) (ProfitAndLoss, error) {
	balances, err := s.repo.PeriodBalances(ctx, from, to, journals.RefTypePeriodClose)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return BuildProfitAndLoss(balances), nil
}

// BalanceSheet states assets against liabilities and equity as of a date.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	balances, err := s.repo.BalancesAsOf(ctx, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(balances), nil
}

// MonthWindow returns the first and last instant of a calendar month.
func MonthWindow(year int, month time.Month) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return from, to
}

// PeriodDate is the canonical key for a closed month: its last calendar day.
func PeriodDate(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
}
