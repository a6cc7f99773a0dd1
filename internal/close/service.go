package close

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records close lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReportsPort supplies the profit and loss aggregation for month summaries.
type ReportsPort interface {
	ProfitAndLoss(ctx context.Context, from, to time.Time) (reports.ProfitAndLoss, error)
}

// Service orchestrates month-end close: trial balance verification, the
// closing entry that zeroes revenue and expense into retained earnings, and
// the CLOSED record. All of it commits in one transaction.
type Service struct {
	repo     Repository
	journals *journals.Service
	reports  ReportsPort
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the period close service.
func NewService(repo Repository, jsvc *journals.Service, rpt ReportsPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, journals: jsvc, reports: rpt, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns recent close records, newest period first.
func (s *Service) List(ctx context.Context, limit int) ([]PeriodClose, error) {
	return s.repo.List(ctx, limit)
}

// Get loads one close record.
func (s *Service) Get(ctx context.Context, id int64) (PeriodClose, error) {
	return s.repo.Get(ctx, id)
}

// CloseMonth closes a calendar month:
//
//  1. reject if a CLOSED record already exists for the period,
//  2. verify the trial balance of everything posted on/before the last day,
//  3. compute per-account net movement for revenue and expense,
//  4. post a closing entry that zeroes them into Retained Earnings,
//  5. record the close.
//
// When the period has no net movement at all, no closing entry is created
// and the record's closing entry id stays nil. A missing Retained Earnings
// account is a fatal configuration error, never a soft skip.
func (s *Service) CloseMonth(ctx context.Context, year int, month time.Month, actorID int64) (PeriodClose, error) {
	periodStart, _ := reports.MonthWindow(year, month)
	periodDate := reports.PeriodDate(year, month)

	var record PeriodClose
	err := s.repo.Do(ctx, func(ctx context.Context, tx Tx) error {
		exists, err := tx.Close.ClosedExists(ctx, periodDate)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("period %d-%02d: %w", year, month, ErrAlreadyClosed)
		}

		debits, credits, err := tx.Close.TotalsAsOf(ctx, periodDate)
		if err != nil {
			return err
		}
		if !actshared.Balanced(debits, credits) {
			return &actshared.TrialBalanceError{Debits: debits, Credits: credits}
		}

		revenues, expenses, err := tx.Close.NetMovements(ctx, periodStart, periodDate)
		if err != nil {
			return err
		}
		netProfit := actshared.Round2(sumNet(revenues) - sumNet(expenses))

		retained, err := tx.Journals.AccountForUpdate(ctx, accounts.CodeRetainedEarnings)
		if err != nil {
			if errors.Is(err, accounts.ErrAccountNotFound) {
				return fmt.Errorf("account %s: %w", accounts.CodeRetainedEarnings, actshared.ErrMissingSystemAccount)
			}
			return err
		}

		lines := closingLines(revenues, expenses, retained, netProfit)
		var closingID *int64
		if len(lines) > 0 {
			entry, err := s.journals.PostResolvedTx(ctx, tx.Journals, journals.ResolvedInput{
				Date:          periodDate,
				Description:   fmt.Sprintf("Month-end closing %d-%02d", year, month),
				ReferenceType: journals.RefTypePeriodClose,
				ReferenceID:   uuid.New(),
				CreatedBy:     actorID,
				Lines:         lines,
			})
			if err != nil {
				return err
			}
			closingID = &entry.ID
		}

		record, err = tx.Close.InsertClose(ctx, PeriodClose{
			PeriodType:     PeriodTypeMonth,
			PeriodDate:     periodDate,
			NetProfit:      netProfit,
			Status:         StatusClosed,
			ClosedBy:       actorID,
			ClosingEntryID: closingID,
		})
		return err
	})
	if err != nil {
		return PeriodClose{}, err
	}

	s.logger.Info("period closed",
		slog.String("period", fmt.Sprintf("%d-%02d", year, month)),
		slog.Float64("net_profit", record.NetProfit))
	s.recordAudit(ctx, "close.month", record, fmt.Sprintf("Closed month %d-%02d, net profit %.2f", year, month, record.NetProfit))
	return record, nil
}

// Reopen flips a CLOSED record to REOPENED with a mandatory reason. This is
// a recorded acknowledgment only: the closing entry stays posted and the
// period does not accept new postings.
func (s *Service) Reopen(ctx context.Context, id int64, reason string, actorID int64) (PeriodClose, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return PeriodClose{}, ErrReasonRequired
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return PeriodClose{}, err
	}
	record, err := s.repo.MarkReopened(ctx, id, reason)
	if err != nil {
		return PeriodClose{}, err
	}
	s.logger.Info("period reopened", slog.Int64("id", id), slog.String("reason", reason))
	s.recordAudit(ctx, "close.reopen", record, fmt.Sprintf("Reopened period, reason: %s", reason))
	return record, nil
}

// MonthPnL summarises one month's revenue against expenses, excluding
// closing entries so a closed month still reports its real activity.
func (s *Service) MonthPnL(ctx context.Context, year int, month time.Month) (MonthPnL, error) {
	from, to := reports.MonthWindow(year, month)
	pl, err := s.reports.ProfitAndLoss(ctx, from, to)
	if err != nil {
		return MonthPnL{}, err
	}
	out := MonthPnL{
		Period:        fmt.Sprintf("%d-%02d", year, month),
		TotalRevenue:  actshared.Round2(pl.Revenue.Total),
		TotalExpenses: actshared.Round2(pl.Expense.Total),
		NetProfit:     actshared.Round2(pl.Revenue.Total - pl.Expense.Total),
	}
	for _, row := range pl.Revenue.Accounts {
		if math.Abs(row.Amount) < actshared.BalanceTolerance {
			continue
		}
		out.Revenues = append(out.Revenues, PnLLine{Code: row.Code, Name: row.Name, Amount: row.Amount})
	}
	for _, row := range pl.Expense.Accounts {
		if math.Abs(row.Amount) < actshared.BalanceTolerance {
			continue
		}
		out.Expenses = append(out.Expenses, PnLLine{Code: row.Code, Name: row.Name, Amount: row.Amount})
	}
	return out, nil
}

// closingLines zeroes each non-trivial revenue and expense net into lines,
// then balances the set against retained earnings: credit for a profit,
// debit for a loss.
func closingLines(revenues, expenses []NetMovement, retained accounts.Ref, netProfit float64) []journals.ResolvedLine {
	var lines []journals.ResolvedLine
	for _, mv := range revenues {
		if math.Abs(mv.Net) < actshared.BalanceTolerance {
			continue
		}
		line := journals.ResolvedLine{Account: mv.Account, Description: fmt.Sprintf("Close revenue %s", mv.Code)}
		if mv.Net > 0 {
			line.Debit = actshared.Round2(mv.Net)
		} else {
			line.Credit = actshared.Round2(-mv.Net)
		}
		lines = append(lines, line)
	}
	for _, mv := range expenses {
		if math.Abs(mv.Net) < actshared.BalanceTolerance {
			continue
		}
		line := journals.ResolvedLine{Account: mv.Account, Description: fmt.Sprintf("Close expense %s", mv.Code)}
		if mv.Net > 0 {
			line.Credit = actshared.Round2(mv.Net)
		} else {
			line.Debit = actshared.Round2(-mv.Net)
		}
		lines = append(lines, line)
	}
	if len(lines) > 0 && math.Abs(netProfit) >= actshared.BalanceTolerance {
		line := journals.ResolvedLine{Account: retained}
		if netProfit > 0 {
			line.Credit = netProfit
			line.Description = "Net profit to Retained Earnings"
		} else {
			line.Debit = -netProfit
			line.Description = "Net loss to Retained Earnings"
		}
		lines = append(lines, line)
	}
	return lines
}

func sumNet(movements []NetMovement) float64 {
	var total float64
	for _, mv := range movements {
		total += mv.Net
	}
	return total
}

func (s *Service) recordAudit(ctx context.Context, action string, record PeriodClose, note string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  record.ClosedBy,
		Action:   action,
		Entity:   "period_close",
		EntityID: fmt.Sprintf("%d", record.ID),
		Meta: map[string]any{
			"period_date": record.PeriodDate.Format("2006-01-02"),
			"net_profit":  record.NetProfit,
			"note":        note,
		},
		At: s.now(),
	})
}
