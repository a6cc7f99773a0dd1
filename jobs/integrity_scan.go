package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// IntegrityScanJob re-derives the ledger-wide trial balance from posted lines
// and logs any drift beyond tolerance. Current balance columns are an
// optimization over the posted lines, so a drift here means a write path
// bypassed the posting transaction.
type IntegrityScanJob struct {
	Reports *reports.Service
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewIntegrityScanJob initialises the ledger scan handler.
func NewIntegrityScanJob(rpt *reports.Service, logger *slog.Logger) *IntegrityScanJob {
	return &IntegrityScanJob{
		Reports: rpt,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity scan.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	logger := j.logger()
	logger.Info("starting ledger integrity scan")

	err := j.Reports.Validate(ctx, start)
	var tbErr *actshared.TrialBalanceError
	switch {
	case err == nil:
		logger.Info("ledger balanced", slog.Duration("duration", time.Since(start)))
		return nil
	case errors.As(err, &tbErr):
		logger.Warn("ledger drift detected",
			slog.Float64("debits", tbErr.Debits),
			slog.Float64("credits", tbErr.Credits),
			slog.Float64("drift", math.Abs(tbErr.Debits-tbErr.Credits)),
		)
		// Drift needs an operator, not a retry.
		return nil
	default:
		logger.Error("integrity scan failed", slog.Any("error", err))
		return err
	}
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrityScan))
}

func (j *IntegrityScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
