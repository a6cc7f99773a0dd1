package backfill

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/posting"
)

// Source supplies the historical business records to replay through the
// posting rules, each stream ordered by document date ascending.
type Source interface {
	Receipts(ctx context.Context) ([]posting.GoodsReceiptEvent, error)
	Invoices(ctx context.Context) ([]posting.InvoiceEvent, error)
	ClientPayments(ctx context.Context) ([]posting.PaymentEvent, error)
	SupplierPayments(ctx context.Context) ([]posting.PaymentEvent, error)
	Expenses(ctx context.Context) ([]posting.ExpenseEvent, error)
	Adjustments(ctx context.Context) ([]posting.AdjustmentEvent, error)
}

// Poster is the slice of the posting service the backfill drives.
type Poster interface {
	OnGoodsReceived(ctx context.Context, ev posting.GoodsReceiptEvent) (*journals.Entry, error)
	OnInvoiceCreated(ctx context.Context, ev posting.InvoiceEvent) (posting.InvoiceResult, error)
	OnClientPayment(ctx context.Context, ev posting.PaymentEvent) (*journals.Entry, error)
	OnSupplierPayment(ctx context.Context, ev posting.PaymentEvent) (*journals.Entry, error)
	OnExpenseCreated(ctx context.Context, ev posting.ExpenseEvent) (*journals.Entry, error)
	OnStockAdjustmentApproved(ctx context.Context, ev posting.AdjustmentEvent) (*journals.Entry, error)
}

// RefChecker reports whether a journal entry already references a business
// object, the de-duplication key that makes the backfill idempotent.
type RefChecker interface {
	ReferenceExists(ctx context.Context, refType string, refID uuid.UUID) (bool, error)
}

// Validator is the ledger-wide trial balance check run after the replay.
type Validator interface {
	Validate(ctx context.Context, asOf time.Time) error
}

// StageStats counts outcomes for one replay stage.
type StageStats struct {
	Processed int
	Skipped   int
}

// Report summarises a backfill run.
type Report struct {
	Receipts         StageStats
	Invoices         StageStats
	ClientPayments   StageStats
	SupplierPayments StageStats
	Expenses         StageStats
	Adjustments      StageStats
}

// Total returns processed and skipped counts across all stages.
func (r Report) Total() (processed, skipped int) {
	for _, s := range []StageStats{r.Receipts, r.Invoices, r.ClientPayments, r.SupplierPayments, r.Expenses, r.Adjustments} {
		processed += s.Processed
		skipped += s.Skipped
	}
	return processed, skipped
}

// Runner replays historical business records through the live posting rules
// to retroactively populate the ledger. Replay order is fixed: goods
// receipts, invoices, client payments, supplier payments, expenses, stock
// adjustments. Records that already have a journal entry are skipped, so
// running twice is a no-op.
type Runner struct {
	source  Source
	poster  Poster
	refs    RefChecker
	reports Validator
	logger  *slog.Logger
	now     func() time.Time
	actorID int64
}

// NewRunner builds a backfill runner posting as the given actor.
func NewRunner(source Source, poster Poster, refs RefChecker, reports Validator, logger *slog.Logger, actorID int64) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{source: source, poster: poster, refs: refs, reports: reports, logger: logger, now: time.Now, actorID: actorID}
}

// Run executes the full replay and finishes with a trial balance validation.
// The report is returned even when validation fails, so operators see what
// was written before investigating the imbalance.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	var report Report

	if err := r.runReceipts(ctx, &report.Receipts); err != nil {
		return report, err
	}
	if err := r.runInvoices(ctx, &report.Invoices); err != nil {
		return report, err
	}
	if err := r.runPayments(ctx, &report.ClientPayments, r.source.ClientPayments, r.poster.OnClientPayment); err != nil {
		return report, err
	}
	if err := r.runPayments(ctx, &report.SupplierPayments, r.source.SupplierPayments, r.poster.OnSupplierPayment); err != nil {
		return report, err
	}
	if err := r.runExpenses(ctx, &report.Expenses); err != nil {
		return report, err
	}
	if err := r.runAdjustments(ctx, &report.Adjustments); err != nil {
		return report, err
	}

	processed, skipped := report.Total()
	r.logger.Info("backfill complete", slog.Int("processed", processed), slog.Int("skipped", skipped))

	if err := r.reports.Validate(ctx, r.now()); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) runReceipts(ctx context.Context, stats *StageStats) error {
	receipts, err := r.source.Receipts(ctx)
	if err != nil {
		return err
	}
	for _, ev := range receipts {
		skip, err := r.shouldSkip(ctx, journals.RefTypePurchase, ev.ID, ev.TotalAmount)
		if err != nil {
			return err
		}
		if skip {
			stats.Skipped++
			continue
		}
		ev.ActorID = r.actorID
		if _, err := r.poster.OnGoodsReceived(ctx, ev); err != nil {
			return err
		}
		stats.Processed++
	}
	return nil
}

func (r *Runner) runInvoices(ctx context.Context, stats *StageStats) error {
	invoices, err := r.source.Invoices(ctx)
	if err != nil {
		return err
	}
	for _, ev := range invoices {
		skip, err := r.shouldSkip(ctx, journals.RefTypeInvoice, ev.ID, ev.Total)
		if err != nil {
			return err
		}
		if skip {
			stats.Skipped++
			continue
		}
		// Historical stock already left the warehouse; replay the
		// receivable legs only.
		ev.Items = nil
		ev.SkipCOGS = true
		ev.ActorID = r.actorID
		if _, err := r.poster.OnInvoiceCreated(ctx, ev); err != nil {
			return err
		}
		stats.Processed++
	}
	return nil
}

func (r *Runner) runPayments(ctx context.Context, stats *StageStats,
	load func(context.Context) ([]posting.PaymentEvent, error),
	post func(context.Context, posting.PaymentEvent) (*journals.Entry, error)) error {
	payments, err := load(ctx)
	if err != nil {
		return err
	}
	for _, ev := range payments {
		skip, err := r.shouldSkip(ctx, journals.RefTypePayment, ev.ID, ev.Amount)
		if err != nil {
			return err
		}
		if skip {
			stats.Skipped++
			continue
		}
		ev.ActorID = r.actorID
		if _, err := post(ctx, ev); err != nil {
			return err
		}
		stats.Processed++
	}
	return nil
}

func (r *Runner) runExpenses(ctx context.Context, stats *StageStats) error {
	expenses, err := r.source.Expenses(ctx)
	if err != nil {
		return err
	}
	for _, ev := range expenses {
		skip, err := r.shouldSkip(ctx, journals.RefTypeExpense, ev.ID, ev.Amount)
		if err != nil {
			return err
		}
		if skip {
			stats.Skipped++
			continue
		}
		ev.ActorID = r.actorID
		if _, err := r.poster.OnExpenseCreated(ctx, ev); err != nil {
			return err
		}
		stats.Processed++
	}
	return nil
}

func (r *Runner) runAdjustments(ctx context.Context, stats *StageStats) error {
	adjustments, err := r.source.Adjustments(ctx)
	if err != nil {
		return err
	}
	for _, ev := range adjustments {
		if !ev.Type.IsLoss() {
			stats.Skipped++
			continue
		}
		skip, err := r.shouldSkip(ctx, journals.RefTypeAdjustment, ev.ID, ev.Quantity*ev.CostPrice)
		if err != nil {
			return err
		}
		if skip {
			stats.Skipped++
			continue
		}
		ev.ActorID = r.actorID
		if _, err := r.poster.OnStockAdjustmentApproved(ctx, ev); err != nil {
			return err
		}
		stats.Processed++
	}
	return nil
}

func (r *Runner) shouldSkip(ctx context.Context, refType string, refID uuid.UUID, amount float64) (bool, error) {
	if amount <= 0 {
		return true, nil
	}
	exists, err := r.refs.ReferenceExists(ctx, refType, refID)
	if err != nil {
		return false, err
	}
	return exists, nil
}
