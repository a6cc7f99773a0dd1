package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/backfill"
)

// BackfillOptions configures the backfill command execution.
type BackfillOptions struct {
	Stdout io.Writer
	Stderr io.Writer
}

// BackfillCommand replays historical documents into the ledger and prints a
// per-stage summary. Exit codes: 0 success, 1 replay failure, 10 when the
// replay finished but the ledger failed its trial balance validation.
func BackfillCommand(ctx context.Context, runner *backfill.Runner, opts BackfillOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	report, err := runner.Run(ctx)
	renderBackfillSummary(opts.Stdout, report)
	if err != nil {
		var tbErr *shared.TrialBalanceError
		if errors.As(err, &tbErr) {
			fmt.Fprintf(opts.Stderr, "backfill: %v\n", tbErr)
			return 10
		}
		fmt.Fprintf(opts.Stderr, "backfill: %v\n", err)
		return 1
	}
	fmt.Fprintln(opts.Stdout, "Trial balance validated.")
	return 0
}

func renderBackfillSummary(out io.Writer, report backfill.Report) {
	p := message.NewPrinter(language.English)
	stages := []struct {
		name  string
		stats backfill.StageStats
	}{
		{"PO receipts", report.Receipts},
		{"Invoices", report.Invoices},
		{"Client payments", report.ClientPayments},
		{"Supplier payments", report.SupplierPayments},
		{"Expenses", report.Expenses},
		{"Stock adjustments", report.Adjustments},
	}
	p.Fprintln(out, "GL backfill summary")
	for _, s := range stages {
		p.Fprintf(out, " - %-17s processed %d, skipped %d\n", s.name, s.stats.Processed, s.stats.Skipped)
	}
	processed, skipped := report.Total()
	p.Fprintf(out, "Total: processed %d, skipped %d\n", processed, skipped)
}
