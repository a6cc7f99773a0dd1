package backfill

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting/posting"
)

// pgSource reads historical business documents straight from the operational
// tables. Row order matches document date to keep entry numbers roughly
// chronological within a day.
type pgSource struct {
	pool *pgxpool.Pool
}

// NewSource builds a Source over the operational schema.
func NewSource(pool *pgxpool.Pool) Source {
	return &pgSource{pool: pool}
}

func (s *pgSource) Receipts(ctx context.Context) ([]posting.GoodsReceiptEvent, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, po_number, total_amount, tax_amount, received_at FROM goods_receipts ORDER BY received_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []posting.GoodsReceiptEvent
	for rows.Next() {
		var ev posting.GoodsReceiptEvent
		if err := rows.Scan(&ev.ID, &ev.PONumber, &ev.TotalAmount, &ev.TaxAmount, &ev.Date); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *pgSource) Invoices(ctx context.Context) ([]posting.InvoiceEvent, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, invoice_number, subtotal, tax_amount, total, created_at FROM invoices ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []posting.InvoiceEvent
	for rows.Next() {
		var ev posting.InvoiceEvent
		if err := rows.Scan(&ev.ID, &ev.InvoiceNumber, &ev.Subtotal, &ev.TaxAmount, &ev.Total, &ev.Date); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *pgSource) ClientPayments(ctx context.Context) ([]posting.PaymentEvent, error) {
	return s.payments(ctx, `SELECT id, amount, received_at FROM payments ORDER BY received_at, id`)
}

func (s *pgSource) SupplierPayments(ctx context.Context) ([]posting.PaymentEvent, error) {
	return s.payments(ctx, `SELECT id, amount, paid_at FROM supplier_payments ORDER BY paid_at, id`)
}

func (s *pgSource) payments(ctx context.Context, query string) ([]posting.PaymentEvent, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []posting.PaymentEvent
	for rows.Next() {
		var ev posting.PaymentEvent
		if err := rows.Scan(&ev.ID, &ev.Amount, &ev.Date); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *pgSource) Expenses(ctx context.Context) ([]posting.ExpenseEvent, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, category, amount, payment_method, description, incurred_at FROM expenses ORDER BY incurred_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []posting.ExpenseEvent
	for rows.Next() {
		var ev posting.ExpenseEvent
		if err := rows.Scan(&ev.ID, &ev.Category, &ev.Amount, &ev.PaymentMethod, &ev.Description, &ev.Date); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *pgSource) Adjustments(ctx context.Context) ([]posting.AdjustmentEvent, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, type, quantity, cost_price, reason FROM stock_adjustments WHERE status = 'APPROVED' ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []posting.AdjustmentEvent
	for rows.Next() {
		var ev posting.AdjustmentEvent
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Quantity, &ev.CostPrice, &ev.Reason); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
