package close

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Tx bundles the close-specific transaction port with the journal port, so
// the closing entry posts in the same transaction that records the close.
type Tx struct {
	Close    TxRepository
	Journals journals.TxRepository
}

// Repository persists period close records.
type Repository interface {
	List(ctx context.Context, limit int) ([]PeriodClose, error)
	Get(ctx context.Context, id int64) (PeriodClose, error)
	MarkReopened(ctx context.Context, id int64, reason string) (PeriodClose, error)
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// TxRepository exposes the close operations available within a transaction.
type TxRepository interface {
	ClosedExists(ctx context.Context, periodDate time.Time) (bool, error)
	// TotalsAsOf sums debit and credit across all POSTED lines dated on/before
	// asOf, inside the transaction snapshot.
	TotalsAsOf(ctx context.Context, asOf time.Time) (debits, credits float64, err error)
	// NetMovements aggregates per-account net activity for revenue and
	// expense accounts within [from, to].
	NetMovements(ctx context.Context, from, to time.Time) (revenues, expenses []NetMovement, err error)
	InsertClose(ctx context.Context, pc PeriodClose) (PeriodClose, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed close repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const closeColumns = `id, period_type, period_date, net_profit, status, closed_by, COALESCE(reopen_reason, ''), closing_journal_entry_id, tenant_id, created_at, updated_at`

func scanClose(row pgx.Row) (PeriodClose, error) {
	var pc PeriodClose
	err := row.Scan(&pc.ID, &pc.PeriodType, &pc.PeriodDate, &pc.NetProfit, &pc.Status, &pc.ClosedBy, &pc.ReopenReason, &pc.ClosingEntryID, &pc.TenantID, &pc.CreatedAt, &pc.UpdatedAt)
	return pc, err
}

func (r *repository) List(ctx context.Context, limit int) ([]PeriodClose, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT `+closeColumns+` FROM period_closes ORDER BY period_date DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PeriodClose
	for rows.Next() {
		pc, err := scanClose(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (PeriodClose, error) {
	pc, err := scanClose(r.db.QueryRow(ctx, `SELECT `+closeColumns+` FROM period_closes WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PeriodClose{}, ErrCloseNotFound
		}
		return PeriodClose{}, err
	}
	return pc, nil
}

func (r *repository) MarkReopened(ctx context.Context, id int64, reason string) (PeriodClose, error) {
	pc, err := scanClose(r.db.QueryRow(ctx, `UPDATE period_closes SET status=$2, reopen_reason=$3, updated_at=NOW()
WHERE id=$1 AND status=$4 RETURNING `+closeColumns, id, StatusReopened, reason, StatusClosed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PeriodClose{}, ErrAlreadyReopened
		}
		return PeriodClose{}, err
	}
	return pc, nil
}

func (r *repository) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, Tx{
			Close:    &txRepository{tx: tx},
			Journals: journals.NewTxRepository(tx),
		})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) ClosedExists(ctx context.Context, periodDate time.Time) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM period_closes WHERE period_type=$1 AND period_date=$2 AND status=$3)`,
		PeriodTypeMonth, periodDate, StatusClosed).Scan(&exists)
	return exists, err
}

func (r *txRepository) TotalsAsOf(ctx context.Context, asOf time.Time) (float64, float64, error) {
	var debits, credits float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit_amount), 0), COALESCE(SUM(l.credit_amount), 0)
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE e.status = 'POSTED' AND e.date <= $1`, asOf).Scan(&debits, &credits)
	return debits, credits, err
}

func (r *txRepository) NetMovements(ctx context.Context, from, to time.Time) ([]NetMovement, []NetMovement, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.code, a.type,
       COALESCE(SUM(l.debit_amount), 0), COALESCE(SUM(l.credit_amount), 0)
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
JOIN account_heads a ON a.id = l.account_head_id
WHERE e.status = 'POSTED' AND e.date >= $1 AND e.date <= $2
  AND a.type IN ('REVENUE', 'EXPENSE')
GROUP BY a.id, a.code, a.type
ORDER BY a.code`, from, to)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var revenues, expenses []NetMovement
	for rows.Next() {
		var (
			mv            NetMovement
			debit, credit float64
		)
		if err := rows.Scan(&mv.Account.ID, &mv.Code, &mv.Account.Type, &debit, &credit); err != nil {
			return nil, nil, err
		}
		switch mv.Account.Type {
		case accounts.AccountTypeRevenue:
			mv.Net = credit - debit
			revenues = append(revenues, mv)
		case accounts.AccountTypeExpense:
			mv.Net = debit - credit
			expenses = append(expenses, mv)
		}
	}
	return revenues, expenses, rows.Err()
}

func (r *txRepository) InsertClose(ctx context.Context, pc PeriodClose) (PeriodClose, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO period_closes (period_type, period_date, net_profit, status, closed_by, closing_journal_entry_id, tenant_id)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		pc.PeriodType, pc.PeriodDate, pc.NetProfit, pc.Status, pc.ClosedBy, pc.ClosingEntryID, shared.TenantFromContext(ctx))
	if err := row.Scan(&pc.ID, &pc.CreatedAt, &pc.UpdatedAt); err != nil {
		// A concurrent closer that won the race trips the partial unique
		// index on (period_type, period_date) WHERE status = 'CLOSED'.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return PeriodClose{}, ErrAlreadyClosed
		}
		return PeriodClose{}, err
	}
	pc.TenantID = shared.TenantFromContext(ctx)
	return pc, nil
}
