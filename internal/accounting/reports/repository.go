package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository aggregates posted journal lines into per-account balances.
type Repository interface {
	// BalancesAsOf sums all POSTED lines dated on/before asOf.
	BalancesAsOf(ctx context.Context, asOf time.Time) ([]AccountBalance, error)
	// PeriodBalances sums POSTED lines dated within [from, to], optionally
	// excluding one reference type (period-close entries, for P&L).
	PeriodBalances(ctx context.Context, from, to time.Time, excludeRefType string) ([]AccountBalance, error)
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type repository struct {
	db queryer
}

// NewRepository builds the pgx-backed aggregation repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// The status and date predicates must apply to the line set itself. Filtering
// on an outer join of journal_entries would only null out the entry columns
// while every line still reached the sums.
const balanceQuery = `
SELECT a.code, a.name, a.type, a.opening_balance,
       COALESCE(SUM(l.debit_amount), 0) AS debit,
       COALESCE(SUM(l.credit_amount), 0) AS credit
FROM account_heads a
LEFT JOIN (
    SELECT jl.account_head_id, jl.debit_amount, jl.credit_amount
    FROM journal_entry_lines jl
    JOIN journal_entries e ON e.id = jl.journal_entry_id
    WHERE e.status = 'POSTED' AND e.date <= $1
) l ON l.account_head_id = a.id
GROUP BY a.id, a.code, a.name, a.type, a.opening_balance
ORDER BY a.code`

func (r *repository) BalancesAsOf(ctx context.Context, asOf time.Time) ([]AccountBalance, error) {
	rows, err := r.db.Query(ctx, balanceQuery, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBalances(rows)
}

const periodQuery = `
SELECT a.code, a.name, a.type, a.opening_balance,
       COALESCE(SUM(l.debit_amount), 0) AS debit,
       COALESCE(SUM(l.credit_amount), 0) AS credit
FROM account_heads a
JOIN journal_entry_lines l ON l.account_head_id = a.id
JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE e.status = 'POSTED' AND e.date >= $1 AND e.date <= $2
  AND ($3 = '' OR e.reference_type <> $3)
GROUP BY a.id, a.code, a.name, a.type, a.opening_balance
ORDER BY a.code`

func (r *repository) PeriodBalances(ctx context.Context, from, to time.Time, excludeRefType string) ([]AccountBalance, error) {
	rows, err := r.db.Query(ctx, periodQuery, from, to, excludeRefType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBalances(rows)
}

type balanceRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanBalances(rows balanceRows) ([]AccountBalance, error) {
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.Code, &b.Name, &b.Type, &b.Opening, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
