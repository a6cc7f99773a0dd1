package journals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	internalshared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository encapsulates DB operations for journal entries.
type Repository interface {
	List(ctx context.Context, limit int) ([]Entry, error)
	GetWithLines(ctx context.Context, entryID int64) (Entry, error)
	ReferenceExists(ctx context.Context, refType string, refID uuid.UUID) (bool, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the posting operations available within a transaction.
// The entry-number read locks the latest row so the read-increment-write
// sequence serializes under concurrent postings.
type TxRepository interface {
	LatestEntryNumber(ctx context.Context, prefix string) (string, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	InsertLines(ctx context.Context, entryID int64, lines []ResolvedLine) error
	GetWithLines(ctx context.Context, entryID int64) (Entry, error)
	ReferenceExists(ctx context.Context, refType string, refID uuid.UUID) (bool, error)

	// Account operations needed within posting transactions. ForUpdate
	// variants lock the account row for the balance increment that follows.
	AccountForUpdate(ctx context.Context, code string) (accounts.Ref, error)
	AccountTypeByID(ctx context.Context, accountID int64) (accounts.AccountType, error)
	IncrementBalance(ctx context.Context, accountID int64, delta float64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const entryColumns = `id, entry_number, date, description, status, reference_type, reference_id, created_by, approved_by, tenant_id, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.EntryNumber, &e.Date, &e.Description, &e.Status, &e.ReferenceType, &e.ReferenceID, &e.CreatedBy, &e.ApprovedBy, &e.TenantID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY entry_number DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) GetWithLines(ctx context.Context, entryID int64) (Entry, error) {
	return getWithLines(ctx, r.db, entryID)
}

func (r *repository) ReferenceExists(ctx context.Context, refType string, refID uuid.UUID) (bool, error) {
	return referenceExists(ctx, r.db, refType, refID)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// NewTxRepository wraps an open transaction. Exposed so orchestrating
// services (invoice posting, period close, backfill) can run journal inserts
// inside the same unit of work as inventory mutations.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LatestEntryNumber(ctx context.Context, prefix string) (string, error) {
	var latest string
	err := r.tx.QueryRow(ctx, `SELECT entry_number FROM journal_entries WHERE entry_number LIKE $1 || '%' ORDER BY entry_number DESC LIMIT 1 FOR UPDATE`, prefix).Scan(&latest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return latest, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_number, date, description, status, reference_type, reference_id, created_by, approved_by, tenant_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		entry.EntryNumber, entry.Date, entry.Description, entry.Status, entry.ReferenceType, entry.ReferenceID, nullInt(entry.CreatedBy), nullInt(entry.ApprovedBy), internalshared.TenantFromContext(ctx))
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Entry{}, fmt.Errorf("accounting: duplicate entry number %s: %w", entry.EntryNumber, err)
		}
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []ResolvedLine) error {
	tenant := internalshared.TenantFromContext(ctx)
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_entry_lines (journal_entry_id, account_head_id, debit_amount, credit_amount, description, tenant_id)
VALUES ($1,$2,$3,$4,$5,$6)`, entryID, line.Account.ID, toNumeric(line.Debit), toNumeric(line.Credit), line.Description, tenant); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetWithLines(ctx context.Context, entryID int64) (Entry, error) {
	return getWithLines(ctx, r.tx, entryID)
}

func (r *txRepository) ReferenceExists(ctx context.Context, refType string, refID uuid.UUID) (bool, error) {
	return referenceExists(ctx, r.tx, refType, refID)
}

func (r *txRepository) AccountForUpdate(ctx context.Context, code string) (accounts.Ref, error) {
	var ref accounts.Ref
	err := r.tx.QueryRow(ctx, `SELECT id, type FROM account_heads WHERE code=$1 FOR UPDATE`, code).Scan(&ref.ID, &ref.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Ref{}, accounts.ErrAccountNotFound
		}
		return accounts.Ref{}, err
	}
	return ref, nil
}

func (r *txRepository) AccountTypeByID(ctx context.Context, accountID int64) (accounts.AccountType, error) {
	var t accounts.AccountType
	err := r.tx.QueryRow(ctx, `SELECT type FROM account_heads WHERE id=$1`, accountID).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", accounts.ErrAccountNotFound
		}
		return "", err
	}
	return t, nil
}

func (r *txRepository) IncrementBalance(ctx context.Context, accountID int64, delta float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE account_heads SET current_balance = current_balance + $2, updated_at=NOW() WHERE id=$1`, accountID, toNumeric(delta))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accounts.ErrAccountNotFound
	}
	return nil
}

func getWithLines(ctx context.Context, q querier, entryID int64) (Entry, error) {
	entry, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, actshared.ErrJournalNotFound
		}
		return Entry{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, journal_entry_id, account_head_id, debit_amount, credit_amount, COALESCE(description, '')
FROM journal_entry_lines WHERE journal_entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit, &line.Description); err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func referenceExists(ctx context.Context, q querier, refType string, refID uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE reference_type=$1 AND reference_id=$2)`, refType, refID).Scan(&exists)
	return exists, err
}

// Helpers
func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
