package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAccountNotFound indicates the code has no chart-of-accounts entry.
var ErrAccountNotFound = errors.New("accounts: account not found")

// ErrSystemAccount indicates a protected account cannot be deleted.
var ErrSystemAccount = errors.New("accounts: system account is protected")

// Repository provides read access to the chart of accounts. Balance columns
// are mutated only by posting transactions, never through this interface.
type Repository interface {
	List(ctx context.Context) ([]Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	RefByCode(ctx context.Context, code string) (Ref, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, type, parent_id, is_system, opening_balance, current_balance, created_at, updated_at FROM account_heads ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsSystem, &a.OpeningBalance, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, `SELECT id, code, name, type, parent_id, is_system, opening_balance, current_balance, created_at, updated_at FROM account_heads WHERE code=$1`, code).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsSystem, &a.OpeningBalance, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) RefByCode(ctx context.Context, code string) (Ref, error) {
	var ref Ref
	err := r.db.QueryRow(ctx, `SELECT id, type FROM account_heads WHERE code=$1`, code).Scan(&ref.ID, &ref.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ref{}, ErrAccountNotFound
		}
		return Ref{}, err
	}
	return ref, nil
}
