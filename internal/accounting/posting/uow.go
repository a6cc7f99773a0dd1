package posting

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Tx bundles the journal and inventory transaction ports over one database
// transaction, so an invoice can consume batches and post its ledger legs in
// a single unit of work.
type Tx struct {
	Journals  journals.TxRepository
	Inventory inventory.TxRepository
}

// UnitOfWork opens a transaction spanning both the ledger and inventory.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type pgUnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork builds the production unit of work over a pgx pool.
func NewUnitOfWork(pool *pgxpool.Pool) UnitOfWork {
	return &pgUnitOfWork{pool: pool}
}

func (u *pgUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.WithTx(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, Tx{
			Journals:  journals.NewTxRepository(tx),
			Inventory: inventory.NewTxRepository(tx),
		})
	})
}
