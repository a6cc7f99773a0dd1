package posting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
)

type fakeAccount struct {
	ref     accounts.Ref
	code    string
	balance float64
}

type fakeLedger struct {
	byCode  map[string]*fakeAccount
	byID    map[int64]*fakeAccount
	entries []journals.Entry
	nextID  int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{byCode: map[string]*fakeAccount{}, byID: map[int64]*fakeAccount{}}
}

func (l *fakeLedger) addAccount(id int64, code string, t accounts.AccountType) {
	acc := &fakeAccount{ref: accounts.Ref{ID: id, Type: t}, code: code}
	l.byCode[code] = acc
	l.byID[id] = acc
}

func (l *fakeLedger) balance(code string) float64 {
	return l.byCode[code].balance
}

func (l *fakeLedger) List(ctx context.Context, limit int) ([]journals.Entry, error) {
	return l.entries, nil
}

func (l *fakeLedger) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return fn(ctx, l)
}

func (l *fakeLedger) LatestEntryNumber(ctx context.Context, prefix string) (string, error) {
	latest := ""
	for _, e := range l.entries {
		if len(e.EntryNumber) >= len(prefix) && e.EntryNumber[:len(prefix)] == prefix && e.EntryNumber > latest {
			latest = e.EntryNumber
		}
	}
	return latest, nil
}

func (l *fakeLedger) InsertEntry(ctx context.Context, entry journals.Entry) (journals.Entry, error) {
	l.nextID++
	entry.ID = l.nextID
	l.entries = append(l.entries, entry)
	return entry, nil
}

func (l *fakeLedger) InsertLines(ctx context.Context, entryID int64, lines []journals.ResolvedLine) error {
	for i := range l.entries {
		if l.entries[i].ID != entryID {
			continue
		}
		for _, line := range lines {
			l.entries[i].Lines = append(l.entries[i].Lines, journals.Line{
				EntryID:     entryID,
				AccountID:   line.Account.ID,
				Debit:       line.Debit,
				Credit:      line.Credit,
				Description: line.Description,
			})
		}
		return nil
	}
	return actshared.ErrJournalNotFound
}

func (l *fakeLedger) GetWithLines(ctx context.Context, entryID int64) (journals.Entry, error) {
	for _, e := range l.entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return journals.Entry{}, actshared.ErrJournalNotFound
}

func (l *fakeLedger) ReferenceExists(ctx context.Context, refType string, refID uuid.UUID) (bool, error) {
	for _, e := range l.entries {
		if e.ReferenceType == refType && e.ReferenceID == refID {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLedger) AccountForUpdate(ctx context.Context, code string) (accounts.Ref, error) {
	acc, ok := l.byCode[code]
	if !ok {
		return accounts.Ref{}, accounts.ErrAccountNotFound
	}
	return acc.ref, nil
}

func (l *fakeLedger) AccountTypeByID(ctx context.Context, accountID int64) (accounts.AccountType, error) {
	acc, ok := l.byID[accountID]
	if !ok {
		return "", accounts.ErrAccountNotFound
	}
	return acc.ref.Type, nil
}

func (l *fakeLedger) IncrementBalance(ctx context.Context, accountID int64, delta float64) error {
	acc, ok := l.byID[accountID]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	acc.balance += delta
	return nil
}

type fakeStock struct {
	batches   []*inventory.Batch
	movements []inventory.Movement
	nextID    int64
}

func (s *fakeStock) addBatch(productID, warehouseID int64, batchNo string, qty, unitCost float64, receivedAt time.Time) {
	s.nextID++
	s.batches = append(s.batches, &inventory.Batch{
		ID:          s.nextID,
		ProductID:   productID,
		WarehouseID: warehouseID,
		BatchNo:     batchNo,
		Quantity:    qty,
		UnitCost:    unitCost,
		ReceivedAt:  receivedAt,
	})
}

func (s *fakeStock) batchQty(batchNo string) float64 {
	for _, b := range s.batches {
		if b.BatchNo == batchNo {
			return b.Quantity
		}
	}
	return -1
}

func (s *fakeStock) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return fn(ctx, s)
}

func (s *fakeStock) ListMovements(ctx context.Context, productID, warehouseID int64, limit int) ([]inventory.Movement, error) {
	return s.movements, nil
}

func (s *fakeStock) BatchesForUpdate(ctx context.Context, productID int64, variantID *int64, warehouseID int64) ([]inventory.Batch, error) {
	var out []inventory.Batch
	for _, b := range s.batches {
		if b.ProductID == productID && b.WarehouseID == warehouseID && b.Quantity > 0 {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeStock) AvailableQuantity(ctx context.Context, productID int64, variantID *int64, warehouseID int64) (float64, error) {
	var total float64
	for _, b := range s.batches {
		if b.ProductID == productID && b.WarehouseID == warehouseID && b.Quantity > 0 {
			total += b.Quantity
		}
	}
	return total, nil
}

func (s *fakeStock) DecrementBatch(ctx context.Context, batchID int64, qty float64) error {
	for _, b := range s.batches {
		if b.ID == batchID && b.Quantity >= qty {
			b.Quantity -= qty
			return nil
		}
	}
	return inventory.ErrBatchNotFound
}

func (s *fakeStock) InsertBatch(ctx context.Context, batch inventory.Batch) (inventory.Batch, error) {
	s.nextID++
	batch.ID = s.nextID
	stored := batch
	s.batches = append(s.batches, &stored)
	return batch, nil
}

func (s *fakeStock) InsertMovement(ctx context.Context, movement inventory.Movement) error {
	s.movements = append(s.movements, movement)
	return nil
}

// fakeUOW snapshots the fakes before each unit of work and restores them when
// it fails, mirroring transaction rollback.
type fakeUOW struct {
	ledger *fakeLedger
	stock  *fakeStock
}

func (u *fakeUOW) Do(ctx context.Context, fn func(context.Context, Tx) error) error {
	balances := map[int64]float64{}
	for id, acc := range u.ledger.byID {
		balances[id] = acc.balance
	}
	entries := make([]journals.Entry, len(u.ledger.entries))
	copy(entries, u.ledger.entries)
	nextEntryID := u.ledger.nextID
	quantities := map[int64]float64{}
	for _, b := range u.stock.batches {
		quantities[b.ID] = b.Quantity
	}
	movements := make([]inventory.Movement, len(u.stock.movements))
	copy(movements, u.stock.movements)

	err := fn(ctx, Tx{Journals: u.ledger, Inventory: u.stock})
	if err != nil {
		for id, bal := range balances {
			u.ledger.byID[id].balance = bal
		}
		u.ledger.entries = entries
		u.ledger.nextID = nextEntryID
		for _, b := range u.stock.batches {
			if qty, ok := quantities[b.ID]; ok {
				b.Quantity = qty
			}
		}
		u.stock.movements = movements
	}
	return err
}

func newTestService(t *testing.T) (*Service, *fakeLedger, *fakeStock) {
	t.Helper()
	ledger := newFakeLedger()
	ledger.addAccount(1, accounts.CodeMainBank, accounts.AccountTypeAsset)
	ledger.addAccount(2, accounts.CodePettyCash, accounts.AccountTypeAsset)
	ledger.addAccount(3, accounts.CodeAccountsReceivable, accounts.AccountTypeAsset)
	ledger.addAccount(4, accounts.CodeInventory, accounts.AccountTypeAsset)
	ledger.addAccount(5, accounts.CodeInputTaxReceivable, accounts.AccountTypeAsset)
	ledger.addAccount(6, accounts.CodeAccountsPayable, accounts.AccountTypeLiability)
	ledger.addAccount(7, accounts.CodeTaxPayable, accounts.AccountTypeLiability)
	ledger.addAccount(8, accounts.CodeRetainedEarnings, accounts.AccountTypeEquity)
	ledger.addAccount(9, accounts.CodeSalesRevenue, accounts.AccountTypeRevenue)
	ledger.addAccount(10, accounts.CodeOtherIncome, accounts.AccountTypeRevenue)
	ledger.addAccount(11, accounts.CodeCOGS, accounts.AccountTypeExpense)
	ledger.addAccount(12, accounts.CodeInventoryLoss, accounts.AccountTypeExpense)
	ledger.addAccount(13, "5200", accounts.AccountTypeExpense)
	ledger.addAccount(14, "5300", accounts.AccountTypeExpense)
	ledger.addAccount(15, "5400", accounts.AccountTypeExpense)
	ledger.addAccount(16, "5500", accounts.AccountTypeExpense)
	ledger.addAccount(17, accounts.CodeDefaultExpense, accounts.AccountTypeExpense)

	stock := &fakeStock{}
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	stock.addBatch(1, 1, "B1", 10, 5, base)
	stock.addBatch(1, 1, "B2", 20, 6, base.AddDate(0, 0, 2))

	jsvc := journals.NewService(ledger, nil, nil)
	isvc := inventory.NewService(stock, nil, nil, nil)
	svc := NewService(&fakeUOW{ledger: ledger, stock: stock}, jsvc, isvc, nil, nil)
	return svc, ledger, stock
}

func TestInvoicePostsReceivableAndCOGS(t *testing.T) {
	svc, ledger, stock := newTestService(t)

	result, err := svc.OnInvoiceCreated(context.Background(), InvoiceEvent{
		ID:            uuid.New(),
		InvoiceNumber: "INV-100",
		Subtotal:      1000,
		TaxAmount:     170,
		Total:         1170,
		Date:          time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
		Items:         []InvoiceItem{{ProductID: 1, WarehouseID: 1, Quantity: 15}},
		ActorID:       7,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Entry)
	require.NotNil(t, result.COGSEntry)

	require.InDelta(t, 1170, ledger.balance(accounts.CodeAccountsReceivable), 0.001)
	require.InDelta(t, 1000, ledger.balance(accounts.CodeSalesRevenue), 0.001)
	require.InDelta(t, 170, ledger.balance(accounts.CodeTaxPayable), 0.001)

	// FIFO: 10 units at 5 from B1, 5 units at 6 from B2.
	require.InDelta(t, 80, result.COGS, 0.001)
	require.InDelta(t, 80, ledger.balance(accounts.CodeCOGS), 0.001)
	require.InDelta(t, -80, ledger.balance(accounts.CodeInventory), 0.001)
	require.InDelta(t, 0, stock.batchQty("B1"), 0.0001)
	require.InDelta(t, 15, stock.batchQty("B2"), 0.0001)
	require.Len(t, result.Deductions, 2)
	require.Len(t, ledger.entries, 2)
}

func TestInvoiceVoidRestoresBalances(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	id := uuid.New()

	result, err := svc.OnInvoiceCreated(context.Background(), InvoiceEvent{
		ID:            id,
		InvoiceNumber: "INV-101",
		Subtotal:      1000,
		TaxAmount:     170,
		Total:         1170,
		Date:          time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
		Items:         []InvoiceItem{{ProductID: 1, WarehouseID: 1, Quantity: 15}},
		ActorID:       7,
	})
	require.NoError(t, err)

	err = svc.OnInvoiceVoided(context.Background(), InvoiceVoidEvent{
		ID:            id,
		InvoiceNumber: "INV-101",
		Subtotal:      1000,
		TaxAmount:     170,
		Total:         1170,
		COGS:          result.COGS,
		ActorID:       7,
	})
	require.NoError(t, err)

	for _, code := range []string{
		accounts.CodeAccountsReceivable,
		accounts.CodeSalesRevenue,
		accounts.CodeTaxPayable,
		accounts.CodeCOGS,
		accounts.CodeInventory,
	} {
		require.InDelta(t, 0, ledger.balance(code), 0.001, "code %s", code)
	}
	require.Len(t, ledger.entries, 4)
}

func TestInsufficientStockAbortsInvoice(t *testing.T) {
	svc, ledger, stock := newTestService(t)

	_, err := svc.OnInvoiceCreated(context.Background(), InvoiceEvent{
		ID:            uuid.New(),
		InvoiceNumber: "INV-102",
		Subtotal:      1000,
		TaxAmount:     0,
		Total:         1000,
		Date:          time.Now(),
		Items:         []InvoiceItem{{ProductID: 1, WarehouseID: 1, Quantity: 50}},
	})
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	// The receivable entry posted before the shortfall must roll back too.
	require.Empty(t, ledger.entries)
	require.InDelta(t, 0, ledger.balance(accounts.CodeAccountsReceivable), 0.001)
	require.InDelta(t, 10, stock.batchQty("B1"), 0.0001)
	require.InDelta(t, 20, stock.batchQty("B2"), 0.0001)
}

func TestMissingAccountSkipsAutoEntry(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	delete(ledger.byCode, "5300")

	entry, err := svc.OnExpenseCreated(context.Background(), ExpenseEvent{
		ID:            uuid.New(),
		Category:      ExpenseUtilities,
		Amount:        400,
		PaymentMethod: PaymentBank,
		Date:          time.Now(),
	})
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Empty(t, ledger.entries)
	require.InDelta(t, 0, ledger.balance(accounts.CodeMainBank), 0.001)
}

func TestGoodsReceivedScenario(t *testing.T) {
	svc, ledger, _ := newTestService(t)

	entry, err := svc.OnGoodsReceived(context.Background(), GoodsReceiptEvent{
		ID:          uuid.New(),
		PONumber:    "PO-9",
		TotalAmount: 1000,
		TaxAmount:   0,
		Date:        time.Now(),
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.InDelta(t, 1000, ledger.balance(accounts.CodeInventory), 0.001)
	require.InDelta(t, 1000, ledger.balance(accounts.CodeAccountsPayable), 0.001)
}

func TestGoodsReceivedSplitsInputTax(t *testing.T) {
	svc, ledger, _ := newTestService(t)

	_, err := svc.OnGoodsReceived(context.Background(), GoodsReceiptEvent{
		ID:          uuid.New(),
		PONumber:    "PO-10",
		TotalAmount: 1170,
		TaxAmount:   170,
		Date:        time.Now(),
	})
	require.NoError(t, err)
	require.InDelta(t, 1000, ledger.balance(accounts.CodeInventory), 0.001)
	require.InDelta(t, 170, ledger.balance(accounts.CodeInputTaxReceivable), 0.001)
	require.InDelta(t, 1170, ledger.balance(accounts.CodeAccountsPayable), 0.001)
}

func TestAdjustmentPostsOnlyLossTypes(t *testing.T) {
	svc, ledger, _ := newTestService(t)

	entry, err := svc.OnStockAdjustmentApproved(context.Background(), AdjustmentEvent{
		ID:        uuid.New(),
		Type:      AdjustmentIncrease,
		Quantity:  5,
		CostPrice: 10,
	})
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Empty(t, ledger.entries)

	entry, err = svc.OnStockAdjustmentApproved(context.Background(), AdjustmentEvent{
		ID:        uuid.New(),
		Type:      AdjustmentWastage,
		Quantity:  5,
		CostPrice: 10,
		Reason:    "spoiled",
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.InDelta(t, 50, ledger.balance(accounts.CodeInventoryLoss), 0.001)
	require.InDelta(t, -50, ledger.balance(accounts.CodeInventory), 0.001)
}

func TestExpenseCategoryMapping(t *testing.T) {
	require.Equal(t, "5200", AccountForCategory(ExpenseRent))
	require.Equal(t, "5300", AccountForCategory(ExpenseUtilities))
	require.Equal(t, "5400", AccountForCategory(ExpenseSalaries))
	require.Equal(t, "5500", AccountForCategory(ExpenseTransport))
	require.Equal(t, accounts.CodeDefaultExpense, AccountForCategory(ExpenseMarketing))
	require.Equal(t, accounts.CodeDefaultExpense, AccountForCategory(ExpenseCategory("UNKNOWN")))

	require.Equal(t, accounts.CodePettyCash, CreditAccountFor(PaymentCash))
	require.Equal(t, accounts.CodeMainBank, CreditAccountFor(PaymentBank))
}

func TestExpensePostsAgainstPettyCash(t *testing.T) {
	svc, ledger, _ := newTestService(t)

	entry, err := svc.OnExpenseCreated(context.Background(), ExpenseEvent{
		ID:            uuid.New(),
		Category:      ExpenseRent,
		Amount:        250,
		PaymentMethod: PaymentCash,
		Date:          time.Now(),
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.InDelta(t, 250, ledger.balance("5200"), 0.001)
	require.InDelta(t, -250, ledger.balance(accounts.CodePettyCash), 0.001)
}

func TestCreditNoteRoundTrip(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	id := uuid.New()

	_, err := svc.OnCreditNoteCreated(context.Background(), CreditNoteEvent{
		ID:               id,
		CreditNoteNumber: "CN-3",
		TotalAmount:      300,
		Date:             time.Now(),
	})
	require.NoError(t, err)
	require.InDelta(t, -300, ledger.balance(accounts.CodeOtherIncome), 0.001)
	require.InDelta(t, -300, ledger.balance(accounts.CodeAccountsReceivable), 0.001)

	_, err = svc.OnCreditNoteVoided(context.Background(), CreditNoteEvent{
		ID:               id,
		CreditNoteNumber: "CN-3",
		TotalAmount:      300,
	})
	require.NoError(t, err)
	require.InDelta(t, 0, ledger.balance(accounts.CodeOtherIncome), 0.001)
	require.InDelta(t, 0, ledger.balance(accounts.CodeAccountsReceivable), 0.001)
}

type mapLookup struct {
	refs map[string]accounts.Ref
}

func (m *mapLookup) Resolve(ctx context.Context, code string) (accounts.Ref, error) {
	ref, ok := m.refs[code]
	if !ok {
		return accounts.Ref{}, accounts.ErrAccountNotFound
	}
	return ref, nil
}

func TestValidateAccountMap(t *testing.T) {
	lookup := &mapLookup{refs: map[string]accounts.Ref{}}
	for i, code := range requiredCodes {
		lookup.refs[code] = accounts.Ref{ID: int64(i + 1)}
	}
	require.NoError(t, ValidateAccountMap(context.Background(), lookup))

	delete(lookup.refs, accounts.CodeRetainedEarnings)
	err := ValidateAccountMap(context.Background(), lookup)
	require.Error(t, err)
	require.True(t, errors.Is(err, actshared.ErrMissingSystemAccount))
}
