package close

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

type memAccount struct {
	ref     accounts.Ref
	code    string
	balance float64
}

type memLedger struct {
	byCode  map[string]*memAccount
	byID    map[int64]*memAccount
	entries []journals.Entry
	nextID  int64
}

func newMemLedger() *memLedger {
	return &memLedger{byCode: map[string]*memAccount{}, byID: map[int64]*memAccount{}}
}

func (l *memLedger) addAccount(id int64, code string, t accounts.AccountType) {
	acc := &memAccount{ref: accounts.Ref{ID: id, Type: t}, code: code}
	l.byCode[code] = acc
	l.byID[id] = acc
}

func (l *memLedger) balance(code string) float64 {
	return l.byCode[code].balance
}

func (l *memLedger) List(ctx context.Context, limit int) ([]journals.Entry, error) {
	return l.entries, nil
}

func (l *memLedger) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return fn(ctx, l)
}

func (l *memLedger) LatestEntryNumber(ctx context.Context, prefix string) (string, error) {
	latest := ""
	for _, e := range l.entries {
		if len(e.EntryNumber) >= len(prefix) && e.EntryNumber[:len(prefix)] == prefix && e.EntryNumber > latest {
			latest = e.EntryNumber
		}
	}
	return latest, nil
}

func (l *memLedger) InsertEntry(ctx context.Context, entry journals.Entry) (journals.Entry, error) {
	l.nextID++
	entry.ID = l.nextID
	l.entries = append(l.entries, entry)
	return entry, nil
}

func (l *memLedger) InsertLines(ctx context.Context, entryID int64, lines []journals.ResolvedLine) error {
	return nil
}

func (l *memLedger) GetWithLines(ctx context.Context, entryID int64) (journals.Entry, error) {
	for _, e := range l.entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return journals.Entry{}, actshared.ErrJournalNotFound
}

func (l *memLedger) ReferenceExists(ctx context.Context, refType string, refID uuid.UUID) (bool, error) {
	return false, nil
}

func (l *memLedger) AccountForUpdate(ctx context.Context, code string) (accounts.Ref, error) {
	acc, ok := l.byCode[code]
	if !ok {
		return accounts.Ref{}, accounts.ErrAccountNotFound
	}
	return acc.ref, nil
}

func (l *memLedger) AccountTypeByID(ctx context.Context, accountID int64) (accounts.AccountType, error) {
	acc, ok := l.byID[accountID]
	if !ok {
		return "", accounts.ErrAccountNotFound
	}
	return acc.ref.Type, nil
}

func (l *memLedger) IncrementBalance(ctx context.Context, accountID int64, delta float64) error {
	acc, ok := l.byID[accountID]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	acc.balance += delta
	return nil
}

// memCloseRepo fakes both the close repository and its transaction port.
// staleReads makes ClosedExists miss committed records, the way a snapshot
// taken before a concurrent closer's commit would.
type memCloseRepo struct {
	ledger     *memLedger
	records    []PeriodClose
	nextID     int64
	debits     float64
	credits    float64
	revenues   []NetMovement
	expenses   []NetMovement
	staleReads bool
}

func (r *memCloseRepo) List(ctx context.Context, limit int) ([]PeriodClose, error) {
	return r.records, nil
}

func (r *memCloseRepo) Get(ctx context.Context, id int64) (PeriodClose, error) {
	for _, pc := range r.records {
		if pc.ID == id {
			return pc, nil
		}
	}
	return PeriodClose{}, ErrCloseNotFound
}

func (r *memCloseRepo) MarkReopened(ctx context.Context, id int64, reason string) (PeriodClose, error) {
	for i := range r.records {
		if r.records[i].ID != id {
			continue
		}
		if r.records[i].Status != StatusClosed {
			return PeriodClose{}, ErrAlreadyReopened
		}
		r.records[i].Status = StatusReopened
		r.records[i].ReopenReason = reason
		return r.records[i], nil
	}
	return PeriodClose{}, ErrAlreadyReopened
}

func (r *memCloseRepo) Do(ctx context.Context, fn func(context.Context, Tx) error) error {
	return fn(ctx, Tx{Close: r, Journals: r.ledger})
}

func (r *memCloseRepo) ClosedExists(ctx context.Context, periodDate time.Time) (bool, error) {
	if r.staleReads {
		return false, nil
	}
	for _, pc := range r.records {
		if pc.Status == StatusClosed && pc.PeriodDate.Equal(periodDate) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memCloseRepo) TotalsAsOf(ctx context.Context, asOf time.Time) (float64, float64, error) {
	return r.debits, r.credits, nil
}

func (r *memCloseRepo) NetMovements(ctx context.Context, from, to time.Time) ([]NetMovement, []NetMovement, error) {
	return r.revenues, r.expenses, nil
}

func (r *memCloseRepo) InsertClose(ctx context.Context, pc PeriodClose) (PeriodClose, error) {
	// Mirrors the partial unique index on (period_type, period_date)
	// WHERE status = 'CLOSED'.
	for _, existing := range r.records {
		if existing.Status == StatusClosed && existing.PeriodType == pc.PeriodType && existing.PeriodDate.Equal(pc.PeriodDate) {
			return PeriodClose{}, ErrAlreadyClosed
		}
	}
	r.nextID++
	pc.ID = r.nextID
	r.records = append(r.records, pc)
	return pc, nil
}

type stubReports struct {
	pl reports.ProfitAndLoss
}

func (s *stubReports) ProfitAndLoss(ctx context.Context, from, to time.Time) (reports.ProfitAndLoss, error) {
	return s.pl, nil
}

func newCloseService(t *testing.T) (*Service, *memCloseRepo, *memLedger) {
	t.Helper()
	ledger := newMemLedger()
	ledger.addAccount(8, accounts.CodeRetainedEarnings, accounts.AccountTypeEquity)
	ledger.addAccount(9, accounts.CodeSalesRevenue, accounts.AccountTypeRevenue)
	ledger.addAccount(11, accounts.CodeCOGS, accounts.AccountTypeExpense)

	repo := &memCloseRepo{ledger: ledger, debits: 100, credits: 100}
	jsvc := journals.NewService(ledger, nil, nil)
	svc := NewService(repo, jsvc, &stubReports{}, nil, nil)
	return svc, repo, ledger
}

func TestCloseMonthZeroesIntoRetainedEarnings(t *testing.T) {
	svc, repo, ledger := newCloseService(t)
	repo.revenues = []NetMovement{{Account: accounts.Ref{ID: 9, Type: accounts.AccountTypeRevenue}, Code: accounts.CodeSalesRevenue, Net: 8_200_000}}
	repo.expenses = []NetMovement{{Account: accounts.Ref{ID: 11, Type: accounts.AccountTypeExpense}, Code: accounts.CodeCOGS, Net: 5_100_000}}

	record, err := svc.CloseMonth(context.Background(), 2026, time.August, 3)
	require.NoError(t, err)
	require.InDelta(t, 3_100_000, record.NetProfit, 0.001)
	require.Equal(t, StatusClosed, record.Status)
	require.NotNil(t, record.ClosingEntryID)

	// Closing entry debits revenue, credits expense, credits the profit.
	require.InDelta(t, -8_200_000, ledger.balance(accounts.CodeSalesRevenue), 0.001)
	require.InDelta(t, -5_100_000, ledger.balance(accounts.CodeCOGS), 0.001)
	require.InDelta(t, 3_100_000, ledger.balance(accounts.CodeRetainedEarnings), 0.001)

	require.Len(t, ledger.entries, 1)
	entry := ledger.entries[0]
	require.Equal(t, "JE-20260831-001", entry.EntryNumber)
	require.Equal(t, journals.RefTypePeriodClose, entry.ReferenceType)

	_, err = svc.CloseMonth(context.Background(), 2026, time.August, 3)
	require.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestCloseMonthRejectsUnbalancedLedger(t *testing.T) {
	svc, repo, _ := newCloseService(t)
	repo.debits = 1000
	repo.credits = 998

	_, err := svc.CloseMonth(context.Background(), 2026, time.July, 3)
	var tbErr *actshared.TrialBalanceError
	require.ErrorAs(t, err, &tbErr)
	require.InDelta(t, 1000, tbErr.Debits, 0.001)
	require.InDelta(t, 998, tbErr.Credits, 0.001)
	require.Empty(t, repo.records)
}

func TestCloseMonthWithNoMovementSkipsClosingEntry(t *testing.T) {
	svc, _, ledger := newCloseService(t)

	record, err := svc.CloseMonth(context.Background(), 2026, time.June, 3)
	require.NoError(t, err)
	require.Nil(t, record.ClosingEntryID)
	require.InDelta(t, 0, record.NetProfit, 0.001)
	require.Equal(t, StatusClosed, record.Status)
	require.Empty(t, ledger.entries)
}

func TestCloseMonthRequiresRetainedEarnings(t *testing.T) {
	svc, repo, ledger := newCloseService(t)
	delete(ledger.byCode, accounts.CodeRetainedEarnings)
	repo.revenues = []NetMovement{{Account: accounts.Ref{ID: 9, Type: accounts.AccountTypeRevenue}, Code: accounts.CodeSalesRevenue, Net: 100}}

	_, err := svc.CloseMonth(context.Background(), 2026, time.May, 3)
	require.ErrorIs(t, err, actshared.ErrMissingSystemAccount)
	require.Empty(t, repo.records)
}

func TestCloseMonthPostsNetLossAsDebit(t *testing.T) {
	svc, repo, ledger := newCloseService(t)
	repo.revenues = []NetMovement{{Account: accounts.Ref{ID: 9, Type: accounts.AccountTypeRevenue}, Code: accounts.CodeSalesRevenue, Net: 1000}}
	repo.expenses = []NetMovement{{Account: accounts.Ref{ID: 11, Type: accounts.AccountTypeExpense}, Code: accounts.CodeCOGS, Net: 1500}}

	record, err := svc.CloseMonth(context.Background(), 2026, time.April, 3)
	require.NoError(t, err)
	require.InDelta(t, -500, record.NetProfit, 0.001)
	// A loss debits retained earnings.
	require.InDelta(t, -500, ledger.balance(accounts.CodeRetainedEarnings), 0.001)
}

func TestReopenRequiresReason(t *testing.T) {
	svc, _, _ := newCloseService(t)
	record, err := svc.CloseMonth(context.Background(), 2026, time.March, 3)
	require.NoError(t, err)

	_, err = svc.Reopen(context.Background(), record.ID, "  ", 3)
	require.ErrorIs(t, err, ErrReasonRequired)

	reopened, err := svc.Reopen(context.Background(), record.ID, "posted to wrong month", 3)
	require.NoError(t, err)
	require.Equal(t, StatusReopened, reopened.Status)
	require.Equal(t, "posted to wrong month", reopened.ReopenReason)

	_, err = svc.Reopen(context.Background(), record.ID, "again", 3)
	require.ErrorIs(t, err, ErrAlreadyReopened)

	_, err = svc.Reopen(context.Background(), 999, "missing", 3)
	require.ErrorIs(t, err, ErrCloseNotFound)
}

func TestMonthPnLFiltersTrivialRows(t *testing.T) {
	svc, _, _ := newCloseService(t)
	svc.reports = &stubReports{pl: reports.ProfitAndLoss{
		Revenue: reports.ProfitAndLossSection{
			Accounts: []reports.ProfitAndLossAccount{
				{Code: "4100", Name: "Sales Revenue", Amount: 900},
				{Code: "4200", Name: "Other Income", Amount: 0.004},
			},
			Total: 900.004,
		},
		Expense: reports.ProfitAndLossSection{
			Accounts: []reports.ProfitAndLossAccount{
				{Code: "5100", Name: "COGS", Amount: 300},
			},
			Total: 300,
		},
	}}

	pnl, err := svc.MonthPnL(context.Background(), 2026, time.August)
	require.NoError(t, err)
	require.Equal(t, "2026-08", pnl.Period)
	require.Len(t, pnl.Revenues, 1)
	require.Len(t, pnl.Expenses, 1)
	require.InDelta(t, 900.0, pnl.TotalRevenue, 0.01)
	require.InDelta(t, 600.0, pnl.NetProfit, 0.01)
}

func TestCloseMonthSurfacesInsertRaceAsAlreadyClosed(t *testing.T) {
	svc, repo, _ := newCloseService(t)

	// February has no revenue or expense movement, so the close commits
	// without a closing entry and nothing else collides for a loser.
	_, err := svc.CloseMonth(context.Background(), 2026, time.February, 3)
	require.NoError(t, err)

	repo.staleReads = true
	_, err = svc.CloseMonth(context.Background(), 2026, time.February, 3)
	require.ErrorIs(t, err, ErrAlreadyClosed)
	require.Len(t, repo.records, 1)
}

func TestClosedExistsMatchesPeriodDateOnly(t *testing.T) {
	_, repo, _ := newCloseService(t)
	repo.records = append(repo.records, PeriodClose{
		ID:         1,
		PeriodDate: reports.PeriodDate(2026, time.August),
		Status:     StatusReopened,
	})

	exists, err := repo.ClosedExists(context.Background(), reports.PeriodDate(2026, time.August))
	require.NoError(t, err)
	require.False(t, exists, "a reopened record must not block re-closing checks")
}
