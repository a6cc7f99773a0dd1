package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	internalshared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records ledger events for compliance. Failures are swallowed by
// callers; auditing never blocks a posting.
type AuditPort interface {
	Record(ctx context.Context, log internalshared.AuditLog) error
}

// Service coordinates posting and reversing journal entries. All mutations
// run inside a single transaction: entry, lines, and every touched account's
// running balance commit together or not at all.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns recent journal entries.
func (s *Service) List(ctx context.Context, limit int) ([]Entry, error) {
	return s.repo.List(ctx, limit)
}

// Get loads one entry with its lines.
func (s *Service) Get(ctx context.Context, entryID int64) (Entry, error) {
	return s.repo.GetWithLines(ctx, entryID)
}

// ReferenceExists reports whether an entry is already linked to the business
// object, the natural de-duplication key for backfill.
func (s *Service) ReferenceExists(ctx context.Context, refType string, refID uuid.UUID) (bool, error) {
	return s.repo.ReferenceExists(ctx, refType, refID)
}

// PostEntry validates and persists a new POSTED entry in its own transaction.
func (s *Service) PostEntry(ctx context.Context, input PostingInput) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var txErr error
		entry, txErr = s.PostEntryTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return Entry{}, err
	}
	s.recordAudit(ctx, "journal.post", entry)
	return entry, nil
}

// PostEntryTx posts a code-keyed entry inside an already-open transaction, so
// callers can bundle it with inventory mutations in one unit of work. Account
// rows are locked as codes resolve; the balance increment that follows reuses
// the same lock.
func (s *Service) PostEntryTx(ctx context.Context, tx TxRepository, input PostingInput) (Entry, error) {
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	refs := make(map[string]accounts.Ref, len(input.Lines))
	resolved := ResolvedInput{
		Date:          input.Date,
		Description:   input.Description,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		CreatedBy:     input.CreatedBy,
		Lines:         make([]ResolvedLine, 0, len(input.Lines)),
	}
	for _, line := range input.Lines {
		ref, ok := refs[line.AccountCode]
		if !ok {
			var err error
			ref, err = tx.AccountForUpdate(ctx, line.AccountCode)
			if err != nil {
				if errors.Is(err, accounts.ErrAccountNotFound) {
					return Entry{}, fmt.Errorf("account %s: %w", line.AccountCode, err)
				}
				return Entry{}, err
			}
			refs[line.AccountCode] = ref
		}
		resolved.Lines = append(resolved.Lines, ResolvedLine{
			Account:     ref,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return s.PostResolvedTx(ctx, tx, resolved)
}

// PostResolvedTx posts an entry whose accounts are already resolved. The
// period close service uses this path with ids taken from aggregation rows.
func (s *Service) PostResolvedTx(ctx context.Context, tx TxRepository, in ResolvedInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	prefix := DayPrefix(in.Date)
	latest, err := tx.LatestEntryNumber(ctx, prefix)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		EntryNumber:   NextEntryNumber(latest, prefix),
		Date:          in.Date,
		Description:   in.Description,
		Status:        EntryStatusPosted,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		CreatedBy:     in.CreatedBy,
		ApprovedBy:    in.CreatedBy,
		TenantID:      internalshared.TenantFromContext(ctx),
	}
	inserted, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.InsertLines(ctx, inserted.ID, in.Lines); err != nil {
		return Entry{}, err
	}
	for _, line := range in.Lines {
		accountType := line.Account.Type
		if accountType == "" {
			accountType, err = tx.AccountTypeByID(ctx, line.Account.ID)
			if err != nil {
				return Entry{}, err
			}
		}
		delta := accounts.BalanceChange(accountType, line.Debit, line.Credit)
		if err := tx.IncrementBalance(ctx, line.Account.ID, delta); err != nil {
			return Entry{}, err
		}
	}
	inserted.Lines = toLines(inserted.ID, in.Lines)
	s.logger.Debug("journal entry posted",
		slog.String("entry_number", inserted.EntryNumber),
		slog.String("reference_type", inserted.ReferenceType),
		slog.String("reference_id", inserted.ReferenceID.String()))
	return inserted, nil
}

// ReverseEntry posts the mirror-image of an existing POSTED entry as a brand
// new entry dated at reversal time. History is append-only: the original is
// never mutated or deleted.
func (s *Service) ReverseEntry(ctx context.Context, entryID int64, description string, actorID int64) (Entry, error) {
	var reversal Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetWithLines(ctx, entryID)
		if err != nil {
			return err
		}
		if original.Status != EntryStatusPosted {
			return actshared.ErrInvalidStatus
		}
		types := make(map[int64]accounts.AccountType, len(original.Lines))
		resolved := ResolvedInput{
			Date:          s.now(),
			Description:   defaultReversalMemo(description, original.EntryNumber),
			ReferenceType: original.ReferenceType,
			ReferenceID:   original.ReferenceID,
			CreatedBy:     actorID,
			Lines:         make([]ResolvedLine, 0, len(original.Lines)),
		}
		for _, line := range original.Lines {
			accountType, ok := types[line.AccountID]
			if !ok {
				accountType, err = tx.AccountTypeByID(ctx, line.AccountID)
				if err != nil {
					return err
				}
				types[line.AccountID] = accountType
			}
			resolved.Lines = append(resolved.Lines, ResolvedLine{
				Account:     accounts.Ref{ID: line.AccountID, Type: accountType},
				Debit:       line.Credit,
				Credit:      line.Debit,
				Description: line.Description,
			})
		}
		reversal, err = s.PostResolvedTx(ctx, tx, resolved)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	s.recordAudit(ctx, "journal.reverse", reversal)
	return reversal, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entry Entry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalshared.AuditLog{
		ActorID:  entry.CreatedBy,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"entry_number":   entry.EntryNumber,
			"reference_type": entry.ReferenceType,
			"reference_id":   entry.ReferenceID.String(),
		},
		At: s.now(),
	})
}

func toLines(entryID int64, lines []ResolvedLine) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, Line{
			EntryID:     entryID,
			AccountID:   line.Account.ID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return out
}

func defaultReversalMemo(memo, number string) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of %s", number)
}
