package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"libtrack/internal/adapters/persistence/models"
	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/core/domain"
)

// loanOutcome classifies one loan after reconciliation
type loanOutcome int

const (
	outcomeAdded loanOutcome = iota
	outcomeUpdated
	outcomeUnchanged
	outcomeReturned
)

// SyncService reconciles the circulation system's view of the patron's
// loans against the book record store. One call to Reconcile is one run:
// authenticate, fetch current loans, reconcile them in bounded batches,
// clean up the borrow-later list, then reconcile returns from history.
type SyncService struct {
	library   LoanClient
	bookInfo  BookInfoLookup
	books     repositories.BookRepository
	planned   repositories.PlannedLoanRepository
	actionLog repositories.ActionLogRepository
	batchSize int
}

// NewSyncService creates a new reconciliation service
func NewSyncService(
	library LoanClient,
	bookInfo BookInfoLookup,
	books repositories.BookRepository,
	planned repositories.PlannedLoanRepository,
	actionLog repositories.ActionLogRepository,
	batchSize int,
) *SyncService {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncService{
		library:   library,
		bookInfo:  bookInfo,
		books:     books,
		planned:   planned,
		actionLog: actionLog,
		batchSize: batchSize,
	}
}

// Reconcile runs one synchronization pass and returns the summary.
// Authentication and top-level fetch failures are fatal and returned for
// classification; per-loan failures are logged and excluded from the
// success counts, never aborting the run.
func (s *SyncService) Reconcile(ctx context.Context) (*domain.SyncSummary, error) {
	runID := uuid.NewString()
	log.Printf("🔄 Sync run %s started", runID)

	if err := s.library.Login(ctx); err != nil {
		return nil, err
	}

	loans, err := s.library.GetCurrentLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch current loans: %w", err)
	}

	summary := &domain.SyncSummary{TotalCharges: len(loans)}
	var mu sync.Mutex

	// Batches run sequentially; loans within a batch run concurrently so
	// peak fan-out to the book-info API stays capped at the batch size.
	for start := 0; start < len(loans); start += s.batchSize {
		end := start + s.batchSize
		if end > len(loans) {
			end = len(loans)
		}

		var wg sync.WaitGroup
		for _, loan := range loans[start:end] {
			wg.Add(1)
			go func(loan domain.Loan) {
				defer wg.Done()

				outcome, err := s.processLoan(ctx, loan)
				if err != nil {
					log.Printf("❌ Sync run %s: loan %s failed: %v", runID, loan.ExternalID, err)
					s.logAction(ctx, runID, loan.ExternalID, models.ActionSync, models.StatusFailed, err.Error())
					return
				}

				mu.Lock()
				switch outcome {
				case outcomeAdded:
					summary.Added++
				case outcomeUpdated:
					summary.Updated++
				case outcomeUnchanged:
					summary.Unchanged++
				}
				mu.Unlock()
			}(loan)
		}
		wg.Wait()
	}

	// Cleanup runs after all batches so it sees the run's full loan set.
	// The id set is deduplicated: several loan cycles of the same title
	// must produce one deletion, not one per loan.
	s.cleanupPlanned(ctx, runID, loans)

	history, err := s.library.GetLoanHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch loan history: %w", err)
	}

	// History entries do not call the book-info API, so they all fan out
	// at once without batching
	var wg sync.WaitGroup
	for _, entry := range history {
		if entry.DischargedAt.IsZero() {
			continue
		}

		wg.Add(1)
		go func(entry domain.LoanHistoryEntry) {
			defer wg.Done()

			outcome, err := s.processReturn(ctx, entry)
			if err != nil {
				log.Printf("❌ Sync run %s: history entry %s failed: %v", runID, entry.ExternalID, err)
				s.logAction(ctx, runID, entry.ExternalID, models.ActionSync, models.StatusFailed, err.Error())
				return
			}

			if outcome == outcomeReturned {
				mu.Lock()
				summary.Returned++
				mu.Unlock()
			}
		}(entry)
	}
	wg.Wait()

	s.logAction(ctx, runID, "", models.ActionSync, models.StatusOK, fmt.Sprintf(
		"total=%d added=%d updated=%d unchanged=%d returned=%d",
		summary.TotalCharges, summary.Added, summary.Updated, summary.Unchanged, summary.Returned,
	))
	log.Printf("✅ Sync run %s finished: %d charges (%d added, %d updated, %d unchanged, %d returned)",
		runID, summary.TotalCharges, summary.Added, summary.Updated, summary.Unchanged, summary.Returned)

	return summary, nil
}

// processLoan reconciles one current loan against the record store
func (s *SyncService) processLoan(ctx context.Context, loan domain.Loan) (loanOutcome, error) {
	existing, err := s.books.FindByExternalID(ctx, loan.ExternalID)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("find record: %w", err)
	}

	if existing == nil {
		var info *domain.BookInfo
		if loan.ISBN != "" {
			info = s.bookInfo.Lookup(ctx, loan.ISBN)
		}
		if _, err := s.books.Upsert(ctx, models.NewBookRecord(loan, info)); err != nil {
			return outcomeUnchanged, fmt.Errorf("insert record: %w", err)
		}
		return outcomeAdded, nil
	}

	// Metadata recovery fires only while the cover is missing; once a
	// cover exists the record is never re-enriched
	var info *domain.BookInfo
	if existing.CoverURL == nil && loan.ISBN != "" {
		info = s.bookInfo.Lookup(ctx, loan.ISBN)
	}
	metadataRecovered := info != nil

	dueChanged := !existing.DueAt.Equal(loan.DueAt)
	renewalsChanged := existing.RenewalCount != loan.RenewalCount

	if !metadataRecovered && !dueChanged && !renewalsChanged {
		return outcomeUnchanged, nil
	}

	// The upsert merge keeps prior metadata when no fresh metadata came back
	if _, err := s.books.Upsert(ctx, models.NewBookRecord(loan, info)); err != nil {
		return outcomeUnchanged, fmt.Errorf("update record: %w", err)
	}
	return outcomeUpdated, nil
}

// processReturn reconciles one discharged history entry. The fallback
// match is ISBN plus exact charge date; ISBN alone would conflate two
// loan cycles of the same title.
func (s *SyncService) processReturn(ctx context.Context, entry domain.LoanHistoryEntry) (loanOutcome, error) {
	record, err := s.books.FindByExternalID(ctx, entry.ExternalID)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("find record: %w", err)
	}

	if record == nil && entry.ISBN != "" {
		record, err = s.books.FindByISBNAndChargeDate(ctx, entry.ISBN, entry.ChargedAt)
		if err != nil {
			return outcomeUnchanged, fmt.Errorf("find record by isbn+charge date: %w", err)
		}
	}

	if record == nil || record.IsReturned() {
		return outcomeUnchanged, nil
	}

	discharged := entry.DischargedAt
	update := &models.BookRecord{
		ExternalID:   record.ExternalID,
		DueAt:        entry.DueAt,
		RenewalCount: entry.RenewalCount,
		DischargedAt: &discharged,
	}
	if _, err := s.books.Upsert(ctx, update); err != nil {
		return outcomeUnchanged, fmt.Errorf("mark returned: %w", err)
	}
	return outcomeReturned, nil
}

// cleanupPlanned removes borrow-later entries for every distinct biblio
// id in the current loans. Failures here are logged but never fail the run.
func (s *SyncService) cleanupPlanned(ctx context.Context, runID string, loans []domain.Loan) {
	seen := make(map[int64]struct{}, len(loans))
	ids := make([]int64, 0, len(loans))
	for _, loan := range loans {
		if _, ok := seen[loan.BiblioID]; ok {
			continue
		}
		seen[loan.BiblioID] = struct{}{}
		ids = append(ids, loan.BiblioID)
	}
	if len(ids) == 0 {
		return
	}

	affected, err := s.planned.DeleteByBiblioIDs(ctx, ids)
	if err != nil {
		log.Printf("⚠️ Sync run %s: planned loan cleanup failed: %v", runID, err)
		s.logAction(ctx, runID, "", models.ActionCleanup, models.StatusFailed, err.Error())
		return
	}
	if affected > 0 {
		log.Printf("🗑️ Sync run %s: removed %d planned loans", runID, affected)
		s.logAction(ctx, runID, "", models.ActionCleanup, models.StatusOK, fmt.Sprintf("removed %d planned loans", affected))
	}
}

// logAction appends to the action log; log write failures are not fatal
func (s *SyncService) logAction(ctx context.Context, runID, externalID, action, status, message string) {
	entry := &models.ActionLog{
		RunID:      runID,
		ExternalID: externalID,
		Action:     action,
		Status:     status,
		Message:    message,
	}
	if err := s.actionLog.Append(ctx, entry); err != nil {
		log.Printf("⚠️ Action log append failed: %v", err)
	}
}
