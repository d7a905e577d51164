package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"libtrack/internal/adapters/persistence/models"
	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/core/domain"
)

// RenewalService renews active loans that are about to fall due
type RenewalService struct {
	library   LoanClient
	books     repositories.BookRepository
	actionLog repositories.ActionLogRepository
	daysAhead int
}

// NewRenewalService creates a new renewal service
func NewRenewalService(
	library LoanClient,
	books repositories.BookRepository,
	actionLog repositories.ActionLogRepository,
	daysAhead int,
) *RenewalService {
	if daysAhead < 0 {
		daysAhead = 1
	}
	return &RenewalService{
		library:   library,
		books:     books,
		actionLog: actionLog,
		daysAhead: daysAhead,
	}
}

// RenewDueSoon attempts to renew every active loan due within the
// configured window. A rejected renewal is a normal outcome and is
// reported per loan, not as an error; only authentication and store
// failures abort the pass.
func (s *RenewalService) RenewDueSoon(ctx context.Context) ([]domain.RenewalResult, error) {
	runID := uuid.NewString()

	if err := s.library.Login(ctx); err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, s.daysAhead)
	records, err := s.books.FindDueBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find loans due soon: %w", err)
	}

	results := make([]domain.RenewalResult, 0, len(records))
	for _, record := range records {
		results = append(results, s.renewOne(ctx, runID, record))
	}

	log.Printf("🔁 Renewal run %s: %d loans due before %s", runID, len(records), cutoff.Format("2006-01-02"))
	return results, nil
}

// renewOne renews a single loan and records the outcome in the action log
func (s *RenewalService) renewOne(ctx context.Context, runID string, record *models.BookRecord) domain.RenewalResult {
	result := domain.RenewalResult{
		ExternalID:   record.ExternalID,
		Title:        record.Title,
		RenewalCount: record.RenewalCount,
	}

	outcome, err := s.library.RenewLoan(ctx, record.ExternalID)
	if err != nil {
		var rejected *domain.RenewalRejectedError
		if errors.As(err, &rejected) {
			result.Message = rejected.Reason
		} else {
			result.Message = err.Error()
		}
		log.Printf("⚠️ Renewal run %s: %s not renewed: %v", runID, record.ExternalID, err)
		s.logAction(ctx, runID, record.ExternalID, models.StatusFailed, result.Message)
		return result
	}

	update := &models.BookRecord{
		ExternalID:   record.ExternalID,
		DueAt:        outcome.DueAt,
		RenewalCount: outcome.RenewalCount,
	}
	if _, err := s.books.Upsert(ctx, update); err != nil {
		result.Message = fmt.Sprintf("renewed upstream but store update failed: %v", err)
		log.Printf("❌ Renewal run %s: %s: %s", runID, record.ExternalID, result.Message)
		s.logAction(ctx, runID, record.ExternalID, models.StatusFailed, result.Message)
		return result
	}

	due := outcome.DueAt
	result.Success = true
	result.NewDueAt = &due
	result.RenewalCount = outcome.RenewalCount
	result.Message = fmt.Sprintf("renewed until %s", due.Format("2006-01-02"))
	s.logAction(ctx, runID, record.ExternalID, models.StatusOK, result.Message)
	return result
}

func (s *RenewalService) logAction(ctx context.Context, runID, externalID, status, message string) {
	entry := &models.ActionLog{
		RunID:      runID,
		ExternalID: externalID,
		Action:     models.ActionRenew,
		Status:     status,
		Message:    message,
	}
	if err := s.actionLog.Append(ctx, entry); err != nil {
		log.Printf("⚠️ Action log append failed: %v", err)
	}
}
