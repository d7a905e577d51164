package services

import (
	"context"
	"time"

	"libtrack/internal/core/domain"
)

// Note: LoanClient implementation is in library_service.go
// Note: BookInfoLookup implementation is in bookinfo_service.go

// LoanClient defines the circulation system client used by the sync and
// renewal services. Login must be called once per run; the other calls
// require an authenticated session.
type LoanClient interface {
	Login(ctx context.Context) error
	GetCurrentLoans(ctx context.Context) ([]domain.Loan, error)
	GetLoanHistory(ctx context.Context) ([]domain.LoanHistoryEntry, error)
	RenewLoan(ctx context.Context, externalID string) (*RenewalOutcome, error)
}

// RenewalOutcome is the upstream's answer to a successful renewal
type RenewalOutcome struct {
	DueAt        time.Time
	RenewalCount int
}

// BookInfoLookup defines the metadata lookup client. Lookup is best-effort:
// it returns nil on any failure and never an error.
type BookInfoLookup interface {
	Lookup(ctx context.Context, isbn string) *domain.BookInfo
}

// Notifier defines the patron notification channel. All sends are
// best-effort; failures are logged by the implementation and swallowed.
type Notifier interface {
	NotifySyncFailure(kind domain.FailureKind, message string)
	NotifySyncSummary(summary *domain.SyncSummary)
	NotifyDueSoon(items []DueReminder)
	NotifyRenewals(results []domain.RenewalResult)
}

// DueReminder is one line of a due-soon reminder message
type DueReminder struct {
	Title string
	DueAt time.Time
}
