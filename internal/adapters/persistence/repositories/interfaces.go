package repositories

import (
	"context"
	"time"

	"libtrack/internal/adapters/persistence/models"
)

// BookRepository defines book record persistence.
// Upsert is the only write path used by reconciliation; it must be
// idempotent per external id.
type BookRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.BookRecord, error)
	FindByISBN(ctx context.Context, isbn string, limit int) ([]*models.BookRecord, error)
	FindByISBNAndChargeDate(ctx context.Context, isbn string, chargedAt time.Time) (*models.BookRecord, error)
	Upsert(ctx context.Context, record *models.BookRecord) (*models.BookRecord, error)
	GetByID(ctx context.Context, id uint) (*models.BookRecord, error)
	List(ctx context.Context, status string, offset, limit int) ([]*models.BookRecord, int64, error)
	FindDueBefore(ctx context.Context, cutoff time.Time) ([]*models.BookRecord, error)
	UpdateReadState(ctx context.Context, id uint, state string) error
}

// ActionLogRepository defines the append-only action log
type ActionLogRepository interface {
	Append(ctx context.Context, entry *models.ActionLog) error
	ListRecent(ctx context.Context, limit int) ([]*models.ActionLog, error)
}

// PlannedLoanRepository defines the borrow-later list
type PlannedLoanRepository interface {
	Create(ctx context.Context, planned *models.PlannedLoan) error
	List(ctx context.Context) ([]*models.PlannedLoan, error)
	DeleteByBiblioIDs(ctx context.Context, biblioIDs []int64) (int64, error)
}

// NoteRepository defines note persistence
type NoteRepository interface {
	Create(ctx context.Context, note *models.Note) error
	GetByID(ctx context.Context, id uint) (*models.Note, error)
	ListByBookID(ctx context.Context, bookID uint) ([]*models.Note, error)
	Update(ctx context.Context, note *models.Note) error
	Delete(ctx context.Context, id uint) error
}
