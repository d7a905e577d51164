package repositories

import (
	"context"
	"errors"
	"time"

	"libtrack/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// bookRepository handles book record data access
type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

// FindByExternalID gets a book record by the circulation system's loan id.
// Returns (nil, nil) when no record exists.
func (r *bookRepository) FindByExternalID(ctx context.Context, externalID string) (*models.BookRecord, error) {
	var record models.BookRecord
	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByISBN gets book records by ISBN, most recent charge date first
func (r *bookRepository) FindByISBN(ctx context.Context, isbn string, limit int) ([]*models.BookRecord, error) {
	var records []*models.BookRecord
	err := r.db.WithContext(ctx).
		Where("isbn = ?", isbn).
		Order("charged_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// FindByISBNAndChargeDate gets the record matching both ISBN and the exact
// charge date. Used as the return-reconciliation fallback; matching ISBN
// alone would conflate two loan cycles of the same title.
func (r *bookRepository) FindByISBNAndChargeDate(ctx context.Context, isbn string, chargedAt time.Time) (*models.BookRecord, error) {
	var record models.BookRecord
	err := r.db.WithContext(ctx).
		Where("isbn = ? AND charged_at = ?", isbn, chargedAt).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert inserts the record if the external id is unseen, otherwise merges
// into the stored row:
//   - due date and renewal count always take the new value
//   - discharge date is set only while currently null, never overwritten
//   - metadata fields keep the existing value unless the new one is present
//
// Returns the persisted row.
func (r *bookRepository) Upsert(ctx context.Context, record *models.BookRecord) (*models.BookRecord, error) {
	var existing models.BookRecord
	err := r.db.WithContext(ctx).
		Where("external_id = ?", record.ExternalID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
			return nil, err
		}
		return record, nil
	}
	if err != nil {
		return nil, err
	}

	existing.DueAt = record.DueAt
	existing.RenewalCount = record.RenewalCount

	if existing.DischargedAt == nil && record.DischargedAt != nil {
		existing.DischargedAt = record.DischargedAt
	}

	mergeMetadata(&existing, record)

	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// mergeMetadata copies metadata fields that are present on the incoming
// record, so enrichment never erases known metadata with empty values
func mergeMetadata(dst, src *models.BookRecord) {
	if src.ISBN != "" {
		dst.ISBN = src.ISBN
	}
	if src.ISBN13 != "" {
		dst.ISBN13 = src.ISBN13
	}
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Author != "" {
		dst.Author = src.Author
	}
	if src.Publisher != "" {
		dst.Publisher = src.Publisher
	}
	if src.PubDate != "" {
		dst.PubDate = src.PubDate
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.CoverURL != nil && *src.CoverURL != "" {
		dst.CoverURL = src.CoverURL
	}
	if src.Branch != "" {
		dst.Branch = src.Branch
	}
}

// GetByID gets a book record with its notes
func (r *bookRepository) GetByID(ctx context.Context, id uint) (*models.BookRecord, error) {
	var record models.BookRecord
	err := r.db.WithContext(ctx).
		Preload("Notes").
		First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List lists book records filtered by status: "active", "returned" or "all"
func (r *bookRepository) List(ctx context.Context, status string, offset, limit int) ([]*models.BookRecord, int64, error) {
	var records []*models.BookRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.BookRecord{})
	switch status {
	case "active":
		query = query.Where("discharged_at IS NULL")
	case "returned":
		query = query.Where("discharged_at IS NOT NULL")
	}

	query.Count(&total)

	err := query.
		Preload("Notes").
		Order("charged_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error

	return records, total, err
}

// FindDueBefore lists active records whose due date falls on or before the
// cutoff, soonest first. Backs the renewal and reminder passes.
func (r *bookRepository) FindDueBefore(ctx context.Context, cutoff time.Time) ([]*models.BookRecord, error) {
	var records []*models.BookRecord
	err := r.db.WithContext(ctx).
		Where("discharged_at IS NULL AND due_at <= ?", cutoff).
		Order("due_at ASC").
		Find(&records).Error
	return records, err
}

// UpdateReadState sets the patron's read state for a book record.
// Reconciliation never touches this column.
func (r *bookRepository) UpdateReadState(ctx context.Context, id uint, state string) error {
	result := r.db.WithContext(ctx).
		Model(&models.BookRecord{}).
		Where("id = ?", id).
		Update("read_state", state)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
