package repositories

import (
	"context"

	"libtrack/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// plannedLoanRepository handles the borrow-later list
type plannedLoanRepository struct {
	db *gorm.DB
}

// NewPlannedLoanRepository creates a new planned loan repository
func NewPlannedLoanRepository(db *gorm.DB) PlannedLoanRepository {
	return &plannedLoanRepository{db: db}
}

// Create adds a planned loan
func (r *plannedLoanRepository) Create(ctx context.Context, planned *models.PlannedLoan) error {
	return r.db.WithContext(ctx).Create(planned).Error
}

// List lists all planned loans, newest first
func (r *plannedLoanRepository) List(ctx context.Context) ([]*models.PlannedLoan, error) {
	var planned []*models.PlannedLoan
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&planned).Error
	return planned, err
}

// DeleteByBiblioIDs removes planned loans for the given bibliographic ids
// and returns the number of rows affected. Called once per sync run with
// the deduplicated id set of all current loans.
func (r *plannedLoanRepository) DeleteByBiblioIDs(ctx context.Context, biblioIDs []int64) (int64, error) {
	if len(biblioIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("biblio_id IN ?", biblioIDs).
		Delete(&models.PlannedLoan{})
	return result.RowsAffected, result.Error
}
