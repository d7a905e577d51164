package repositories

import (
	"context"

	"libtrack/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// actionLogRepository handles the append-only action log
type actionLogRepository struct {
	db *gorm.DB
}

// NewActionLogRepository creates a new action log repository
func NewActionLogRepository(db *gorm.DB) ActionLogRepository {
	return &actionLogRepository{db: db}
}

// Append writes a log entry. Entries are never updated or deleted.
func (r *actionLogRepository) Append(ctx context.Context, entry *models.ActionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListRecent returns the newest entries first
func (r *actionLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.ActionLog, error) {
	var entries []*models.ActionLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
