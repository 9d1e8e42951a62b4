package repository

import (
	"context"
	"fmt"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"gorm.io/gorm"
)

// ActivityRepository defines the interface for the append-only activity log
type ActivityRepository interface {
	Create(ctx context.Context, record *models.ActivityRecord) error
	ListByOwner(ctx context.Context, ownerID uint, activityType models.ActivityType, limit, offset int) ([]models.ActivityRecord, int64, error)
}

// activityRepository implements ActivityRepository using GORM
type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository instance
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

// Create appends an activity record
func (r *activityRepository) Create(ctx context.Context, record *models.ActivityRecord) error {
	result := r.db.WithContext(ctx).Create(record)
	if result.Error != nil {
		return fmt.Errorf("failed to create activity record: %w", result.Error)
	}
	return nil
}

// ListByOwner returns an owner's activity, newest first. An empty type lists all.
func (r *activityRepository) ListByOwner(ctx context.Context, ownerID uint, activityType models.ActivityType, limit, offset int) ([]models.ActivityRecord, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ActivityRecord{}).Where("owner_id = ?", ownerID)
	if activityType != "" {
		q = q.Where("type = ?", activityType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count activity: %w", err)
	}

	var records []models.ActivityRecord
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list activity: %w", err)
	}
	return records, total, nil
}
