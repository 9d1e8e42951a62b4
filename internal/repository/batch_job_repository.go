package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"gorm.io/gorm"
)

// BatchJobRepository defines the interface for batch draft job data access.
// Counter updates are single atomic statements so concurrent workers never
// lose an increment.
type BatchJobRepository interface {
	Create(ctx context.Context, job *models.BatchDraftJob) error
	GetByID(ctx context.Context, ownerID, id uint) (*models.BatchDraftJob, error)
	ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]models.BatchDraftJob, int64, error)
	MarkProcessing(ctx context.Context, id uint) error
	IncrementCompleted(ctx context.Context, id uint) (*models.BatchDraftJob, error)
	IncrementFailed(ctx context.Context, id uint, errMsg string) (*models.BatchDraftJob, error)
	MarkFailed(ctx context.Context, id uint, errMsg string) error
}

// batchJobRepository implements BatchJobRepository using GORM
type batchJobRepository struct {
	db *gorm.DB
}

// NewBatchJobRepository creates a new BatchJobRepository instance
func NewBatchJobRepository(db *gorm.DB) BatchJobRepository {
	return &batchJobRepository{db: db}
}

// Create creates a new batch job
func (r *batchJobRepository) Create(ctx context.Context, job *models.BatchDraftJob) error {
	result := r.db.WithContext(ctx).Create(job)
	if result.Error != nil {
		return fmt.Errorf("failed to create batch job: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a batch job scoped to an owner
func (r *batchJobRepository) GetByID(ctx context.Context, ownerID, id uint) (*models.BatchDraftJob, error) {
	var job models.BatchDraftJob
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&job, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get batch job: %w", result.Error)
	}
	return &job, nil
}

// ListByOwner returns an owner's jobs, newest first
func (r *batchJobRepository) ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]models.BatchDraftJob, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.BatchDraftJob{}).Where("owner_id = ?", ownerID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count batch jobs: %w", err)
	}

	var jobs []models.BatchDraftJob
	result := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list batch jobs: %w", result.Error)
	}
	return jobs, total, nil
}

// MarkProcessing moves a pending job to processing
func (r *batchJobRepository) MarkProcessing(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.BatchDraftJob{}).
		Where("id = ? AND status = ?", id, models.BatchPending).
		Update("status", models.BatchProcessing)
	if result.Error != nil {
		return fmt.Errorf("failed to mark batch job processing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// IncrementCompleted records one successful item
func (r *batchJobRepository) IncrementCompleted(ctx context.Context, id uint) (*models.BatchDraftJob, error) {
	return r.increment(ctx, id, "completed_count", "")
}

// IncrementFailed records one failed item
func (r *batchJobRepository) IncrementFailed(ctx context.Context, id uint, errMsg string) (*models.BatchDraftJob, error) {
	return r.increment(ctx, id, "failed_count", errMsg)
}

// increment bumps one counter and, in the same statement, completes the job
// when every item is accounted for. SET expressions see the pre-update row.
func (r *batchJobRepository) increment(ctx context.Context, id uint, column, errMsg string) (*models.BatchDraftJob, error) {
	now := time.Now()
	updates := map[string]any{
		column: gorm.Expr(column + " + 1"),
		"status": gorm.Expr("CASE WHEN completed_count + failed_count + 1 >= total_count THEN ? ELSE status END",
			models.BatchCompleted),
		"finished_at": gorm.Expr("CASE WHEN completed_count + failed_count + 1 >= total_count THEN ? ELSE finished_at END",
			now),
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}

	result := r.db.WithContext(ctx).Model(&models.BatchDraftJob{}).
		Where("id = ? AND status = ? AND completed_count + failed_count < total_count", id, models.BatchProcessing).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update batch job counters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrStaleState
	}

	var job models.BatchDraftJob
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, fmt.Errorf("failed to reload batch job: %w", err)
	}
	return &job, nil
}

// MarkFailed ends a job that cannot continue
func (r *batchJobRepository) MarkFailed(ctx context.Context, id uint, errMsg string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.BatchDraftJob{}).
		Where("id = ? AND status IN ?", id, []models.BatchJobStatus{models.BatchPending, models.BatchProcessing}).
		Updates(map[string]any{
			"status":        models.BatchFailed,
			"error_message": errMsg,
			"finished_at":   &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark batch job failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}
