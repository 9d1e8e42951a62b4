package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"gorm.io/gorm"
)

// DraftFilter narrows draft listings
type DraftFilter struct {
	Status    models.DraftStatus
	MessageID uint
}

// DraftRepository defines the interface for draft data access
type DraftRepository interface {
	Create(ctx context.Context, draft *models.Draft) error
	GetByID(ctx context.Context, ownerID, id uint) (*models.Draft, error)
	GetActiveByMessage(ctx context.Context, messageID uint) (*models.Draft, error)
	List(ctx context.Context, ownerID uint, filter DraftFilter, limit, offset int) ([]models.Draft, int64, error)
	Transition(ctx context.Context, id uint, from []models.DraftStatus, to models.DraftStatus, fields map[string]any) error
	UpdateFields(ctx context.Context, id uint, requiredStatus models.DraftStatus, fields map[string]any) error
}

// draftRepository implements DraftRepository using GORM
type draftRepository struct {
	db *gorm.DB
}

// NewDraftRepository creates a new DraftRepository instance
func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

// Create creates a new draft
func (r *draftRepository) Create(ctx context.Context, draft *models.Draft) error {
	result := r.db.WithContext(ctx).Omit("Message").Create(draft)
	if result.Error != nil {
		return fmt.Errorf("failed to create draft: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a draft with its source message
func (r *draftRepository) GetByID(ctx context.Context, ownerID, id uint) (*models.Draft, error) {
	var draft models.Draft
	result := r.db.WithContext(ctx).Preload("Message").Where("owner_id = ?", ownerID).First(&draft, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get draft by ID: %w", result.Error)
	}
	return &draft, nil
}

// GetActiveByMessage returns the newest draft for the message whose status
// blocks generating another one.
func (r *draftRepository) GetActiveByMessage(ctx context.Context, messageID uint) (*models.Draft, error) {
	var draft models.Draft
	result := r.db.WithContext(ctx).
		Where("message_id = ? AND status IN ?", messageID, models.ActiveDraftStatuses).
		Order("id DESC").
		First(&draft)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active draft: %w", result.Error)
	}
	return &draft, nil
}

// List retrieves an owner's drafts, newest first
func (r *draftRepository) List(ctx context.Context, ownerID uint, filter DraftFilter, limit, offset int) ([]models.Draft, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Draft{}).Where("owner_id = ?", ownerID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.MessageID != 0 {
		q = q.Where("message_id = ?", filter.MessageID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count drafts: %w", err)
	}

	var drafts []models.Draft
	if err := q.Preload("Message").Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&drafts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list drafts: %w", err)
	}
	return drafts, total, nil
}

// Transition moves a draft to status `to` only if its current status is one
// of `from`, applying extra column updates in the same statement. Returns
// ErrStaleState when the draft exists but is in another status.
func (r *draftRepository) Transition(ctx context.Context, id uint, from []models.DraftStatus, to models.DraftStatus, fields map[string]any) error {
	updates, err := encodeDraftFields(fields)
	if err != nil {
		return err
	}
	updates["status"] = to

	result := r.db.WithContext(ctx).Model(&models.Draft{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to transition draft: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missOrStale(ctx, id)
	}
	return nil
}

// UpdateFields updates draft columns only while the draft is in requiredStatus
func (r *draftRepository) UpdateFields(ctx context.Context, id uint, requiredStatus models.DraftStatus, fields map[string]any) error {
	updates, err := encodeDraftFields(fields)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Model(&models.Draft{}).
		Where("id = ? AND status = ?", id, requiredStatus).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update draft: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missOrStale(ctx, id)
	}
	return nil
}

func (r *draftRepository) missOrStale(ctx context.Context, id uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Draft{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check draft: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStaleState
}

// draftJSONColumns are stored through the json serializer. Map updates bypass
// the serializer, so values are encoded here.
var draftJSONColumns = map[string]bool{
	"to_recipients":        true,
	"cc_recipients":        true,
	"guardrail_violations": true,
}

func encodeDraftFields(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if draftJSONColumns[k] {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", k, err)
			}
			out[k] = string(b)
			continue
		}
		out[k] = v
	}
	return out, nil
}
