package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository defines the interface for per-owner settings
type SettingsRepository interface {
	GetByOwner(ctx context.Context, ownerID uint) (*models.UserSettings, error)
	Save(ctx context.Context, settings *models.UserSettings) error
}

// settingsRepository implements SettingsRepository using GORM
type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new SettingsRepository instance
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// GetByOwner retrieves an owner's settings
func (r *settingsRepository) GetByOwner(ctx context.Context, ownerID uint) (*models.UserSettings, error) {
	var settings models.UserSettings
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&settings)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", result.Error)
	}
	return &settings, nil
}

// Save inserts or fully replaces an owner's settings
func (r *settingsRepository) Save(ctx context.Context, settings *models.UserSettings) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"approval_mode", "llm_model", "llm_temperature", "system_prompt", "signature",
			"guardrail_profanity", "guardrail_pii", "guardrail_commitment", "guardrail_custom_keywords",
			"confidence_threshold", "blocked_keywords", "profanity_terms", "commitment_phrases", "updated_at",
		}),
	}).Create(settings)
	if result.Error != nil {
		return fmt.Errorf("failed to save settings: %w", result.Error)
	}
	return nil
}
