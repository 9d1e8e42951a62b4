package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"gorm.io/gorm"
)

// RuleRepository defines the interface for rule data access
type RuleRepository interface {
	Create(ctx context.Context, rule *models.Rule) error
	GetByID(ctx context.Context, ownerID, id uint) (*models.Rule, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]models.Rule, error)
	Update(ctx context.Context, rule *models.Rule) error
	SetActive(ctx context.Context, ownerID, id uint, active bool) error
	Delete(ctx context.Context, ownerID, id uint) error
}

// ruleRepository implements RuleRepository using GORM
type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a new RuleRepository instance
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

// Create creates a new rule
func (r *ruleRepository) Create(ctx context.Context, rule *models.Rule) error {
	result := r.db.WithContext(ctx).Create(rule)
	if result.Error != nil {
		return fmt.Errorf("failed to create rule: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a rule by its ID scoped to an owner
func (r *ruleRepository) GetByID(ctx context.Context, ownerID, id uint) (*models.Rule, error) {
	var rule models.Rule
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&rule, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get rule by ID: %w", result.Error)
	}
	return &rule, nil
}

// ListByOwner returns all of an owner's rules in evaluation order:
// priority ascending, then creation time, then id.
func (r *ruleRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Rule, error) {
	var rules []models.Rule
	result := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("priority ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&rules)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list rules: %w", result.Error)
	}
	return rules, nil
}

// Update replaces the editable fields of a rule
func (r *ruleRepository) Update(ctx context.Context, rule *models.Rule) error {
	result := r.db.WithContext(ctx).Model(&models.Rule{}).
		Where("id = ? AND owner_id = ?", rule.ID, rule.OwnerID).
		Select("name", "description", "priority", "is_active", "conditions", "action", "action_config", "updated_at").
		Updates(rule)
	if result.Error != nil {
		return fmt.Errorf("failed to update rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive toggles whether a rule participates in evaluation
func (r *ruleRepository) SetActive(ctx context.Context, ownerID, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&models.Rule{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a rule by its ID
func (r *ruleRepository) Delete(ctx context.Context, ownerID, id uint) error {
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&models.Rule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
