package services

import (
	"context"
	"log/slog"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/rules"
	"github.com/welldanyogia/mailpilot-backend/internal/validator"
)

// RuleTestInput is either a stored message or sample fields to try rules against
type RuleTestInput struct {
	MessageID   uint   `json:"message_id,omitempty"`
	SenderEmail string `json:"from_email,omitempty"`
	SenderName  string `json:"from_name,omitempty"`
	Subject     string `json:"subject,omitempty"`
	BodyText    string `json:"body_text,omitempty"`
}

// RuleTestResult lists the active rules matching a sample, highest priority first
type RuleTestResult struct {
	Matched []models.Rule `json:"matched"`
	// Winner is the rule the pipeline would apply
	Winner *models.Rule `json:"winner,omitempty"`
}

// RuleService manages an owner's automation rules
type RuleService interface {
	List(ctx context.Context, ownerID uint) ([]models.Rule, error)
	Get(ctx context.Context, ownerID, id uint) (*models.Rule, error)
	Create(ctx context.Context, ownerID uint, rule *models.Rule) (*models.Rule, error)
	Update(ctx context.Context, ownerID, id uint, rule *models.Rule) (*models.Rule, error)
	Toggle(ctx context.Context, ownerID, id uint, active bool) (*models.Rule, error)
	Delete(ctx context.Context, ownerID, id uint) error

	// Test reports which active rules match without touching any message
	Test(ctx context.Context, ownerID uint, in RuleTestInput) (*RuleTestResult, error)
}

// ruleService implements RuleService
type ruleService struct {
	rules    repository.RuleRepository
	messages repository.MessageRepository
	logger   *slog.Logger
}

// NewRuleService creates a new RuleService instance
func NewRuleService(ruleRepo repository.RuleRepository, messages repository.MessageRepository, logger *slog.Logger) RuleService {
	return &ruleService{
		rules:    ruleRepo,
		messages: messages,
		logger:   logger,
	}
}

// List returns rules in evaluation order
func (s *ruleService) List(ctx context.Context, ownerID uint) ([]models.Rule, error) {
	list, err := s.rules.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	rules.SortRules(list)
	return list, nil
}

// Get returns one rule
func (s *ruleService) Get(ctx context.Context, ownerID, id uint) (*models.Rule, error) {
	rule, err := s.rules.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrRuleNotFound)
	}
	return rule, nil
}

// Create validates and stores a new rule
func (s *ruleService) Create(ctx context.Context, ownerID uint, rule *models.Rule) (*models.Rule, error) {
	rule.ID = 0
	rule.OwnerID = ownerID
	sanitizeRule(rule)
	if err := rules.Validate(rule); err != nil {
		return nil, err
	}

	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, mapRepoError(err, apperrors.ErrRuleNotFound)
	}

	s.logger.Info("rule created",
		slog.Uint64("owner_id", uint64(ownerID)),
		slog.Uint64("rule_id", uint64(rule.ID)),
		slog.String("action", string(rule.Action)))

	return rule, nil
}

// Update replaces a rule's definition
func (s *ruleService) Update(ctx context.Context, ownerID, id uint, rule *models.Rule) (*models.Rule, error) {
	existing, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	rule.ID = existing.ID
	rule.OwnerID = ownerID
	rule.CreatedAt = existing.CreatedAt
	sanitizeRule(rule)
	if err := rules.Validate(rule); err != nil {
		return nil, err
	}

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, mapRepoError(err, apperrors.ErrRuleNotFound)
	}
	return s.Get(ctx, ownerID, id)
}

// Toggle enables or disables a rule
func (s *ruleService) Toggle(ctx context.Context, ownerID, id uint, active bool) (*models.Rule, error) {
	if err := s.rules.SetActive(ctx, ownerID, id, active); err != nil {
		return nil, mapRepoError(err, apperrors.ErrRuleNotFound)
	}
	return s.Get(ctx, ownerID, id)
}

// Delete removes a rule
func (s *ruleService) Delete(ctx context.Context, ownerID, id uint) error {
	if err := s.rules.Delete(ctx, ownerID, id); err != nil {
		return mapRepoError(err, apperrors.ErrRuleNotFound)
	}
	s.logger.Info("rule deleted",
		slog.Uint64("owner_id", uint64(ownerID)),
		slog.Uint64("rule_id", uint64(id)))
	return nil
}

// Test evaluates active rules against a stored message or sample fields
func (s *ruleService) Test(ctx context.Context, ownerID uint, in RuleTestInput) (*RuleTestResult, error) {
	var msg *models.Message
	if in.MessageID != 0 {
		stored, err := s.messages.GetByID(ctx, ownerID, in.MessageID)
		if err != nil {
			return nil, mapRepoError(err, apperrors.ErrMessageNotFound)
		}
		msg = stored
	} else {
		if in.SenderEmail == "" && in.SenderName == "" && in.Subject == "" && in.BodyText == "" {
			return nil, apperrors.NewValidationError("message", "provide message_id or at least one sample field")
		}
		msg = &models.Message{
			OwnerID:     ownerID,
			SenderEmail: in.SenderEmail,
			SenderName:  in.SenderName,
			Subject:     in.Subject,
			BodyText:    in.BodyText,
		}
	}

	list, err := s.rules.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	rules.SortRules(list)

	matched := rules.EvaluateAll(msg, list)
	if matched == nil {
		matched = []models.Rule{}
	}
	result := &RuleTestResult{Matched: matched}
	if len(matched) > 0 {
		result.Winner = &matched[0]
	}
	return result, nil
}

func sanitizeRule(rule *models.Rule) {
	rule.Name = validator.SanitizeString(rule.Name, 255)
	rule.Description = validator.SanitizeString(rule.Description, 1000)
	rule.ActionConfig.CustomPrompt = validator.SanitizeMultiline(rule.ActionConfig.CustomPrompt, maxInstructionsLength)
}
