package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/guardrails"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/validator"
)

// Limits on free-text settings
const (
	maxSystemPromptLength = 4000
	maxSignatureLength    = 1000
	maxKeywordLength      = 100
	maxKeywords           = 200
)

// SettingsService manages per-owner pipeline settings
type SettingsService interface {
	// Get returns the stored settings, or the defaults when none are stored
	Get(ctx context.Context, ownerID uint) (*models.UserSettings, error)

	// Update validates and replaces the owner's settings
	Update(ctx context.Context, ownerID uint, settings *models.UserSettings) (*models.UserSettings, error)

	// CheckGuardrails runs the owner's guardrail configuration over a candidate
	CheckGuardrails(ctx context.Context, ownerID uint, in guardrails.Input) (guardrails.Result, error)
}

// settingsService implements SettingsService
type settingsService struct {
	repo         repository.SettingsRepository
	activity     ActivityService
	defaultModel string
	logger       *slog.Logger
}

// NewSettingsService creates a new SettingsService instance
func NewSettingsService(repo repository.SettingsRepository, activity ActivityService, defaultModel string, logger *slog.Logger) SettingsService {
	return &settingsService{
		repo:         repo,
		activity:     activity,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// Get returns the owner's settings
func (s *settingsService) Get(ctx context.Context, ownerID uint) (*models.UserSettings, error) {
	settings, err := s.repo.GetByOwner(ctx, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.DefaultSettings(ownerID, s.defaultModel), nil
	}
	if err != nil {
		return nil, err
	}
	if settings.LLMModel == "" {
		settings.LLMModel = s.defaultModel
	}
	return settings, nil
}

// Update validates and stores new settings
func (s *settingsService) Update(ctx context.Context, ownerID uint, settings *models.UserSettings) (*models.UserSettings, error) {
	ve := &apperrors.ValidationError{}

	if !settings.ApprovalMode.Valid() {
		ve.Add("approval_mode", "must be one of draft_approval, auto_with_rules, fully_automatic")
	}
	if settings.LLMTemperature < 0 || settings.LLMTemperature > 2 {
		ve.Add("llm_temperature", "must be between 0 and 2")
	}
	if settings.ConfidenceThreshold < 0 || settings.ConfidenceThreshold > 1 {
		ve.Add("confidence_threshold", "must be between 0 and 1")
	}
	for field, list := range map[string][]string{
		"blocked_keywords":   settings.BlockedKeywords,
		"profanity_terms":    settings.ProfanityTerms,
		"commitment_phrases": settings.CommitmentPhrases,
	} {
		if len(list) > maxKeywords {
			ve.Add(field, fmt.Sprintf("at most %d entries", maxKeywords))
		}
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	settings.OwnerID = ownerID
	settings.LLMModel = validator.SanitizeString(settings.LLMModel, 255)
	if settings.LLMModel == "" {
		settings.LLMModel = s.defaultModel
	}
	settings.SystemPrompt = validator.SanitizeMultiline(settings.SystemPrompt, maxSystemPromptLength)
	settings.Signature = validator.SanitizeMultiline(settings.Signature, maxSignatureLength)
	settings.BlockedKeywords = cleanTerms(settings.BlockedKeywords)
	settings.ProfanityTerms = cleanTerms(settings.ProfanityTerms)
	settings.CommitmentPhrases = cleanTerms(settings.CommitmentPhrases)

	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity(ownerID, models.ActivitySettingsChanged,
		"Settings updated", 0, 0, nil,
		map[string]any{"approval_mode": string(settings.ApprovalMode), "llm_model": settings.LLMModel}))

	s.logger.Info("settings updated",
		slog.Uint64("owner_id", uint64(ownerID)),
		slog.String("approval_mode", string(settings.ApprovalMode)))

	return s.Get(ctx, ownerID)
}

// CheckGuardrails evaluates a candidate with the owner's configuration
func (s *settingsService) CheckGuardrails(ctx context.Context, ownerID uint, in guardrails.Input) (guardrails.Result, error) {
	settings, err := s.Get(ctx, ownerID)
	if err != nil {
		return guardrails.Result{}, err
	}
	return guardrails.Check(in, settings.GuardrailConfig()), nil
}

// cleanTerms trims, drops blanks and removes case-insensitive duplicates
func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = validator.SanitizeString(t, maxKeywordLength)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
