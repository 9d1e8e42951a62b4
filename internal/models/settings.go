package models

import (
	"time"

	"github.com/welldanyogia/mailpilot-backend/internal/guardrails"
)

// ApprovalMode decides how much the pipeline may send without review
type ApprovalMode string

const (
	ModeDraftApproval  ApprovalMode = "draft_approval"
	ModeAutoWithRules  ApprovalMode = "auto_with_rules"
	ModeFullyAutomatic ApprovalMode = "fully_automatic"
)

// DefaultLLMTemperature is the sampling temperature for new owners
const DefaultLLMTemperature = 0.7

// Valid reports whether the mode is one of the known modes
func (m ApprovalMode) Valid() bool {
	switch m {
	case ModeDraftApproval, ModeAutoWithRules, ModeFullyAutomatic:
		return true
	}
	return false
}

// UserSettings holds per-owner pipeline preferences
type UserSettings struct {
	ID                      uint         `gorm:"primaryKey" json:"id"`
	OwnerID                 uint         `gorm:"uniqueIndex;not null" json:"owner_id"`
	ApprovalMode            ApprovalMode `gorm:"not null;size:32" json:"approval_mode"`
	LLMModel                string       `gorm:"size:255" json:"llm_model"`
	LLMTemperature          float64      `json:"llm_temperature"`
	SystemPrompt            string       `json:"system_prompt,omitempty"`
	Signature               string       `json:"signature,omitempty"`
	GuardrailProfanity      bool         `gorm:"not null" json:"guardrail_profanity"`
	GuardrailPII            bool         `gorm:"not null" json:"guardrail_pii"`
	GuardrailCommitment     bool         `gorm:"not null" json:"guardrail_commitment"`
	GuardrailCustomKeywords bool         `gorm:"not null" json:"guardrail_custom_keywords"`
	ConfidenceThreshold     float64      `json:"confidence_threshold"`
	BlockedKeywords         []string     `gorm:"serializer:json;type:text" json:"blocked_keywords"`
	ProfanityTerms          []string     `gorm:"serializer:json;type:text" json:"profanity_terms,omitempty"`
	CommitmentPhrases       []string     `gorm:"serializer:json;type:text" json:"commitment_phrases,omitempty"`
	CreatedAt               time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for UserSettings
func (UserSettings) TableName() string {
	return "user_settings"
}

// DefaultSettings returns the settings a new owner starts with
func DefaultSettings(ownerID uint, model string) *UserSettings {
	return &UserSettings{
		OwnerID:                 ownerID,
		ApprovalMode:            ModeDraftApproval,
		LLMModel:                model,
		LLMTemperature:          DefaultLLMTemperature,
		GuardrailProfanity:      true,
		GuardrailPII:            true,
		GuardrailCommitment:     true,
		GuardrailCustomKeywords: true,
		ConfidenceThreshold:     guardrails.DefaultConfidenceThreshold,
		BlockedKeywords:         []string{},
	}
}

// GuardrailConfig converts the stored toggles into an evaluator config
func (s *UserSettings) GuardrailConfig() guardrails.Config {
	return guardrails.Config{
		CheckProfanity:      s.GuardrailProfanity,
		CheckPII:            s.GuardrailPII,
		CheckCommitment:     s.GuardrailCommitment,
		CheckCustomKeywords: s.GuardrailCustomKeywords,
		BlockedKeywords:     s.BlockedKeywords,
		ConfidenceThreshold: s.ConfidenceThreshold,
		ProfanityTerms:      s.ProfanityTerms,
		CommitmentPhrases:   s.CommitmentPhrases,
	}
}
