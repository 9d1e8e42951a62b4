package models

import (
	"time"

	"github.com/welldanyogia/mailpilot-backend/internal/guardrails"
)

// DraftStatus is the lifecycle state of a reply draft
type DraftStatus string

const (
	DraftPending  DraftStatus = "pending"
	DraftApproved DraftStatus = "approved"
	DraftRejected DraftStatus = "rejected"
	DraftSent     DraftStatus = "sent"
	DraftAutoSent DraftStatus = "auto_sent"
)

// ActiveDraftStatuses are the statuses that block generating another draft
// for the same message.
var ActiveDraftStatuses = []DraftStatus{DraftPending, DraftApproved, DraftSent, DraftAutoSent}

// IsActive reports whether the status blocks another draft for the message
func (s DraftStatus) IsActive() bool {
	for _, a := range ActiveDraftStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// IsDelivered reports whether the reply has left the mailbox
func (s DraftStatus) IsDelivered() bool {
	return s == DraftSent || s == DraftAutoSent
}

// Draft is a generated reply awaiting review or already dispatched
type Draft struct {
	ID                  uint                   `gorm:"primaryKey" json:"id"`
	OwnerID             uint                   `gorm:"not null;index" json:"owner_id"`
	MessageID           uint                   `gorm:"not null;index" json:"message_id"`
	MatchedRuleID       *uint                  `gorm:"index" json:"matched_rule_id,omitempty"`
	ToRecipients        []string               `gorm:"serializer:json;type:text" json:"to"`
	CcRecipients        []string               `gorm:"serializer:json;type:text" json:"cc,omitempty"`
	Subject             string                 `json:"subject"`
	BodyText            string                 `json:"body_text"`
	Status              DraftStatus            `gorm:"not null;size:20;index" json:"status"`
	ModelID             string                 `gorm:"size:255" json:"model_id,omitempty"`
	Confidence          float64                `json:"confidence"`
	Reasoning           string                 `json:"reasoning,omitempty"`
	EditedByUser        bool                   `gorm:"default:false" json:"edited_by_user"`
	OriginalBodyText    string                 `json:"original_body_text,omitempty"`
	GuardrailFlagged    bool                   `gorm:"default:false" json:"guardrail_flagged"`
	GuardrailViolations []guardrails.Violation `gorm:"serializer:json;type:text" json:"guardrail_violations,omitempty"`
	LastError           string                 `gorm:"size:1000" json:"last_error,omitempty"`
	OutgoingMessageID   string                 `gorm:"size:255" json:"outgoing_message_id,omitempty"`
	ProviderMessageID   string                 `gorm:"size:128" json:"provider_message_id,omitempty"`
	ReviewedAt          *time.Time             `json:"reviewed_at,omitempty"`
	SentAt              *time.Time             `json:"sent_at,omitempty"`
	CreatedAt           time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time              `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Message *Message `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"message,omitempty"`
}

// TableName returns the table name for Draft
func (Draft) TableName() string {
	return "drafts"
}
