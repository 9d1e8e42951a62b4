package models

import (
	"time"
)

// ActivityType classifies an activity record
type ActivityType string

const (
	ActivityEmailReceived    ActivityType = "email_received"
	ActivityDraftCreated     ActivityType = "draft_created"
	ActivityRuleMatched      ActivityType = "rule_matched"
	ActivityDraftApproved    ActivityType = "draft_approved"
	ActivityDraftRejected    ActivityType = "draft_rejected"
	ActivityDraftEdited      ActivityType = "draft_edited"
	ActivityDraftRegenerated ActivityType = "draft_regenerated"
	ActivityEmailSent        ActivityType = "email_sent"
	ActivityEmailForwarded   ActivityType = "email_forwarded"
	ActivitySendFailed       ActivityType = "send_failed"
	ActivityGuardrailBlocked ActivityType = "guardrail_blocked"
	ActivitySyncFallback     ActivityType = "sync_fallback"
	ActivityBatchSubmitted   ActivityType = "batch_submitted"
	ActivityBatchCompleted   ActivityType = "batch_completed"
	ActivityBatchFailed      ActivityType = "batch_failed"
	ActivitySettingsChanged  ActivityType = "settings_changed"
	ActivityProcessingFailed ActivityType = "processing_failed"
	ActivityMailboxRevoked   ActivityType = "mailbox_revoked"

	ActivityMailboxConnected    ActivityType = "mailbox_connected"
	ActivityMailboxDisconnected ActivityType = "mailbox_disconnected"
)

// ActivityRecord is an append-only audit entry
type ActivityRecord struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	OwnerID     uint           `gorm:"not null;index" json:"owner_id"`
	Type        ActivityType   `gorm:"not null;size:40;index" json:"type"`
	Description string         `gorm:"size:1000" json:"description"`
	MessageID   *uint          `gorm:"index" json:"message_id,omitempty"`
	DraftID     *uint          `gorm:"index" json:"draft_id,omitempty"`
	RuleID      *uint          `json:"rule_id,omitempty"`
	Metadata    map[string]any `gorm:"serializer:json;type:text" json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName returns the table name for ActivityRecord
func (ActivityRecord) TableName() string {
	return "activity_records"
}
