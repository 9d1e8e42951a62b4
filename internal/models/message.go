package models

import (
	"time"
)

// Message is an inbound email cached from the provider. Content fields never
// change after the first insert; only read state and processing markers do.
type Message struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	OwnerID          uint       `gorm:"not null;uniqueIndex:idx_messages_owner_provider" json:"owner_id"`
	ProviderID       string     `gorm:"not null;size:128;uniqueIndex:idx_messages_owner_provider" json:"provider_id"`
	ThreadID         string     `gorm:"size:128;index" json:"thread_id"`
	MessageIDHeader  string     `gorm:"size:512" json:"message_id_header,omitempty"`
	SenderEmail      string     `gorm:"not null;size:255" json:"sender_email"`
	SenderName       string     `gorm:"size:255" json:"sender_name,omitempty"`
	ToRecipients     []string   `gorm:"serializer:json;type:text" json:"to"`
	CcRecipients     []string   `gorm:"serializer:json;type:text" json:"cc,omitempty"`
	Subject          string     `json:"subject,omitempty"`
	Snippet          string     `gorm:"size:255" json:"snippet,omitempty"`
	BodyText         string     `json:"body_text,omitempty"`
	BodyHTML         string     `json:"body_html,omitempty"`
	ReceivedAt       time.Time  `gorm:"index" json:"received_at"`
	IsRead           bool       `gorm:"default:false" json:"is_read"`
	IsProcessed      bool       `gorm:"default:false;index" json:"is_processed"`
	RequiresResponse *bool      `json:"requires_response,omitempty"`
	ResponseReason   string     `gorm:"size:500" json:"response_reason,omitempty"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`

	// HasActiveDraft is derived from the drafts table on read
	HasActiveDraft bool `gorm:"-" json:"has_active_draft"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// Participants returns the sender and every addressed recipient
func (m *Message) Participants() []string {
	out := make([]string, 0, 1+len(m.ToRecipients)+len(m.CcRecipients))
	if m.SenderEmail != "" {
		out = append(out, m.SenderEmail)
	}
	out = append(out, m.ToRecipients...)
	out = append(out, m.CcRecipients...)
	return out
}

// MessageListItem is a lightweight version for list views
type MessageListItem struct {
	ID               uint      `json:"id"`
	ThreadID         string    `json:"thread_id"`
	SenderEmail      string    `json:"sender_email"`
	SenderName       string    `json:"sender_name,omitempty"`
	Subject          string    `json:"subject,omitempty"`
	Snippet          string    `json:"snippet,omitempty"`
	IsRead           bool      `json:"is_read"`
	IsProcessed      bool      `json:"is_processed"`
	RequiresResponse *bool     `json:"requires_response,omitempty"`
	HasActiveDraft   bool      `json:"has_active_draft"`
	ReceivedAt       time.Time `json:"received_at"`
}
