package models

import (
	"time"
)

// Owner is the single account whose mailbox the pipeline automates
type Owner struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	Connection *MailboxConnection `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"connection,omitempty"`
}

// TableName returns the table name for Owner
func (Owner) TableName() string {
	return "owners"
}

// MailboxConnection holds the provider authorization and sync cursor for an owner
type MailboxConnection struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OwnerID       uint       `gorm:"uniqueIndex;not null" json:"owner_id"`
	Provider      string     `gorm:"size:32;default:gmail" json:"provider"`
	AccountEmail  string     `gorm:"not null;size:255" json:"account_email"`
	TokenJSON     string     `gorm:"type:text" json:"-"`
	HistoryCursor string     `gorm:"size:64" json:"history_cursor,omitempty"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	Revoked       bool       `gorm:"default:false" json:"revoked"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for MailboxConnection
func (MailboxConnection) TableName() string {
	return "mailbox_connections"
}
