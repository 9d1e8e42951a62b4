package models

import (
	"time"
)

// BatchJobStatus is the lifecycle state of an on-demand generation job
type BatchJobStatus string

const (
	BatchPending    BatchJobStatus = "pending"
	BatchProcessing BatchJobStatus = "processing"
	BatchCompleted  BatchJobStatus = "completed"
	BatchFailed     BatchJobStatus = "failed"
)

// IsTerminal reports whether the job will not change again
func (s BatchJobStatus) IsTerminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// BatchDraftJob tracks draft generation for a user-selected set of messages.
// CompletedCount + FailedCount never exceeds TotalCount.
type BatchDraftJob struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OwnerID        uint           `gorm:"not null;index" json:"owner_id"`
	MessageIDs     []uint         `gorm:"serializer:json;type:text" json:"message_ids"`
	Instructions   string         `gorm:"size:2000" json:"instructions,omitempty"`
	Status         BatchJobStatus `gorm:"not null;size:20;index" json:"status"`
	TotalCount     int            `gorm:"not null" json:"total_count"`
	CompletedCount int            `gorm:"not null;default:0" json:"completed_count"`
	FailedCount    int            `gorm:"not null;default:0" json:"failed_count"`
	ErrorMessage   string         `gorm:"size:1000" json:"error_message,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

// TableName returns the table name for BatchDraftJob
func (BatchDraftJob) TableName() string {
	return "batch_draft_jobs"
}

// Progress returns the fraction of items finished, in [0, 1]
func (j *BatchDraftJob) Progress() float64 {
	if j.TotalCount == 0 {
		return 0
	}
	return float64(j.CompletedCount+j.FailedCount) / float64(j.TotalCount)
}
