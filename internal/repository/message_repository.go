package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"gorm.io/gorm"
)

// MessageFilter narrows message listings
type MessageFilter struct {
	UnreadOnly       bool
	UnprocessedOnly  bool
	RequiresResponse *bool
}

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	UpsertByProviderID(ctx context.Context, message *models.Message) (bool, error)
	GetByID(ctx context.Context, ownerID, id uint) (*models.Message, error)
	GetByIDs(ctx context.Context, ownerID uint, ids []uint) ([]models.Message, error)
	List(ctx context.Context, ownerID uint, filter MessageFilter, limit, offset int) ([]models.MessageListItem, int64, error)
	ListThread(ctx context.Context, ownerID uint, threadID string) ([]models.Message, error)
	ListUnprocessed(ctx context.Context, ownerID uint, limit int) ([]models.Message, error)
	MarkProcessed(ctx context.Context, id uint, requiresResponse *bool, reason string) error
	MarkAsRead(ctx context.Context, ownerID, id uint) error
	DeleteByOwner(ctx context.Context, ownerID uint) (int64, error)
}

// messageRepository implements MessageRepository using GORM
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository instance
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// UpsertByProviderID inserts the message unless one with the same provider id
// already exists for the owner. Existing rows only pick up read state; their
// content is never overwritten. Returns true when a new row was inserted and
// fills message with the stored row either way.
func (r *messageRepository) UpsertByProviderID(ctx context.Context, message *models.Message) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Message
		err := tx.Where("owner_id = ? AND provider_id = ?", message.OwnerID, message.ProviderID).First(&existing).Error
		switch {
		case err == nil:
			if existing.IsRead != message.IsRead {
				if err := tx.Model(&existing).Update("is_read", message.IsRead).Error; err != nil {
					return fmt.Errorf("failed to update read state: %w", err)
				}
				existing.IsRead = message.IsRead
			}
			*message = existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to look up message: %w", err)
		}

		if err := tx.Create(message).Error; err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("message %s already stored: %w", message.ProviderID, ErrDuplicateEntry)
			}
			return fmt.Errorf("failed to create message: %w", err)
		}
		created = true
		return nil
	})
	if errors.Is(err, ErrDuplicateEntry) {
		// Lost an insert race; the row exists now.
		var existing models.Message
		if err := r.db.WithContext(ctx).Where("owner_id = ? AND provider_id = ?", message.OwnerID, message.ProviderID).First(&existing).Error; err != nil {
			return false, fmt.Errorf("failed to reload message: %w", err)
		}
		*message = existing
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetByID retrieves a message by its ID scoped to an owner
func (r *messageRepository) GetByID(ctx context.Context, ownerID, id uint) (*models.Message, error) {
	var message models.Message
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&message, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", result.Error)
	}

	var active int64
	if err := r.db.WithContext(ctx).Model(&models.Draft{}).
		Where("message_id = ? AND status IN ?", id, models.ActiveDraftStatuses).
		Count(&active).Error; err != nil {
		return nil, fmt.Errorf("failed to count drafts: %w", err)
	}
	message.HasActiveDraft = active > 0

	return &message, nil
}

// GetByIDs retrieves the owner's messages among ids, in id order.
// Ids that do not exist or belong to another owner are omitted.
func (r *messageRepository) GetByIDs(ctx context.Context, ownerID uint, ids []uint) ([]models.Message, error) {
	var messages []models.Message
	if len(ids) == 0 {
		return messages, nil
	}
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Order("id ASC").
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get messages by IDs: %w", result.Error)
	}
	return messages, nil
}

// List retrieves messages for an owner with pagination, newest first
func (r *messageRepository) List(ctx context.Context, ownerID uint, filter MessageFilter, limit, offset int) ([]models.MessageListItem, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Message{}).Where("messages.owner_id = ?", ownerID)
		if filter.UnreadOnly {
			q = q.Where("messages.is_read = ?", false)
		}
		if filter.UnprocessedOnly {
			q = q.Where("messages.is_processed = ?", false)
		}
		if filter.RequiresResponse != nil {
			q = q.Where("messages.requires_response = ?", *filter.RequiresResponse)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	var results []models.MessageListItem
	err := base().
		Select(`messages.id, messages.thread_id, messages.sender_email, messages.sender_name,
			messages.subject, messages.snippet, messages.is_read, messages.is_processed,
			messages.requires_response, messages.received_at,
			EXISTS (SELECT 1 FROM drafts d WHERE d.message_id = messages.id AND d.status IN ?) AS has_active_draft`,
			models.ActiveDraftStatuses).
		Order("messages.received_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&results).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}

	return results, total, nil
}

// ListThread returns the cached messages of a thread, oldest first
func (r *messageRepository) ListThread(ctx context.Context, ownerID uint, threadID string) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND thread_id = ?", ownerID, threadID).
		Order("received_at ASC").
		Order("id ASC").
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list thread: %w", result.Error)
	}
	return messages, nil
}

// ListUnprocessed returns messages not yet classified, oldest first
func (r *messageRepository) ListUnprocessed(ctx context.Context, ownerID uint, limit int) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_processed = ?", ownerID, false).
		Order("received_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list unprocessed messages: %w", result.Error)
	}
	return messages, nil
}

// MarkProcessed records the classification outcome of a message
func (r *messageRepository) MarkProcessed(ctx context.Context, id uint, requiresResponse *bool, reason string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Updates(map[string]any{
		"is_processed":      true,
		"requires_response": requiresResponse,
		"response_reason":   reason,
		"processed_at":      &now,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to mark message as processed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAsRead marks a message as read
func (r *messageRepository) MarkAsRead(ctx context.Context, ownerID, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ? AND owner_id = ?", id, ownerID).Update("is_read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark message as read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByOwner removes every cached message of the owner together with the
// drafts replying to them. Returns the number of messages removed.
func (r *messageRepository) DeleteByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID).Delete(&models.Draft{}).Error; err != nil {
			return fmt.Errorf("failed to delete drafts: %w", err)
		}
		result := tx.Where("owner_id = ?", ownerID).Delete(&models.Message{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete messages: %w", result.Error)
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
