package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/websocket"
)

// EventPublisher pushes pipeline events to connected dashboards
type EventPublisher interface {
	Publish(ownerID uint, msgType websocket.MessageType, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(uint, websocket.MessageType, any) {}

// ActivityService defines the interface for the audit trail
type ActivityService interface {
	// Record appends an activity entry and pushes it to the owner's
	// subscribers. Storage failures are logged, never returned: the audit
	// trail must not undo the operation it describes.
	Record(ctx context.Context, record *models.ActivityRecord)

	// List returns an owner's activity, newest first
	List(ctx context.Context, ownerID uint, activityType models.ActivityType, limit, offset int) ([]models.ActivityRecord, int64, error)
}

// activityService implements ActivityService
type activityService struct {
	repo      repository.ActivityRepository
	publisher EventPublisher
	logger    *slog.Logger
}

// NewActivityService creates a new ActivityService instance. publisher may be nil.
func NewActivityService(repo repository.ActivityRepository, publisher EventPublisher, logger *slog.Logger) ActivityService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &activityService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Record stores the entry and broadcasts it
func (s *activityService) Record(ctx context.Context, record *models.ActivityRecord) {
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("failed to record activity",
			slog.String("type", string(record.Type)),
			slog.Uint64("owner_id", uint64(record.OwnerID)),
			slog.Any("error", err))
		return
	}
	s.publisher.Publish(record.OwnerID, websocket.MessageTypeActivity, record)
}

// List returns an owner's activity page
func (s *activityService) List(ctx context.Context, ownerID uint, activityType models.ActivityType, limit, offset int) ([]models.ActivityRecord, int64, error) {
	records, total, err := s.repo.ListByOwner(ctx, ownerID, activityType, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity: %w", err)
	}
	return records, total, nil
}

// activity builds an activity record. Zero ids are left unset.
func activity(ownerID uint, t models.ActivityType, description string, messageID, draftID uint, ruleID *uint, metadata map[string]any) *models.ActivityRecord {
	rec := &models.ActivityRecord{
		OwnerID:     ownerID,
		Type:        t,
		Description: description,
		RuleID:      ruleID,
		Metadata:    metadata,
	}
	if messageID != 0 {
		id := messageID
		rec.MessageID = &id
	}
	if draftID != 0 {
		id := draftID
		rec.DraftID = &id
	}
	return rec
}
