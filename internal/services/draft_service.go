package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/validator"
	"github.com/welldanyogia/mailpilot-backend/internal/websocket"
	"github.com/welldanyogia/mailpilot-backend/internal/worker"
)

// Limits on reviewer edits
const (
	maxSubjectLength = 998
	maxBodyLength    = 100000
)

// DraftEdit is a reviewer's change to a pending draft. Nil fields are kept.
type DraftEdit struct {
	To      []string
	Cc      []string
	Subject *string
	Body    *string
}

// DraftService defines the interface for reviewing drafts
type DraftService interface {
	List(ctx context.Context, ownerID uint, filter repository.DraftFilter, limit, offset int) ([]models.Draft, int64, error)
	Get(ctx context.Context, ownerID, id uint) (*models.Draft, error)

	// Edit changes a pending draft's content
	Edit(ctx context.Context, ownerID, id uint, edit DraftEdit) (*models.Draft, error)

	// Approve moves a pending draft to approved and sends it. A failed send
	// returns the draft to pending with last_error set.
	Approve(ctx context.Context, ownerID, id uint) (*models.Draft, error)

	// Reject discards a pending draft
	Reject(ctx context.Context, ownerID, id uint) (*models.Draft, error)

	// Regenerate replaces a pending draft's content in place
	Regenerate(ctx context.Context, ownerID, id uint, instructions string) (*models.Draft, error)
}

// draftService implements DraftService
type draftService struct {
	drafts     repository.DraftRepository
	rules      repository.RuleRepository
	messages   repository.MessageRepository
	settings   SettingsService
	composer   DraftComposer
	dispatcher ActionDispatcher
	activity   ActivityService
	publisher  EventPublisher
	locks      *worker.KeyedMutex
	logger     *slog.Logger
}

// NewDraftService creates a new DraftService instance
func NewDraftService(
	drafts repository.DraftRepository,
	ruleRepo repository.RuleRepository,
	messages repository.MessageRepository,
	settings SettingsService,
	composer DraftComposer,
	dispatcher ActionDispatcher,
	activity ActivityService,
	publisher EventPublisher,
	locks *worker.KeyedMutex,
	logger *slog.Logger,
) DraftService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &draftService{
		drafts:     drafts,
		rules:      ruleRepo,
		messages:   messages,
		settings:   settings,
		composer:   composer,
		dispatcher: dispatcher,
		activity:   activity,
		publisher:  publisher,
		locks:      locks,
		logger:     logger,
	}
}

// List returns an owner's drafts
func (s *draftService) List(ctx context.Context, ownerID uint, filter repository.DraftFilter, limit, offset int) ([]models.Draft, int64, error) {
	return s.drafts.List(ctx, ownerID, filter, limit, offset)
}

// Get returns one draft with its source message
func (s *draftService) Get(ctx context.Context, ownerID, id uint) (*models.Draft, error) {
	draft, err := s.drafts.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrDraftNotFound)
	}
	return draft, nil
}

// lockDraft loads the draft and takes its message's lock. The draft is read
// again under the lock so callers see the current status.
func (s *draftService) lockDraft(ctx context.Context, ownerID, id uint) (*models.Draft, func(), error) {
	draft, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	unlock := s.locks.Lock(draft.MessageID)
	draft, err = s.Get(ctx, ownerID, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return draft, unlock, nil
}

// Edit updates a pending draft
func (s *draftService) Edit(ctx context.Context, ownerID, id uint, edit DraftEdit) (*models.Draft, error) {
	ve := &apperrors.ValidationError{}
	fields := map[string]any{"edited_by_user": true}

	if edit.To != nil {
		if err := validator.ValidateRecipients(edit.To); err != nil {
			ve.Add("to", err.Error())
		}
		fields["to_recipients"] = edit.To
	}
	if edit.Cc != nil {
		for _, addr := range edit.Cc {
			if err := validator.ValidateEmail(addr); err != nil {
				ve.Add("cc", err.Error())
				break
			}
		}
		fields["cc_recipients"] = edit.Cc
	}
	if edit.Subject != nil {
		subject := validator.SanitizeString(*edit.Subject, maxSubjectLength)
		if subject == "" {
			ve.Add("subject", "cannot be empty")
		}
		fields["subject"] = subject
	}
	if edit.Body != nil {
		body := validator.SanitizeMultiline(*edit.Body, maxBodyLength)
		if body == "" {
			ve.Add("body_text", "cannot be empty")
		}
		fields["body_text"] = body
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	draft, unlock, err := s.lockDraft(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if draft.Status != models.DraftPending {
		return nil, apperrors.ErrInvalidState
	}
	if draft.OriginalBodyText == "" {
		fields["original_body_text"] = draft.BodyText
	}

	if err := s.drafts.UpdateFields(ctx, id, models.DraftPending, fields); err != nil {
		return nil, mapRepoError(err, apperrors.ErrDraftNotFound)
	}

	s.activity.Record(ctx, activity(ownerID, models.ActivityDraftEdited,
		"Draft edited", draft.MessageID, draft.ID, draft.MatchedRuleID, nil))

	return s.reload(ctx, ownerID, id)
}

// Approve approves and sends a pending draft
func (s *draftService) Approve(ctx context.Context, ownerID, id uint) (*models.Draft, error) {
	draft, unlock, err := s.lockDraft(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := time.Now()
	if err := s.drafts.Transition(ctx, id, []models.DraftStatus{models.DraftPending}, models.DraftApproved, map[string]any{
		"reviewed_at": &now,
	}); err != nil {
		return nil, mapRepoError(err, apperrors.ErrDraftNotFound)
	}
	draft.Status = models.DraftApproved

	s.activity.Record(ctx, activity(ownerID, models.ActivityDraftApproved,
		"Draft approved", draft.MessageID, draft.ID, draft.MatchedRuleID, nil))

	sent, err := s.dispatcher.SendDraft(ctx, draft, models.DraftApproved, models.DraftSent)
	if err != nil {
		return sent, err
	}
	return sent, nil
}

// Reject rejects a pending draft
func (s *draftService) Reject(ctx context.Context, ownerID, id uint) (*models.Draft, error) {
	draft, unlock, err := s.lockDraft(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := time.Now()
	if err := s.drafts.Transition(ctx, id, []models.DraftStatus{models.DraftPending}, models.DraftRejected, map[string]any{
		"reviewed_at": &now,
	}); err != nil {
		return nil, mapRepoError(err, apperrors.ErrDraftNotFound)
	}

	s.activity.Record(ctx, activity(ownerID, models.ActivityDraftRejected,
		"Draft rejected", draft.MessageID, draft.ID, draft.MatchedRuleID, nil))

	return s.reload(ctx, ownerID, id)
}

// Regenerate composes new content for a pending draft. The status stays
// pending and the first generated body is kept as the original.
func (s *draftService) Regenerate(ctx context.Context, ownerID, id uint, instructions string) (*models.Draft, error) {
	draft, unlock, err := s.lockDraft(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if draft.Status != models.DraftPending {
		return nil, apperrors.ErrInvalidState
	}

	msg := draft.Message
	if msg == nil {
		if msg, err = s.messages.GetByID(ctx, ownerID, draft.MessageID); err != nil {
			return nil, mapRepoError(err, apperrors.ErrMessageNotFound)
		}
	}

	settings, err := s.settings.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var rule *models.Rule
	if draft.MatchedRuleID != nil {
		rule, err = s.rules.GetByID(ctx, ownerID, *draft.MatchedRuleID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	content, err := s.composer.Compose(ctx, msg, rule, StyleFromSettings(settings),
		validator.SanitizeMultiline(instructions, maxInstructionsLength))
	if err != nil {
		return nil, err
	}

	recipients := append(append([]string{}, draft.ToRecipients...), draft.CcRecipients...)
	guard := checkReply(ctx, s.messages, s.logger, msg, content, recipients, settings.GuardrailConfig())

	fields := map[string]any{
		"body_text":            content.Body,
		"model_id":             content.Model,
		"confidence":           content.Confidence,
		"reasoning":            content.Reasoning,
		"edited_by_user":       false,
		"guardrail_flagged":    !guard.Passed,
		"guardrail_violations": guard.Violations,
		"last_error":           "",
	}
	if draft.OriginalBodyText == "" {
		fields["original_body_text"] = draft.BodyText
	}
	if err := s.drafts.UpdateFields(ctx, id, models.DraftPending, fields); err != nil {
		return nil, mapRepoError(err, apperrors.ErrDraftNotFound)
	}

	meta := map[string]any{"model": content.Model}
	if strings.TrimSpace(instructions) != "" {
		meta["instructions"] = true
	}
	s.activity.Record(ctx, activity(ownerID, models.ActivityDraftRegenerated,
		"Draft regenerated", draft.MessageID, draft.ID, draft.MatchedRuleID, meta))

	return s.reload(ctx, ownerID, id)
}

func (s *draftService) reload(ctx context.Context, ownerID, id uint) (*models.Draft, error) {
	draft, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ownerID, websocket.MessageTypeDraftUpdated, draft)
	return draft, nil
}
