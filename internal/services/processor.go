package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/metrics"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/rules"
	"github.com/welldanyogia/mailpilot-backend/internal/worker"
)

// ProcessPath says how a message reached the pipeline
type ProcessPath string

const (
	// PathPoll is the automatic path after a sync
	PathPoll ProcessPath = "poll"
	// PathOnDemand is an explicit human request. It skips the needs-response
	// check and never auto-sends.
	PathOnDemand ProcessPath = "on_demand"
)

// ProcessOptions tunes one processor run
type ProcessOptions struct {
	Path ProcessPath
	// Instructions augment the owner's standing prompt for this run only
	Instructions string
}

// ProcessResult reports what happened to one message
type ProcessResult struct {
	MessageID uint          `json:"message_id"`
	Outcome   Outcome       `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
	RuleID    *uint         `json:"rule_id,omitempty"`
	Draft     *models.Draft `json:"draft,omitempty"`
	SendError string        `json:"send_error,omitempty"`
}

// EmailProcessor runs one message through the pipeline
type EmailProcessor interface {
	Process(ctx context.Context, ownerID, messageID uint, opts ProcessOptions) (*ProcessResult, error)
}

// emailProcessor implements EmailProcessor
type emailProcessor struct {
	messages   repository.MessageRepository
	rules      repository.RuleRepository
	settings   SettingsService
	decider    ResponseDecider
	composer   DraftComposer
	dispatcher ActionDispatcher
	activity   ActivityService
	locks      *worker.KeyedMutex
	logger     *slog.Logger
}

// NewEmailProcessor creates a new EmailProcessor instance. locks must be
// shared with every other writer of drafts.
func NewEmailProcessor(
	messages repository.MessageRepository,
	ruleRepo repository.RuleRepository,
	settings SettingsService,
	decider ResponseDecider,
	composer DraftComposer,
	dispatcher ActionDispatcher,
	activity ActivityService,
	locks *worker.KeyedMutex,
	logger *slog.Logger,
) EmailProcessor {
	return &emailProcessor{
		messages:   messages,
		rules:      ruleRepo,
		settings:   settings,
		decider:    decider,
		composer:   composer,
		dispatcher: dispatcher,
		activity:   activity,
		locks:      locks,
		logger:     logger,
	}
}

// Process is the unit of work for one message. Runs for the same message are
// serialized; rules and settings are read once at the start.
func (p *emailProcessor) Process(ctx context.Context, ownerID, messageID uint, opts ProcessOptions) (*ProcessResult, error) {
	if opts.Path == "" {
		opts.Path = PathPoll
	}
	start := time.Now()
	defer func() {
		metrics.ProcessingDuration.WithLabelValues(string(opts.Path)).Observe(time.Since(start).Seconds())
	}()

	unlock := p.locks.Lock(messageID)
	defer unlock()

	result, err := p.process(ctx, ownerID, messageID, opts)
	if err != nil {
		metrics.ProcessedTotal.WithLabelValues("error").Inc()
		if !errors.Is(err, apperrors.ErrMessageNotFound) {
			p.activity.Record(context.WithoutCancel(ctx), activity(ownerID, models.ActivityProcessingFailed,
				"Processing failed: "+truncateError(err),
				messageID, 0, nil,
				map[string]any{"path": string(opts.Path), "error_code": apperrors.GetErrorCode(err)}))
		}
		p.logger.Warn("message processing failed",
			slog.Uint64("message_id", uint64(messageID)),
			slog.String("path", string(opts.Path)),
			slog.Any("error", err))
		return nil, err
	}

	metrics.ProcessedTotal.WithLabelValues(string(result.Outcome)).Inc()
	p.logger.Info("message processed",
		slog.Uint64("message_id", uint64(messageID)),
		slog.String("path", string(opts.Path)),
		slog.String("outcome", string(result.Outcome)))
	return result, nil
}

func (p *emailProcessor) process(ctx context.Context, ownerID, messageID uint, opts ProcessOptions) (*ProcessResult, error) {
	msg, err := p.messages.GetByID(ctx, ownerID, messageID)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrMessageNotFound)
	}

	result := &ProcessResult{MessageID: msg.ID}

	if opts.Path == PathPoll && msg.IsProcessed {
		result.Outcome = OutcomeSkipped
		result.Reason = "already processed"
		return result, nil
	}
	if msg.HasActiveDraft {
		result.Outcome = OutcomeSkipped
		result.Reason = "message already has an active draft"
		return result, nil
	}

	// Snapshot for the whole run
	settings, err := p.settings.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	ruleSet, err := p.rules.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	rules.SortRules(ruleSet)

	reason := "requested by user"
	if opts.Path == PathPoll {
		needs, why, err := p.decider.NeedsResponse(ctx, msg)
		if err != nil {
			// Left unprocessed for the next cycle
			return nil, err
		}
		reason = why
		if !needs {
			if err := p.markProcessed(ctx, msg.ID, false, reason); err != nil {
				return nil, err
			}
			result.Outcome = OutcomeNoResponse
			result.Reason = reason
			return result, nil
		}
	}

	rule := rules.Evaluate(msg, ruleSet)
	if rule != nil {
		ruleID := rule.ID
		result.RuleID = &ruleID
		p.activity.Record(ctx, activity(ownerID, models.ActivityRuleMatched,
			fmt.Sprintf("Rule matched: %s (%s)", rule.Name, rule.Action),
			msg.ID, 0, &ruleID,
			map[string]any{"action": string(rule.Action)}))
	}

	// Ignore and forward never compose a reply on the automatic path. An
	// explicit request always gets a draft.
	if opts.Path == PathPoll && rule != nil && (rule.Action == models.ActionIgnore || rule.Action == models.ActionForward) {
		decision := Decide(rule, nil, settings.ApprovalMode)
		dispatched, err := p.dispatcher.Dispatch(ctx, DispatchInput{Message: msg, Rule: rule, Decision: decision})
		if err != nil {
			if apperrors.IsValidation(err) {
				// A misconfigured rule will fail the same way every cycle
				_ = p.markProcessed(ctx, msg.ID, false, err.Error())
			}
			return nil, err
		}
		if err := p.markProcessed(ctx, msg.ID, false, decision.Reason); err != nil {
			return nil, err
		}
		result.Outcome = dispatched.Decision.Outcome
		result.Reason = decision.Reason
		return result, nil
	}

	content, err := p.composer.Compose(ctx, msg, rule, StyleFromSettings(settings), opts.Instructions)
	if err != nil {
		return nil, err
	}

	guard := checkReply(ctx, p.messages, p.logger, msg, content, content.Recipients(), settings.GuardrailConfig())

	decision := Decide(rule, &guard, settings.ApprovalMode)
	if opts.Path == PathOnDemand && decision.Outcome != OutcomePending {
		decision = Decision{Outcome: OutcomePending, Downgraded: !guard.Passed, Reason: "on-demand drafts are always reviewed"}
	}

	dispatched, err := p.dispatcher.Dispatch(ctx, DispatchInput{
		Message:  msg,
		Rule:     rule,
		Decision: decision,
		Content:  content,
		Guard:    &guard,
	})
	if err != nil {
		return nil, err
	}

	if !msg.IsProcessed {
		if err := p.markProcessed(ctx, msg.ID, true, reason); err != nil {
			return nil, err
		}
	}

	result.Outcome = dispatched.Decision.Outcome
	result.Reason = dispatched.Decision.Reason
	result.Draft = dispatched.Draft
	if dispatched.SendError != nil {
		result.SendError = dispatched.SendError.Error()
	}
	return result, nil
}

func (p *emailProcessor) markProcessed(ctx context.Context, id uint, requiresResponse bool, reason string) error {
	if err := p.messages.MarkProcessed(ctx, id, &requiresResponse, truncateReason(reason)); err != nil {
		return mapRepoError(err, apperrors.ErrMessageNotFound)
	}
	return nil
}

func truncateReason(reason string) string {
	if r := []rune(reason); len(r) > 500 {
		return string(r[:500])
	}
	return reason
}
