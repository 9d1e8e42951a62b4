package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/guardrails"
	"github.com/welldanyogia/mailpilot-backend/internal/mailbox"
	"github.com/welldanyogia/mailpilot-backend/internal/metrics"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/websocket"
)

// maxErrorLength bounds error text stored on drafts and jobs
const maxErrorLength = 1000

// Outcome is the terminal result of dispatching one message
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomePending   Outcome = "pending"
	OutcomeAutoSent  Outcome = "auto_sent"
	OutcomeForwarded Outcome = "forwarded"

	// Set by the processor, never by Decide
	OutcomeNoResponse Outcome = "no_response"
	OutcomeSkipped    Outcome = "skipped"
)

// Decision is what the dispatcher should do with a composed reply
type Decision struct {
	Outcome Outcome
	// Downgraded is set when guardrails turned the reply into a pending draft
	Downgraded bool
	Reason     string
}

// Decide applies the dispatch table. A nil guardrail result counts as a
// failed check so a reply is never sent unchecked.
func Decide(rule *models.Rule, guard *guardrails.Result, mode models.ApprovalMode) Decision {
	if rule != nil {
		switch rule.Action {
		case models.ActionIgnore:
			return Decision{Outcome: OutcomeIgnored, Reason: "rule matched: ignore"}
		case models.ActionDraftOnly:
			return Decision{Outcome: OutcomePending, Reason: "rule requires review"}
		case models.ActionForward:
			return Decision{Outcome: OutcomeForwarded, Reason: "rule matched: forward"}
		}
	}

	if guard == nil || !guard.Passed {
		return Decision{Outcome: OutcomePending, Downgraded: true, Reason: "guardrails failed"}
	}

	switch mode {
	case models.ModeFullyAutomatic:
		return Decision{Outcome: OutcomeAutoSent, Reason: "fully automatic mode"}
	case models.ModeAutoWithRules:
		if rule != nil && rule.Action == models.ActionAutoRespond {
			return Decision{Outcome: OutcomeAutoSent, Reason: "auto-respond rule matched"}
		}
		return Decision{Outcome: OutcomePending, Reason: "no auto-respond rule matched"}
	default:
		return Decision{Outcome: OutcomePending, Reason: "approval required"}
	}
}

// DispatchInput is everything the dispatcher needs for one message.
// Content and Guard are nil when no reply was composed.
type DispatchInput struct {
	Message  *models.Message
	Rule     *models.Rule
	Decision Decision
	Content  *DraftContent
	Guard    *guardrails.Result
}

// DispatchResult describes what Dispatch did
type DispatchResult struct {
	Decision    Decision
	Draft       *models.Draft
	Reused      bool
	ForwardedTo []string
	// SendError is set when an auto-send failed and the draft was left pending
	SendError error
}

// ActionDispatcher persists and delivers pipeline outcomes. Callers hold the
// message's keyed lock.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, in DispatchInput) (*DispatchResult, error)

	// SendDraft delivers a draft in status from and moves it to status to.
	// On failure the draft returns to pending with last_error set, and the
	// updated draft is returned alongside the error.
	SendDraft(ctx context.Context, draft *models.Draft, from, to models.DraftStatus) (*models.Draft, error)
}

// actionDispatcher implements ActionDispatcher
type actionDispatcher struct {
	drafts    repository.DraftRepository
	messages  repository.MessageRepository
	provider  mailbox.Provider
	activity  ActivityService
	publisher EventPublisher
	logger    *slog.Logger
}

// NewActionDispatcher creates a new ActionDispatcher instance
func NewActionDispatcher(
	drafts repository.DraftRepository,
	messages repository.MessageRepository,
	provider mailbox.Provider,
	activity ActivityService,
	publisher EventPublisher,
	logger *slog.Logger,
) ActionDispatcher {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &actionDispatcher{
		drafts:    drafts,
		messages:  messages,
		provider:  provider,
		activity:  activity,
		publisher: publisher,
		logger:    logger,
	}
}

// Dispatch carries out the decision
func (d *actionDispatcher) Dispatch(ctx context.Context, in DispatchInput) (*DispatchResult, error) {
	switch in.Decision.Outcome {
	case OutcomeIgnored:
		return &DispatchResult{Decision: in.Decision}, nil
	case OutcomeForwarded:
		return d.forward(ctx, in)
	case OutcomePending, OutcomeAutoSent:
	default:
		return nil, fmt.Errorf("cannot dispatch outcome %q", in.Decision.Outcome)
	}

	if in.Content == nil {
		return nil, fmt.Errorf("no reply content for message %d", in.Message.ID)
	}

	draft, created, err := d.persistDraft(ctx, in)
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{Decision: in.Decision, Draft: draft}
	if !created {
		// An existing draft is never re-sent from here
		result.Reused = true
		result.Decision.Outcome = Outcome(draft.Status)
		return result, nil
	}

	if in.Decision.Outcome == OutcomeAutoSent {
		sent, err := d.SendDraft(ctx, draft, models.DraftPending, models.DraftAutoSent)
		if sent != nil {
			result.Draft = sent
		}
		if err != nil {
			result.SendError = err
			result.Decision.Outcome = OutcomePending
		}
	}

	return result, nil
}

// persistDraft stores the composed reply unless the message already has an
// active draft, which is returned instead.
func (d *actionDispatcher) persistDraft(ctx context.Context, in DispatchInput) (*models.Draft, bool, error) {
	existing, err := d.drafts.GetActiveByMessage(ctx, in.Message.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to check existing draft: %w", err)
	}

	msg, content := in.Message, in.Content
	draft := &models.Draft{
		OwnerID:           msg.OwnerID,
		MessageID:         msg.ID,
		ToRecipients:      content.To,
		CcRecipients:      content.Cc,
		Subject:           content.Subject,
		BodyText:          content.Body,
		Status:            models.DraftPending,
		ModelID:           content.Model,
		Confidence:        content.Confidence,
		Reasoning:         content.Reasoning,
		OriginalBodyText:  content.Body,
		OutgoingMessageID: mailbox.NewMessageID(ownerAddress(msg)),
	}
	if in.Rule != nil {
		ruleID := in.Rule.ID
		draft.MatchedRuleID = &ruleID
	}
	if in.Guard != nil && !in.Guard.Passed {
		draft.GuardrailFlagged = true
		draft.GuardrailViolations = in.Guard.Violations
	}

	if err := d.drafts.Create(ctx, draft); err != nil {
		return nil, false, err
	}

	d.activity.Record(ctx, activity(msg.OwnerID, models.ActivityDraftCreated,
		fmt.Sprintf("Draft created for %q", msg.Subject),
		msg.ID, draft.ID, draft.MatchedRuleID,
		map[string]any{"confidence": draft.Confidence, "model": draft.ModelID}))

	if draft.GuardrailFlagged {
		types := in.Guard.Types()
		names := make([]string, 0, len(types))
		for _, t := range types {
			names = append(names, string(t))
		}
		for _, v := range in.Guard.Violations {
			metrics.GuardrailViolationsTotal.WithLabelValues(string(v.Type)).Inc()
		}
		if in.Decision.Downgraded {
			d.activity.Record(ctx, activity(msg.OwnerID, models.ActivityGuardrailBlocked,
				"Guardrails held the reply for review: "+strings.Join(names, ", "),
				msg.ID, draft.ID, draft.MatchedRuleID,
				map[string]any{"violations": names}))
		}
	}

	d.publisher.Publish(msg.OwnerID, websocket.MessageTypeDraftCreated, draft)
	return draft, true, nil
}

// SendDraft delivers the draft with its stored Message-ID
func (d *actionDispatcher) SendDraft(ctx context.Context, draft *models.Draft, from, to models.DraftStatus) (*models.Draft, error) {
	msg := draft.Message
	if msg == nil {
		m, err := d.messages.GetByID(ctx, draft.OwnerID, draft.MessageID)
		if err != nil {
			return nil, mapRepoError(err, apperrors.ErrMessageNotFound)
		}
		msg = m
	}

	if draft.OutgoingMessageID == "" {
		id := mailbox.NewMessageID(ownerAddress(msg))
		if err := d.drafts.UpdateFields(ctx, draft.ID, from, map[string]any{"outgoing_message_id": id}); err != nil {
			return nil, mapRepoError(err, apperrors.ErrDraftNotFound)
		}
		draft.OutgoingMessageID = id
	}

	out := mailbox.Outgoing{
		To:         draft.ToRecipients,
		Cc:         draft.CcRecipients,
		Subject:    draft.Subject,
		BodyText:   draft.BodyText,
		MessageID:  draft.OutgoingMessageID,
		InReplyTo:  msg.MessageIDHeader,
		References: msg.MessageIDHeader,
		ThreadID:   msg.ThreadID,
	}

	// A draft carrying last_error had an earlier attempt that may have gone out
	providerID, err := d.deliver(ctx, draft.OwnerID, out, draft.LastError != "")
	metrics.SendsTotal.WithLabelValues("reply", metrics.ResultLabel(err)).Inc()
	if err != nil {
		return d.failSend(ctx, draft, from, err)
	}

	// The send happened; record it even if the caller's context is ending
	ctx = context.WithoutCancel(ctx)
	now := time.Now()
	if err := d.drafts.Transition(ctx, draft.ID, []models.DraftStatus{from}, to, map[string]any{
		"sent_at":             &now,
		"provider_message_id": providerID,
		"last_error":          "",
	}); err != nil {
		d.logger.Error("reply sent but draft status not updated",
			slog.Uint64("draft_id", uint64(draft.ID)),
			slog.Any("error", err))
		return nil, mapRepoError(err, apperrors.ErrDraftNotFound)
	}

	d.activity.Record(ctx, activity(draft.OwnerID, models.ActivityEmailSent,
		"Reply sent to "+strings.Join(draft.ToRecipients, ", "),
		draft.MessageID, draft.ID, draft.MatchedRuleID,
		map[string]any{"status": string(to), "provider_message_id": providerID}))

	d.logger.Info("reply sent",
		slog.Uint64("draft_id", uint64(draft.ID)),
		slog.String("status", string(to)))

	return d.reload(ctx, draft)
}

// deliver sends the message. When the provider reports a failure, the Sent
// folder is checked for the Message-ID before giving up. A retry checks Sent
// first and does not send if the earlier attempt cannot be ruled out.
func (d *actionDispatcher) deliver(ctx context.Context, ownerID uint, out mailbox.Outgoing, retry bool) (string, error) {
	client, err := d.provider.ForOwner(ctx, ownerID)
	if err != nil {
		return "", err
	}

	if retry && out.MessageID != "" {
		found, ok, lookupErr := client.FindSentByMessageID(ctx, out.MessageID)
		if lookupErr != nil {
			return "", fmt.Errorf("%w: could not check Sent for %s: %v",
				apperrors.ErrUpstreamUnavailable, out.MessageID, lookupErr)
		}
		if ok {
			d.logger.Info("earlier send attempt found in Sent",
				slog.String("message_id", out.MessageID))
			return found, nil
		}
	}

	providerID, err := client.Send(ctx, out)
	if err == nil {
		return providerID, nil
	}
	if errors.Is(err, apperrors.ErrAuthRevoked) || out.MessageID == "" {
		return "", err
	}

	found, ok, lookupErr := client.FindSentByMessageID(context.WithoutCancel(ctx), out.MessageID)
	if lookupErr != nil {
		d.logger.Warn("could not confirm send state",
			slog.String("message_id", out.MessageID),
			slog.Any("error", lookupErr))
		return "", err
	}
	if ok {
		d.logger.Warn("send reported failure but message is in Sent",
			slog.String("message_id", out.MessageID),
			slog.Any("error", err))
		return found, nil
	}
	return "", err
}

// failSend returns the draft to pending and records why
func (d *actionDispatcher) failSend(ctx context.Context, draft *models.Draft, from models.DraftStatus, sendErr error) (*models.Draft, error) {
	ctx = context.WithoutCancel(ctx)
	errText := truncateError(sendErr)

	if err := d.drafts.Transition(ctx, draft.ID, []models.DraftStatus{from}, models.DraftPending, map[string]any{
		"last_error": errText,
	}); err != nil {
		d.logger.Error("failed to record send failure",
			slog.Uint64("draft_id", uint64(draft.ID)),
			slog.Any("error", err))
	}

	d.activity.Record(ctx, activity(draft.OwnerID, models.ActivitySendFailed,
		"Reply could not be sent: "+errText,
		draft.MessageID, draft.ID, draft.MatchedRuleID,
		map[string]any{"error_code": apperrors.GetErrorCode(sendErr)}))

	d.logger.Warn("reply send failed",
		slog.Uint64("draft_id", uint64(draft.ID)),
		slog.Any("error", sendErr))

	updated, err := d.reload(ctx, draft)
	if err != nil {
		updated = nil
	}
	return updated, fmt.Errorf("failed to send draft %d: %w", draft.ID, sendErr)
}

func (d *actionDispatcher) reload(ctx context.Context, draft *models.Draft) (*models.Draft, error) {
	updated, err := d.drafts.GetByID(ctx, draft.OwnerID, draft.ID)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrDraftNotFound)
	}
	d.publisher.Publish(updated.OwnerID, websocket.MessageTypeDraftUpdated, updated)
	return updated, nil
}

// forward sends the original message to the rule's targets. No reply draft
// is created.
func (d *actionDispatcher) forward(ctx context.Context, in DispatchInput) (*DispatchResult, error) {
	msg := in.Message
	if in.Rule == nil || len(in.Rule.ActionConfig.ForwardTo) == 0 {
		return nil, apperrors.NewValidationError("action_config.forward_to", "forward rule has no targets")
	}
	targets := in.Rule.ActionConfig.ForwardTo
	ruleID := in.Rule.ID

	out := mailbox.Outgoing{
		To:        targets,
		Subject:   ForwardSubject(msg.Subject),
		BodyText:  forwardBody(msg),
		MessageID: mailbox.NewMessageID(ownerAddress(msg)),
	}

	providerID, err := d.deliver(ctx, msg.OwnerID, out, false)
	metrics.SendsTotal.WithLabelValues("forward", metrics.ResultLabel(err)).Inc()
	if err != nil {
		d.activity.Record(context.WithoutCancel(ctx), activity(msg.OwnerID, models.ActivitySendFailed,
			"Forward failed: "+truncateError(err),
			msg.ID, 0, &ruleID,
			map[string]any{"forward_to": targets, "error_code": apperrors.GetErrorCode(err)}))
		return nil, fmt.Errorf("failed to forward message %d: %w", msg.ID, err)
	}

	d.activity.Record(ctx, activity(msg.OwnerID, models.ActivityEmailForwarded,
		"Forwarded to "+strings.Join(targets, ", "),
		msg.ID, 0, &ruleID,
		map[string]any{"forward_to": targets, "provider_message_id": providerID}))

	return &DispatchResult{Decision: in.Decision, ForwardedTo: targets}, nil
}

func forwardBody(msg *models.Message) string {
	var b strings.Builder
	b.WriteString("Forwarded message:\n")
	fmt.Fprintf(&b, "From: %s <%s>\n", msg.SenderName, msg.SenderEmail)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.ToRecipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\n\n", msg.ReceivedAt.Format(time.RFC1123Z))
	b.WriteString(msg.BodyText)
	return b.String()
}

// ownerAddress guesses the mailbox address a message was delivered to, used
// only for the domain part of generated Message-IDs.
func ownerAddress(msg *models.Message) string {
	if len(msg.ToRecipients) > 0 {
		return msg.ToRecipients[0]
	}
	return ""
}

func truncateError(err error) string {
	s := err.Error()
	if r := []rune(s); len(r) > maxErrorLength {
		s = string(r[:maxErrorLength])
	}
	return s
}
