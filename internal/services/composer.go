package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/welldanyogia/mailpilot-backend/internal/llm"
	"github.com/welldanyogia/mailpilot-backend/internal/metrics"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
)

// maxThreadHistory caps how many earlier thread messages go into the prompt
const maxThreadHistory = 5

// threadEntryLimit truncates each history entry
const threadEntryLimit = 1500

// DraftStyle is the owner's standing writing configuration for one call
type DraftStyle struct {
	SystemPrompt string
	Temperature  float64
	Signature    string
	Model        string
}

// StyleFromSettings extracts the writing style from owner settings
func StyleFromSettings(s *models.UserSettings) DraftStyle {
	return DraftStyle{
		SystemPrompt: s.SystemPrompt,
		Temperature:  s.LLMTemperature,
		Signature:    s.Signature,
		Model:        s.LLMModel,
	}
}

// DraftContent is a composed reply before it is persisted
type DraftContent struct {
	To         []string
	Cc         []string
	Subject    string
	Body       string
	Reasoning  string
	Confidence float64
	Unscored   bool
	Model      string
}

// Recipients returns every address the reply goes to
func (c *DraftContent) Recipients() []string {
	out := make([]string, 0, len(c.To)+len(c.Cc))
	out = append(out, c.To...)
	return append(out, c.Cc...)
}

// DraftComposer writes a candidate reply for a message
type DraftComposer interface {
	// Compose generates a reply. The rule's custom prompt and override are
	// added to the standing instruction, never substituted for it.
	Compose(ctx context.Context, msg *models.Message, rule *models.Rule, style DraftStyle, override string) (*DraftContent, error)
}

// draftComposer implements DraftComposer
type draftComposer struct {
	model    llm.ResponderModel
	messages repository.MessageRepository
	logger   *slog.Logger
}

// NewDraftComposer creates a new DraftComposer instance. messages may be nil,
// in which case no thread history is sent to the model.
func NewDraftComposer(model llm.ResponderModel, messages repository.MessageRepository, logger *slog.Logger) DraftComposer {
	return &draftComposer{
		model:    model,
		messages: messages,
		logger:   logger,
	}
}

// Compose generates the reply through the model
func (c *draftComposer) Compose(ctx context.Context, msg *models.Message, rule *models.Rule, style DraftStyle, override string) (*DraftContent, error) {
	var instructions []string
	if rule != nil && strings.TrimSpace(rule.ActionConfig.CustomPrompt) != "" {
		instructions = append(instructions, strings.TrimSpace(rule.ActionConfig.CustomPrompt))
	}
	if strings.TrimSpace(override) != "" {
		instructions = append(instructions, strings.TrimSpace(override))
	}

	body := msg.BodyText
	if body == "" {
		body = msg.Snippet
	}

	completion, err := c.model.Generate(ctx, llm.GenerateRequest{
		Model:         style.Model,
		Temperature:   style.Temperature,
		SystemPrompt:  style.SystemPrompt,
		Instructions:  instructions,
		Signature:     style.Signature,
		SenderEmail:   msg.SenderEmail,
		SenderName:    msg.SenderName,
		Subject:       msg.Subject,
		Body:          body,
		ThreadHistory: c.threadHistory(ctx, msg),
	})
	metrics.ModelRequestsTotal.WithLabelValues("generate", metrics.ResultLabel(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply for message %d: %w", msg.ID, err)
	}

	model := completion.Model
	if model == "" {
		model = style.Model
	}

	return &DraftContent{
		To:         []string{msg.SenderEmail},
		Subject:    ReplySubject(msg.Subject),
		Body:       withSignature(completion.Body, style.Signature),
		Reasoning:  completion.Reasoning,
		Confidence: completion.Confidence,
		Unscored:   completion.Unscored,
		Model:      model,
	}, nil
}

// threadHistory formats earlier cached messages of the thread, oldest first
func (c *draftComposer) threadHistory(ctx context.Context, msg *models.Message) []string {
	if c.messages == nil || msg.ThreadID == "" {
		return nil
	}
	thread, err := c.messages.ListThread(ctx, msg.OwnerID, msg.ThreadID)
	if err != nil {
		c.logger.Warn("failed to load thread history",
			slog.Uint64("message_id", uint64(msg.ID)),
			slog.Any("error", err))
		return nil
	}

	history := make([]string, 0, len(thread))
	for _, m := range thread {
		if m.ID == msg.ID {
			continue
		}
		text := m.BodyText
		if text == "" {
			text = m.Snippet
		}
		if r := []rune(text); len(r) > threadEntryLimit {
			text = string(r[:threadEntryLimit]) + "..."
		}
		history = append(history, fmt.Sprintf("From: %s\nSubject: %s\n\n%s", m.SenderEmail, m.Subject, text))
	}
	if len(history) > maxThreadHistory {
		history = history[len(history)-maxThreadHistory:]
	}
	return history
}

// ReplySubject prefixes "Re: " unless the subject already carries it
func ReplySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "Re: (no subject)"
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// ForwardSubject prefixes "Fwd: " unless the subject already carries it
func ForwardSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	lower := strings.ToLower(subject)
	if strings.HasPrefix(lower, "fwd:") || strings.HasPrefix(lower, "fw:") {
		return subject
	}
	return "Fwd: " + subject
}

func withSignature(body, signature string) string {
	body = strings.TrimRight(body, " \n")
	signature = strings.TrimSpace(signature)
	if signature == "" || strings.Contains(body, signature) {
		return body
	}
	return body + "\n\n" + signature
}
