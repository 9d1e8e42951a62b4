package testutil

import (
	"fmt"
	"time"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
)

// MessageBuilder creates test Message instances with fluent API
type MessageBuilder struct {
	message models.Message
}

// NewMessageBuilder creates a new MessageBuilder with sensible defaults
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		message: models.Message{
			OwnerID:         1,
			ProviderID:      "prov-1",
			ThreadID:        "thread-1",
			MessageIDHeader: "<orig-1@example.com>",
			SenderEmail:     "alice@example.com",
			SenderName:      "Alice",
			ToRecipients:    []string{"me@example.com"},
			Subject:         "Lunch tomorrow?",
			Snippet:         "Are you free for lunch tomorrow?",
			BodyText:        "Hi, are you free for lunch tomorrow?",
			ReceivedAt:      time.Now().Add(-time.Hour).UTC().Truncate(time.Second),
		},
	}
}

// WithID sets the message ID
func (b *MessageBuilder) WithID(id uint) *MessageBuilder {
	b.message.ID = id
	return b
}

// WithOwnerID sets the owner ID
func (b *MessageBuilder) WithOwnerID(ownerID uint) *MessageBuilder {
	b.message.OwnerID = ownerID
	return b
}

// WithProviderID sets the provider ID and derives a thread and header from it
func (b *MessageBuilder) WithProviderID(id string) *MessageBuilder {
	b.message.ProviderID = id
	b.message.MessageIDHeader = fmt.Sprintf("<%s@example.com>", id)
	return b
}

// WithThreadID sets the thread ID
func (b *MessageBuilder) WithThreadID(id string) *MessageBuilder {
	b.message.ThreadID = id
	return b
}

// WithSender sets sender email and name
func (b *MessageBuilder) WithSender(email, name string) *MessageBuilder {
	b.message.SenderEmail = email
	b.message.SenderName = name
	return b
}

// WithSubject sets the subject
func (b *MessageBuilder) WithSubject(subject string) *MessageBuilder {
	b.message.Subject = subject
	return b
}

// WithBodyText sets the plain text body
func (b *MessageBuilder) WithBodyText(text string) *MessageBuilder {
	b.message.BodyText = text
	return b
}

// WithRead sets the read status
func (b *MessageBuilder) WithRead(isRead bool) *MessageBuilder {
	b.message.IsRead = isRead
	return b
}

// WithReceivedAt sets the received timestamp
func (b *MessageBuilder) WithReceivedAt(t time.Time) *MessageBuilder {
	b.message.ReceivedAt = t
	return b
}

// Build returns the constructed Message
func (b *MessageBuilder) Build() *models.Message {
	m := b.message
	return &m
}

// NewRule returns an active rule matching on a single condition
func NewRule(ownerID uint, name string, priority int, action models.RuleAction, field models.ConditionField, op models.ConditionOperator, value string) *models.Rule {
	return &models.Rule{
		OwnerID:  ownerID,
		Name:     name,
		Priority: priority,
		IsActive: true,
		Action:   action,
		Conditions: models.ConditionGroup{
			Operator:   models.LogicalAnd,
			Conditions: []models.ConditionNode{models.Leaf(field, op, value)},
		},
	}
}

// NewPendingDraft returns a pending draft replying to msg
func NewPendingDraft(msg *models.Message) *models.Draft {
	return &models.Draft{
		OwnerID:          msg.OwnerID,
		MessageID:        msg.ID,
		ToRecipients:     []string{msg.SenderEmail},
		Subject:          "Re: " + msg.Subject,
		BodyText:         "Sounds good, see you then.",
		OriginalBodyText: "Sounds good, see you then.",
		Status:           models.DraftPending,
		ModelID:          "test-model",
		Confidence:       0.9,
	}
}

// CreateMessages builds count distinct messages for an owner, oldest first
func CreateMessages(ownerID uint, count int) []models.Message {
	base := time.Now().Add(-time.Duration(count) * time.Minute).UTC().Truncate(time.Second)
	out := make([]models.Message, count)
	for i := 0; i < count; i++ {
		out[i] = *NewMessageBuilder().
			WithOwnerID(ownerID).
			WithProviderID(fmt.Sprintf("prov-%d-%d", ownerID, i+1)).
			WithThreadID(fmt.Sprintf("thread-%d-%d", ownerID, i+1)).
			WithSubject(fmt.Sprintf("Question %d", i+1)).
			WithReceivedAt(base.Add(time.Duration(i) * time.Minute)).
			Build()
	}
	return out
}
