package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
	"github.com/k3a/html2text"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
)

const snippetLength = 255

var fromPattern = regexp.MustCompile(`^(?:"?([^"<]*)"?\s*)?<?([^<>]+@[^<>]+)>?$`)

// ParseMessage parses a raw RFC 5322 message. Provider ids, labels and
// ownership are left for the caller.
func ParseMessage(r io.Reader) (*models.Message, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	msg := &models.Message{
		MessageIDHeader: strings.TrimSpace(env.GetHeader("Message-Id")),
		Subject:         env.GetHeader("Subject"),
		BodyText:        env.Text,
		BodyHTML:        env.HTML,
		ToRecipients:    addressList(env, "To"),
		CcRecipients:    addressList(env, "Cc"),
	}
	if msg.BodyText == "" && msg.BodyHTML != "" {
		msg.BodyText = html2text.HTML2Text(msg.BodyHTML)
	}

	msg.SenderName, msg.SenderEmail = parseFromHeader(env.GetHeader("From"))
	msg.Snippet = generateSnippet(msg.BodyText, msg.BodyHTML)

	if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		msg.ReceivedAt = date.UTC()
	}

	return msg, nil
}

func addressList(env *enmime.Envelope, header string) []string {
	list, err := env.AddressList(header)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, strings.ToLower(a.Address))
	}
	return out
}

// parseFromHeader extracts name and email from a From header
func parseFromHeader(from string) (name, email string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}

	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Name, strings.ToLower(addr.Address)
	}

	matches := fromPattern.FindStringSubmatch(from)
	if len(matches) >= 3 {
		name = strings.Trim(strings.TrimSpace(matches[1]), `"`)
		email = strings.ToLower(strings.TrimSpace(matches[2]))
		return name, email
	}
	return "", strings.ToLower(from)
}

// generateSnippet creates a preview snippet from email body
func generateSnippet(bodyText, bodyHTML string) string {
	text := bodyText
	if text == "" && bodyHTML != "" {
		text = html2text.HTML2Text(bodyHTML)
	}

	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) > snippetLength {
		text = string(runes[:snippetLength-3]) + "..."
	}
	return text
}

// NewMessageID returns a fresh RFC 5322 Message-ID for the given sender
func NewMessageID(from string) string {
	domain := "mailpilot.local"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.Trim(from[at+1:], "> ")
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// BuildMessage encodes an outgoing message as RFC 5322 bytes
func BuildMessage(out Outgoing) ([]byte, error) {
	if len(out.To) == 0 {
		return nil, fmt.Errorf("message has no recipients")
	}

	b := enmime.Builder().
		From("", out.From).
		Subject(out.Subject).
		Date(time.Now()).
		Text([]byte(out.BodyText)).
		ToAddrs(toAddrs(out.To))
	if len(out.Cc) > 0 {
		b = b.CCAddrs(toAddrs(out.Cc))
	}
	if out.MessageID != "" {
		b = b.Header("Message-ID", out.MessageID)
	}
	if out.InReplyTo != "" {
		b = b.Header("In-Reply-To", out.InReplyTo)
	}
	if out.References != "" {
		b = b.Header("References", out.References)
	}

	part, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}

func toAddrs(list []string) []mail.Address {
	out := make([]mail.Address, 0, len(list))
	for _, a := range list {
		out = append(out, mail.Address{Address: a})
	}
	return out
}
