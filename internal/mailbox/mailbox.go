// Package mailbox is the provider side of the pipeline: fetching new mail,
// sending replies and checking what was already sent.
package mailbox

import (
	"context"
	"time"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
)

// FallbackMaxMessages caps how many messages a full resync pulls
const FallbackMaxMessages = 50

// Outgoing is a message to hand to the provider for delivery
type Outgoing struct {
	From       string
	To         []string
	Cc         []string
	Subject    string
	BodyText   string
	MessageID  string
	InReplyTo  string
	References string
	ThreadID   string
}

// Client is one owner's mailbox. Errors are the provider sentinels from
// internal/errors: ErrCursorInvalid, ErrAuthRevoked, ErrRateLimited and
// ErrUpstreamUnavailable.
type Client interface {
	// FetchNew returns messages added since cursor, oldest first, and the
	// cursor to store once they are persisted.
	FetchNew(ctx context.Context, cursor string) ([]models.Message, string, error)
	// FetchRecentWindow returns up to max inbox messages received after since
	FetchRecentWindow(ctx context.Context, since time.Time, max int) ([]models.Message, error)
	CurrentCursor(ctx context.Context) (string, error)
	Send(ctx context.Context, msg Outgoing) (string, error)
	// FindSentByMessageID looks up a sent message by its RFC Message-ID
	FindSentByMessageID(ctx context.Context, messageID string) (string, bool, error)
}

// Provider opens the mailbox of an owner
type Provider interface {
	ForOwner(ctx context.Context, ownerID uint) (Client, error)
}

// Authorization is a freshly granted mailbox credential
type Authorization struct {
	AccountEmail string
	TokenJSON    string
}

// Authorizer runs the provider's OAuth consent flow
type Authorizer interface {
	// AuthURL returns the consent page carrying state
	AuthURL(state string) string
	// Exchange trades an authorization code for a credential
	Exchange(ctx context.Context, code string) (*Authorization, error)
}
