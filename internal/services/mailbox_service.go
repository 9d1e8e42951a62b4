package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/mailbox"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/validator"
)

// authStateTTL bounds how long a consent round trip may take
const authStateTTL = 15 * time.Minute

// Sealer encrypts short values such as OAuth state
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

// MailboxStatus describes an owner's mailbox connection
type MailboxStatus struct {
	Connected    bool       `json:"connected"`
	Provider     string     `json:"provider,omitempty"`
	AccountEmail string     `json:"account_email,omitempty"`
	Revoked      bool       `json:"revoked"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// AuthorizationStart is the consent page to send the owner to
type AuthorizationStart struct {
	URL       string    `json:"url"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DisconnectResult reports what a disconnect removed
type DisconnectResult struct {
	MessagesDeleted int64 `json:"messages_deleted"`
}

// MailboxService registers owners and manages their mailbox connection
type MailboxService interface {
	RegisterOwner(ctx context.Context, email string) (*models.Owner, error)
	Status(ctx context.Context, ownerID uint) (*MailboxStatus, error)

	// StartAuthorization returns the consent URL with a state bound to the owner
	StartAuthorization(ctx context.Context, ownerID uint) (*AuthorizationStart, error)
	// CompleteAuthorization exchanges the code and stores the connection,
	// replacing any earlier one
	CompleteAuthorization(ctx context.Context, ownerID uint, code, state string) (*MailboxStatus, error)

	// Disconnect removes the connection and every cached message
	Disconnect(ctx context.Context, ownerID uint) (*DisconnectResult, error)
}

// mailboxService implements MailboxService
type mailboxService struct {
	owners     repository.OwnerRepository
	conns      repository.ConnectionRepository
	messages   repository.MessageRepository
	authorizer mailbox.Authorizer
	sealer     Sealer
	activity   ActivityService
	logger     *slog.Logger
	now        func() time.Time
}

// NewMailboxService creates a new MailboxService instance
func NewMailboxService(
	owners repository.OwnerRepository,
	conns repository.ConnectionRepository,
	messages repository.MessageRepository,
	authorizer mailbox.Authorizer,
	sealer Sealer,
	activity ActivityService,
	logger *slog.Logger,
) MailboxService {
	return &mailboxService{
		owners:     owners,
		conns:      conns,
		messages:   messages,
		authorizer: authorizer,
		sealer:     sealer,
		activity:   activity,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterOwner creates an active owner for the address
func (s *mailboxService) RegisterOwner(ctx context.Context, email string) (*models.Owner, error) {
	if err := validator.ValidateEmail(email); err != nil {
		return nil, apperrors.NewValidationError("email", err.Error())
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, apperrors.NewValidationError("email", validator.ErrInvalidEmail.Error())
	}

	owner := &models.Owner{Email: strings.ToLower(addr.Address), IsActive: true}
	if err := s.owners.Create(ctx, owner); err != nil {
		return nil, mapRepoError(err, apperrors.ErrNotFound)
	}

	s.logger.Info("owner registered", slog.Uint64("owner_id", uint64(owner.ID)))
	return owner, nil
}

// Status reports the connection without contacting the provider
func (s *mailboxService) Status(ctx context.Context, ownerID uint) (*MailboxStatus, error) {
	conn, err := s.conns.GetByOwner(ctx, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return &MailboxStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &MailboxStatus{
		Connected:    !conn.Revoked,
		Provider:     conn.Provider,
		AccountEmail: conn.AccountEmail,
		Revoked:      conn.Revoked,
		LastSyncedAt: conn.LastSyncedAt,
	}, nil
}

// StartAuthorization seals the owner and an expiry into the OAuth state
func (s *mailboxService) StartAuthorization(ctx context.Context, ownerID uint) (*AuthorizationStart, error) {
	expires := s.now().Add(authStateTTL).UTC().Truncate(time.Second)
	state, err := s.sealer.Seal(fmt.Sprintf("%d:%d", ownerID, expires.Unix()))
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization state: %w", err)
	}
	return &AuthorizationStart{
		URL:       s.authorizer.AuthURL(state),
		State:     state,
		ExpiresAt: expires,
	}, nil
}

// CompleteAuthorization verifies state, exchanges the code and saves the
// connection with a fresh sync cursor
func (s *mailboxService) CompleteAuthorization(ctx context.Context, ownerID uint, code, state string) (*MailboxStatus, error) {
	ve := &apperrors.ValidationError{}
	code = strings.TrimSpace(code)
	if code == "" {
		ve.Add("code", "is required")
	}
	if !s.validState(ownerID, state) {
		ve.Add("state", "is invalid or expired")
	}
	if ve.HasErrors() {
		return nil, ve
	}

	auth, err := s.authorizer.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	conn := &models.MailboxConnection{
		OwnerID:      ownerID,
		Provider:     "gmail",
		AccountEmail: auth.AccountEmail,
		TokenJSON:    auth.TokenJSON,
	}
	if err := s.conns.Save(ctx, conn); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity(ownerID, models.ActivityMailboxConnected,
		"Mailbox connected: "+auth.AccountEmail, 0, 0, nil,
		map[string]any{"provider": conn.Provider}))
	s.logger.Info("mailbox connected", slog.Uint64("owner_id", uint64(ownerID)))

	return s.Status(ctx, ownerID)
}

func (s *mailboxService) validState(ownerID uint, state string) bool {
	if state == "" {
		return false
	}
	payload, err := s.sealer.Open(state)
	if err != nil {
		return false
	}
	owner, expiry, ok := strings.Cut(payload, ":")
	if !ok {
		return false
	}
	id, err := strconv.ParseUint(owner, 10, 64)
	if err != nil || uint(id) != ownerID {
		return false
	}
	unix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return false
	}
	return s.now().Before(time.Unix(unix, 0))
}

// Disconnect drops the connection first so polling stops, then the cache
func (s *mailboxService) Disconnect(ctx context.Context, ownerID uint) (*DisconnectResult, error) {
	if err := s.conns.Delete(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("owner %d has no mailbox connection: %w", ownerID, apperrors.ErrNotFound)
		}
		return nil, err
	}

	deleted, err := s.messages.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity(ownerID, models.ActivityMailboxDisconnected,
		"Mailbox disconnected", 0, 0, nil,
		map[string]any{"messages_deleted": deleted}))
	s.logger.Info("mailbox disconnected",
		slog.Uint64("owner_id", uint64(ownerID)),
		slog.Int64("messages_deleted", deleted))

	return &DisconnectResult{MessagesDeleted: deleted}, nil
}
