package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
)

// OAuthConfig returns the Gmail OAuth client configuration
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{gmail.GmailModifyScope, gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}
}

// GmailProvider opens Gmail clients from stored mailbox connections and
// writes refreshed tokens back to the connection.
type GmailProvider struct {
	cfg    *oauth2.Config
	conns  repository.ConnectionRepository
	logger *slog.Logger
	opts   []option.ClientOption
}

// NewGmailProvider creates a new GmailProvider
func NewGmailProvider(cfg *oauth2.Config, conns repository.ConnectionRepository, logger *slog.Logger, opts ...option.ClientOption) *GmailProvider {
	return &GmailProvider{cfg: cfg, conns: conns, logger: logger, opts: opts}
}

// ForOwner returns a client for the owner's connected mailbox
func (p *GmailProvider) ForOwner(ctx context.Context, ownerID uint) (Client, error) {
	conn, err := p.conns.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("owner %d has no mailbox connection: %w", ownerID, apperrors.ErrNotFound)
		}
		return nil, err
	}
	if conn.Revoked {
		return nil, fmt.Errorf("owner %d: %w", ownerID, apperrors.ErrAuthRevoked)
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(conn.TokenJSON), &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token for owner %d: %w", ownerID, err)
	}

	// The token source must outlive the request context
	src := &persistingTokenSource{
		base:    p.cfg.TokenSource(context.Background(), &tok),
		last:    tok.AccessToken,
		ownerID: ownerID,
		conns:   p.conns,
		logger:  p.logger,
	}
	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(&tok, src))

	return NewGmailClient(ctx, httpClient, conn.AccountEmail, p.logger, p.opts...)
}

// AuthURL returns the Google consent page. Offline access is requested so a
// refresh token is issued.
func (p *GmailProvider) AuthURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and reads the address of
// the mailbox it grants
func (p *GmailProvider) Exchange(ctx context.Context, code string) (*Authorization, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
			return nil, fmt.Errorf("%w: authorization code rejected: %s", apperrors.ErrInvalidInput, rerr.ErrorCode)
		}
		return nil, fmt.Errorf("%w: token exchange failed: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	if tok.RefreshToken == "" {
		p.logger.Warn("authorization returned no refresh token; the connection will expire")
	}

	client, err := NewGmailClient(ctx, p.cfg.Client(ctx, tok), "", p.logger, p.opts...)
	if err != nil {
		return nil, err
	}
	email, err := client.AccountEmail(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token: %w", err)
	}
	return &Authorization{AccountEmail: email, TokenJSON: string(data)}, nil
}

// persistingTokenSource saves every newly minted token
type persistingTokenSource struct {
	base    oauth2.TokenSource
	ownerID uint
	conns   repository.ConnectionRepository
	logger  *slog.Logger

	mu   sync.Mutex
	last string
}

// Token implements oauth2.TokenSource
func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}
	s.last = tok.AccessToken

	data, err := json.Marshal(tok)
	if err != nil {
		return tok, nil
	}
	if err := s.conns.UpdateToken(context.Background(), s.ownerID, string(data)); err != nil {
		s.logger.Error("Failed to persist refreshed token",
			slog.Uint64("owner_id", uint64(s.ownerID)),
			slog.Any("error", err),
		)
	}
	return tok, nil
}
