package mailbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
)

const gmailUserID = "me"

// GmailClient is a Client backed by the Gmail API
type GmailClient struct {
	svc    *gmail.Service
	from   string
	logger *slog.Logger
}

// NewGmailClient wraps an authorized HTTP client. Extra options (for
// example option.WithEndpoint) are passed to the Gmail service.
func NewGmailClient(ctx context.Context, httpClient *http.Client, from string, logger *slog.Logger, opts ...option.ClientOption) (*GmailClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &GmailClient{svc: svc, from: from, logger: logger}, nil
}

// CurrentCursor returns the mailbox's latest history id
func (c *GmailClient) CurrentCursor(ctx context.Context) (string, error) {
	profile, err := c.svc.Users.GetProfile(gmailUserID).Context(ctx).Do()
	if err != nil {
		return "", classifyError(err)
	}
	return strconv.FormatUint(profile.HistoryId, 10), nil
}

// AccountEmail returns the address of the authorized mailbox
func (c *GmailClient) AccountEmail(ctx context.Context) (string, error) {
	profile, err := c.svc.Users.GetProfile(gmailUserID).Context(ctx).Do()
	if err != nil {
		return "", classifyError(err)
	}
	return profile.EmailAddress, nil
}

// FetchNew lists inbox additions since cursor via the history API
func (c *GmailClient) FetchNew(ctx context.Context, cursor string) ([]models.Message, string, error) {
	start, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil || start == 0 {
		return nil, "", fmt.Errorf("%w: %q", apperrors.ErrCursorInvalid, cursor)
	}

	var ids []string
	seen := make(map[string]bool)
	newCursor := cursor

	err = c.svc.Users.History.List(gmailUserID).
		StartHistoryId(start).
		HistoryTypes("messageAdded").
		LabelId("INBOX").
		Pages(ctx, func(resp *gmail.ListHistoryResponse) error {
			for _, h := range resp.History {
				for _, added := range h.MessagesAdded {
					if added.Message == nil || seen[added.Message.Id] {
						continue
					}
					seen[added.Message.Id] = true
					ids = append(ids, added.Message.Id)
				}
			}
			if resp.HistoryId != 0 {
				newCursor = strconv.FormatUint(resp.HistoryId, 10)
			}
			return nil
		})
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, "", fmt.Errorf("%w: history %s expired", apperrors.ErrCursorInvalid, cursor)
		}
		return nil, "", classifyError(err)
	}

	msgs, err := c.fetchAll(ctx, ids)
	if err != nil {
		return nil, "", err
	}
	return msgs, newCursor, nil
}

// FetchRecentWindow lists inbox messages received after since
func (c *GmailClient) FetchRecentWindow(ctx context.Context, since time.Time, max int) ([]models.Message, error) {
	resp, err := c.svc.Users.Messages.List(gmailUserID).
		Q(fmt.Sprintf("in:inbox after:%d", since.Unix())).
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyError(err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return c.fetchAll(ctx, ids)
}

// Send delivers a message and returns the provider id of the sent copy
func (c *GmailClient) Send(ctx context.Context, out Outgoing) (string, error) {
	if out.From == "" {
		out.From = c.from
	}
	raw, err := BuildMessage(out)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrSendFailure, err)
	}

	sent, err := c.svc.Users.Messages.Send(gmailUserID, &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: out.ThreadID,
	}).Context(ctx).Do()
	if err != nil {
		classified := classifyError(err)
		if isProviderError(classified) {
			return "", classified
		}
		return "", fmt.Errorf("%w: %v", apperrors.ErrSendFailure, err)
	}

	c.logger.Info("Message sent",
		slog.String("provider_id", sent.Id),
		slog.String("thread_id", sent.ThreadId),
	)
	return sent.Id, nil
}

// FindSentByMessageID searches Sent for a message carrying messageID
func (c *GmailClient) FindSentByMessageID(ctx context.Context, messageID string) (string, bool, error) {
	id := strings.Trim(strings.TrimSpace(messageID), "<>")
	if id == "" {
		return "", false, nil
	}

	resp, err := c.svc.Users.Messages.List(gmailUserID).
		Q("in:sent rfc822msgid:" + id).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, classifyError(err)
	}
	if len(resp.Messages) == 0 {
		return "", false, nil
	}
	return resp.Messages[0].Id, true, nil
}

// fetchAll downloads and parses messages, skipping ones that vanished,
// and returns them oldest first.
func (c *GmailClient) fetchAll(ctx context.Context, ids []string) ([]models.Message, error) {
	msgs := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := c.fetchOne(ctx, id)
		if err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
				c.logger.Debug("Message disappeared before fetch", slog.String("provider_id", id))
				continue
			}
			return nil, classifyError(err)
		}
		if msg != nil {
			msgs = append(msgs, *msg)
		}
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].ReceivedAt.Before(msgs[j].ReceivedAt)
	})
	return msgs, nil
}

func (c *GmailClient) fetchOne(ctx context.Context, id string) (*models.Message, error) {
	gm, err := c.svc.Users.Messages.Get(gmailUserID, id).Format("raw").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if hasLabel(gm.LabelIds, "SENT") || hasLabel(gm.LabelIds, "DRAFT") {
		return nil, nil
	}

	raw, err := decodeRaw(gm.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", id, err)
	}

	msg, err := ParseMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	msg.ProviderID = gm.Id
	msg.ThreadID = gm.ThreadId
	msg.IsRead = !hasLabel(gm.LabelIds, "UNREAD")
	if gm.InternalDate > 0 {
		msg.ReceivedAt = time.UnixMilli(gm.InternalDate).UTC()
	}
	return msg, nil
}

func decodeRaw(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

// classifyError maps Gmail and OAuth failures onto the provider sentinels
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode == "invalid_grant" || rerr.ErrorCode == "unauthorized_client" {
			return fmt.Errorf("%w: %v", apperrors.ErrAuthRevoked, err)
		}
		return fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", apperrors.ErrAuthRevoked, err)
		case gerr.Code == http.StatusTooManyRequests || isRateLimitReason(gerr):
			return fmt.Errorf("%w: %v", apperrors.ErrRateLimited, err)
		case gerr.Code >= 500:
			return fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	return err
}

func isProviderError(err error) bool {
	return errors.Is(err, apperrors.ErrAuthRevoked) ||
		errors.Is(err, apperrors.ErrRateLimited) ||
		errors.Is(err, apperrors.ErrUpstreamUnavailable)
}

func isRateLimitReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}
