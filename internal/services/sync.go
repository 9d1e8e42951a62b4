package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/mailbox"
	"github.com/welldanyogia/mailpilot-backend/internal/metrics"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/websocket"
)

// SyncConfig holds configuration for the sync coordinator
type SyncConfig struct {
	// FallbackWindow is how far back a full resync looks
	FallbackWindow time.Duration
	// FallbackMax caps how many messages a full resync pulls
	FallbackMax int
	// MaxRetries bounds retries of transient provider failures
	MaxRetries uint64
	// RetryInitialInterval is the first backoff delay
	RetryInitialInterval time.Duration
}

// SyncResult reports one sync run
type SyncResult struct {
	NewMessages []models.Message `json:"new_messages"`
	HadFallback bool             `json:"had_fallback"`
}

// SyncCoordinator pulls new mail from the provider into the local cache
type SyncCoordinator interface {
	// Sync fetches and stores new messages, returning them oldest first. The
	// cursor only advances after every fetched message is stored.
	Sync(ctx context.Context, ownerID uint) (*SyncResult, error)
}

// syncCoordinator implements SyncCoordinator
type syncCoordinator struct {
	conns     repository.ConnectionRepository
	messages  repository.MessageRepository
	provider  mailbox.Provider
	activity  ActivityService
	publisher EventPublisher
	config    SyncConfig
	group     singleflight.Group
	now       func() time.Time
	logger    *slog.Logger
}

// NewSyncCoordinator creates a new SyncCoordinator instance
func NewSyncCoordinator(
	conns repository.ConnectionRepository,
	messages repository.MessageRepository,
	provider mailbox.Provider,
	activity ActivityService,
	publisher EventPublisher,
	config SyncConfig,
	logger *slog.Logger,
) SyncCoordinator {
	// Set defaults
	if config.FallbackWindow <= 0 {
		config.FallbackWindow = 72 * time.Hour
	}
	if config.FallbackMax <= 0 {
		config.FallbackMax = mailbox.FallbackMaxMessages
	}
	if config.RetryInitialInterval <= 0 {
		config.RetryInitialInterval = 500 * time.Millisecond
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}

	return &syncCoordinator{
		conns:     conns,
		messages:  messages,
		provider:  provider,
		activity:  activity,
		publisher: publisher,
		config:    config,
		now:       time.Now,
		logger:    logger,
	}
}

// Sync runs at most one sync per owner at a time; concurrent callers share
// the in-flight result.
func (s *syncCoordinator) Sync(ctx context.Context, ownerID uint) (*SyncResult, error) {
	v, err, _ := s.group.Do(strconv.FormatUint(uint64(ownerID), 10), func() (any, error) {
		return s.sync(ctx, ownerID)
	})
	metrics.SyncRunsTotal.WithLabelValues(metrics.ResultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}
	return v.(*SyncResult), nil
}

func (s *syncCoordinator) sync(ctx context.Context, ownerID uint) (*SyncResult, error) {
	conn, err := s.conns.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("no mailbox connection for owner %d: %w", ownerID, mapRepoError(err, apperrors.ErrNotFound))
	}
	if conn.Revoked {
		return nil, apperrors.ErrAuthRevoked
	}

	client, err := s.provider.ForOwner(ctx, ownerID)
	if err != nil {
		return nil, s.handleProviderError(ctx, ownerID, err)
	}

	var (
		fetched     []models.Message
		cursor      string
		hadFallback bool
	)
	err = s.retry(ctx, func() error {
		var ferr error
		fetched, cursor, hadFallback, ferr = s.fetch(ctx, client, conn.HistoryCursor)
		return ferr
	})
	if err != nil {
		return nil, s.handleProviderError(ctx, ownerID, err)
	}

	if hadFallback {
		metrics.SyncFallbacksTotal.Inc()
		s.activity.Record(ctx, activity(ownerID, models.ActivitySyncFallback,
			"Sync cursor expired; resynced recent messages", 0, 0, nil,
			map[string]any{"window": s.config.FallbackWindow.String(), "fetched": len(fetched)}))
		s.logger.Warn("sync cursor invalid, used full resync",
			slog.Uint64("owner_id", uint64(ownerID)),
			slog.Int("fetched", len(fetched)))
	}

	created := make([]models.Message, 0, len(fetched))
	for i := range fetched {
		msg := fetched[i]
		msg.ID = 0
		msg.OwnerID = ownerID
		isNew, err := s.messages.UpsertByProviderID(ctx, &msg)
		if err != nil {
			// Cursor stays put so the next run fetches these again
			return nil, fmt.Errorf("failed to store message %s: %w", msg.ProviderID, err)
		}
		if isNew {
			created = append(created, msg)
		}
	}

	if cursor != "" {
		if err := s.conns.UpdateCursor(ctx, ownerID, cursor, s.now()); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(created, func(i, j int) bool {
		return created[i].ReceivedAt.Before(created[j].ReceivedAt)
	})

	for i := range created {
		m := &created[i]
		s.activity.Record(ctx, activity(ownerID, models.ActivityEmailReceived,
			fmt.Sprintf("New email from %s", m.SenderEmail), m.ID, 0, nil, nil))
		s.publisher.Publish(ownerID, websocket.MessageTypeNewMessage, &websocket.NewMessagePayload{
			ID:          m.ID,
			SenderEmail: m.SenderEmail,
			SenderName:  m.SenderName,
			Subject:     m.Subject,
			ReceivedAt:  m.ReceivedAt.UTC().Format(time.RFC3339),
		})
	}
	metrics.MessagesIngestedTotal.Add(float64(len(created)))

	s.logger.Info("mailbox synced",
		slog.Uint64("owner_id", uint64(ownerID)),
		slog.Int("fetched", len(fetched)),
		slog.Int("new", len(created)),
		slog.Bool("fallback", hadFallback))

	return &SyncResult{NewMessages: created, HadFallback: hadFallback}, nil
}

// fetch reads new messages incrementally, falling back to the recent window
// when there is no usable cursor.
func (s *syncCoordinator) fetch(ctx context.Context, client mailbox.Client, cursor string) ([]models.Message, string, bool, error) {
	if cursor != "" {
		msgs, next, err := client.FetchNew(ctx, cursor)
		if err == nil {
			return msgs, next, false, nil
		}
		if !errors.Is(err, apperrors.ErrCursorInvalid) {
			return nil, "", false, err
		}
	}

	// Read the cursor first so nothing arriving during the window fetch is skipped
	next, err := client.CurrentCursor(ctx)
	if err != nil {
		return nil, "", false, err
	}
	msgs, err := client.FetchRecentWindow(ctx, s.now().Add(-s.config.FallbackWindow), s.config.FallbackMax)
	if err != nil {
		return nil, "", false, err
	}
	return msgs, next, cursor != "", nil
}

// retry repeats op with exponential backoff while it fails transiently
func (s *syncCoordinator) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.RetryInitialInterval
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, apperrors.ErrUpstreamUnavailable) || errors.Is(err, apperrors.ErrRateLimited) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, s.config.MaxRetries), ctx))
}

// handleProviderError flags revoked authorizations so polling stops
func (s *syncCoordinator) handleProviderError(ctx context.Context, ownerID uint, err error) error {
	if !errors.Is(err, apperrors.ErrAuthRevoked) {
		s.logger.Warn("mailbox sync failed",
			slog.Uint64("owner_id", uint64(ownerID)),
			slog.Any("error", err))
		return err
	}

	if markErr := s.conns.MarkRevoked(ctx, ownerID); markErr != nil {
		s.logger.Error("failed to mark mailbox revoked",
			slog.Uint64("owner_id", uint64(ownerID)),
			slog.Any("error", markErr))
	}
	s.activity.Record(ctx, activity(ownerID, models.ActivityMailboxRevoked,
		"Mailbox authorization revoked; reconnect to resume syncing", 0, 0, nil, nil))
	s.logger.Warn("mailbox authorization revoked", slog.Uint64("owner_id", uint64(ownerID)))
	return err
}
