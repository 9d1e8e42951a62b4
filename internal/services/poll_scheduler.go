package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/worker"
)

// PollSchedulerConfig holds configuration for the poll scheduler
type PollSchedulerConfig struct {
	// Interval is how often every active mailbox is synced
	Interval time.Duration
	// ItemTimeout bounds one message's processing
	ItemTimeout time.Duration
	// RunTimeout bounds one full pass over all owners
	RunTimeout time.Duration
	// BacklogLimit caps how many unprocessed messages one pass picks up per owner
	BacklogLimit int
}

// PollScheduler periodically syncs every active mailbox and runs new mail
// through the pipeline
type PollScheduler struct {
	owners    repository.OwnerRepository
	messages  repository.MessageRepository
	sync      SyncCoordinator
	processor EmailProcessor
	pool      *worker.Pool
	config    PollSchedulerConfig
	logger    *slog.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewPollScheduler creates a new poll scheduler
func NewPollScheduler(
	owners repository.OwnerRepository,
	messages repository.MessageRepository,
	syncer SyncCoordinator,
	processor EmailProcessor,
	pool *worker.Pool,
	config PollSchedulerConfig,
	logger *slog.Logger,
) *PollScheduler {
	// Set defaults
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.ItemTimeout <= 0 {
		config.ItemTimeout = 90 * time.Second
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 30 * time.Minute
	}
	if config.BacklogLimit <= 0 {
		config.BacklogLimit = 50
	}

	return &PollScheduler{
		owners:    owners,
		messages:  messages,
		sync:      syncer,
		processor: processor,
		pool:      pool,
		config:    config,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the polling background job
func (s *PollScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.pollLoop()

	s.logger.Info("poll scheduler started",
		slog.Duration("interval", s.config.Interval))
}

// Stop gracefully stops the polling background job
func (s *PollScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("poll scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *PollScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// pollLoop is the main loop that periodically polls every mailbox
func (s *PollScheduler) pollLoop() {
	defer s.wg.Done()

	// Run immediately on start
	s.pollAll()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.pollAll()
		}
	}
}

// pollAll syncs and processes every active owner in turn
func (s *PollScheduler) pollAll() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()

	// Abandon the pass when the scheduler stops
	stopCh := s.stopChannel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	owners, err := s.owners.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list active owners",
			slog.Any("error", err))
		return
	}

	for _, owner := range owners {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.PollOwner(ctx, owner.ID); err != nil {
			// Log error and continue - one mailbox must not stall the others
			s.logger.Error("poll failed",
				slog.Uint64("owner_id", uint64(owner.ID)),
				slog.Any("error", err))
		}
	}
}

func (s *PollScheduler) stopChannel() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh
}

// PollOwner syncs one mailbox and processes its unprocessed backlog, which
// includes the newly synced messages and any left over from failed runs.
// A failed sync still processes the backlog unless authorization was revoked.
func (s *PollScheduler) PollOwner(ctx context.Context, ownerID uint) (*SyncResult, error) {
	result, syncErr := s.sync.Sync(ctx, ownerID)
	if errors.Is(syncErr, apperrors.ErrAuthRevoked) || errors.Is(syncErr, apperrors.ErrNotFound) {
		return nil, syncErr
	}

	backlog, err := s.messages.ListUnprocessed(ctx, ownerID, s.config.BacklogLimit)
	if err != nil {
		return result, err
	}

	var wg sync.WaitGroup
	for i := range backlog {
		messageID := backlog[i].ID
		wg.Add(1)
		err := s.pool.Submit(ctx, func() {
			defer wg.Done()
			itemCtx, cancel := context.WithTimeout(ctx, s.config.ItemTimeout)
			defer cancel()
			// Failures are logged and recorded by the processor
			_, _ = s.processor.Process(itemCtx, ownerID, messageID, ProcessOptions{Path: PathPoll})
		})
		if err != nil {
			wg.Done()
			break
		}
	}
	wg.Wait()

	if syncErr != nil {
		return nil, syncErr
	}
	return result, nil
}

// ForceCheck triggers an immediate poll of every mailbox
func (s *PollScheduler) ForceCheck() {
	if !s.IsRunning() {
		s.logger.Warn("force check called but scheduler is not running")
		return
	}

	s.logger.Info("force check triggered")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pollAll()
	}()
}
