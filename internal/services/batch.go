package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/metrics"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/validator"
	"github.com/welldanyogia/mailpilot-backend/internal/websocket"
	"github.com/welldanyogia/mailpilot-backend/internal/worker"
)

// DefaultMaxBatchSize is the largest batch accepted when not configured
const DefaultMaxBatchSize = 20

// maxInstructionsLength bounds ad hoc batch instructions
const maxInstructionsLength = 2000

// BatchConfig holds configuration for the batch job manager
type BatchConfig struct {
	MaxBatchSize int
	ItemTimeout  time.Duration
}

// BatchJobManager runs on-demand draft generation for selected messages
type BatchJobManager interface {
	// Submit validates the selection and starts the job in the background.
	// Nothing is stored when validation fails.
	Submit(ctx context.Context, ownerID uint, messageIDs []uint, instructions string) (*models.BatchDraftJob, error)

	// Status returns the job's current counters
	Status(ctx context.Context, ownerID, jobID uint) (*models.BatchDraftJob, error)

	// List returns an owner's jobs, newest first
	List(ctx context.Context, ownerID uint, limit, offset int) ([]models.BatchDraftJob, int64, error)

	// Shutdown cancels running jobs and waits for them to stop
	Shutdown()
}

// batchJobManager implements BatchJobManager
type batchJobManager struct {
	jobs      repository.BatchJobRepository
	messages  repository.MessageRepository
	processor EmailProcessor
	pool      *worker.Pool
	activity  ActivityService
	publisher EventPublisher
	config    BatchConfig
	logger    *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBatchJobManager creates a new BatchJobManager instance
func NewBatchJobManager(
	jobs repository.BatchJobRepository,
	messages repository.MessageRepository,
	processor EmailProcessor,
	pool *worker.Pool,
	activity ActivityService,
	publisher EventPublisher,
	config BatchConfig,
	logger *slog.Logger,
) BatchJobManager {
	// Set defaults
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultMaxBatchSize
	}
	if config.ItemTimeout <= 0 {
		config.ItemTimeout = 90 * time.Second
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &batchJobManager{
		jobs:      jobs,
		messages:  messages,
		processor: processor,
		pool:      pool,
		activity:  activity,
		publisher: publisher,
		config:    config,
		logger:    logger,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Submit validates and starts a job
func (m *batchJobManager) Submit(ctx context.Context, ownerID uint, messageIDs []uint, instructions string) (*models.BatchDraftJob, error) {
	if err := validator.ValidateIDList(messageIDs, m.config.MaxBatchSize); err != nil {
		msg := err.Error()
		if errors.Is(err, validator.ErrTooManyItems) || errors.Is(err, validator.ErrEmptyInput) {
			msg = fmt.Sprintf("must contain between 1 and %d message ids", m.config.MaxBatchSize)
		}
		return nil, apperrors.NewValidationError("message_ids", msg)
	}

	owned, err := m.messages.GetByIDs(ctx, ownerID, messageIDs)
	if err != nil {
		return nil, err
	}
	if len(owned) != len(messageIDs) {
		found := make(map[uint]bool, len(owned))
		for _, msg := range owned {
			found[msg.ID] = true
		}
		missing := make([]uint, 0, len(messageIDs)-len(owned))
		for _, id := range messageIDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, apperrors.NewValidationError("message_ids", fmt.Sprintf("unknown message ids: %v", missing))
	}

	job := &models.BatchDraftJob{
		OwnerID:      ownerID,
		MessageIDs:   append([]uint(nil), messageIDs...),
		Instructions: validator.SanitizeMultiline(instructions, maxInstructionsLength),
		Status:       models.BatchPending,
		TotalCount:   len(messageIDs),
	}
	if err := m.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	m.activity.Record(ctx, activity(ownerID, models.ActivityBatchSubmitted,
		fmt.Sprintf("Batch draft job submitted for %d messages", job.TotalCount), 0, 0, nil,
		map[string]any{"job_id": job.ID}))

	m.logger.Info("batch job submitted",
		slog.Uint64("job_id", uint64(job.ID)),
		slog.Uint64("owner_id", uint64(ownerID)),
		slog.Int("total", job.TotalCount))

	m.wg.Add(1)
	go m.run(*job)

	return job, nil
}

// Status returns a job
func (m *batchJobManager) Status(ctx context.Context, ownerID, jobID uint) (*models.BatchDraftJob, error) {
	job, err := m.jobs.GetByID(ctx, ownerID, jobID)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrJobNotFound)
	}
	return job, nil
}

// List returns an owner's jobs
func (m *batchJobManager) List(ctx context.Context, ownerID uint, limit, offset int) ([]models.BatchDraftJob, int64, error) {
	return m.jobs.ListByOwner(ctx, ownerID, limit, offset)
}

// Shutdown cancels in-flight jobs and waits for their workers
func (m *batchJobManager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

// run drives every item of a job through the shared pool
func (m *batchJobManager) run(job models.BatchDraftJob) {
	defer m.wg.Done()

	metrics.BatchJobsActive.Inc()
	defer metrics.BatchJobsActive.Dec()

	ctx, cancel := context.WithCancel(m.baseCtx)
	defer cancel()

	if err := m.jobs.MarkProcessing(ctx, job.ID); err != nil {
		m.logger.Error("failed to start batch job",
			slog.Uint64("job_id", uint64(job.ID)),
			slog.Any("error", err))
		m.fail(job, "failed to start job")
		return
	}
	job.Status = models.BatchProcessing
	m.publisher.Publish(job.OwnerID, websocket.MessageTypeBatchProgress, &job)

	var (
		items   sync.WaitGroup
		aborted atomic.Bool
	)

	for _, messageID := range job.MessageIDs {
		messageID := messageID
		if aborted.Load() {
			break
		}
		items.Add(1)
		err := m.pool.Submit(ctx, func() {
			defer items.Done()
			if aborted.Load() {
				return
			}
			if err := m.runItem(ctx, job, messageID); errors.Is(err, apperrors.ErrAuthRevoked) {
				if aborted.CompareAndSwap(false, true) {
					cancel()
					m.fail(job, "mailbox authorization revoked")
				}
			}
		})
		if err != nil {
			// Pool refused because the job context ended
			items.Done()
			break
		}
	}
	items.Wait()

	if ctx.Err() != nil && !aborted.Load() {
		// Shut down mid-job
		m.fail(job, "job interrupted by shutdown")
	}
}

// runItem processes one message under the item timeout and records the result
func (m *batchJobManager) runItem(ctx context.Context, job models.BatchDraftJob, messageID uint) error {
	itemCtx, cancel := context.WithTimeout(ctx, m.config.ItemTimeout)
	defer cancel()

	_, err := m.processor.Process(itemCtx, job.OwnerID, messageID, ProcessOptions{
		Path:         PathOnDemand,
		Instructions: job.Instructions,
	})
	if errors.Is(err, context.DeadlineExceeded) && itemCtx.Err() != nil && ctx.Err() == nil {
		err = fmt.Errorf("message %d: %w", messageID, apperrors.ErrModelTimeout)
	}
	metrics.BatchItemsTotal.WithLabelValues(metrics.ResultLabel(err)).Inc()

	if errors.Is(err, apperrors.ErrAuthRevoked) {
		return err
	}

	// Counters must land even when the job context is ending
	bookCtx := context.WithoutCancel(ctx)
	var updated *models.BatchDraftJob
	var incErr error
	if err != nil {
		updated, incErr = m.jobs.IncrementFailed(bookCtx, job.ID, truncateError(err))
	} else {
		updated, incErr = m.jobs.IncrementCompleted(bookCtx, job.ID)
	}
	if incErr != nil {
		if !errors.Is(incErr, repository.ErrStaleState) {
			m.logger.Error("failed to update batch job counters",
				slog.Uint64("job_id", uint64(job.ID)),
				slog.Any("error", incErr))
		}
		return err
	}

	m.publisher.Publish(job.OwnerID, websocket.MessageTypeBatchProgress, updated)

	if updated.Status == models.BatchCompleted {
		m.activity.Record(bookCtx, activity(job.OwnerID, models.ActivityBatchCompleted,
			fmt.Sprintf("Batch draft job finished: %d completed, %d failed", updated.CompletedCount, updated.FailedCount),
			0, 0, nil,
			map[string]any{"job_id": job.ID, "completed": updated.CompletedCount, "failed": updated.FailedCount}))
		m.logger.Info("batch job completed",
			slog.Uint64("job_id", uint64(job.ID)),
			slog.Int("completed", updated.CompletedCount),
			slog.Int("failed", updated.FailedCount))
	}
	return err
}

// fail marks the job failed unless it already finished
func (m *batchJobManager) fail(job models.BatchDraftJob, reason string) {
	ctx := context.WithoutCancel(m.baseCtx)
	if err := m.jobs.MarkFailed(ctx, job.ID, reason); err != nil {
		if !errors.Is(err, repository.ErrStaleState) {
			m.logger.Error("failed to mark batch job failed",
				slog.Uint64("job_id", uint64(job.ID)),
				slog.Any("error", err))
		}
		return
	}

	m.activity.Record(ctx, activity(job.OwnerID, models.ActivityBatchFailed,
		"Batch draft job failed: "+reason, 0, 0, nil,
		map[string]any{"job_id": job.ID}))

	if updated, err := m.jobs.GetByID(ctx, job.OwnerID, job.ID); err == nil {
		m.publisher.Publish(job.OwnerID, websocket.MessageTypeBatchProgress, updated)
	}

	m.logger.Warn("batch job failed",
		slog.Uint64("job_id", uint64(job.ID)),
		slog.String("reason", reason))
}
