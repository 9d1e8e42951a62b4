package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/welldanyogia/mailpilot-backend/internal/guardrails"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/services"
)

// MockMessageRepository is a mock implementation of repository.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) UpsertByProviderID(ctx context.Context, message *models.Message) (bool, error) {
	args := m.Called(ctx, message)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, ownerID, id uint) (*models.Message, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) GetByIDs(ctx context.Context, ownerID uint, ids []uint) ([]models.Message, error) {
	args := m.Called(ctx, ownerID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageRepository) List(ctx context.Context, ownerID uint, filter repository.MessageFilter, limit, offset int) ([]models.MessageListItem, int64, error) {
	args := m.Called(ctx, ownerID, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.MessageListItem), args.Get(1).(int64), args.Error(2)
}

func (m *MockMessageRepository) ListThread(ctx context.Context, ownerID uint, threadID string) ([]models.Message, error) {
	args := m.Called(ctx, ownerID, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageRepository) ListUnprocessed(ctx context.Context, ownerID uint, limit int) ([]models.Message, error) {
	args := m.Called(ctx, ownerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageRepository) MarkProcessed(ctx context.Context, id uint, requiresResponse *bool, reason string) error {
	args := m.Called(ctx, id, requiresResponse, reason)
	return args.Error(0)
}

func (m *MockMessageRepository) MarkAsRead(ctx context.Context, ownerID, id uint) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

func (m *MockMessageRepository) DeleteByOwner(ctx context.Context, ownerID uint) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

// MockMailboxPoller is a mock implementation of MailboxPoller
type MockMailboxPoller struct {
	mock.Mock
}

func (m *MockMailboxPoller) PollOwner(ctx context.Context, ownerID uint) (*services.SyncResult, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SyncResult), args.Error(1)
}

// MockEmailProcessor is a mock implementation of services.EmailProcessor
type MockEmailProcessor struct {
	mock.Mock
}

func (m *MockEmailProcessor) Process(ctx context.Context, ownerID, messageID uint, opts services.ProcessOptions) (*services.ProcessResult, error) {
	args := m.Called(ctx, ownerID, messageID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProcessResult), args.Error(1)
}

// MockRuleService is a mock implementation of services.RuleService
type MockRuleService struct {
	mock.Mock
}

func (m *MockRuleService) List(ctx context.Context, ownerID uint) ([]models.Rule, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Rule), args.Error(1)
}

func (m *MockRuleService) Get(ctx context.Context, ownerID, id uint) (*models.Rule, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rule), args.Error(1)
}

func (m *MockRuleService) Create(ctx context.Context, ownerID uint, rule *models.Rule) (*models.Rule, error) {
	args := m.Called(ctx, ownerID, rule)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rule), args.Error(1)
}

func (m *MockRuleService) Update(ctx context.Context, ownerID, id uint, rule *models.Rule) (*models.Rule, error) {
	args := m.Called(ctx, ownerID, id, rule)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rule), args.Error(1)
}

func (m *MockRuleService) Toggle(ctx context.Context, ownerID, id uint, active bool) (*models.Rule, error) {
	args := m.Called(ctx, ownerID, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rule), args.Error(1)
}

func (m *MockRuleService) Delete(ctx context.Context, ownerID, id uint) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

func (m *MockRuleService) Test(ctx context.Context, ownerID uint, in services.RuleTestInput) (*services.RuleTestResult, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RuleTestResult), args.Error(1)
}

// MockDraftService is a mock implementation of services.DraftService
type MockDraftService struct {
	mock.Mock
}

func (m *MockDraftService) draft(args mock.Arguments) (*models.Draft, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Draft), args.Error(1)
}

func (m *MockDraftService) List(ctx context.Context, ownerID uint, filter repository.DraftFilter, limit, offset int) ([]models.Draft, int64, error) {
	args := m.Called(ctx, ownerID, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.Draft), args.Get(1).(int64), args.Error(2)
}

func (m *MockDraftService) Get(ctx context.Context, ownerID, id uint) (*models.Draft, error) {
	return m.draft(m.Called(ctx, ownerID, id))
}

func (m *MockDraftService) Edit(ctx context.Context, ownerID, id uint, edit services.DraftEdit) (*models.Draft, error) {
	return m.draft(m.Called(ctx, ownerID, id, edit))
}

func (m *MockDraftService) Approve(ctx context.Context, ownerID, id uint) (*models.Draft, error) {
	return m.draft(m.Called(ctx, ownerID, id))
}

func (m *MockDraftService) Reject(ctx context.Context, ownerID, id uint) (*models.Draft, error) {
	return m.draft(m.Called(ctx, ownerID, id))
}

func (m *MockDraftService) Regenerate(ctx context.Context, ownerID, id uint, instructions string) (*models.Draft, error) {
	return m.draft(m.Called(ctx, ownerID, id, instructions))
}

// MockBatchJobManager is a mock implementation of services.BatchJobManager
type MockBatchJobManager struct {
	mock.Mock
}

func (m *MockBatchJobManager) Submit(ctx context.Context, ownerID uint, messageIDs []uint, instructions string) (*models.BatchDraftJob, error) {
	args := m.Called(ctx, ownerID, messageIDs, instructions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BatchDraftJob), args.Error(1)
}

func (m *MockBatchJobManager) Status(ctx context.Context, ownerID, jobID uint) (*models.BatchDraftJob, error) {
	args := m.Called(ctx, ownerID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BatchDraftJob), args.Error(1)
}

func (m *MockBatchJobManager) List(ctx context.Context, ownerID uint, limit, offset int) ([]models.BatchDraftJob, int64, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.BatchDraftJob), args.Get(1).(int64), args.Error(2)
}

func (m *MockBatchJobManager) Shutdown() {
	m.Called()
}

// MockSettingsService is a mock implementation of services.SettingsService
type MockSettingsService struct {
	mock.Mock
}

func (m *MockSettingsService) Get(ctx context.Context, ownerID uint) (*models.UserSettings, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserSettings), args.Error(1)
}

func (m *MockSettingsService) Update(ctx context.Context, ownerID uint, settings *models.UserSettings) (*models.UserSettings, error) {
	args := m.Called(ctx, ownerID, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserSettings), args.Error(1)
}

func (m *MockSettingsService) CheckGuardrails(ctx context.Context, ownerID uint, in guardrails.Input) (guardrails.Result, error) {
	args := m.Called(ctx, ownerID, in)
	return args.Get(0).(guardrails.Result), args.Error(1)
}

// MockActivityService is a mock implementation of services.ActivityService
type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) Record(ctx context.Context, record *models.ActivityRecord) {
	m.Called(ctx, record)
}

func (m *MockActivityService) List(ctx context.Context, ownerID uint, activityType models.ActivityType, limit, offset int) ([]models.ActivityRecord, int64, error) {
	args := m.Called(ctx, ownerID, activityType, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.ActivityRecord), args.Get(1).(int64), args.Error(2)
}

// MockMailboxService is a mock implementation of services.MailboxService
type MockMailboxService struct {
	mock.Mock
}

func (m *MockMailboxService) RegisterOwner(ctx context.Context, email string) (*models.Owner, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Owner), args.Error(1)
}

func (m *MockMailboxService) Status(ctx context.Context, ownerID uint) (*services.MailboxStatus, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MailboxStatus), args.Error(1)
}

func (m *MockMailboxService) StartAuthorization(ctx context.Context, ownerID uint) (*services.AuthorizationStart, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthorizationStart), args.Error(1)
}

func (m *MockMailboxService) CompleteAuthorization(ctx context.Context, ownerID uint, code, state string) (*services.MailboxStatus, error) {
	args := m.Called(ctx, ownerID, code, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MailboxStatus), args.Error(1)
}

func (m *MockMailboxService) Disconnect(ctx context.Context, ownerID uint) (*services.DisconnectResult, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DisconnectResult), args.Error(1)
}
