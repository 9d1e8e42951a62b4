package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/welldanyogia/mailpilot-backend/internal/mocks"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/testutil"
	"github.com/welldanyogia/mailpilot-backend/internal/websocket"
	"github.com/welldanyogia/mailpilot-backend/internal/worker"
)

const testOwnerID uint = 1

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// published is one event seen by fakePublisher
type published struct {
	OwnerID uint
	Type    websocket.MessageType
	Payload any
}

// fakePublisher records every published event
type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(ownerID uint, msgType websocket.MessageType, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{OwnerID: ownerID, Type: msgType, Payload: payload})
}

func (p *fakePublisher) Count(msgType websocket.MessageType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == msgType {
			n++
		}
	}
	return n
}

// harness wires the real pipeline over SQLite with mocked model and mailbox
type harness struct {
	db *gorm.DB

	messages repository.MessageRepository
	drafts   repository.DraftRepository
	rules    repository.RuleRepository
	settings repository.SettingsRepository
	activity repository.ActivityRepository
	jobs     repository.BatchJobRepository
	owners   repository.OwnerRepository
	conns    repository.ConnectionRepository

	model     *mocks.MockResponderModel
	provider  *mocks.MockMailboxProvider
	client    *mocks.MockMailboxClient
	publisher *fakePublisher
	locks     *worker.KeyedMutex

	activitySvc ActivityService
	settingsSvc SettingsService
	composer    DraftComposer
	dispatcher  ActionDispatcher
	processor   EmailProcessor
	drafting    DraftService
}

func newHarness(db *gorm.DB) *harness {
	logger := testLogger()
	h := &harness{
		db:        db,
		messages:  repository.NewMessageRepository(db),
		drafts:    repository.NewDraftRepository(db),
		rules:     repository.NewRuleRepository(db),
		settings:  repository.NewSettingsRepository(db),
		activity:  repository.NewActivityRepository(db),
		jobs:      repository.NewBatchJobRepository(db),
		owners:    repository.NewOwnerRepository(db),
		conns:     repository.NewConnectionRepository(db, testutil.NewTokenCipher()),
		model:     new(mocks.MockResponderModel),
		provider:  new(mocks.MockMailboxProvider),
		client:    new(mocks.MockMailboxClient),
		publisher: &fakePublisher{},
		locks:     worker.NewKeyedMutex(),
	}
	h.provider.On("ForOwner", mock.Anything, mock.Anything).Return(h.client, nil).Maybe()

	h.activitySvc = NewActivityService(h.activity, h.publisher, logger)
	h.settingsSvc = NewSettingsService(h.settings, h.activitySvc, "test-model", logger)
	h.composer = NewDraftComposer(h.model, h.messages, logger)
	h.dispatcher = NewActionDispatcher(h.drafts, h.messages, h.provider, h.activitySvc, h.publisher, logger)
	h.processor = NewEmailProcessor(h.messages, h.rules, h.settingsSvc, NewResponseDecider(h.model, logger),
		h.composer, h.dispatcher, h.activitySvc, h.locks, logger)
	h.drafting = NewDraftService(h.drafts, h.rules, h.messages, h.settingsSvc, h.composer, h.dispatcher,
		h.activitySvc, h.publisher, h.locks, logger)
	return h
}

func (h *harness) createMessage(t testing.TB, msg *models.Message) *models.Message {
	t.Helper()
	require.NoError(t, h.db.Create(msg).Error)
	return msg
}

func (h *harness) createRule(t testing.TB, rule *models.Rule) *models.Rule {
	t.Helper()
	require.NoError(t, h.rules.Create(context.Background(), rule))
	return rule
}

func (h *harness) setMode(t testing.TB, mode models.ApprovalMode) {
	t.Helper()
	settings := models.DefaultSettings(testOwnerID, "test-model")
	settings.ApprovalMode = mode
	require.NoError(t, h.settings.Save(context.Background(), settings))
}

func (h *harness) activityTypes(t testing.TB) []models.ActivityType {
	t.Helper()
	records, _, err := h.activity.ListByOwner(context.Background(), testOwnerID, "", 100, 0)
	require.NoError(t, err)
	out := make([]models.ActivityType, 0, len(records))
	for _, r := range records {
		out = append(out, r.Type)
	}
	return out
}

func (h *harness) reloadMessage(t testing.TB, id uint) *models.Message {
	t.Helper()
	msg, err := h.messages.GetByID(context.Background(), testOwnerID, id)
	require.NoError(t, err)
	return msg
}

func (h *harness) draftsFor(t testing.TB, messageID uint) []models.Draft {
	t.Helper()
	var drafts []models.Draft
	require.NoError(t, h.db.Where("message_id = ?", messageID).Order("id ASC").Find(&drafts).Error)
	return drafts
}
