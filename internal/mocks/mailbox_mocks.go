// Package mocks holds testify mocks for the pipeline's external collaborators.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/welldanyogia/mailpilot-backend/internal/mailbox"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
)

// MockMailboxClient implements mailbox.Client
type MockMailboxClient struct {
	mock.Mock
}

// FetchNew returns messages added since cursor
func (m *MockMailboxClient) FetchNew(ctx context.Context, cursor string) ([]models.Message, string, error) {
	args := m.Called(ctx, cursor)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]models.Message), args.String(1), args.Error(2)
}

// FetchRecentWindow returns recent inbox messages
func (m *MockMailboxClient) FetchRecentWindow(ctx context.Context, since time.Time, max int) ([]models.Message, error) {
	args := m.Called(ctx, since, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

// CurrentCursor returns the latest cursor
func (m *MockMailboxClient) CurrentCursor(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// Send delivers a message
func (m *MockMailboxClient) Send(ctx context.Context, msg mailbox.Outgoing) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// FindSentByMessageID looks up a sent message
func (m *MockMailboxClient) FindSentByMessageID(ctx context.Context, messageID string) (string, bool, error) {
	args := m.Called(ctx, messageID)
	return args.String(0), args.Bool(1), args.Error(2)
}

// MockMailboxProvider implements mailbox.Provider
type MockMailboxProvider struct {
	mock.Mock
}

// ForOwner returns the owner's mailbox client
func (m *MockMailboxProvider) ForOwner(ctx context.Context, ownerID uint) (mailbox.Client, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(mailbox.Client), args.Error(1)
}

// MockMailboxAuthorizer implements mailbox.Authorizer
type MockMailboxAuthorizer struct {
	mock.Mock
}

// AuthURL returns the consent page for state
func (m *MockMailboxAuthorizer) AuthURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

// Exchange trades a code for a credential
func (m *MockMailboxAuthorizer) Exchange(ctx context.Context, code string) (*mailbox.Authorization, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailbox.Authorization), args.Error(1)
}
