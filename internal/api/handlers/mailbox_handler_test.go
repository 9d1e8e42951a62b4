package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/services"
)

// MailboxHandlerTestSuite is the test suite for MailboxHandler
type MailboxHandlerTestSuite struct {
	suite.Suite
	echo        *echo.Echo
	handler     *MailboxHandler
	mockMailbox *MockMailboxService
}

// SetupTest runs before each test
func (s *MailboxHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.mockMailbox = new(MockMailboxService)
	s.handler = NewMailboxHandler(s.mockMailbox)
}

// TearDownTest runs after each test
func (s *MailboxHandlerTestSuite) TearDownTest() {
	s.mockMailbox.AssertExpectations(s.T())
}

// TestMailboxHandlerTestSuite runs the test suite
func TestMailboxHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(MailboxHandlerTestSuite))
}

// ==================== Owner Tests ====================

func (s *MailboxHandlerTestSuite) TestRegisterOwner() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/owners", `{"email":"bob@example.com"}`)
	s.mockMailbox.On("RegisterOwner", mock.Anything, "bob@example.com").
		Return(&models.Owner{ID: 7, Email: "bob@example.com", IsActive: true}, nil)

	// Act
	err := s.handler.RegisterOwner(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusCreated, rec.Code)
	s.Contains(rec.Body.String(), `"id":7`)
}

func (s *MailboxHandlerTestSuite) TestRegisterOwner_Duplicate() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/owners", `{"email":"me@example.com"}`)
	s.mockMailbox.On("RegisterOwner", mock.Anything, "me@example.com").
		Return(nil, fmt.Errorf("create owner: %w", apperrors.ErrDuplicateEntry))

	// Act
	err := s.handler.RegisterOwner(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusConflict, rec.Code)
}

// ==================== Connection Tests ====================

func (s *MailboxHandlerTestSuite) TestStatus() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailbox", "")
	s.mockMailbox.On("Status", mock.Anything, testOwnerID).
		Return(&services.MailboxStatus{Connected: true, Provider: "gmail", AccountEmail: "me@gmail.com"}, nil)

	// Act
	err := s.handler.Status(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"connected":true`)
	s.NotContains(rec.Body.String(), "token")
}

func (s *MailboxHandlerTestSuite) TestAuthorize() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailbox/authorize", "")
	s.mockMailbox.On("StartAuthorization", mock.Anything, testOwnerID).
		Return(&services.AuthorizationStart{URL: "https://accounts.example.com/consent", State: "v1:abc"}, nil)

	// Act
	err := s.handler.Authorize(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"state":"v1:abc"`)
}

func (s *MailboxHandlerTestSuite) TestConnect_InvalidState() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/mailbox/connect", `{"code":"c-1","state":"stale"}`)
	s.mockMailbox.On("CompleteAuthorization", mock.Anything, testOwnerID, "c-1", "stale").
		Return(nil, apperrors.NewValidationError("state", "is invalid or expired"))

	// Act
	err := s.handler.Connect(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
	resp := decodeError(rec)
	s.Require().Len(resp.Fields, 1)
	s.Equal("state", resp.Fields[0].Field)
}

func (s *MailboxHandlerTestSuite) TestDisconnect() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodDelete, "/api/mailbox", "")
	s.mockMailbox.On("Disconnect", mock.Anything, testOwnerID).
		Return(&services.DisconnectResult{MessagesDeleted: 12}, nil)

	// Act
	err := s.handler.Disconnect(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"messages_deleted":12`)
}

func (s *MailboxHandlerTestSuite) TestDisconnect_NotConnected() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodDelete, "/api/mailbox", "")
	s.mockMailbox.On("Disconnect", mock.Anything, testOwnerID).
		Return(nil, fmt.Errorf("owner 1 has no mailbox connection: %w", apperrors.ErrNotFound))

	// Act
	err := s.handler.Disconnect(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}
