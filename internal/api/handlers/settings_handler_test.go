package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/welldanyogia/mailpilot-backend/internal/guardrails"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
)

// SettingsHandlerTestSuite is the test suite for SettingsHandler and ActivityHandler
type SettingsHandlerTestSuite struct {
	suite.Suite
	echo         *echo.Echo
	handler      *SettingsHandler
	activity     *ActivityHandler
	mockSettings *MockSettingsService
	mockActivity *MockActivityService
}

// SetupTest runs before each test
func (s *SettingsHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.mockSettings = new(MockSettingsService)
	s.mockActivity = new(MockActivityService)
	s.handler = NewSettingsHandler(s.mockSettings)
	s.activity = NewActivityHandler(s.mockActivity)
}

// TearDownTest runs after each test
func (s *SettingsHandlerTestSuite) TearDownTest() {
	s.mockSettings.AssertExpectations(s.T())
	s.mockActivity.AssertExpectations(s.T())
}

// TestSettingsHandlerTestSuite runs the test suite
func TestSettingsHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(SettingsHandlerTestSuite))
}

// ==================== Settings Tests ====================

func (s *SettingsHandlerTestSuite) TestGet() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/settings", "")
	s.mockSettings.On("Get", mock.Anything, testOwnerID).Return(models.DefaultSettings(testOwnerID, "m-1"), nil)

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"approval_mode":"draft_approval"`)
}

func (s *SettingsHandlerTestSuite) TestUpdate() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPut, "/api/settings",
		`{"approval_mode":"auto_with_rules","blocked_keywords":["refund"],"confidence_threshold":0.8}`)
	s.mockSettings.On("Update", mock.Anything, testOwnerID, mock.MatchedBy(func(st *models.UserSettings) bool {
		return st.ApprovalMode == models.ModeAutoWithRules && st.ConfidenceThreshold == 0.8 &&
			len(st.BlockedKeywords) == 1
	})).Return(&models.UserSettings{OwnerID: testOwnerID, ApprovalMode: models.ModeAutoWithRules}, nil)

	// Act
	err := s.handler.Update(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
}

// ==================== Guardrail Tests ====================

func (s *SettingsHandlerTestSuite) TestGuardrails_ReportsEveryViolation() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/guardrails/test",
		`{"text":"What the hell, I guarantee a refund","original_sender":"alice@example.com","confidence":0.4}`)
	result := guardrails.Result{Violations: []guardrails.Violation{
		{Type: guardrails.ViolationProfanity, Message: "contains profanity", Matched: "hell"},
		{Type: guardrails.ViolationLowConfidence, Message: "confidence below threshold"},
	}}
	s.mockSettings.On("CheckGuardrails", mock.Anything, testOwnerID, mock.MatchedBy(func(in guardrails.Input) bool {
		return in.Confidence == 0.4 && len(in.Recipients) == 1 && in.Recipients[0] == "alice@example.com"
	})).Return(result, nil)

	// Act
	err := s.handler.TestGuardrails(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	var resp struct {
		Data GuardrailTestResponse `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.False(resp.Data.Passed)
	s.True(resp.Data.ShouldDowngradeToDraft)
	s.Len(resp.Data.Violations, 2)
}

func (s *SettingsHandlerTestSuite) TestGuardrails_CleanText() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/guardrails/test",
		`{"text":"Thanks, noon works.","recipients":["alice@example.com"],"original_sender":"alice@example.com"}`)
	s.mockSettings.On("CheckGuardrails", mock.Anything, testOwnerID, mock.MatchedBy(func(in guardrails.Input) bool {
		return in.Confidence == 1.0
	})).Return(guardrails.Result{Passed: true}, nil)

	// Act
	err := s.handler.TestGuardrails(c)

	// Assert
	s.NoError(err)
	s.Contains(rec.Body.String(), `"violations":[]`)
	s.Contains(rec.Body.String(), `"should_downgrade_to_draft":false`)
}

func (s *SettingsHandlerTestSuite) TestGuardrails_TextRequired() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/guardrails/test", `{}`)

	// Act
	err := s.handler.TestGuardrails(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}

// ==================== Activity Tests ====================

func (s *SettingsHandlerTestSuite) TestActivity_FilterByType() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/activity?type=email_sent&limit=10", "")
	s.mockActivity.On("List", mock.Anything, testOwnerID, models.ActivityType("email_sent"), 10, 0).
		Return([]models.ActivityRecord{{ID: 1, Type: "email_sent"}}, int64(1), nil)

	// Act
	err := s.activity.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"type":"email_sent"`)
}
