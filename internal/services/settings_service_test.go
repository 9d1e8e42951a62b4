package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/guardrails"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/testutil"
)

// SettingsServiceTestSuite is the test suite for SettingsService and RuleService
type SettingsServiceTestSuite struct {
	suite.Suite
	db    *gorm.DB
	h     *harness
	rules RuleService
}

// SetupSuite runs once before all tests
func (s *SettingsServiceTestSuite) SetupSuite() {
	s.db = testutil.NewSQLiteDB(s.T())
}

// SetupTest runs before each test
func (s *SettingsServiceTestSuite) SetupTest() {
	testutil.ResetTables(s.db)
	s.h = newHarness(s.db)
	s.rules = NewRuleService(s.h.rules, s.h.messages, testLogger())
}

// TestSettingsServiceTestSuite runs the test suite
func TestSettingsServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SettingsServiceTestSuite))
}

// ==================== Settings Tests ====================

func (s *SettingsServiceTestSuite) TestGet_DefaultsWhenMissing() {
	// Act
	settings, err := s.h.settingsSvc.Get(context.Background(), testOwnerID)

	// Assert
	s.Require().NoError(err)
	s.Equal(models.ModeDraftApproval, settings.ApprovalMode)
	s.Equal("test-model", settings.LLMModel)
	s.True(settings.GuardrailProfanity)
	s.Equal(guardrails.DefaultConfidenceThreshold, settings.ConfidenceThreshold)
}

func (s *SettingsServiceTestSuite) TestUpdate_Validates() {
	// Arrange
	settings := models.DefaultSettings(testOwnerID, "")
	settings.ApprovalMode = "yolo"
	settings.LLMTemperature = 3
	settings.ConfidenceThreshold = -0.1

	// Act
	_, err := s.h.settingsSvc.Update(context.Background(), testOwnerID, settings)

	// Assert
	ve := apperrors.GetValidationError(err)
	s.Require().NotNil(ve)
	s.ElementsMatch([]string{"approval_mode", "llm_temperature", "confidence_threshold"}, fieldNames(ve))
}

func (s *SettingsServiceTestSuite) TestUpdate_CleansAndStores() {
	// Arrange
	settings := models.DefaultSettings(testOwnerID, "")
	settings.ApprovalMode = models.ModeAutoWithRules
	settings.BlockedKeywords = []string{" Refund ", "refund", "", "lawsuit"}
	settings.Signature = "  Best,\nAlex  "

	// Act
	updated, err := s.h.settingsSvc.Update(context.Background(), testOwnerID, settings)

	// Assert
	s.Require().NoError(err)
	s.Equal(models.ModeAutoWithRules, updated.ApprovalMode)
	s.Equal([]string{"Refund", "lawsuit"}, updated.BlockedKeywords)
	s.Equal("test-model", updated.LLMModel)
	s.Contains(s.h.activityTypes(s.T()), models.ActivitySettingsChanged)
}

func (s *SettingsServiceTestSuite) TestCheckGuardrails_UsesOwnerKeywords() {
	// Arrange
	settings := models.DefaultSettings(testOwnerID, "")
	settings.BlockedKeywords = []string{"refund"}
	_, err := s.h.settingsSvc.Update(context.Background(), testOwnerID, settings)
	s.Require().NoError(err)

	// Act
	result, err := s.h.settingsSvc.CheckGuardrails(context.Background(), testOwnerID, guardrails.Input{
		Text:           "We will process your refund.",
		Recipients:     []string{"alice@example.com"},
		OriginalSender: "alice@example.com",
		Confidence:     0.9,
	})

	// Assert
	s.Require().NoError(err)
	s.False(result.Passed)
	s.Contains(result.Types(), guardrails.ViolationCustomKeyword)
}

// ==================== Rule Service Tests ====================

func (s *SettingsServiceTestSuite) TestRuleCreate_Invalid() {
	// Arrange
	rule := &models.Rule{Name: " ", Action: "explode"}

	// Act
	_, err := s.rules.Create(context.Background(), testOwnerID, rule)

	// Assert
	s.True(apperrors.IsValidation(err))
}

func (s *SettingsServiceTestSuite) TestRuleCreate_ForwardNeedsTargets() {
	// Arrange
	rule := testutil.NewRule(0, "Forward", 1, models.ActionForward, models.FieldSubject, models.OpContains, "invoice")

	// Act
	_, err := s.rules.Create(context.Background(), testOwnerID, rule)

	// Assert
	ve := apperrors.GetValidationError(err)
	s.Require().NotNil(ve)
	s.Contains(fieldNames(ve), "action_config.forward_to")
}

func (s *SettingsServiceTestSuite) TestRuleToggleAndDelete() {
	// Arrange
	rule, err := s.rules.Create(context.Background(), testOwnerID,
		testutil.NewRule(0, "VIP", 1, models.ActionAutoRespond, models.FieldFromEmail, models.OpEndsWith, "@vip.com"))
	s.Require().NoError(err)

	// Act
	toggled, err := s.rules.Toggle(context.Background(), testOwnerID, rule.ID, false)

	// Assert
	s.Require().NoError(err)
	s.False(toggled.IsActive)
	s.Require().NoError(s.rules.Delete(context.Background(), testOwnerID, rule.ID))
	_, err = s.rules.Get(context.Background(), testOwnerID, rule.ID)
	s.ErrorIs(err, apperrors.ErrRuleNotFound)
	s.ErrorIs(s.rules.Delete(context.Background(), testOwnerID, rule.ID), apperrors.ErrRuleNotFound)
}

func (s *SettingsServiceTestSuite) TestRuleTest_SampleFields() {
	// Arrange
	_, err := s.rules.Create(context.Background(), testOwnerID,
		testutil.NewRule(0, "Default", 10, models.ActionDraftOnly, models.FieldFromEmail, models.OpContains, "@"))
	s.Require().NoError(err)
	vip, err := s.rules.Create(context.Background(), testOwnerID,
		testutil.NewRule(0, "VIP", 1, models.ActionAutoRespond, models.FieldFromEmail, models.OpEndsWith, "@VIP.com"))
	s.Require().NoError(err)

	// Act
	result, err := s.rules.Test(context.Background(), testOwnerID, RuleTestInput{SenderEmail: "ceo@vip.com"})

	// Assert
	s.Require().NoError(err)
	s.Len(result.Matched, 2)
	s.Require().NotNil(result.Winner)
	s.Equal(vip.ID, result.Winner.ID)
}

func (s *SettingsServiceTestSuite) TestRuleTest_NoInput() {
	// Act
	_, err := s.rules.Test(context.Background(), testOwnerID, RuleTestInput{})

	// Assert
	s.True(apperrors.IsValidation(err))
}
