package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/testutil"
	"gorm.io/gorm"
)

// RuleRepositoryTestSuite is the test suite for RuleRepository
type RuleRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo RuleRepository
}

// SetupSuite runs once before all tests
func (s *RuleRepositoryTestSuite) SetupSuite() {
	s.db = testutil.NewSQLiteDB(s.T())
	s.repo = NewRuleRepository(s.db)
}

// SetupTest runs before each test
func (s *RuleRepositoryTestSuite) SetupTest() {
	testutil.ResetTables(s.db)
}

// TestRuleRepositoryTestSuite runs the test suite
func TestRuleRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RuleRepositoryTestSuite))
}

func (s *RuleRepositoryTestSuite) TestCreate_RoundTripsConditionTree() {
	// Arrange
	rule := testutil.NewRule(1, "VIP", 1, models.ActionForward, models.FieldFromEmail, models.OpEndsWith, "@vip.com")
	rule.Conditions.Conditions = append(rule.Conditions.Conditions,
		models.Nested(models.LogicalOr,
			models.Leaf(models.FieldSubject, models.OpContains, "urgent"),
			models.Leaf(models.FieldBodyText, models.OpContains, "asap"),
		))
	rule.ActionConfig = models.RuleActionConfig{ForwardTo: []string{"assistant@example.com"}}

	// Act
	err := s.repo.Create(context.Background(), rule)

	// Assert
	require.NoError(s.T(), err)
	stored, err := s.repo.GetByID(context.Background(), 1, rule.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), stored.Conditions.Conditions, 2)
	assert.Equal(s.T(), "@vip.com", stored.Conditions.Conditions[0].Condition.Value)
	require.NotNil(s.T(), stored.Conditions.Conditions[1].Group)
	assert.Equal(s.T(), models.LogicalOr, stored.Conditions.Conditions[1].Group.Operator)
	assert.Equal(s.T(), []string{"assistant@example.com"}, stored.ActionConfig.ForwardTo)
}

func (s *RuleRepositoryTestSuite) TestCreate_InactiveAndZeroPriorityKept() {
	// Arrange
	rule := testutil.NewRule(1, "Paused", 0, models.ActionIgnore, models.FieldSubject, models.OpContains, "x")
	rule.IsActive = false

	// Act
	require.NoError(s.T(), s.repo.Create(context.Background(), rule))

	// Assert
	stored, err := s.repo.GetByID(context.Background(), 1, rule.ID)
	require.NoError(s.T(), err)
	assert.False(s.T(), stored.IsActive)
	assert.Equal(s.T(), 0, stored.Priority)
}

func (s *RuleRepositoryTestSuite) TestListByOwner_EvaluationOrder() {
	// Arrange
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Create(ctx, testutil.NewRule(1, "second", 5, models.ActionDraftOnly, models.FieldSubject, models.OpContains, "a")))
	require.NoError(s.T(), s.repo.Create(ctx, testutil.NewRule(1, "first", 1, models.ActionDraftOnly, models.FieldSubject, models.OpContains, "b")))
	require.NoError(s.T(), s.repo.Create(ctx, testutil.NewRule(1, "third", 5, models.ActionDraftOnly, models.FieldSubject, models.OpContains, "c")))
	require.NoError(s.T(), s.repo.Create(ctx, testutil.NewRule(2, "foreign", 0, models.ActionDraftOnly, models.FieldSubject, models.OpContains, "d")))

	// Act
	rules, err := s.repo.ListByOwner(ctx, 1)

	// Assert
	require.NoError(s.T(), err)
	require.Len(s.T(), rules, 3)
	assert.Equal(s.T(), "first", rules[0].Name)
	assert.Equal(s.T(), "second", rules[1].Name)
	assert.Equal(s.T(), "third", rules[2].Name)
}

func (s *RuleRepositoryTestSuite) TestUpdate() {
	// Arrange
	ctx := context.Background()
	rule := testutil.NewRule(1, "Before", 3, models.ActionDraftOnly, models.FieldSubject, models.OpContains, "a")
	require.NoError(s.T(), s.repo.Create(ctx, rule))

	// Act
	rule.Name = "After"
	rule.Priority = 0
	rule.IsActive = false
	rule.Action = models.ActionIgnore
	err := s.repo.Update(ctx, rule)

	// Assert
	require.NoError(s.T(), err)
	stored, _ := s.repo.GetByID(ctx, 1, rule.ID)
	assert.Equal(s.T(), "After", stored.Name)
	assert.Equal(s.T(), 0, stored.Priority)
	assert.False(s.T(), stored.IsActive)
	assert.Equal(s.T(), models.ActionIgnore, stored.Action)
}

func (s *RuleRepositoryTestSuite) TestUpdate_OtherOwnerNotFound() {
	// Arrange
	ctx := context.Background()
	rule := testutil.NewRule(1, "Mine", 3, models.ActionDraftOnly, models.FieldSubject, models.OpContains, "a")
	require.NoError(s.T(), s.repo.Create(ctx, rule))
	rule.OwnerID = 2

	// Act
	err := s.repo.Update(ctx, rule)

	// Assert
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *RuleRepositoryTestSuite) TestSetActiveAndDelete() {
	// Arrange
	ctx := context.Background()
	rule := testutil.NewRule(1, "Toggle", 3, models.ActionDraftOnly, models.FieldSubject, models.OpContains, "a")
	require.NoError(s.T(), s.repo.Create(ctx, rule))

	// Act & Assert
	require.NoError(s.T(), s.repo.SetActive(ctx, 1, rule.ID, false))
	stored, _ := s.repo.GetByID(ctx, 1, rule.ID)
	assert.False(s.T(), stored.IsActive)

	assert.ErrorIs(s.T(), s.repo.SetActive(ctx, 2, rule.ID, true), ErrNotFound)
	assert.ErrorIs(s.T(), s.repo.Delete(ctx, 2, rule.ID), ErrNotFound)
	require.NoError(s.T(), s.repo.Delete(ctx, 1, rule.ID))

	_, err := s.repo.GetByID(ctx, 1, rule.ID)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}
