package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/welldanyogia/mailpilot-backend/internal/llm"
)

// MockResponderModel implements llm.ResponderModel
type MockResponderModel struct {
	mock.Mock
}

// Classify decides whether a message needs a reply
func (m *MockResponderModel) Classify(ctx context.Context, req llm.ClassifyRequest) (llm.Classification, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(llm.Classification), args.Error(1)
}

// Generate writes a reply
func (m *MockResponderModel) Generate(ctx context.Context, req llm.GenerateRequest) (llm.Completion, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(llm.Completion), args.Error(1)
}
