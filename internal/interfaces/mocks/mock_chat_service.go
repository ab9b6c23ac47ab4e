package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gemchat/internal/model"
)

// MockChatService is a testify mock for interfaces.ChatService.
type MockChatService struct {
	mock.Mock
}

func NewMockChatService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockChatService {
	m := &MockChatService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockChatService) State() model.ChatUiState {
	args := m.Called()
	return args.Get(0).(model.ChatUiState)
}

func (m *MockChatService) Watch(ctx context.Context) <-chan model.ChatUiState {
	args := m.Called(ctx)
	return args.Get(0).(<-chan model.ChatUiState)
}

func (m *MockChatService) StartNewConversation() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockChatService) SwitchToConversation(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockChatService) SendMessage(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}
