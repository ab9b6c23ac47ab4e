package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gemchat/internal/model"
	"gemchat/internal/repository"
)

// MockRepository is a testify mock for repository.Repository.
type MockRepository struct {
	mock.Mock
}

func NewMockRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRepository {
	m := &MockRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRepository) ListenConversations(scope string, fn repository.ConversationsListener) repository.Subscription {
	args := m.Called(scope, fn)
	return args.Get(0).(repository.Subscription)
}

func (m *MockRepository) ListenMessages(scope, conversationID string, fn repository.MessagesListener) repository.Subscription {
	args := m.Called(scope, conversationID, fn)
	return args.Get(0).(repository.Subscription)
}

func (m *MockRepository) WriteMessage(ctx context.Context, scope, conversationID string, msg *model.Message) error {
	args := m.Called(ctx, scope, conversationID, msg)
	return args.Error(0)
}

func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSubscription is a testify mock for repository.Subscription.
type MockSubscription struct {
	mock.Mock
}

func NewMockSubscription(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSubscription {
	m := &MockSubscription{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSubscription) Cancel() {
	m.Called()
}
