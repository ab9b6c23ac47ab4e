package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gemchat/internal/model"
)

// MockSessionService is a testify mock for interfaces.SessionService.
type MockSessionService struct {
	mock.Mock
}

func NewMockSessionService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSessionService {
	m := &MockSessionService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionService) State() model.SessionState {
	args := m.Called()
	return args.Get(0).(model.SessionState)
}

func (m *MockSessionService) Watch(ctx context.Context) <-chan model.SessionState {
	args := m.Called(ctx)
	return args.Get(0).(<-chan model.SessionState)
}

func (m *MockSessionService) Login(ctx context.Context, email, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *MockSessionService) Register(ctx context.Context, email, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *MockSessionService) SendPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockSessionService) Logout(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockSessionService) Acknowledge() bool {
	args := m.Called()
	return args.Bool(0)
}
