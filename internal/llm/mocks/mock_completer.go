package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCompleter is a testify mock for llm.Completer.
type MockCompleter struct {
	mock.Mock
}

func NewMockCompleter(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCompleter {
	m := &MockCompleter{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}
