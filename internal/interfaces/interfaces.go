package interfaces

import (
	"context"

	"gemchat/internal/model"
	"gemchat/internal/service"
)

// This file defines the interfaces the API layer depends on, so handlers can be
// tested against mocks instead of the real stores.

// SessionService is the authentication state machine.
type SessionService interface {
	State() model.SessionState
	Watch(ctx context.Context) <-chan model.SessionState
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, email, password string) error
	SendPasswordReset(ctx context.Context, email string) error
	Logout(ctx context.Context)
	Acknowledge() bool
}

// ChatService is the conversation state machine.
type ChatService interface {
	State() model.ChatUiState
	Watch(ctx context.Context) <-chan model.ChatUiState
	StartNewConversation() string
	SwitchToConversation(id string) error
	SendMessage(ctx context.Context, text string) error
}

var (
	_ SessionService = (*service.SessionStore)(nil)
	_ ChatService    = (*service.ChatController)(nil)
)
