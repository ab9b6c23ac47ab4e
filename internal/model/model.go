package model

import (
	"slices"

	"github.com/google/uuid"
)

// Origin tells who authored a message.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// Message is a single, immutable turn in a conversation.
type Message struct {
	ID        string `json:"id" firestore:"id"`
	Content   string `json:"content" firestore:"content"`
	Origin    Origin `json:"origin" firestore:"origin"`
	CreatedAt int64  `json:"created_at" firestore:"created_at"` // Milliseconds since epoch, used for ordering only.
}

// NewMessage creates a message with a fresh client-side id.
func NewMessage(content string, origin Origin, createdAt int64) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Origin:    origin,
		CreatedAt: createdAt,
	}
}

// SortMessages returns a copy of msgs ordered by CreatedAt. Messages with the
// same timestamp keep their relative order.
func SortMessages(msgs []Message) []Message {
	sorted := slices.Clone(msgs)
	if sorted == nil {
		sorted = []Message{}
	}
	slices.SortStableFunc(sorted, func(a, b Message) int {
		switch {
		case a.CreatedAt < b.CreatedAt:
			return -1
		case a.CreatedAt > b.CreatedAt:
			return 1
		default:
			return 0
		}
	})
	return sorted
}

// Identity is an authenticated user as reported by the auth provider.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Token string `json:"-"` // Opaque credential, never sent to clients.
}

// SessionStatus is the coarse state of the authentication lifecycle.
type SessionStatus string

const (
	SessionSignedOut         SessionStatus = "signed_out"
	SessionPending           SessionStatus = "pending"
	SessionSignedIn          SessionStatus = "signed_in"
	SessionFailed            SessionStatus = "failed"
	SessionRegistered        SessionStatus = "registered"
	SessionPasswordResetSent SessionStatus = "password_reset_sent"
)

// SessionState is the value published by the session store.
type SessionState struct {
	Status       SessionStatus `json:"status"`
	Identity     *Identity     `json:"identity,omitempty"`
	DisplayLabel string        `json:"display_label,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	ResetTarget  string        `json:"reset_target,omitempty"`
}

// ChatUiState is the snapshot published by the chat controller.
type ChatUiState struct {
	Messages             []Message `json:"messages"`
	ConversationIDs      []string  `json:"conversation_ids"`
	Loading              bool      `json:"loading"`
	Error                string    `json:"error,omitempty"`
	ActiveConversationID string    `json:"active_conversation_id"`
}

// EmptyChatUiState is the reset form of ChatUiState.
func EmptyChatUiState() ChatUiState {
	return ChatUiState{
		Messages:        []Message{},
		ConversationIDs: []string{},
	}
}
