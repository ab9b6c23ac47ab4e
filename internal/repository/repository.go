package repository

import (
	"context"

	"gemchat/internal/model"
)

// Subscription is a live listener registered on a Repository. Cancel stops
// further deliveries and releases the listener; it is safe to call more than once.
type Subscription interface {
	Cancel()
}

// ConversationsListener receives the full, ordered set of conversation ids of a
// scope every time it changes. On failure ids is nil and err is set; no further
// calls follow an error.
type ConversationsListener func(ids []string, err error)

// MessagesListener receives every message of one conversation each time the
// collection changes. On failure msgs is nil and err is set; no further calls
// follow an error.
type MessagesListener func(msgs []model.Message, err error)

// Repository is the remote message store. Data is partitioned by scope, which is
// derived from the signed-in identity. Listeners fire once with the current
// content right after registration and again after every change, from a
// goroutine owned by the repository.
type Repository interface {
	ListenConversations(scope string, fn ConversationsListener) Subscription
	ListenMessages(scope, conversationID string, fn MessagesListener) Subscription

	// WriteMessage appends msg to the conversation, creating the conversation
	// entry on its first message.
	WriteMessage(ctx context.Context, scope, conversationID string, msg *model.Message) error

	Close() error
}
