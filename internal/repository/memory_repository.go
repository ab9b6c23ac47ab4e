package repository

import (
	"context"
	"slices"
	"sync"

	"gemchat/internal/model"
)

// MemoryRepository keeps everything in process memory. It is used for local
// development and as the store behind the service tests.
type MemoryRepository struct {
	mu            sync.RWMutex
	conversations map[string][]string        // scope -> conversation ids in first-write order
	messages      map[string][]model.Message // messagesKey -> messages in write order
	broker        *broker
	closed        bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		conversations: make(map[string][]string),
		messages:      make(map[string][]model.Message),
		broker:        newBroker(),
	}
}

func (r *MemoryRepository) ListenConversations(scope string, fn ConversationsListener) Subscription {
	return r.broker.subscribe(conversationsKey(scope), func() {
		r.mu.RLock()
		ids := slices.Clone(r.conversations[scope])
		r.mu.RUnlock()
		if ids == nil {
			ids = []string{}
		}
		fn(ids, nil)
	}, func(err error) { fn(nil, err) })
}

func (r *MemoryRepository) ListenMessages(scope, conversationID string, fn MessagesListener) Subscription {
	key := messagesKey(scope, conversationID)
	return r.broker.subscribe(key, func() {
		r.mu.RLock()
		msgs := slices.Clone(r.messages[key])
		r.mu.RUnlock()
		if msgs == nil {
			msgs = []model.Message{}
		}
		fn(msgs, nil)
	}, func(err error) { fn(nil, err) })
}

func (r *MemoryRepository) WriteMessage(ctx context.Context, scope, conversationID string, msg *model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := messagesKey(scope, conversationID)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if len(r.messages[key]) == 0 {
		r.conversations[scope] = append(r.conversations[scope], conversationID)
	}
	r.messages[key] = append(r.messages[key], *msg)
	r.mu.Unlock()

	r.broker.notify(key, conversationsKey(scope))
	return nil
}

// ActiveListeners reports how many subscriptions are still registered.
func (r *MemoryRepository) ActiveListeners() int {
	return r.broker.count()
}

func (r *MemoryRepository) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.broker.close()
	return nil
}
