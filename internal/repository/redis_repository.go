package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"gemchat/internal/model"
)

// RedisRepository keeps conversations in Redis and uses pub/sub to tell every
// connected client about new messages, so listeners on other processes see
// writes too.
//
// Layout per scope:
//
//	scope:{scope}:conversations                      ZSET conversation ids scored by first write
//	scope:{scope}:conversation:{id}:messages         LIST message ids in write order
//	message:{id}                                     HASH message fields
//	scope:{scope}:events                             pub/sub channel, payload is the conversation id
type RedisRepository struct {
	rdb       *redis.Client
	listeners remoteListeners
}

func NewRedisRepository(rdb *redis.Client) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

// Key Generation Helpers
func (r *RedisRepository) conversationsKey(scope string) string {
	return fmt.Sprintf("scope:%s:conversations", scope)
}
func (r *RedisRepository) messagesKey(scope, conversationID string) string {
	return fmt.Sprintf("scope:%s:conversation:%s:messages", scope, conversationID)
}
func (r *RedisRepository) messageKey(messageID string) string { return fmt.Sprintf("message:%s", messageID) }
func (r *RedisRepository) eventsChannel(scope string) string  { return fmt.Sprintf("scope:%s:events", scope) }

func (r *RedisRepository) WriteMessage(ctx context.Context, scope, conversationID string, msg *model.Message) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.messageKey(msg.ID),
			"id", msg.ID,
			"content", msg.Content,
			"origin", string(msg.Origin),
			"created_at", msg.CreatedAt,
		)
		pipe.RPush(ctx, r.messagesKey(scope, conversationID), msg.ID)
		pipe.ZAddNX(ctx, r.conversationsKey(scope), redis.Z{Score: float64(msg.CreatedAt), Member: conversationID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not store message: %w", err)
	}

	if err := r.rdb.Publish(ctx, r.eventsChannel(scope), conversationID).Err(); err != nil {
		return fmt.Errorf("could not publish message event: %w", err)
	}
	return nil
}

func (r *RedisRepository) ListenConversations(scope string, fn ConversationsListener) Subscription {
	return r.listen(scope, func(string) bool { return true }, func(ctx context.Context) error {
		ids, err := r.rdb.ZRange(ctx, r.conversationsKey(scope), 0, -1).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("could not list conversations: %w", err)
		}
		if ids == nil {
			ids = []string{}
		}
		fn(ids, nil)
		return nil
	}, func(err error) { fn(nil, err) })
}

func (r *RedisRepository) ListenMessages(scope, conversationID string, fn MessagesListener) Subscription {
	matches := func(payload string) bool { return payload == conversationID }
	return r.listen(scope, matches, func(ctx context.Context) error {
		msgs, err := r.getMessages(ctx, scope, conversationID)
		if err != nil {
			return err
		}
		fn(msgs, nil)
		return nil
	}, func(err error) { fn(nil, err) })
}

func (r *RedisRepository) getMessages(ctx context.Context, scope, conversationID string) ([]model.Message, error) {
	ids, err := r.rdb.LRange(ctx, r.messagesKey(scope, conversationID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("could not list message ids: %w", err)
	}
	if len(ids) == 0 {
		return []model.Message{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.messageKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not load messages: %w", err)
	}

	msgs := make([]model.Message, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("message %s has a malformed created_at: %w", fields["id"], err)
		}
		msgs = append(msgs, model.Message{
			ID:        fields["id"],
			Content:   fields["content"],
			Origin:    model.Origin(fields["origin"]),
			CreatedAt: createdAt,
		})
	}
	return msgs, nil
}

// listen subscribes to the scope's event channel, then loads once and reloads on
// every event accepted by matches. The channel subscription is confirmed before
// the first load so no write can slip between the two.
func (r *RedisRepository) listen(scope string, matches func(string) bool, load func(context.Context) error, fail func(error)) Subscription {
	ctx, sub, ok := r.listeners.add()
	if !ok {
		go fail(ErrClosed)
		return sub
	}

	go func() {
		ps := r.rdb.Subscribe(ctx, r.eventsChannel(scope))
		defer func() { _ = ps.Close() }()

		report := func(err error) {
			if ctx.Err() == nil {
				fail(err)
			}
		}

		if _, err := ps.Receive(ctx); err != nil {
			report(fmt.Errorf("could not subscribe to events: %w", err))
			return
		}
		if err := load(ctx); err != nil {
			report(err)
			return
		}

		events := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-events:
				if !ok {
					return
				}
				if !matches(msg.Payload) || ctx.Err() != nil {
					continue
				}
				if err := load(ctx); err != nil {
					report(err)
					return
				}
			}
		}
	}()
	return sub
}

// ActiveListeners reports how many subscriptions are still registered.
func (r *RedisRepository) ActiveListeners() int {
	return r.listeners.count()
}

// Close cancels every listener. The Redis client is owned by the caller.
func (r *RedisRepository) Close() error {
	r.listeners.closeAll()
	return nil
}
