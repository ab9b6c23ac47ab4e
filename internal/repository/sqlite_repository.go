package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"gemchat/internal/model"
)

// SQLiteRepository persists conversations in a local SQLite database. SQLite has
// no change feed, so writes made through this repository notify the listeners
// registered on it.
type SQLiteRepository struct {
	db     *sql.DB
	broker *broker
	closed atomic.Bool
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, broker: newBroker()}
}

func (r *SQLiteRepository) ListenConversations(scope string, fn ConversationsListener) Subscription {
	var failed atomic.Bool
	return r.broker.subscribe(conversationsKey(scope), func() {
		if failed.Load() {
			return
		}
		ids, err := r.conversationIDs(context.Background(), scope)
		if err != nil {
			failed.Store(true)
			fn(nil, err)
			return
		}
		fn(ids, nil)
	}, func(err error) { fn(nil, err) })
}

func (r *SQLiteRepository) ListenMessages(scope, conversationID string, fn MessagesListener) Subscription {
	var failed atomic.Bool
	return r.broker.subscribe(messagesKey(scope, conversationID), func() {
		if failed.Load() {
			return
		}
		msgs, err := r.messages(context.Background(), scope, conversationID)
		if err != nil {
			failed.Store(true)
			fn(nil, err)
			return
		}
		fn(msgs, nil)
	}, func(err error) { fn(nil, err) })
}

// WriteMessage inserts the message and, on the first write, the conversation
// row, inside one transaction.
func (r *SQLiteRepository) WriteMessage(ctx context.Context, scope, conversationID string, msg *model.Message) error {
	if r.closed.Load() {
		return ErrClosed
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	// Ensure transaction is rolled back on error
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO conversations (scope, id, created_at) VALUES (?, ?, ?)",
		scope, conversationID, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("could not insert conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages (id, scope, conversation_id, origin, content, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, scope, conversationID, string(msg.Origin), msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("could not insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit message: %w", err)
	}

	r.broker.notify(messagesKey(scope, conversationID), conversationsKey(scope))
	return nil
}

func (r *SQLiteRepository) conversationIDs(ctx context.Context, scope string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM conversations WHERE scope = ? ORDER BY created_at ASC, rowid ASC", scope)
	if err != nil {
		return nil, fmt.Errorf("could not query conversations: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) messages(ctx context.Context, scope, conversationID string) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, origin, content, created_at
		FROM messages
		WHERE scope = ? AND conversation_id = ?
		ORDER BY created_at ASC, seq ASC
	`, scope, conversationID)
	if err != nil {
		return nil, fmt.Errorf("could not query messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var msg model.Message
		var origin string
		if err := rows.Scan(&msg.ID, &origin, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Origin = model.Origin(origin)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// ActiveListeners reports how many subscriptions are still registered.
func (r *SQLiteRepository) ActiveListeners() int {
	return r.broker.count()
}

// Close stops all listeners. The database handle is owned by the caller.
func (r *SQLiteRepository) Close() error {
	r.closed.Store(true)
	r.broker.close()
	return nil
}
