package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gemchat/internal/model"
)

// FirestoreRepository stores conversations in Cloud Firestore and turns its
// snapshot listeners into repository listeners.
//
// Layout: scopes/{scope}/conversations/{conversationID}/messages/{messageID}
type FirestoreRepository struct {
	client    *firestore.Client
	listeners remoteListeners
}

// NewFirestoreClient connects to the given project. FIRESTORE_EMULATOR_HOST is
// honoured by the client library.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return client, nil
}

func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client}
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (r *FirestoreRepository) conversationsCol(scope string) *firestore.CollectionRef {
	return r.client.Collection("scopes").Doc(scope).Collection("conversations")
}

func (r *FirestoreRepository) messagesCol(scope, conversationID string) *firestore.CollectionRef {
	return r.conversationsCol(scope).Doc(conversationID).Collection("messages")
}

// Listeners read documents in written_at (server commit) order and then sort
// stably by created_at, so equal client stamps keep their write order even
// across processes.
type conversationDoc struct {
	CreatedAt int64     `firestore:"created_at"`
	WrittenAt time.Time `firestore:"written_at,serverTimestamp"`
}

type messageDoc struct {
	Content   string    `firestore:"content"`
	Origin    string    `firestore:"origin"`
	CreatedAt int64     `firestore:"created_at"`
	WrittenAt time.Time `firestore:"written_at,serverTimestamp"` // set by the server on commit
}

// ─────────────────────────────────────────
// Repository implementation
// ─────────────────────────────────────────

func (r *FirestoreRepository) WriteMessage(ctx context.Context, scope, conversationID string, msg *model.Message) error {
	_, err := r.conversationsCol(scope).Doc(conversationID).Create(ctx, conversationDoc{CreatedAt: msg.CreatedAt})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("firestore create conversation: %w", err)
	}

	doc := messageDoc{
		Content:   msg.Content,
		Origin:    string(msg.Origin),
		CreatedAt: msg.CreatedAt,
	}
	if _, err := r.messagesCol(scope, conversationID).Doc(msg.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore write message: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) ListenConversations(scope string, fn ConversationsListener) Subscription {
	q := r.conversationsCol(scope).OrderBy("written_at", firestore.Asc)
	return r.listen(q, func(snap *firestore.QuerySnapshot) error {
		docs, err := snap.Documents.GetAll()
		if err != nil {
			return fmt.Errorf("firestore read conversations: %w", err)
		}
		type entry struct {
			id        string
			createdAt int64
		}
		entries := make([]entry, 0, len(docs))
		for _, d := range docs {
			var doc conversationDoc
			if err := d.DataTo(&doc); err != nil {
				return fmt.Errorf("decode conversationDoc: %w", err)
			}
			entries = append(entries, entry{id: d.Ref.ID, createdAt: doc.CreatedAt})
		}
		slices.SortStableFunc(entries, func(a, b entry) int { return cmp.Compare(a.createdAt, b.createdAt) })

		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.id)
		}
		fn(ids, nil)
		return nil
	}, func(err error) { fn(nil, err) })
}

func (r *FirestoreRepository) ListenMessages(scope, conversationID string, fn MessagesListener) Subscription {
	q := r.messagesCol(scope, conversationID).OrderBy("written_at", firestore.Asc)
	return r.listen(q, func(snap *firestore.QuerySnapshot) error {
		docs, err := snap.Documents.GetAll()
		if err != nil {
			return fmt.Errorf("firestore read messages: %w", err)
		}
		msgs := make([]model.Message, 0, len(docs))
		for _, d := range docs {
			var doc messageDoc
			if err := d.DataTo(&doc); err != nil {
				return fmt.Errorf("decode messageDoc: %w", err)
			}
			msgs = append(msgs, model.Message{
				ID:        d.Ref.ID,
				Content:   doc.Content,
				Origin:    model.Origin(doc.Origin),
				CreatedAt: doc.CreatedAt,
			})
		}
		fn(model.SortMessages(msgs), nil)
		return nil
	}, func(err error) { fn(nil, err) })
}

func (r *FirestoreRepository) listen(q firestore.Query, onSnapshot func(*firestore.QuerySnapshot) error, fail func(error)) Subscription {
	ctx, sub, ok := r.listeners.add()
	if !ok {
		go fail(ErrClosed)
		return sub
	}

	go func() {
		it := q.Snapshots(ctx)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				fail(fmt.Errorf("firestore listen: %w", err))
				return
			}
			if err := onSnapshot(snap); err != nil {
				if ctx.Err() == nil {
					fail(err)
				}
				return
			}
		}
	}()
	return sub
}

// ActiveListeners reports how many subscriptions are still registered.
func (r *FirestoreRepository) ActiveListeners() int {
	return r.listeners.count()
}

// Close cancels every listener. The Firestore client is owned by the caller.
func (r *FirestoreRepository) Close() error {
	r.listeners.closeAll()
	return nil
}
