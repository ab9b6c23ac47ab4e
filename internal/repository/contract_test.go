package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemchat/internal/model"
)

const waitFor = 3 * time.Second

// recorder keeps the latest delivery of a listener.
type recorder[T any] struct {
	mu    sync.Mutex
	calls int
	last  T
	err   error
}

func (r *recorder[T]) record(v T, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = v
	r.err = err
}

func (r *recorder[T]) snapshot() (T, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.calls, r.err
}

func (r *recorder[T]) waitCalls(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, calls, _ := r.snapshot()
		return calls >= n
	}, waitFor, 5*time.Millisecond)
}

func messageIDs(msgs []model.Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

func newTestMessage(content string, origin model.Origin, createdAt int64) *model.Message {
	msg := model.NewMessage(content, origin, createdAt)
	return &msg
}

// testRepositoryContract runs the behaviour every Repository backend shares.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("Success - first delivery is empty", func(t *testing.T) {
		repo := newRepo(t)
		scope := uuid.NewString()

		convs := &recorder[[]string]{}
		msgs := &recorder[[]model.Message]{}
		subA := repo.ListenConversations(scope, convs.record)
		defer subA.Cancel()
		subB := repo.ListenMessages(scope, "missing", msgs.record)
		defer subB.Cancel()

		convs.waitCalls(t, 1)
		msgs.waitCalls(t, 1)

		ids, _, err := convs.snapshot()
		assert.NoError(t, err)
		assert.NotNil(t, ids)
		assert.Empty(t, ids)

		got, _, err := msgs.snapshot()
		assert.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("Success - write is delivered to both listeners", func(t *testing.T) {
		// ARRANGE
		repo := newRepo(t)
		scope := uuid.NewString()
		convs := &recorder[[]string]{}
		msgs := &recorder[[]model.Message]{}
		subA := repo.ListenConversations(scope, convs.record)
		defer subA.Cancel()
		subB := repo.ListenMessages(scope, "c1", msgs.record)
		defer subB.Cancel()
		convs.waitCalls(t, 1)
		msgs.waitCalls(t, 1)

		// ACT
		msg := newTestMessage("Merhaba", model.OriginUser, 100)
		require.NoError(t, repo.WriteMessage(ctx, scope, "c1", msg))

		// ASSERT
		require.Eventually(t, func() bool {
			got, _, _ := msgs.snapshot()
			return len(got) == 1
		}, waitFor, 5*time.Millisecond)
		got, _, _ := msgs.snapshot()
		assert.Equal(t, *msg, got[0])

		require.Eventually(t, func() bool {
			ids, _, _ := convs.snapshot()
			return assert.ObjectsAreEqual([]string{"c1"}, ids)
		}, waitFor, 5*time.Millisecond)
	})

	t.Run("Success - conversations keep first-write order", func(t *testing.T) {
		repo := newRepo(t)
		scope := uuid.NewString()

		require.NoError(t, repo.WriteMessage(ctx, scope, "first", newTestMessage("a", model.OriginUser, 100)))
		require.NoError(t, repo.WriteMessage(ctx, scope, "second", newTestMessage("b", model.OriginUser, 200)))
		require.NoError(t, repo.WriteMessage(ctx, scope, "first", newTestMessage("c", model.OriginAssistant, 300)))

		convs := &recorder[[]string]{}
		sub := repo.ListenConversations(scope, convs.record)
		defer sub.Cancel()

		require.Eventually(t, func() bool {
			ids, _, _ := convs.snapshot()
			return assert.ObjectsAreEqual([]string{"first", "second"}, ids)
		}, waitFor, 5*time.Millisecond)
	})

	t.Run("Success - messages keep write order", func(t *testing.T) {
		repo := newRepo(t)
		scope := uuid.NewString()

		user := newTestMessage("soru", model.OriginUser, 100)
		reply := newTestMessage("cevap", model.OriginAssistant, 101)
		require.NoError(t, repo.WriteMessage(ctx, scope, "c1", user))
		require.NoError(t, repo.WriteMessage(ctx, scope, "c1", reply))

		msgs := &recorder[[]model.Message]{}
		sub := repo.ListenMessages(scope, "c1", msgs.record)
		defer sub.Cancel()

		require.Eventually(t, func() bool {
			got, _, _ := msgs.snapshot()
			return assert.ObjectsAreEqual([]string{user.ID, reply.ID}, messageIDs(got))
		}, waitFor, 5*time.Millisecond)
	})

	t.Run("Success - equal timestamps keep write order", func(t *testing.T) {
		repo := newRepo(t)
		scope := uuid.NewString()

		var want []string
		for _, content := range []string{"bir", "iki", "üç", "dört"} {
			msg := newTestMessage(content, model.OriginUser, 500)
			require.NoError(t, repo.WriteMessage(ctx, scope, "c1", msg))
			want = append(want, msg.ID)
		}

		msgs := &recorder[[]model.Message]{}
		sub := repo.ListenMessages(scope, "c1", msgs.record)
		defer sub.Cancel()

		require.Eventually(t, func() bool {
			got, _, _ := msgs.snapshot()
			return assert.ObjectsAreEqual(want, messageIDs(got))
		}, waitFor, 5*time.Millisecond)
	})

	t.Run("Success - scopes are isolated", func(t *testing.T) {
		repo := newRepo(t)
		scopeA := uuid.NewString()
		scopeB := uuid.NewString()

		require.NoError(t, repo.WriteMessage(ctx, scopeA, "only-a", newTestMessage("a", model.OriginUser, 100)))
		require.NoError(t, repo.WriteMessage(ctx, scopeB, "only-b", newTestMessage("b", model.OriginUser, 200)))

		convs := &recorder[[]string]{}
		sub := repo.ListenConversations(scopeB, convs.record)
		defer sub.Cancel()

		require.Eventually(t, func() bool {
			ids, _, _ := convs.snapshot()
			return assert.ObjectsAreEqual([]string{"only-b"}, ids)
		}, waitFor, 5*time.Millisecond)

		msgs := &recorder[[]model.Message]{}
		subMsgs := repo.ListenMessages(scopeB, "only-a", msgs.record)
		defer subMsgs.Cancel()
		msgs.waitCalls(t, 1)
		got, _, _ := msgs.snapshot()
		assert.Empty(t, got)
	})

	t.Run("Success - cancelled listener receives nothing more", func(t *testing.T) {
		repo := newRepo(t)
		scope := uuid.NewString()

		msgs := &recorder[[]model.Message]{}
		sub := repo.ListenMessages(scope, "c1", msgs.record)
		msgs.waitCalls(t, 1)

		sub.Cancel()
		sub.Cancel()
		require.NoError(t, repo.WriteMessage(ctx, scope, "c1", newTestMessage("late", model.OriginUser, 100)))

		time.Sleep(100 * time.Millisecond)
		_, calls, _ := msgs.snapshot()
		assert.Equal(t, 1, calls)
	})

	t.Run("Failure - listener registered after Close receives ErrClosed", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Close())

		convs := &recorder[[]string]{}
		msgs := &recorder[[]model.Message]{}
		repo.ListenConversations(uuid.NewString(), convs.record)
		repo.ListenMessages(uuid.NewString(), "c1", msgs.record)

		convs.waitCalls(t, 1)
		msgs.waitCalls(t, 1)
		ids, _, err := convs.snapshot()
		assert.ErrorIs(t, err, ErrClosed)
		assert.Nil(t, ids)
		got, _, err := msgs.snapshot()
		assert.ErrorIs(t, err, ErrClosed)
		assert.Nil(t, got)
	})
}
