package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemchat/internal/model"
)

func newRedisRepository(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := NewRedisRepository(rdb)
	t.Cleanup(func() {
		_ = repo.Close()
		_ = rdb.Close()
	})
	return repo, mr
}

func TestRedisRepository(t *testing.T) {
	testRepositoryContract(t, func(t *testing.T) Repository {
		repo, _ := newRedisRepository(t)
		return repo
	})
}

func TestRedisRepository_WriteMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - stores hash, list and zset", func(t *testing.T) {
		repo, mr := newRedisRepository(t)
		msg := newTestMessage("Merhaba", model.OriginUser, 1700000000000)

		require.NoError(t, repo.WriteMessage(ctx, "u1", "c1", msg))

		assert.Equal(t, "Merhaba", mr.HGet("message:"+msg.ID, "content"))
		assert.Equal(t, "user", mr.HGet("message:"+msg.ID, "origin"))
		assert.Equal(t, "1700000000000", mr.HGet("message:"+msg.ID, "created_at"))

		list, err := mr.List("scope:u1:conversation:c1:messages")
		require.NoError(t, err)
		assert.Equal(t, []string{msg.ID}, list)

		members, err := mr.ZMembers("scope:u1:conversations")
		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, members)
	})

	t.Run("Failure - server unavailable", func(t *testing.T) {
		repo, mr := newRedisRepository(t)
		mr.Close()

		err := repo.WriteMessage(ctx, "u1", "c1", newTestMessage("x", model.OriginUser, 1))
		assert.ErrorContains(t, err, "could not store message")
	})
}

func TestRedisRepository_MalformedMessage(t *testing.T) {
	repo, mr := newRedisRepository(t)
	mr.HSet("message:m1", "id", "m1", "content", "x", "origin", "user", "created_at", "yesterday")
	_, err := mr.Push("scope:u1:conversation:c1:messages", "m1")
	require.NoError(t, err)

	msgs := &recorder[[]model.Message]{}
	sub := repo.ListenMessages("u1", "c1", msgs.record)
	defer sub.Cancel()

	msgs.waitCalls(t, 1)
	got, _, err := msgs.snapshot()
	assert.Nil(t, got)
	assert.ErrorContains(t, err, "malformed created_at")
}

func TestRedisRepository_Close(t *testing.T) {
	repo, _ := newRedisRepository(t)

	convs := &recorder[[]string]{}
	repo.ListenConversations("u1", convs.record)
	convs.waitCalls(t, 1)
	assert.Equal(t, 1, repo.ActiveListeners())

	require.NoError(t, repo.Close())
	assert.Equal(t, 0, repo.ActiveListeners())

	late := &recorder[[]string]{}
	repo.ListenConversations("u1", late.record)
	late.waitCalls(t, 1)
	_, _, err := late.snapshot()
	assert.ErrorIs(t, err, ErrClosed)
}
