package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisChatIndex(t *testing.T) {
	mr, client := setupTestRedis(t)
	idx := NewRedisChatIndex(client, time.Hour)
	ctx := context.Background()

	_, err := idx.Lookup(ctx, "chatcmpl-1")
	assert.True(t, errors.Is(err, ErrChatNotIndexed))

	require.NoError(t, idx.Put(ctx, "chatcmpl-1", "m-2"))

	got, err := idx.Lookup(ctx, "chatcmpl-1")
	require.NoError(t, err)
	assert.Equal(t, "m-2", got)

	mr.FastForward(2 * time.Hour)
	_, err = idx.Lookup(ctx, "chatcmpl-1")
	assert.True(t, errors.Is(err, ErrChatNotIndexed))
}

func TestRedisChatIndexUnavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	idx := NewRedisChatIndex(client, time.Hour)
	mr.Close()

	_, err := idx.Lookup(context.Background(), "chatcmpl-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrChatNotIndexed))
}

func TestNoopChatIndex(t *testing.T) {
	var idx ChatIndex = NoopChatIndex{}
	require.NoError(t, idx.Put(context.Background(), "a", "b"))

	_, err := idx.Lookup(context.Background(), "a")
	assert.True(t, errors.Is(err, ErrChatNotIndexed))
}

func TestRedisClientHealth(t *testing.T) {
	mr, client := setupTestRedis(t)
	rc := NewRedisClientFrom(client)

	require.NoError(t, rc.Health(context.Background()))

	mr.Close()
	assert.Error(t, rc.Health(context.Background()))
}
