package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/docstore/internal/core/cache"
	rediscache "github.com/unifiedui/docstore/internal/infrastructure/cache/redis"
)

func setupMiniredis(t *testing.T, prefix string) (*miniredis.Miniredis, cache.Cache) {
	t.Helper()

	mr := miniredis.RunT(t)

	c, err := rediscache.NewCache(context.Background(), rediscache.Config{
		Host:      mr.Host(),
		Port:      mr.Port(),
		KeyPrefix: prefix,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return mr, c
}

func TestNewCache_RequiresHost(t *testing.T) {
	_, err := rediscache.NewCache(context.Background(), rediscache.Config{})

	assert.Error(t, err)
}

func TestNewCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	_, err := rediscache.NewCache(context.Background(), rediscache.Config{Host: host, Port: port})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestCache_SetGetDelete(t *testing.T) {
	_, c := setupMiniredis(t, "")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	deleted, err := c.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err = c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_SetNX(t *testing.T) {
	mr, c := setupMiniredis(t, "p:")
	ctx := context.Background()

	stored, err := c.SetNX(ctx, "k", []byte("first"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = c.SetNX(ctx, "k", []byte("second"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
	assert.Equal(t, time.Minute, mr.TTL("p:k"))
}

func TestCache_KeyPrefix(t *testing.T) {
	mr, c := setupMiniredis(t, "docstore:")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "doc:1", []byte("v"), 0))

	assert.True(t, mr.Exists("docstore:doc:1"))
	assert.False(t, mr.Exists("doc:1"))
}

func TestCache_DefaultTTL(t *testing.T) {
	mr, c := setupMiniredis(t, "")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	assert.Equal(t, rediscache.DefaultTTL, mr.TTL("k"))

	mr.FastForward(rediscache.DefaultTTL + time.Second)
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_DeletePattern(t *testing.T) {
	mr, c := setupMiniredis(t, "p:")
	ctx := context.Background()

	for _, k := range []string{"doc:test.users:1", "doc:test.users:2", "doc:test.orders:1"} {
		require.NoError(t, c.Set(ctx, k, []byte("v"), time.Minute))
	}
	require.NoError(t, mr.Set("other", "v"))

	deleted, err := c.DeletePattern(ctx, "doc:test.users:*")

	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.True(t, mr.Exists("p:doc:test.orders:1"))
	assert.True(t, mr.Exists("other"))
}

func TestCache_Ping(t *testing.T) {
	mr, c := setupMiniredis(t, "")
	ctx := context.Background()

	assert.NoError(t, c.Ping(ctx))

	mr.SetError("server down")
	assert.Error(t, c.Ping(ctx))
}
