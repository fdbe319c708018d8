package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	server := miniredis.RunT(t)
	rc, err := NewRedisCache(context.Background(), "redis://"+server.Addr(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return server, rc
}

func TestRedisCache_GetSet(t *testing.T) {
	ctx := context.Background()
	server, rc := newTestRedis(t, time.Hour)

	vector, ok, err := rc.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, vector)

	require.NoError(t, rc.Set(ctx, "k", []float32{0.5, -1, 2}))
	vector, ok, err = rc.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{0.5, -1, 2}, vector)

	assert.True(t, server.Exists(defaultKeyPrefix+"k"))
	assert.Equal(t, time.Hour, server.TTL(defaultKeyPrefix+"k"))

	server.FastForward(2 * time.Hour)
	_, ok, err = rc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "expired entries are misses")
}

func TestRedisCache_NoTTL(t *testing.T) {
	server, rc := newTestRedis(t, 0)

	require.NoError(t, rc.Set(context.Background(), "k", []float32{1}))
	assert.Zero(t, server.TTL(defaultKeyPrefix+"k"))
}

func TestRedisCache_CorruptValue(t *testing.T) {
	server, rc := newTestRedis(t, 0)
	require.NoError(t, server.Set(defaultKeyPrefix+"bad", "abc"))

	_, ok, err := rc.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisCache_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewRedisCache(ctx, "not a url", 0)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err = NewRedisCache(ctx, "redis://"+addr, 0)
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestEmbedder_OverRedis(t *testing.T) {
	ctx := context.Background()
	server, rc := newTestRedis(t, time.Minute)

	inner := mock.NewMockEmbedder()
	cached, err := NewEmbedder(inner, rc, "test-model")
	require.NoError(t, err)

	first, err := cached.EmbedTexts(ctx, []string{"a", "b"})
	require.NoError(t, err)
	second, err := cached.EmbedTexts(ctx, []string{"b", "a"})
	require.NoError(t, err)

	assert.Equal(t, first[0], second[1])
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, 1, inner.CallCount())
	assert.Len(t, server.Keys(), 2)
}
