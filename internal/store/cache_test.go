package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/epion-news/epion/internal/sources"
)

func TestSourceCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewSourceCache(client, time.Minute, zap.NewNop())
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		_, ok := cache.Get(ctx, KindArticle, "a1")
		assert.False(t, ok)
	})

	t.Run("set and get", func(t *testing.T) {
		list := []sources.Source{{Position: 1, URL: "https://a.com", Domain: "a.com", Credibility: 0.6}}
		require.NoError(t, cache.Set(ctx, KindArticle, "a1", list))

		got, ok := cache.Get(ctx, KindArticle, "a1")
		require.True(t, ok)
		assert.Equal(t, list, got)
		assert.True(t, mr.Exists("epion:sources:article:a1"))
		assert.Equal(t, time.Minute, mr.TTL("epion:sources:article:a1"))
	})

	t.Run("expiry", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)
		_, ok := cache.Get(ctx, KindArticle, "a1")
		assert.False(t, ok)
	})

	t.Run("invalidate", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, KindArticle, "a2", []sources.Source{}))
		require.NoError(t, cache.Invalidate(ctx, KindArticle, "a2"))
		_, ok := cache.Get(ctx, KindArticle, "a2")
		assert.False(t, ok)
	})

	t.Run("corrupt entry is a miss", func(t *testing.T) {
		require.NoError(t, mr.Set("epion:sources:article:bad", "{not json"))
		_, ok := cache.Get(ctx, KindArticle, "bad")
		assert.False(t, ok)
	})
}

func TestSourceCacheUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	cache := NewSourceCache(client, 0, zap.NewNop())
	_, ok := cache.Get(context.Background(), KindArticle, "a1")
	assert.False(t, ok)
	assert.Error(t, cache.Set(context.Background(), KindArticle, "a1", nil))
}

func TestNilSourceCache(t *testing.T) {
	var cache *SourceCache
	_, ok := cache.Get(context.Background(), KindArticle, "a1")
	assert.False(t, ok)
	assert.NoError(t, cache.Set(context.Background(), KindArticle, "a1", nil))
	assert.NoError(t, cache.Invalidate(context.Background(), KindArticle, "a1"))
}
