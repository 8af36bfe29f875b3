package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/switchboard/internal/auth/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewCache(client, zap.NewNop())
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	s := &domain.Session{ID: 10, UserID: 20, SessionTokenHash: "abc", ExpiresAt: now.Add(time.Hour)}
	cache.Set(ctx, s, now)

	got, ok := cache.Get(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, maxTTL, mr.TTL(keyPrefix+"abc"))

	cache.Delete(ctx, "abc")
	_, ok = cache.Get(ctx, "abc")
	assert.False(t, ok)
}

func TestRedisCacheSkipsExpired(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewCache(client, zap.NewNop())
	now := time.Now().UTC()
	cache.Set(context.Background(), &domain.Session{SessionTokenHash: "old", ExpiresAt: now.Add(-time.Second)}, now)
	assert.False(t, mr.Exists(keyPrefix+"old"))
}

func TestNilClientGivesNoopCache(t *testing.T) {
	cache := NewCache(nil, zap.NewNop())
	_, ok := cache.(NoopCache)
	assert.True(t, ok)
}
