package session

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/switchboard/internal/auth/domain"
	"go.uber.org/zap"
)

const (
	keyPrefix = "auth:session:"
	maxTTL    = 5 * time.Minute
)

// Cache keeps recently authenticated sessions keyed by token hash.
type Cache interface {
	Get(ctx context.Context, tokenHash string) (*domain.Session, bool)
	Set(ctx context.Context, session *domain.Session, now time.Time)
	Delete(ctx context.Context, tokenHash string)
}

func NewCache(client *redis.Client, log *zap.Logger) Cache {
	if client == nil {
		return NoopCache{}
	}
	return &RedisCache{client: client, log: log.Named("auth.session.cache")}
}

type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*domain.Session, bool) { return nil, false }
func (NoopCache) Set(context.Context, *domain.Session, time.Time)     {}
func (NoopCache) Delete(context.Context, string)                      {}

type RedisCache struct {
	client *redis.Client
	log    *zap.Logger
}

func (c *RedisCache) Get(ctx context.Context, tokenHash string) (*domain.Session, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+tokenHash).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("session cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return &s, true
}

// Set caches the session for at most five minutes and never past its expiry.
func (c *RedisCache) Set(ctx context.Context, session *domain.Session, now time.Time) {
	ttl := session.ExpiresAt.Sub(now)
	if ttl <= 0 || session.RevokedAt != nil {
		return
	}
	if ttl > maxTTL {
		ttl = maxTTL
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+session.SessionTokenHash, raw, ttl).Err(); err != nil {
		c.log.Warn("session cache write failed", zap.Error(err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, tokenHash string) {
	if err := c.client.Del(ctx, keyPrefix+tokenHash).Err(); err != nil {
		c.log.Warn("session cache delete failed", zap.Error(err))
	}
}
