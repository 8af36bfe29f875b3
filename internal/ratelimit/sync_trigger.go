package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/switchboard/internal/config"
)

const keySyncTrigger = "sync:trigger:%s:%s"

// syncTriggerScript refills the bucket from the Redis clock, takes one token
// when available, and reports the wait in milliseconds until the next one.
//
// KEYS[1] bucket key; ARGV rate per second, burst, ttl ms.
// Returns {allowed, remaining, wait_ms}.
const syncTriggerScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
  tokens = math.min(burst, tokens + (now - ts) * rate / 1000)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", string.format("%.6f", tokens), "ts", string.format("%d", now))
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens), wait}
`

// Decision is the outcome of one trigger attempt.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// SyncTriggerLimiter throttles manual sync triggers with one token bucket per
// org and resource. A limiter built without Redis admits everything.
type SyncTriggerLimiter struct {
	client *redis.Client
	script *redis.Script
	rate   float64
	burst  int
	ttl    time.Duration
}

func NewSyncTriggerLimiter(cfg config.Config, client *redis.Client) *SyncTriggerLimiter {
	if client == nil || cfg.Sync.TriggerRate <= 0 || cfg.Sync.TriggerBurst <= 0 {
		return &SyncTriggerLimiter{}
	}
	return &SyncTriggerLimiter{
		client: client,
		script: redis.NewScript(syncTriggerScript),
		rate:   cfg.Sync.TriggerRate,
		burst:  cfg.Sync.TriggerBurst,
		ttl:    bucketTTL(cfg.Sync.TriggerRate, cfg.Sync.TriggerBurst),
	}
}

func (l *SyncTriggerLimiter) Enabled() bool {
	return l != nil && l.client != nil
}

func (l *SyncTriggerLimiter) Allow(ctx context.Context, orgID, resource string) (*Decision, error) {
	if !l.Enabled() {
		return &Decision{Allowed: true}, nil
	}
	orgID, resource = strings.TrimSpace(orgID), strings.TrimSpace(resource)
	if orgID == "" || resource == "" {
		return nil, errors.New("sync trigger key is incomplete")
	}

	key := fmt.Sprintf(keySyncTrigger, orgID, resource)
	res, err := l.script.Run(ctx, l.client, []string{key}, l.rate, l.burst, l.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("sync trigger bucket: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("sync trigger bucket: unexpected reply of %d values", len(res))
	}

	return &Decision{
		Allowed:    res[0] == 1,
		Limit:      l.burst,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket around for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	ttl := time.Duration(float64(burst) / rate * 2 * float64(time.Second))
	if ttl < time.Second {
		return time.Second
	}
	return ttl.Round(time.Second)
}
