package scheduler

import (
	"time"
)

// Config controls the tick lock. The sync interval itself comes from the
// hot-reloaded sync schedule.
type Config struct {
	LockKey    string
	MinLockTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		LockKey:    "switchboard:scheduler:sync",
		MinLockTTL: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.LockKey == "" {
		c.LockKey = defaults.LockKey
	}
	if c.MinLockTTL <= 0 {
		c.MinLockTTL = defaults.MinLockTTL
	}
	return c
}

// lockTTL keeps the tick lock for most of the interval so replicas that
// wake slightly later skip the same tick.
func (c Config) lockTTL(interval time.Duration) time.Duration {
	return max(interval*9/10, c.MinLockTTL)
}
