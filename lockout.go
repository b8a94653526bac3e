package authflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockoutKeyPrefix = "afl"

// lockoutGuard is a presence flag per (purpose, identity). While the flag
// exists the pair is in cool-down; there is no unlock operation, expiry is
// the only release.
type lockoutGuard struct {
	redis    redis.UniversalClient
	cooldown time.Duration
}

func newLockoutGuard(redisClient redis.UniversalClient, cooldown time.Duration) *lockoutGuard {
	return &lockoutGuard{redis: redisClient, cooldown: cooldown}
}

func (g *lockoutGuard) key(purpose Purpose, identity string) string {
	return lockoutKeyPrefix + ":" + string(purpose) + ":" + identity
}

// Locked reports whether the pair is in an active cool-down window.
func (g *lockoutGuard) Locked(ctx context.Context, purpose Purpose, identity string) (bool, error) {
	err := g.redis.Get(ctx, g.key(purpose, identity)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return true, nil
}

// Lock arms the cool-down for the pair. Re-locking an already-locked pair
// restarts the window.
func (g *lockoutGuard) Lock(ctx context.Context, purpose Purpose, identity string) error {
	if err := g.redis.Set(ctx, g.key(purpose, identity), "1", g.cooldown).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
