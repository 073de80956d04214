package recalc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRunInProgress is returned when another worker holds the run lock.
var ErrRunInProgress = errors.New("recalc: run already in progress")

// DefaultLockKey is the redis key guarding full recalculation runs.
const DefaultLockKey = "pricing:recalc:lock"

// Locker provides a Redis-backed run lock. Unlike a mutex it never waits:
// a second run is refused while the first holds the key.
type Locker struct {
	R   redis.Cmdable
	Key string
	TTL time.Duration
}

// Do executes fn while holding the lock. The lock is released even if fn
// returns an error; a lock held past TTL expires on its own.
func (l Locker) Do(ctx context.Context, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("recalc: redis client not configured")
	}
	if fn == nil {
		return errors.New("recalc: callback not provided")
	}
	key := l.Key
	if key == "" {
		key = DefaultLockKey
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrRunInProgress
	}
	defer l.release(context.WithoutCancel(ctx), key, token)
	return fn(ctx)
}

func (l Locker) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	if err := l.R.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}
