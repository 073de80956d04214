package ratelimit

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// DefaultPrefix namespaces limiter keys in the store.
const DefaultPrefix = "pricing:ratelimit"

// NewRedisStore returns a limiter store shared by every API replica.
func NewRedisStore(rdb redis.UniversalClient, prefix string) (limiter.Store, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("init redis limiter store: %w", err)
	}
	return store, nil
}

// NewMemoryStore returns a process-local limiter store.
func NewMemoryStore(prefix string) limiter.Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute})
}

// New builds a limiter allowing max requests per window. A non-positive max
// or window yields nil, which disables limiting in Handler.
func New(store limiter.Store, window time.Duration, max int64) *limiter.Limiter {
	if store == nil || window <= 0 || max <= 0 {
		return nil
	}
	return limiter.New(store, limiter.Rate{Period: window, Limit: max})
}
