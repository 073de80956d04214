// Package rates caches currency rates in Redis in front of a slower source.
package rates

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/obs"
)

// DefaultKeyPrefix prefixes per-currency cache keys.
const DefaultKeyPrefix = "pricing:rates"

// Source is the authoritative rate store.
type Source interface {
	Rate(ctx context.Context, currencyID int64) (float64, error)
}

// Cache implements pricing.RateProvider. Each currency is cached under its
// own key so entries expire independently; unknown currencies are cached as 0.
type Cache struct {
	R      redis.Cmdable
	Source Source
	Prefix string
	TTL    time.Duration
	Logger zerolog.Logger
}

// Key returns the cache key for currencyID.
func (c *Cache) Key(currencyID int64) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + ":" + strconv.FormatInt(currencyID, 10)
}

// Rate returns the cached rate, loading and caching it from Source on a miss.
// A Redis failure degrades to reading Source directly.
func (c *Cache) Rate(ctx context.Context, currencyID int64) (float64, error) {
	if c == nil || c.Source == nil {
		return 0, errors.New("rates: source not configured")
	}
	if c.R == nil {
		return c.Source.Rate(ctx, currencyID)
	}
	key := c.Key(currencyID)
	raw, err := c.R.Get(ctx, key).Result()
	switch {
	case err == nil:
		if rate, perr := strconv.ParseFloat(raw, 64); perr == nil {
			observe("hit")
			return rate, nil
		}
		c.Logger.Warn().Str("key", key).Msg("discarding malformed cached rate")
	case errors.Is(err, redis.Nil):
	default:
		observe("error")
		c.Logger.Warn().Err(err).Int64("currency_id", currencyID).Msg("rate cache unavailable")
		return c.Source.Rate(ctx, currencyID)
	}

	observe("miss")
	rate, err := c.Source.Rate(ctx, currencyID)
	if err != nil {
		return 0, err
	}
	if err := c.R.Set(ctx, key, strconv.FormatFloat(rate, 'g', -1, 64), c.ttl()).Err(); err != nil {
		c.Logger.Warn().Err(err).Int64("currency_id", currencyID).Msg("store cached rate")
	}
	return rate, nil
}

// Warm stores rates in one pipeline.
func (c *Cache) Warm(ctx context.Context, rates map[int64]float64) error {
	if c == nil || c.R == nil || len(rates) == 0 {
		return nil
	}
	ttl := c.ttl()
	_, err := c.R.Pipelined(ctx, func(p redis.Pipeliner) error {
		for id, rate := range rates {
			p.Set(ctx, c.Key(id), strconv.FormatFloat(rate, 'g', -1, 64), ttl)
		}
		return nil
	})
	return err
}

// Invalidate drops the cached rates of the given currencies.
func (c *Cache) Invalidate(ctx context.Context, currencyIDs ...int64) error {
	if c == nil || c.R == nil || len(currencyIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(currencyIDs))
	for _, id := range currencyIDs {
		keys = append(keys, c.Key(id))
	}
	return c.R.Del(ctx, keys...).Err()
}

func (c *Cache) ttl() time.Duration {
	if c.TTL <= 0 {
		return 10 * time.Minute
	}
	return c.TTL
}

func observe(result string) {
	if obs.RateLookupsTotal != nil {
		obs.RateLookupsTotal.WithLabelValues(result).Inc()
	}
}
