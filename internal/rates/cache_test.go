package rates_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/rates"
)

type countingSource struct {
	rates map[int64]float64
	err   error
	calls int
}

func (s *countingSource) Rate(_ context.Context, currencyID int64) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.rates[currencyID], nil
}

func newCache(t *testing.T, src rates.Source) (*miniredis.Miniredis, *rates.Cache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, &rates.Cache{R: client, Source: src, Prefix: "test:rates", TTL: time.Minute, Logger: zerolog.Nop()}
}

func TestCacheServesFromRedisAfterMiss(t *testing.T) {
	src := &countingSource{rates: map[int64]float64{3: 59000.5}}
	mr, cache := newCache(t, src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rate, err := cache.Rate(ctx, 3)
		require.NoError(t, err)
		require.Equal(t, 59000.5, rate)
	}
	require.Equal(t, 1, src.calls)

	got, err := mr.Get("test:rates:3")
	require.NoError(t, err)
	require.Equal(t, "59000.5", got)
	require.Equal(t, time.Minute, mr.TTL("test:rates:3"))
}

func TestCacheExpires(t *testing.T) {
	src := &countingSource{rates: map[int64]float64{1: 15000}}
	mr, cache := newCache(t, src)
	ctx := context.Background()

	_, err := cache.Rate(ctx, 1)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	src.rates[1] = 16000
	rate, err := cache.Rate(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 16000.0, rate)
	require.Equal(t, 2, src.calls)
}

func TestCacheCachesUnknownAsZero(t *testing.T) {
	src := &countingSource{rates: map[int64]float64{}}
	_, cache := newCache(t, src)
	for i := 0; i < 2; i++ {
		rate, err := cache.Rate(context.Background(), 42)
		require.NoError(t, err)
		require.Zero(t, rate)
	}
	require.Equal(t, 1, src.calls)
}

func TestCacheFallsBackWhenRedisDown(t *testing.T) {
	src := &countingSource{rates: map[int64]float64{3: 59000}}
	mr, cache := newCache(t, src)
	mr.Close()

	rate, err := cache.Rate(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, 59000.0, rate)
}

func TestCachePropagatesSourceError(t *testing.T) {
	boom := errors.New("db down")
	_, cache := newCache(t, &countingSource{err: boom})
	_, err := cache.Rate(context.Background(), 3)
	require.ErrorIs(t, err, boom)
}

func TestCacheWarmAndInvalidate(t *testing.T) {
	src := &countingSource{rates: map[int64]float64{1: 1, 2: 2}}
	mr, cache := newCache(t, src)
	ctx := context.Background()

	require.NoError(t, cache.Warm(ctx, map[int64]float64{1: 15000, 2: 0.25}))
	rate, err := cache.Rate(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 0.25, rate)
	require.Zero(t, src.calls)

	require.NoError(t, cache.Invalidate(ctx, 1, 2))
	require.False(t, mr.Exists("test:rates:1"))
	rate, err = cache.Rate(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1.0, rate)
	require.Equal(t, 1, src.calls)
}
