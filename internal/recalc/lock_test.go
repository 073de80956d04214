package recalc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/recalc"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLockerRefusesOverlappingRun(t *testing.T) {
	_, client := newRedis(t)
	locker := recalc.Locker{R: client, Key: "test:lock", TTL: time.Minute}
	ctx := context.Background()

	err := locker.Do(ctx, func(ctx context.Context) error {
		inner := locker.Do(ctx, func(context.Context) error { return nil })
		require.ErrorIs(t, inner, recalc.ErrRunInProgress)
		return nil
	})
	require.NoError(t, err)

	ran := false
	require.NoError(t, locker.Do(ctx, func(context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran)
}

func TestLockerReleasesOnError(t *testing.T) {
	mr, client := newRedis(t)
	locker := recalc.Locker{R: client, Key: "test:lock"}
	boom := errors.New("boom")

	err := locker.Do(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("test:lock"))
}

func TestLockerKeepsForeignLock(t *testing.T) {
	mr, client := newRedis(t)
	locker := recalc.Locker{R: client, Key: "test:lock", TTL: time.Second}

	err := locker.Do(context.Background(), func(context.Context) error {
		// simulate expiry and takeover by another worker
		mr.FastForward(2 * time.Second)
		require.NoError(t, mr.Set("test:lock", "other-token"))
		return nil
	})
	require.NoError(t, err)
	got, err := mr.Get("test:lock")
	require.NoError(t, err)
	require.Equal(t, "other-token", got)
}
