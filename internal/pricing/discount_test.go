package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubDiscountStore struct {
	params map[int64]DiscountParams
	err    error
	calls  int
}

func (s *stubDiscountStore) DiscountParams(_ context.Context, subjectID int64) (DiscountParams, error) {
	s.calls++
	if s.err != nil {
		return DiscountParams{}, s.err
	}
	return s.params[subjectID], nil
}

func TestApplyRole(t *testing.T) {
	require.InDelta(t, 850, ApplyRole(1000, 10, 50), 1e-9)
	require.InDelta(t, 500, ApplyRole(500, 0, 0), 1e-9)
	require.Zero(t, ApplyRole(100, 50, 80))
	require.Zero(t, ApplyRole(-10, 0, 0))
	require.InDelta(t, 100, ApplyRole(100, -20, -5), 1e-9)
}

func TestDiscountServiceUsesStoredParams(t *testing.T) {
	store := &stubDiscountStore{params: map[int64]DiscountParams{
		7: {ProfitPct: 10, ProfitFixed: 50, ChargePct: -5},
	}}
	svc := DiscountService{Store: store}
	profit, charge, err := svc.Apply(context.Background(), 1000, 500, 7)
	require.NoError(t, err)
	require.InDelta(t, 850, profit, 1e-9)
	require.InDelta(t, 500, charge, 1e-9)
}

func TestDiscountServiceOverrideSkipsStore(t *testing.T) {
	store := &stubDiscountStore{params: map[int64]DiscountParams{7: {ProfitPct: 90}}}
	svc := DiscountService{Store: store}
	ctx := WithDiscountOverride(context.Background(), 7, DiscountParams{ChargeFixed: 100})
	profit, charge, err := svc.Apply(ctx, 1000, 500, 7)
	require.NoError(t, err)
	require.InDelta(t, 1000, profit, 1e-9)
	require.InDelta(t, 400, charge, 1e-9)
	require.Zero(t, store.calls)

	// the override is bound to one subject only
	profit, _, err = svc.Apply(ctx, 1000, 500, 8)
	require.NoError(t, err)
	require.InDelta(t, 1000, profit, 1e-9)
	require.Equal(t, 1, store.calls)
}

func TestDiscountServiceWrapsStoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := DiscountService{Store: &stubDiscountStore{err: boom}}
	_, _, err := svc.Apply(context.Background(), 1, 1, 1)
	require.ErrorIs(t, err, boom)
}

func TestDiscountServiceWithoutStore(t *testing.T) {
	profit, charge, err := DiscountService{}.Apply(context.Background(), 10, 20, 1)
	require.NoError(t, err)
	require.Equal(t, 10.0, profit)
	require.Equal(t, 20.0, charge)
}
