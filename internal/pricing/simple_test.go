package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeSimple(t *testing.T) {
	res, ok := ComputeSimple(SimpleParams{Rate: 15000, ProfitKind: ProfitPercent, ProfitValue: 20})
	require.True(t, ok)
	require.InDelta(t, 18000, res.Price, 1e-9)
	require.InDelta(t, 3000, res.ProfitAfterDiscount, 1e-9)

	res, ok = ComputeSimple(SimpleParams{Rate: 15000, ProfitKind: ProfitFixed, ProfitValue: 1234, Rounding: Rounding{Mode: RoundStep, Step: 500, Side: SideUp}})
	require.True(t, ok)
	require.Equal(t, 16500.0, res.Price)
}

func TestComputeSimpleClampsToBounds(t *testing.T) {
	res, ok := ComputeSimple(SimpleParams{Rate: 100, ProfitValue: 10, Min: 500})
	require.True(t, ok)
	require.Equal(t, 500.0, res.Price)

	res, ok = ComputeSimple(SimpleParams{Rate: 100, ProfitValue: 10, Max: 105})
	require.True(t, ok)
	require.Equal(t, 105.0, res.Price)
}

func TestComputeSimpleWithoutRate(t *testing.T) {
	for _, rate := range []float64{0, -1} {
		_, ok := ComputeSimple(SimpleParams{Rate: rate, ProfitValue: 10})
		require.False(t, ok)
	}
}
