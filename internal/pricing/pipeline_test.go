package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/formula"
)

func newTestEngine() *formula.Engine {
	return formula.NewEngine(formula.EngineConfig{})
}

func fixedDiscount(params DiscountParams) Discounter {
	return func(profit, charge float64) (float64, float64, error) {
		p := params.Clamped()
		return ApplyRole(profit, p.ProfitPct, p.ProfitFixed), ApplyRole(charge, p.ChargePct, p.ChargeFixed), nil
	}
}

func TestComputeByComponentsAppliesRoleDiscount(t *testing.T) {
	in := Input{
		Formula: Formula{
			Components: []Component{
				{Name: "Base", Expression: "cost", Role: RoleNone},
				{Name: "Margin", Expression: "margin", Role: RoleProfit},
				{Name: "Handling", Expression: "fee", Role: RoleCharge},
			},
		},
		Vars: []ResolvedVar{
			{Code: "cost", Value: 200},
			{Code: "margin", Value: 1000},
			{Code: "fee", Value: 500},
		},
	}
	res, err := Compute(newTestEngine(), in, fixedDiscount(DiscountParams{ProfitPct: 10, ProfitFixed: 50}))
	require.NoError(t, err)
	require.Equal(t, ModeComponents, res.Breakdown.Mode)
	require.Equal(t, RoleSums{Profit: 1000, Charge: 500, Other: 200}, res.Breakdown.Sums)
	require.InDelta(t, 850, res.ProfitAfterDiscount, 1e-9)
	require.InDelta(t, 500, res.ChargeAfterDiscount, 1e-9)
	require.InDelta(t, 1700, res.PriceBeforeDiscount, 1e-9)
	require.InDelta(t, 200+850+500, res.Price, 1e-9)
	require.True(t, res.Discounted())
	require.Len(t, res.Breakdown.Rows, 3)
}

func TestComputeAddsResidualRow(t *testing.T) {
	in := Input{
		Formula: Formula{
			Expression: "cost*2 + margin",
			Components: []Component{
				{Name: "Cost", Expression: "cost"},
				{Name: "Margin", Expression: "margin", Role: RoleProfit},
			},
		},
		Vars: []ResolvedVar{{Code: "cost", Value: 300}, {Code: "margin", Value: 100, Role: RoleProfit}},
	}
	res, err := Compute(newTestEngine(), in, nil)
	require.NoError(t, err)
	require.Len(t, res.Breakdown.Rows, 3)
	residual := res.Breakdown.Rows[2]
	require.Equal(t, ResidualRowName, residual.Name)
	require.Equal(t, RoleNone, residual.Role)
	require.InDelta(t, 300, residual.Value, 1e-9)
	require.InDelta(t, 700, res.PriceBeforeDiscount, 1e-9)
	require.InDelta(t, 700, res.Price, 1e-9)
}

func TestComputeOmitsNegligibleResidual(t *testing.T) {
	in := Input{
		Formula: Formula{
			Expression: "a + b",
			Components: []Component{
				{Name: "A", Expression: "a", Role: RoleCharge},
				{Name: "B", Expression: "b"},
			},
		},
		Vars: []ResolvedVar{{Code: "a", Value: 0.1}, {Code: "b", Value: 0.2}},
	}
	res, err := Compute(newTestEngine(), in, nil)
	require.NoError(t, err)
	require.Len(t, res.Breakdown.Rows, 2)
}

func TestComputeRecordsComponentFailure(t *testing.T) {
	in := Input{
		Formula: Formula{
			Components: []Component{
				{Name: "Broken", Expression: "(cost", Role: RoleProfit},
				{Name: "Cost", Expression: "cost"},
			},
		},
		Vars: []ResolvedVar{{Code: "cost", Value: 40}},
	}
	res, err := Compute(newTestEngine(), in, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Breakdown.Rows[0].Error)
	require.Zero(t, res.Breakdown.Rows[0].Value)
	require.InDelta(t, 40, res.Price, 1e-9)
}

func TestComputeByVariablesScalesRoleVariables(t *testing.T) {
	in := Input{
		Formula: Formula{Expression: "cost + margin"},
		Vars: []ResolvedVar{
			{Code: "cost", Value: 1000, Role: RoleNone},
			{Code: "margin", Value: 200, Role: RoleProfit},
		},
	}
	res, err := Compute(newTestEngine(), in, fixedDiscount(DiscountParams{ProfitPct: 50}))
	require.NoError(t, err)
	require.Equal(t, ModeVariables, res.Breakdown.Mode)
	require.InDelta(t, 1200, res.PriceBeforeDiscount, 1e-9)
	require.InDelta(t, 1100, res.Price, 1e-9)
	require.InDelta(t, 100, res.ProfitAfterDiscount, 1e-9)
	require.InDelta(t, 1000, res.Breakdown.Sums.Other, 1e-9)
}

func TestComputeByVariablesSumsComponentsWithoutExpression(t *testing.T) {
	in := Input{
		Formula: Formula{Components: []Component{
			{Name: "Goods", Expression: "v1*2"},
			{Name: "Extra", Expression: "v2"},
		}},
		Vars: []ResolvedVar{{Code: "v1", Value: 59000}, {Code: "v2", Value: 15000}},
	}
	res, err := Compute(newTestEngine(), in, nil)
	require.NoError(t, err)
	require.InDelta(t, 133000, res.PriceBeforeDiscount, 1e-9)
	require.InDelta(t, 133000, res.Price, 1e-9)
	require.False(t, res.Discounted())
}

func TestComputeClampsNegativeAmounts(t *testing.T) {
	in := Input{
		Formula: Formula{Components: []Component{
			{Name: "Rebate", Expression: "-500"},
			{Name: "Profit", Expression: "-20"},
			{Name: "Charge", Expression: "100"},
		}},
	}
	res, err := Compute(newTestEngine(), in, fixedDiscount(DiscountParams{ChargeFixed: 1000}))
	require.NoError(t, err)
	require.GreaterOrEqual(t, res.Price, 0.0)
	require.GreaterOrEqual(t, res.PriceBeforeDiscount, 0.0)
	require.GreaterOrEqual(t, res.ProfitAfterDiscount, 0.0)
	require.GreaterOrEqual(t, res.ChargeAfterDiscount, 0.0)
	require.Equal(t, RoleSums{Profit: 0, Charge: 100, Other: 0}, res.Breakdown.Sums)
}

func TestComputeReturnsTopLevelSyntaxError(t *testing.T) {
	in := Input{Formula: Formula{Expression: "1 + (2"}}
	_, err := Compute(newTestEngine(), in, nil)
	require.ErrorIs(t, err, formula.ErrSyntax)
}

func TestComputeRoundsBothPrices(t *testing.T) {
	in := Input{
		Formula: Formula{Components: []Component{
			{Name: "Base", Expression: "1234.4"},
			{Name: "Profit", Expression: "100", Role: RoleProfit},
		}},
		Rounding: Rounding{Mode: RoundStep, Step: 100, Side: SideUp},
	}
	res, err := Compute(newTestEngine(), in, fixedDiscount(DiscountParams{ProfitFixed: 100}))
	require.NoError(t, err)
	require.Equal(t, 1400.0, res.PriceBeforeDiscount)
	require.Equal(t, 1300.0, res.Price)
}
