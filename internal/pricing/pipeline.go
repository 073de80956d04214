package pricing

import "fmt"

// Discounter turns role bases into discounted amounts.
type Discounter func(profitBase, chargeBase float64) (profitAfter, chargeAfter float64, err error)

// NoDiscount returns the bases unchanged.
func NoDiscount(profitBase, chargeBase float64) (float64, float64, error) {
	return nonNegative(profitBase), nonNegative(chargeBase), nil
}

// Input is everything the pricing pipeline needs, already resolved.
type Input struct {
	Formula  Formula
	Vars     []ResolvedVar
	Rounding Rounding
}

// Compute runs aggregation, discounting and assembly. When any component
// carries a profit or charge role the components are evaluated individually.
// Otherwise role variables are scaled by the discount ratio and the whole
// formula is evaluated before and after; that path is exact only when the
// formula is linear in the role variables.
func Compute(ev Evaluator, in Input, discount Discounter) (CalculationResult, error) {
	if discount == nil {
		discount = NoDiscount
	}
	if HasRoleComponents(in.Formula.Components) {
		return computeByComponents(ev, in, discount)
	}
	return computeByVariables(ev, in, discount)
}

func computeByComponents(ev Evaluator, in Input, discount Discounter) (CalculationResult, error) {
	env := ResolveEnv(in.Vars, Unscaled)
	agg, err := Aggregate(ev, in.Formula, env)
	if err != nil {
		return CalculationResult{}, fmt.Errorf("evaluate formula: %w", err)
	}
	sums := clampSums(agg.Sums)
	profitAfter, chargeAfter, err := discount(sums.Profit, sums.Charge)
	if err != nil {
		return CalculationResult{}, err
	}
	res := Assemble(sums, profitAfter, chargeAfter, in.Rounding)
	res.Breakdown.Mode = ModeComponents
	res.Breakdown.Rows = agg.Rows
	return res, nil
}

func computeByVariables(ev Evaluator, in Input, discount Discounter) (CalculationResult, error) {
	bases := clampSums(VariableBases(in.Vars))
	profitAfter, chargeAfter, err := discount(bases.Profit, bases.Charge)
	if err != nil {
		return CalculationResult{}, err
	}
	profitAfter = nonNegative(profitAfter)
	chargeAfter = nonNegative(chargeAfter)

	before, rows, err := evaluateTotal(ev, in.Formula, ResolveEnv(in.Vars, Unscaled))
	if err != nil {
		return CalculationResult{}, fmt.Errorf("evaluate formula: %w", err)
	}
	scale := RoleScale{
		Profit: scaleFor(bases.Profit, profitAfter),
		Charge: scaleFor(bases.Charge, chargeAfter),
	}
	after := before
	if scale != Unscaled {
		after, _, err = evaluateTotal(ev, in.Formula, ResolveEnv(in.Vars, scale))
		if err != nil {
			return CalculationResult{}, fmt.Errorf("evaluate discounted formula: %w", err)
		}
	}
	before = nonNegative(before)
	bases.Other = nonNegative(before - bases.Profit - bases.Charge)
	return CalculationResult{
		PriceBeforeDiscount: finishPrice(before, in.Rounding),
		Price:               finishPrice(nonNegative(after), in.Rounding),
		ProfitAfterDiscount: profitAfter,
		ChargeAfterDiscount: chargeAfter,
		Breakdown: Breakdown{
			Mode:  ModeVariables,
			Rows:  rows,
			Sums:  bases,
			Total: before,
		},
	}, nil
}
