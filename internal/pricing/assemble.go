package pricing

// Assemble combines role sums and discounted amounts into a result. Both
// prices are clamped to zero, rounded, then clamped again since the nine and
// hybrid modes subtract after rounding.
func Assemble(sums RoleSums, profitAfter, chargeAfter float64, rounding Rounding) CalculationResult {
	sums = clampSums(sums)
	profitAfter = nonNegative(profitAfter)
	chargeAfter = nonNegative(chargeAfter)
	before := nonNegative(sums.Other + sums.Profit + sums.Charge)
	after := nonNegative(sums.Other + profitAfter + chargeAfter)
	return CalculationResult{
		PriceBeforeDiscount: finishPrice(before, rounding),
		Price:               finishPrice(after, rounding),
		ProfitAfterDiscount: profitAfter,
		ChargeAfterDiscount: chargeAfter,
		Breakdown:           Breakdown{Sums: sums, Total: before},
	}
}

// RoundPrice applies rounding and re-clamps to zero.
func RoundPrice(v float64, rounding Rounding) float64 {
	return finishPrice(nonNegative(v), rounding)
}

func finishPrice(v float64, rounding Rounding) float64 {
	return nonNegative(rounding.Apply(v))
}

func clampSums(s RoleSums) RoleSums {
	return RoleSums{
		Profit: nonNegative(s.Profit),
		Charge: nonNegative(s.Charge),
		Other:  nonNegative(s.Other),
	}
}
