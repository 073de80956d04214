package pricing

import (
	"math"

	"github.com/noah-isme/toko-pricing/internal/formula"
)

// Epsilon is the magnitude below which amounts are treated as zero.
const Epsilon = 1e-9

// Evaluator evaluates one expression against an environment. *formula.Engine
// satisfies it.
type Evaluator interface {
	Evaluate(expr string, env formula.Env) (float64, error)
}

// Aggregation is the role split of a formula evaluated per component.
type Aggregation struct {
	Rows []BreakdownRow
	Sums RoleSums
	// Total is the top-level expression value, or the component sum when the
	// formula has no expression.
	Total float64
}

// Aggregate evaluates every component of f against env and sums the values by
// role. A failing component keeps its row with the error and contributes 0.
// With a top-level expression its value is the total and any difference from
// the component sum is carried by a Residual row counted as other.
func Aggregate(ev Evaluator, f Formula, env formula.Env) (Aggregation, error) {
	rows, sum := evaluateComponents(ev, f.Components, env)
	var agg Aggregation
	agg.Rows = rows
	for _, row := range rows {
		switch row.Role {
		case RoleProfit:
			agg.Sums.Profit += row.Value
		case RoleCharge:
			agg.Sums.Charge += row.Value
		default:
			agg.Sums.Other += row.Value
		}
	}
	agg.Total = sum
	if f.Expression != "" {
		total, err := ev.Evaluate(f.Expression, env)
		if err != nil {
			return Aggregation{}, err
		}
		total = snap(total)
		agg.Total = total
		if residual := total - sum; math.Abs(residual) >= Epsilon {
			agg.Rows = append(agg.Rows, BreakdownRow{Name: ResidualRowName, Role: RoleNone, Value: residual})
			agg.Sums.Other += residual
		}
	}
	agg.Sums = RoleSums{Profit: snap(agg.Sums.Profit), Charge: snap(agg.Sums.Charge), Other: snap(agg.Sums.Other)}
	return agg, nil
}

// evaluateTotal evaluates the top-level expression, or sums the components
// when there is none.
func evaluateTotal(ev Evaluator, f Formula, env formula.Env) (float64, []BreakdownRow, error) {
	rows, sum := evaluateComponents(ev, f.Components, env)
	if f.Expression == "" {
		return sum, rows, nil
	}
	total, err := ev.Evaluate(f.Expression, env)
	if err != nil {
		return 0, nil, err
	}
	return snap(total), rows, nil
}

func evaluateComponents(ev Evaluator, components []Component, env formula.Env) ([]BreakdownRow, float64) {
	rows := make([]BreakdownRow, 0, len(components))
	var sum float64
	for _, c := range components {
		row := BreakdownRow{Name: c.Name, Role: ComponentRole(c)}
		v, err := ev.Evaluate(c.Expression, env)
		if err != nil {
			row.Error = err.Error()
		} else {
			row.Value = snap(v)
		}
		sum += row.Value
		rows = append(rows, row)
	}
	return rows, sum
}

// VariableBases sums resolved variable amounts by role.
func VariableBases(vars []ResolvedVar) RoleSums {
	var s RoleSums
	for _, v := range vars {
		switch v.Role {
		case RoleProfit:
			s.Profit += v.Value
		case RoleCharge:
			s.Charge += v.Value
		}
	}
	return RoleSums{Profit: snap(s.Profit), Charge: snap(s.Charge)}
}

func scaleFor(base, after float64) float64 {
	if base == 0 {
		return 1
	}
	return after / base
}

func snap(v float64) float64 {
	if math.Abs(v) < Epsilon {
		return 0
	}
	return v
}
