package pricing

import (
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/toko-pricing/internal/formula"
)

// RateTable maps currency ids to their current rate.
type RateTable map[int64]float64

// ResolvedVar is a declaration paired with its resolved amount.
type ResolvedVar struct {
	Code  string
	Role  Role
	Value float64
}

// RoleScale multiplies role-tagged variables when building an environment.
type RoleScale struct {
	Profit float64
	Charge float64
}

// Unscaled leaves every variable at its raw amount.
var Unscaled = RoleScale{Profit: 1, Charge: 1}

func (s RoleScale) factor(r Role) float64 {
	switch r {
	case RoleProfit:
		return s.Profit
	case RoleCharge:
		return s.Charge
	default:
		return 1
	}
}

// Resolve computes unit × value for each declaration. Currency-linked
// variables take their unit from rates (0 when unknown); custom variables use
// the declared unit, 1 when unset. Overrides replace the declared value only.
func Resolve(decls []VariableDecl, overrides Overrides, rates RateTable) []ResolvedVar {
	out := make([]ResolvedVar, 0, len(decls))
	for _, d := range decls {
		if d.Code == "" {
			continue
		}
		var unit float64
		switch d.Kind {
		case KindCurrencyLinked:
			unit = rates[d.CurrencyID]
		default:
			unit = d.Unit
			if unit == 0 {
				unit = 1
			}
		}
		value := d.Value
		if v, ok := overrides[d.Code]; ok {
			value = v
		}
		out = append(out, ResolvedVar{Code: d.Code, Role: VariableRole(d), Value: unit * value})
	}
	return out
}

// ResolveEnv builds an evaluation environment from resolved variables,
// applying scale per role.
func ResolveEnv(vars []ResolvedVar, scale RoleScale) formula.Env {
	values := make(map[string]float64, len(vars))
	for _, v := range vars {
		values[v.Code] = v.Value * scale.factor(v.Role)
	}
	return formula.NewEnv(values)
}

// ParseOverride reads a stored override. Empty, non-numeric and non-finite
// values count as absent.
func ParseOverride(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
