// Package pricing derives product prices from currency rates, formula
// variables and discount parameters.
package pricing

import (
	"fmt"
	"strings"
)

// Role is the economic role of a component or variable. RoleUnspecified
// means no explicit role was stored; classification then falls back to the
// legacy name heuristic.
type Role int

const (
	RoleUnspecified Role = iota
	RoleNone
	RoleProfit
	RoleCharge
)

// String returns the storage form of the role.
func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleProfit:
		return "profit"
	case RoleCharge:
		return "charge"
	default:
		return ""
	}
}

// ParseRole converts the storage form back into a Role. Unknown or empty
// values are RoleUnspecified.
func ParseRole(value string) Role {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none", "other":
		return RoleNone
	case "profit":
		return RoleProfit
	case "charge":
		return RoleCharge
	default:
		return RoleUnspecified
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// VariableKind distinguishes fixed quantities from currency-linked ones.
type VariableKind int

const (
	KindCustom VariableKind = iota
	KindCurrencyLinked
)

// String returns the storage form of the kind.
func (k VariableKind) String() string {
	if k == KindCurrencyLinked {
		return "currency"
	}
	return "custom"
}

// ParseVariableKind converts the storage form into a VariableKind.
func ParseVariableKind(value string) (VariableKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "custom":
		return KindCustom, nil
	case "currency", "currency_linked":
		return KindCurrencyLinked, nil
	default:
		return KindCustom, fmt.Errorf("unknown variable kind %q", value)
	}
}

// VariableDecl declares one formula input.
type VariableDecl struct {
	Code        string       `json:"code"`
	DisplayName string       `json:"displayName"`
	Kind        VariableKind `json:"kind"`
	CurrencyID  int64        `json:"currencyId,omitempty"`
	// Unit multiplies Value for custom variables; zero means 1. Currency-linked
	// variables use the currency rate instead.
	Unit  float64 `json:"unit"`
	Value float64 `json:"value"`
	Role  Role    `json:"role"`
}

// Component is a labelled sub-expression of a formula.
type Component struct {
	Name         string `json:"name"`
	Expression   string `json:"expression"`
	SymbolicUnit string `json:"symbolicUnit,omitempty"`
	Role         Role   `json:"role"`
}

// Formula bundles the top-level expression with its declarations. An empty
// Expression means the total is the sum of the components.
type Formula struct {
	ID         int64          `json:"id"`
	Expression string         `json:"expression"`
	Variables  []VariableDecl `json:"variables"`
	Components []Component    `json:"components"`
}

// Overrides maps variable codes to per-subject quantities. Only present
// entries override; Unit is never overridden.
type Overrides map[string]float64

// RoleSums holds aggregated amounts per role.
type RoleSums struct {
	Profit float64 `json:"profit"`
	Charge float64 `json:"charge"`
	Other  float64 `json:"other"`
}

// AggregationMode records which aggregation path produced a result.
type AggregationMode int

const (
	// ModeComponents evaluates role-tagged components individually.
	ModeComponents AggregationMode = iota
	// ModeVariables scales role variables and re-evaluates the whole formula.
	ModeVariables
)

// String returns the mode name.
func (m AggregationMode) String() string {
	if m == ModeVariables {
		return "variables"
	}
	return "components"
}

// MarshalText implements encoding.TextMarshaler.
func (m AggregationMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// BreakdownRow is one evaluated component.
type BreakdownRow struct {
	Name  string  `json:"name"`
	Role  Role    `json:"role"`
	Value float64 `json:"value"`
	Error string  `json:"error,omitempty"`
}

// ResidualRowName labels the synthetic row covering the difference between
// the top-level expression and the sum of its components.
const ResidualRowName = "Residual"

// Breakdown explains how a result was reached.
type Breakdown struct {
	Mode  AggregationMode `json:"mode"`
	Rows  []BreakdownRow  `json:"rows"`
	Sums  RoleSums        `json:"sums"`
	Total float64         `json:"total"`
}

// CalculationResult is the output of the pricing pipeline.
type CalculationResult struct {
	PriceBeforeDiscount float64   `json:"priceBeforeDiscount"`
	Price               float64   `json:"price"`
	ProfitAfterDiscount float64   `json:"profitAfterDiscount"`
	ChargeAfterDiscount float64   `json:"chargeAfterDiscount"`
	Breakdown           Breakdown `json:"breakdown"`
}

// Discounted reports whether the discount lowered the price.
func (r CalculationResult) Discounted() bool {
	return r.Price < r.PriceBeforeDiscount
}
