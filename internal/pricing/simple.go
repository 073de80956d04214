package pricing

import (
	"fmt"
	"strings"
)

// ProfitKind chooses how simple mode adds profit to the rate.
type ProfitKind int

const (
	ProfitPercent ProfitKind = iota
	ProfitFixed
)

// String returns the storage form of the kind.
func (k ProfitKind) String() string {
	if k == ProfitFixed {
		return "fixed"
	}
	return "percent"
}

// ParseProfitKind converts the storage form into a ProfitKind.
func ParseProfitKind(value string) (ProfitKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "percent", "percentage":
		return ProfitPercent, nil
	case "fixed":
		return ProfitFixed, nil
	default:
		return ProfitPercent, fmt.Errorf("unknown profit kind %q", value)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ProfitKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ProfitKind) UnmarshalText(text []byte) error {
	v, err := ParseProfitKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// SimpleParams configures non-formula pricing. Zero Min or Max means no bound.
type SimpleParams struct {
	Rate        float64    `json:"rate"`
	ProfitKind  ProfitKind `json:"profitKind"`
	ProfitValue float64    `json:"profitValue"`
	Rounding    Rounding   `json:"rounding"`
	Min         float64    `json:"min"`
	Max         float64    `json:"max"`
}

// ComputeSimple prices a subject from its rate alone. It reports false when
// the rate is missing or non-positive, meaning no price should be written.
func ComputeSimple(p SimpleParams) (CalculationResult, bool) {
	if !(p.Rate > 0) {
		return CalculationResult{}, false
	}
	var price float64
	switch p.ProfitKind {
	case ProfitFixed:
		price = p.Rate + p.ProfitValue
	default:
		price = p.Rate * (1 + p.ProfitValue/100)
	}
	price = RoundPrice(price, p.Rounding)
	if p.Min > 0 && price < p.Min {
		price = p.Min
	}
	if p.Max > 0 && price > p.Max {
		price = p.Max
	}
	price = nonNegative(price)
	profit := nonNegative(price - p.Rate)
	return CalculationResult{
		PriceBeforeDiscount: price,
		Price:               price,
		ProfitAfterDiscount: profit,
		Breakdown: Breakdown{
			Rows: []BreakdownRow{
				{Name: "Rate", Role: RoleNone, Value: p.Rate},
				{Name: "Profit", Role: RoleProfit, Value: profit},
			},
			Sums:  RoleSums{Profit: profit, Other: p.Rate},
			Total: price,
		},
	}, true
}
