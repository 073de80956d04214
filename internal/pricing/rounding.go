package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundingMode selects how a price is rounded.
type RoundingMode int

const (
	RoundNone RoundingMode = iota
	// RoundStep rounds to a multiple of the step.
	RoundStep
	// RoundNineEnding rounds to a multiple of 10×step and subtracts 1.
	RoundNineEnding
	// RoundHybrid rounds to a multiple of 10×step and subtracts the step.
	RoundHybrid
)

// String returns the storage form of the mode.
func (m RoundingMode) String() string {
	switch m {
	case RoundStep:
		return "step"
	case RoundNineEnding:
		return "nine"
	case RoundHybrid:
		return "hybrid"
	default:
		return "none"
	}
}

// ParseRoundingMode converts the storage form into a RoundingMode.
func ParseRoundingMode(value string) (RoundingMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return RoundNone, nil
	case "step", "round":
		return RoundStep, nil
	case "nine", "nine_ending":
		return RoundNineEnding, nil
	case "hybrid":
		return RoundHybrid, nil
	default:
		return RoundNone, fmt.Errorf("unknown rounding mode %q", value)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RoundingMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RoundingMode) UnmarshalText(text []byte) error {
	v, err := ParseRoundingMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// RoundingSide is the direction used when snapping to a step.
type RoundingSide int

const (
	SideNearest RoundingSide = iota
	SideUp
	SideDown
)

// String returns the storage form of the side.
func (s RoundingSide) String() string {
	switch s {
	case SideUp:
		return "up"
	case SideDown:
		return "down"
	default:
		return "nearest"
	}
}

// ParseRoundingSide converts the storage form into a RoundingSide.
func ParseRoundingSide(value string) (RoundingSide, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "nearest":
		return SideNearest, nil
	case "up", "ceil":
		return SideUp, nil
	case "down", "floor":
		return SideDown, nil
	default:
		return SideNearest, fmt.Errorf("unknown rounding side %q", value)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s RoundingSide) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *RoundingSide) UnmarshalText(text []byte) error {
	v, err := ParseRoundingSide(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Rounding is a complete rounding policy.
type Rounding struct {
	Mode RoundingMode `json:"mode"`
	Side RoundingSide `json:"side"`
	Step float64      `json:"step"`
}

// Apply rounds v per the policy. A non-positive step leaves v unchanged.
func (r Rounding) Apply(v float64) float64 {
	switch r.Mode {
	case RoundStep:
		return RoundToStep(v, r.Step, r.Side)
	case RoundNineEnding:
		return NineEnding(v, r.Step, r.Side)
	case RoundHybrid:
		return Hybrid(v, r.Step, r.Side)
	default:
		return v
	}
}

// RoundToStep snaps v to a multiple of m. The quotient is computed in decimal
// arithmetic so a value already on the grid maps to itself.
func RoundToStep(v, m float64, side RoundingSide) float64 {
	if m <= 0 || math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(m) || math.IsInf(m, 0) {
		return v
	}
	dv := decimal.NewFromFloat(v)
	dm := decimal.NewFromFloat(m)
	q := dv.Div(dm)
	switch side {
	case SideUp:
		q = q.Ceil()
	case SideDown:
		q = q.Floor()
	default:
		q = q.Round(0)
	}
	out, _ := q.Mul(dm).Float64()
	return out
}

// NineEnding rounds to a multiple of 10×m and subtracts 1.
func NineEnding(v, m float64, side RoundingSide) float64 {
	if m <= 0 {
		return v
	}
	return RoundToStep(v, 10*m, side) - 1
}

// Hybrid rounds to a multiple of 10×m and subtracts m.
func Hybrid(v, m float64, side RoundingSide) float64 {
	if m <= 0 {
		return v
	}
	return RoundToStep(v, 10*m, side) - m
}
