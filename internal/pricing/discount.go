package pricing

import (
	"context"
	"fmt"
	"math"
)

// DiscountParams are the per-subject discount settings. Percentages are in
// percent units (10 means 10%).
type DiscountParams struct {
	ProfitPct   float64 `json:"profitPct" validate:"gte=0"`
	ProfitFixed float64 `json:"profitFixed" validate:"gte=0"`
	ChargePct   float64 `json:"chargePct" validate:"gte=0"`
	ChargeFixed float64 `json:"chargeFixed" validate:"gte=0"`
}

// Clamped returns a copy with every parameter forced to be non-negative.
func (p DiscountParams) Clamped() DiscountParams {
	return DiscountParams{
		ProfitPct:   nonNegative(p.ProfitPct),
		ProfitFixed: nonNegative(p.ProfitFixed),
		ChargePct:   nonNegative(p.ChargePct),
		ChargeFixed: nonNegative(p.ChargeFixed),
	}
}

// IsZero reports whether the params leave both roles untouched.
func (p DiscountParams) IsZero() bool {
	c := p.Clamped()
	return c.ProfitPct == 0 && c.ProfitFixed == 0 && c.ChargePct == 0 && c.ChargeFixed == 0
}

// DiscountStore reads stored discount parameters.
type DiscountStore interface {
	DiscountParams(ctx context.Context, subjectID int64) (DiscountParams, error)
}

// ApplyRole discounts one role amount: percentage first, then the fixed
// amount, never going below zero.
func ApplyRole(base, pct, fixed float64) float64 {
	after := nonNegative(base)
	after -= after * nonNegative(pct) / 100
	after -= nonNegative(fixed)
	return nonNegative(after)
}

type overrideKey struct{}

type discountOverride struct {
	subjectID int64
	params    DiscountParams
}

// WithDiscountOverride returns a context under which DiscountService uses
// params for subjectID instead of the stored values. Nothing is persisted.
func WithDiscountOverride(ctx context.Context, subjectID int64, params DiscountParams) context.Context {
	return context.WithValue(ctx, overrideKey{}, discountOverride{subjectID: subjectID, params: params})
}

func discountOverrideFrom(ctx context.Context, subjectID int64) (DiscountParams, bool) {
	o, ok := ctx.Value(overrideKey{}).(discountOverride)
	if !ok || o.subjectID != subjectID {
		return DiscountParams{}, false
	}
	return o.params, true
}

// DiscountService applies per-subject discounts to role bases.
type DiscountService struct {
	Store DiscountStore
}

// Params returns the effective parameters for subjectID, honouring a context
// override. A nil store yields zero params.
func (s DiscountService) Params(ctx context.Context, subjectID int64) (DiscountParams, error) {
	if p, ok := discountOverrideFrom(ctx, subjectID); ok {
		return p.Clamped(), nil
	}
	if s.Store == nil {
		return DiscountParams{}, nil
	}
	p, err := s.Store.DiscountParams(ctx, subjectID)
	if err != nil {
		return DiscountParams{}, fmt.Errorf("load discount params: %w", err)
	}
	return p.Clamped(), nil
}

// Apply returns the discounted profit and charge amounts for subjectID.
func (s DiscountService) Apply(ctx context.Context, profitBase, chargeBase float64, subjectID int64) (float64, float64, error) {
	p, err := s.Params(ctx, subjectID)
	if err != nil {
		return 0, 0, err
	}
	return ApplyRole(profitBase, p.ProfitPct, p.ProfitFixed), ApplyRole(chargeBase, p.ChargePct, p.ChargeFixed), nil
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
