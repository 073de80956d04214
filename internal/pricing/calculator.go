package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-pricing/internal/obs"
)

// ErrNotFound reports a missing subject or formula.
var ErrNotFound = errors.New("pricing: not found")

// FormulaRepository reads formula definitions and per-subject overrides.
type FormulaRepository interface {
	Expression(ctx context.Context, formulaID int64) (string, error)
	VariableDeclarations(ctx context.Context, formulaID int64) ([]VariableDecl, error)
	Components(ctx context.Context, formulaID int64) ([]Component, error)
	Override(ctx context.Context, formulaID, subjectID int64, code string) (float64, bool, error)
}

// RateProvider returns the current rate for a currency, 0 when unknown.
type RateProvider interface {
	Rate(ctx context.Context, currencyID int64) (float64, error)
}

// PricingMode selects formula or simple pricing for a subject.
type PricingMode int

const (
	PricingFormula PricingMode = iota
	PricingSimple
)

// String returns the storage form of the mode.
func (m PricingMode) String() string {
	if m == PricingSimple {
		return "simple"
	}
	return "formula"
}

// ParsePricingMode converts the storage form into a PricingMode.
func ParsePricingMode(value string) (PricingMode, error) {
	switch value {
	case "", "formula":
		return PricingFormula, nil
	case "simple":
		return PricingSimple, nil
	default:
		return PricingFormula, fmt.Errorf("unknown pricing mode %q", value)
	}
}

// Subject is a priced item and its pricing settings.
type Subject struct {
	ID        int64
	Enabled   bool
	Mode      PricingMode
	FormulaID int64
	// CurrencyID, ProfitKind, ProfitValue, MinPrice and MaxPrice apply to
	// simple mode only.
	CurrencyID  int64
	ProfitKind  ProfitKind
	ProfitValue float64
	MinPrice    float64
	MaxPrice    float64
	Rounding    Rounding
}

// SubjectFilter narrows ListSubjects. Zero FormulaID matches every formula.
type SubjectFilter struct {
	FormulaID   int64
	EnabledOnly bool
}

// SubjectStore reads subjects.
type SubjectStore interface {
	Subject(ctx context.Context, subjectID int64) (Subject, error)
	ListSubjects(ctx context.Context, filter SubjectFilter) ([]int64, error)
}

// PriceWriter persists a computed price.
type PriceWriter interface {
	WritePrice(ctx context.Context, subjectID int64, result CalculationResult) error
}

// Calculator loads a subject's inputs and runs the pricing pipeline.
type Calculator struct {
	Engine    Evaluator
	Formulas  FormulaRepository
	Rates     RateProvider
	Subjects  SubjectStore
	Discounts DiscountService
	Logger    zerolog.Logger
}

// Calculate prices subjectID. A nil result with a nil error means no price:
// the subject is disabled, has no formula, or (simple mode) has no rate. The
// caller should leave any stored price untouched in that case.
func (c *Calculator) Calculate(ctx context.Context, subjectID int64) (result *CalculationResult, err error) {
	if c == nil || c.Engine == nil || c.Subjects == nil {
		return nil, errors.New("pricing calculator not configured")
	}
	ctx, span := otel.Tracer("pricing.Calculator").Start(ctx, "Calculator.Calculate")
	defer span.End()
	span.SetAttributes(attribute.Int64("subject.id", subjectID))

	start := time.Now()
	mode := "unknown"
	defer func() {
		outcome := "priced"
		switch {
		case err != nil:
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result == nil:
			outcome = "no_price"
		}
		span.SetAttributes(attribute.String("pricing.mode", mode), attribute.String("pricing.outcome", outcome))
		if obs.PriceCalculationsTotal != nil {
			obs.PriceCalculationsTotal.WithLabelValues(mode, outcome).Inc()
		}
		if obs.PriceCalculationLatency != nil {
			obs.PriceCalculationLatency.WithLabelValues(mode).Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	subject, err := c.Subjects.Subject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load subject %d: %w", subjectID, err)
	}
	mode = subject.Mode.String()
	if !subject.Enabled {
		return nil, nil
	}
	if subject.Mode == PricingSimple {
		return c.calculateSimple(ctx, subject)
	}
	return c.calculateFormula(ctx, subject)
}

// Preview prices subjectID with ephemeral discount parameters. Nothing is
// persisted and the stored discount settings are not consulted.
func (c *Calculator) Preview(ctx context.Context, subjectID int64, discount *DiscountParams) (*CalculationResult, error) {
	if discount != nil {
		ctx = WithDiscountOverride(ctx, subjectID, *discount)
	}
	return c.Calculate(ctx, subjectID)
}

func (c *Calculator) calculateSimple(ctx context.Context, subject Subject) (*CalculationResult, error) {
	if c.Rates == nil {
		return nil, errors.New("rate provider not configured")
	}
	rate, err := c.Rates.Rate(ctx, subject.CurrencyID)
	if err != nil {
		return nil, fmt.Errorf("load rate %d: %w", subject.CurrencyID, err)
	}
	res, ok := ComputeSimple(SimpleParams{
		Rate:        rate,
		ProfitKind:  subject.ProfitKind,
		ProfitValue: subject.ProfitValue,
		Rounding:    subject.Rounding,
		Min:         subject.MinPrice,
		Max:         subject.MaxPrice,
	})
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (c *Calculator) calculateFormula(ctx context.Context, subject Subject) (*CalculationResult, error) {
	if subject.FormulaID == 0 {
		return nil, nil
	}
	if c.Formulas == nil {
		return nil, errors.New("formula repository not configured")
	}
	f, err := c.loadFormula(ctx, subject.FormulaID)
	if errors.Is(err, ErrNotFound) {
		c.Logger.Warn().Int64("subject_id", subject.ID).Int64("formula_id", subject.FormulaID).Msg("assigned formula missing")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	overrides, err := c.loadOverrides(ctx, f, subject.ID)
	if err != nil {
		return nil, err
	}
	rates, err := c.loadRates(ctx, f.Variables)
	if err != nil {
		return nil, err
	}

	discount := func(profitBase, chargeBase float64) (float64, float64, error) {
		return c.Discounts.Apply(ctx, profitBase, chargeBase, subject.ID)
	}
	res, err := Compute(c.Engine, Input{
		Formula:  f,
		Vars:     Resolve(f.Variables, overrides, rates),
		Rounding: subject.Rounding,
	}, discount)
	if err != nil {
		return nil, fmt.Errorf("subject %d formula %d: %w", subject.ID, f.ID, err)
	}
	for _, row := range res.Breakdown.Rows {
		if row.Error == "" {
			continue
		}
		c.Logger.Warn().
			Int64("subject_id", subject.ID).
			Int64("formula_id", f.ID).
			Str("component", row.Name).
			Str("error", row.Error).
			Msg("formula component failed")
		if obs.ComponentFailuresTotal != nil {
			obs.ComponentFailuresTotal.Inc()
		}
	}
	return &res, nil
}

func (c *Calculator) loadFormula(ctx context.Context, formulaID int64) (Formula, error) {
	expr, err := c.Formulas.Expression(ctx, formulaID)
	if err != nil {
		return Formula{}, fmt.Errorf("load formula %d: %w", formulaID, err)
	}
	decls, err := c.Formulas.VariableDeclarations(ctx, formulaID)
	if err != nil {
		return Formula{}, fmt.Errorf("load variables of formula %d: %w", formulaID, err)
	}
	comps, err := c.Formulas.Components(ctx, formulaID)
	if err != nil {
		return Formula{}, fmt.Errorf("load components of formula %d: %w", formulaID, err)
	}
	return Formula{ID: formulaID, Expression: expr, Variables: decls, Components: comps}, nil
}

func (c *Calculator) loadOverrides(ctx context.Context, f Formula, subjectID int64) (Overrides, error) {
	overrides := Overrides{}
	for _, d := range f.Variables {
		v, ok, err := c.Formulas.Override(ctx, f.ID, subjectID, d.Code)
		if err != nil {
			return nil, fmt.Errorf("load override %q: %w", d.Code, err)
		}
		if ok {
			overrides[d.Code] = v
		}
	}
	return overrides, nil
}

func (c *Calculator) loadRates(ctx context.Context, decls []VariableDecl) (RateTable, error) {
	rates := RateTable{}
	for _, d := range decls {
		if d.Kind != KindCurrencyLinked {
			continue
		}
		if _, seen := rates[d.CurrencyID]; seen {
			continue
		}
		if c.Rates == nil {
			return nil, errors.New("rate provider not configured")
		}
		rate, err := c.Rates.Rate(ctx, d.CurrencyID)
		if err != nil {
			return nil, fmt.Errorf("load rate %d: %w", d.CurrencyID, err)
		}
		rates[d.CurrencyID] = rate
	}
	return rates, nil
}
