package pricing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubFormulas struct {
	expressions map[int64]string
	variables   map[int64][]VariableDecl
	components  map[int64][]Component
	overrides   map[string]float64
}

func overrideKeyFor(formulaID, subjectID int64, code string) string {
	return fmt.Sprintf("%d/%d/%s", formulaID, subjectID, code)
}

func (s *stubFormulas) Expression(_ context.Context, formulaID int64) (string, error) {
	expr, ok := s.expressions[formulaID]
	if !ok {
		return "", ErrNotFound
	}
	return expr, nil
}

func (s *stubFormulas) VariableDeclarations(_ context.Context, formulaID int64) ([]VariableDecl, error) {
	return s.variables[formulaID], nil
}

func (s *stubFormulas) Components(_ context.Context, formulaID int64) ([]Component, error) {
	return s.components[formulaID], nil
}

func (s *stubFormulas) Override(_ context.Context, formulaID, subjectID int64, code string) (float64, bool, error) {
	v, ok := s.overrides[overrideKeyFor(formulaID, subjectID, code)]
	return v, ok, nil
}

type stubRates map[int64]float64

func (s stubRates) Rate(_ context.Context, currencyID int64) (float64, error) {
	return s[currencyID], nil
}

type stubSubjects map[int64]Subject

func (s stubSubjects) Subject(_ context.Context, subjectID int64) (Subject, error) {
	subject, ok := s[subjectID]
	if !ok {
		return Subject{}, ErrNotFound
	}
	return subject, nil
}

func (s stubSubjects) ListSubjects(_ context.Context, filter SubjectFilter) ([]int64, error) {
	var ids []int64
	for id, subject := range s {
		if filter.FormulaID != 0 && subject.FormulaID != filter.FormulaID {
			continue
		}
		if filter.EnabledOnly && !subject.Enabled {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newTestCalculator(t *testing.T, logs *bytes.Buffer) *Calculator {
	t.Helper()
	formulas := &stubFormulas{
		expressions: map[int64]string{1: "v1*2 + v2", 2: ""},
		variables: map[int64][]VariableDecl{
			1: {
				{Code: "v1", Kind: KindCurrencyLinked, CurrencyID: 3, Value: 1},
				{Code: "v2", Kind: KindCustom, Value: 15000},
			},
			2: {
				{Code: "cost", Value: 200},
				{Code: "margin", Value: 1000},
				{Code: "fee", Value: 500},
			},
		},
		components: map[int64][]Component{
			2: {
				{Name: "Base", Expression: "cost", Role: RoleNone},
				{Name: "Margin", Expression: "margin", Role: RoleProfit},
				{Name: "Handling", Expression: "fee", Role: RoleCharge},
				{Name: "Broken", Expression: "max(1,", Role: RoleNone},
			},
		},
		overrides: map[string]float64{overrideKeyFor(1, 11, "v2"): 20000},
	}
	subjects := stubSubjects{
		10: {ID: 10, Enabled: true, FormulaID: 1},
		11: {ID: 11, Enabled: true, FormulaID: 1},
		12: {ID: 12, Enabled: true, FormulaID: 2},
		13: {ID: 13, Enabled: false, FormulaID: 1},
		14: {ID: 14, Enabled: true},
		15: {ID: 15, Enabled: true, Mode: PricingSimple, CurrencyID: 3, ProfitValue: 10},
		16: {ID: 16, Enabled: true, Mode: PricingSimple, CurrencyID: 99, ProfitValue: 10},
		17: {ID: 17, Enabled: true, FormulaID: 404},
	}
	logger := zerolog.Nop()
	if logs != nil {
		logger = zerolog.New(logs)
	}
	return &Calculator{
		Engine:   newTestEngine(),
		Formulas: formulas,
		Rates:    stubRates{3: 59000},
		Subjects: subjects,
		Discounts: DiscountService{Store: &stubDiscountStore{params: map[int64]DiscountParams{
			12: {ProfitPct: 10, ProfitFixed: 50},
		}}},
		Logger: logger,
	}
}

func TestCalculatorEndToEnd(t *testing.T) {
	calc := newTestCalculator(t, nil)
	res, err := calc.Calculate(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, 133000.0, res.Price)
	require.Equal(t, 133000.0, res.PriceBeforeDiscount)
}

func TestCalculatorAppliesOverrides(t *testing.T) {
	calc := newTestCalculator(t, nil)
	res, err := calc.Calculate(context.Background(), 11)
	require.NoError(t, err)
	require.Equal(t, 138000.0, res.Price)
}

func TestCalculatorNoPrice(t *testing.T) {
	calc := newTestCalculator(t, nil)
	for _, id := range []int64{13, 14, 16, 17} {
		res, err := calc.Calculate(context.Background(), id)
		require.NoError(t, err, "subject %d", id)
		require.Nil(t, res, "subject %d", id)
	}
}

func TestCalculatorUnknownSubject(t *testing.T) {
	calc := newTestCalculator(t, nil)
	_, err := calc.Calculate(context.Background(), 999)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestCalculatorSimpleMode(t *testing.T) {
	calc := newTestCalculator(t, nil)
	res, err := calc.Calculate(context.Background(), 15)
	require.NoError(t, err)
	require.InDelta(t, 64900, res.Price, 1e-6)
}

func TestCalculatorLogsComponentFailures(t *testing.T) {
	var logs bytes.Buffer
	calc := newTestCalculator(t, &logs)
	res, err := calc.Calculate(context.Background(), 12)
	require.NoError(t, err)
	require.InDelta(t, 850, res.ProfitAfterDiscount, 1e-9)
	require.InDelta(t, 500, res.ChargeAfterDiscount, 1e-9)
	require.InDelta(t, 1550, res.Price, 1e-9)
	require.Contains(t, logs.String(), `"component":"Broken"`)
	require.Contains(t, logs.String(), `"subject_id":12`)
}

func TestCalculatorPreviewOverridesDiscount(t *testing.T) {
	calc := newTestCalculator(t, nil)
	res, err := calc.Preview(context.Background(), 12, &DiscountParams{ChargePct: 50})
	require.NoError(t, err)
	require.InDelta(t, 1000, res.ProfitAfterDiscount, 1e-9)
	require.InDelta(t, 250, res.ChargeAfterDiscount, 1e-9)

	stored, err := calc.Calculate(context.Background(), 12)
	require.NoError(t, err)
	require.InDelta(t, 850, stored.ProfitAfterDiscount, 1e-9)
}

func TestCalculatorNotConfigured(t *testing.T) {
	var calc *Calculator
	_, err := calc.Calculate(context.Background(), 1)
	require.Error(t, err)
}
