package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-pricing/internal/pricing"
)

const (
	getSubject = `SELECT id, pricing_enabled, pricing_mode, formula_id, currency_id,
       profit_kind, profit_value, min_price, max_price,
       rounding_mode, rounding_side, rounding_step
FROM subjects
WHERE id = $1`

	listSubjects = `SELECT id FROM subjects
WHERE ($1::bigint = 0 OR formula_id = $1)
  AND (NOT $2::boolean OR pricing_enabled)
ORDER BY id`

	getDiscountParams = `SELECT discount_profit_pct, discount_profit_fixed, discount_charge_pct, discount_charge_fixed
FROM subjects
WHERE id = $1`

	upsertSubjectPrice = `INSERT INTO subject_prices (subject_id, regular_price, sale_price, profit_after, charge_after, calculated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (subject_id) DO UPDATE
SET regular_price = EXCLUDED.regular_price,
    sale_price = EXCLUDED.sale_price,
    profit_after = EXCLUDED.profit_after,
    charge_after = EXCLUDED.charge_after,
    calculated_at = EXCLUDED.calculated_at`
)

// Subjects implements pricing.SubjectStore, pricing.DiscountStore and
// pricing.PriceWriter.
type Subjects struct {
	DB  DBTX
	Now func() time.Time
}

// Subject loads one subject's pricing settings.
func (r Subjects) Subject(ctx context.Context, subjectID int64) (pricing.Subject, error) {
	var (
		s                       pricing.Subject
		mode, profitKind        string
		roundingMode, roundSide string
		formulaID, currencyID   pgtype.Int8
	)
	err := r.DB.QueryRow(ctx, getSubject, subjectID).Scan(
		&s.ID, &s.Enabled, &mode, &formulaID, &currencyID,
		&profitKind, &s.ProfitValue, &s.MinPrice, &s.MaxPrice,
		&roundingMode, &roundSide, &s.Rounding.Step,
	)
	if err != nil {
		return pricing.Subject{}, mapNoRows(err)
	}
	s.FormulaID = int8Value(formulaID)
	s.CurrencyID = int8Value(currencyID)
	if s.Mode, err = pricing.ParsePricingMode(mode); err != nil {
		return pricing.Subject{}, fmt.Errorf("subject %d: %w", subjectID, err)
	}
	if s.ProfitKind, err = pricing.ParseProfitKind(profitKind); err != nil {
		return pricing.Subject{}, fmt.Errorf("subject %d: %w", subjectID, err)
	}
	if s.Rounding.Mode, err = pricing.ParseRoundingMode(roundingMode); err != nil {
		return pricing.Subject{}, fmt.Errorf("subject %d: %w", subjectID, err)
	}
	if s.Rounding.Side, err = pricing.ParseRoundingSide(roundSide); err != nil {
		return pricing.Subject{}, fmt.Errorf("subject %d: %w", subjectID, err)
	}
	return s, nil
}

// ListSubjects returns the ids matching filter in ascending order.
func (r Subjects) ListSubjects(ctx context.Context, filter pricing.SubjectFilter) ([]int64, error) {
	rows, err := r.DB.Query(ctx, listSubjects, filter.FormulaID, filter.EnabledOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DiscountParams loads the stored discount settings of a subject.
func (r Subjects) DiscountParams(ctx context.Context, subjectID int64) (pricing.DiscountParams, error) {
	var p pricing.DiscountParams
	err := r.DB.QueryRow(ctx, getDiscountParams, subjectID).Scan(&p.ProfitPct, &p.ProfitFixed, &p.ChargePct, &p.ChargeFixed)
	if err != nil {
		return pricing.DiscountParams{}, mapNoRows(err)
	}
	return p, nil
}

// WritePrice stores the price before discount as the regular price and the
// discounted price as the sale price when it is lower.
func (r Subjects) WritePrice(ctx context.Context, subjectID int64, res pricing.CalculationResult) error {
	sale := pgtype.Float8{}
	if res.Discounted() {
		sale = pgtype.Float8{Float64: res.Price, Valid: true}
	}
	_, err := r.DB.Exec(ctx, upsertSubjectPrice,
		subjectID, res.PriceBeforeDiscount, sale, res.ProfitAfterDiscount, res.ChargeAfterDiscount, r.now())
	if err != nil {
		return fmt.Errorf("upsert price of subject %d: %w", subjectID, err)
	}
	return nil
}

func (r Subjects) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
