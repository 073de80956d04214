package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-pricing/internal/pricing"
)

const (
	getFormulaExpression = `SELECT expression FROM formulas WHERE id = $1`

	listFormulaVariables = `SELECT code, display_name, kind, currency_id, unit, value, role
FROM formula_variables
WHERE formula_id = $1
ORDER BY position, id`

	listFormulaComponents = `SELECT name, expression, symbolic_unit, role
FROM formula_components
WHERE formula_id = $1
ORDER BY position, id`

	getSubjectOverride = `SELECT value FROM subject_overrides
WHERE formula_id = $1 AND subject_id = $2 AND code = $3`
)

// Formulas implements pricing.FormulaRepository.
type Formulas struct {
	DB DBTX
}

// Expression returns the top-level expression of a formula, empty when the
// formula sums its components.
func (r Formulas) Expression(ctx context.Context, formulaID int64) (string, error) {
	var expr string
	if err := r.DB.QueryRow(ctx, getFormulaExpression, formulaID).Scan(&expr); err != nil {
		return "", mapNoRows(err)
	}
	return expr, nil
}

// VariableDeclarations lists a formula's variables in declaration order.
func (r Formulas) VariableDeclarations(ctx context.Context, formulaID int64) ([]pricing.VariableDecl, error) {
	rows, err := r.DB.Query(ctx, listFormulaVariables, formulaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.VariableDecl
	for rows.Next() {
		var (
			decl       pricing.VariableDecl
			kind       string
			currencyID pgtype.Int8
			role       pgtype.Text
		)
		if err := rows.Scan(&decl.Code, &decl.DisplayName, &kind, &currencyID, &decl.Unit, &decl.Value, &role); err != nil {
			return nil, err
		}
		decl.Kind, err = pricing.ParseVariableKind(kind)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", decl.Code, err)
		}
		decl.CurrencyID = int8Value(currencyID)
		decl.Role = pricing.ParseRole(role.String)
		out = append(out, decl)
	}
	return out, rows.Err()
}

// Components lists a formula's components in display order.
func (r Formulas) Components(ctx context.Context, formulaID int64) ([]pricing.Component, error) {
	rows, err := r.DB.Query(ctx, listFormulaComponents, formulaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.Component
	for rows.Next() {
		var (
			c    pricing.Component
			role pgtype.Text
		)
		if err := rows.Scan(&c.Name, &c.Expression, &c.SymbolicUnit, &role); err != nil {
			return nil, err
		}
		c.Role = pricing.ParseRole(role.String)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Override returns the stored per-subject quantity for code. Missing, empty
// and non-numeric values report false.
func (r Formulas) Override(ctx context.Context, formulaID, subjectID int64, code string) (float64, bool, error) {
	var raw string
	err := r.DB.QueryRow(ctx, getSubjectOverride, formulaID, subjectID, code).Scan(&raw)
	if err != nil {
		if err = mapNoRows(err); err == ErrNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	v, ok := pricing.ParseOverride(raw)
	return v, ok, nil
}
