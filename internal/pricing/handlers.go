package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/formula"
)

// ExpressionEvaluator evaluates ad-hoc expressions in either mode.
type ExpressionEvaluator interface {
	Evaluate(expr string, env formula.Env) (float64, error)
	EvaluateStrict(expr string, env formula.Env) (float64, error)
}

// RecalcEnqueuer schedules a batch recalculation and returns its task id.
type RecalcEnqueuer interface {
	EnqueueRecalc(ctx context.Context, filter SubjectFilter) (string, error)
}

// Handler exposes pricing endpoints.
type Handler struct {
	Calc     *Calculator
	Engine   ExpressionEvaluator
	Recalc   RecalcEnqueuer
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// Routes mounts the pricing endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/formulas/evaluate", h.Evaluate)
	r.Get("/subjects/{subjectID}/price", h.Price)
	r.Post("/subjects/{subjectID}/price/preview", h.Preview)
	r.Post("/prices/simple", h.Simple)
	r.Post("/recalculate", h.Recalculate)
}

type evaluateRequest struct {
	Expression string             `json:"expression" validate:"required"`
	Variables  map[string]float64 `json:"variables"`
	Strict     bool               `json:"strict"`
}

type previewRequest struct {
	Discount *DiscountParams `json:"discount"`
}

type simpleRequest struct {
	Rate        float64  `json:"rate" validate:"gte=0"`
	ProfitKind  string   `json:"profitKind" validate:"omitempty,oneof=percent percentage fixed"`
	ProfitValue float64  `json:"profitValue"`
	Rounding    Rounding `json:"rounding"`
	Min         float64  `json:"min" validate:"gte=0"`
	Max         float64  `json:"max" validate:"gte=0"`
}

type recalcRequest struct {
	FormulaID int64 `json:"formulaId" validate:"gte=0"`
}

// Evaluate runs an expression against caller-supplied variables.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "formula engine not configured", nil)
		return
	}
	var req evaluateRequest
	if !h.decode(w, r, &req) {
		return
	}
	env := formula.NewEnv(req.Variables)
	var (
		value float64
		err   error
	)
	if req.Strict {
		value, err = h.Engine.EvaluateStrict(req.Expression, env)
	} else {
		value, err = h.Engine.Evaluate(req.Expression, env)
	}
	if err != nil {
		writeFormulaError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"value": value}})
}

// Price calculates the current price of a subject.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := subjectIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.Calc.Calculate(r.Context(), subjectID)
	h.writeResult(w, subjectID, result, err)
}

// Preview calculates a subject's price with unsaved discount parameters.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := subjectIDParam(w, r)
	if !ok {
		return
	}
	var req previewRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	result, err := h.Calc.Preview(r.Context(), subjectID, req.Discount)
	h.writeResult(w, subjectID, result, err)
}

// Simple prices a rate without a formula.
func (h *Handler) Simple(w http.ResponseWriter, r *http.Request) {
	var req simpleRequest
	if !h.decode(w, r, &req) {
		return
	}
	kind, err := ParseProfitKind(req.ProfitKind)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	result, ok := ComputeSimple(SimpleParams{
		Rate:        req.Rate,
		ProfitKind:  kind,
		ProfitValue: req.ProfitValue,
		Rounding:    req.Rounding,
		Min:         req.Min,
		Max:         req.Max,
	})
	if !ok {
		common.JSONError(w, http.StatusUnprocessableEntity, "NO_PRICE", "rate is missing or zero", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Recalculate enqueues a batch recalculation.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	if h.Recalc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "recalculation queue not configured", nil)
		return
	}
	var req recalcRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	taskID, err := h.Recalc.EnqueueRecalc(r.Context(), SubjectFilter{FormulaID: req.FormulaID, EnabledOnly: true})
	if err != nil {
		h.Logger.Error().Err(err).Int64("formula_id", req.FormulaID).Msg("enqueue recalculation")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not enqueue recalculation", nil)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"taskId": taskID}})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "validation failed", validationDetails(err))
			return false
		}
	}
	return true
}

func (h *Handler) writeResult(w http.ResponseWriter, subjectID int64, result *CalculationResult, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "subject not found", nil)
	case err != nil:
		var synErr *formula.SyntaxError
		if errors.As(err, &synErr) {
			writeFormulaError(w, err)
			return
		}
		h.Logger.Error().Err(err).Int64("subject_id", subjectID).Msg("calculate price")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not calculate price", nil)
	case result == nil:
		common.JSONError(w, http.StatusUnprocessableEntity, "NO_PRICE", "subject has no price", nil)
	default:
		common.JSON(w, http.StatusOK, map[string]any{"data": result})
	}
}

func writeFormulaError(w http.ResponseWriter, err error) {
	common.WriteError(w, formulaError(err))
}

func formulaError(err error) error {
	var synErr *formula.SyntaxError
	if errors.As(err, &synErr) {
		return common.NewAppError("SYNTAX_ERROR", synErr.Error(), http.StatusUnprocessableEntity, err).WithDetails(map[string]any{
			"kind":     synErr.Kind.String(),
			"position": synErr.Pos,
		})
	}
	var evalErr *formula.EvalError
	if errors.As(err, &evalErr) {
		return common.NewAppError("EVALUATION_ERROR", evalErr.Error(), http.StatusUnprocessableEntity, err).WithDetails(map[string]any{
			"kind": evalErr.Kind.String(),
			"name": evalErr.Name,
		})
	}
	return err
}

func subjectIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := common.ParseID(chi.URLParam(r, "subjectID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid subject id", nil)
		return 0, false
	}
	return id, true
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
