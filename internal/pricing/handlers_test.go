package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubEnqueuer struct {
	filter SubjectFilter
	err    error
}

func (s *stubEnqueuer) EnqueueRecalc(_ context.Context, filter SubjectFilter) (string, error) {
	s.filter = filter
	if s.err != nil {
		return "", s.err
	}
	return "task-1", nil
}

func newTestRouter(t *testing.T, enq RecalcEnqueuer) http.Handler {
	t.Helper()
	h := &Handler{
		Calc:     newTestCalculator(t, nil),
		Engine:   newTestEngine(),
		Recalc:   enq,
		Validate: validator.New(),
		Logger:   zerolog.Nop(),
	}
	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	var payload map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	}
	return rr, payload
}

func errorCode(payload map[string]any) string {
	body, _ := payload["error"].(map[string]any)
	code, _ := body["code"].(string)
	return code
}

func TestHandlerEvaluate(t *testing.T) {
	router := newTestRouter(t, nil)
	rr, payload := doRequest(t, router, http.MethodPost, "/api/v1/formulas/evaluate", `{"expression":"[Rate]*2 + 50%","variables":{"rate":10}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	data := payload["data"].(map[string]any)
	require.Equal(t, 20.5, data["value"])
}

func TestHandlerEvaluateErrors(t *testing.T) {
	router := newTestRouter(t, nil)

	rr, payload := doRequest(t, router, http.MethodPost, "/api/v1/formulas/evaluate", `{"expression":"(1+2"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "SYNTAX_ERROR", errorCode(payload))

	rr, payload = doRequest(t, router, http.MethodPost, "/api/v1/formulas/evaluate", `{"expression":"a+1","strict":true}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "EVALUATION_ERROR", errorCode(payload))

	rr, payload = doRequest(t, router, http.MethodPost, "/api/v1/formulas/evaluate", `{"variables":{}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "BAD_REQUEST", errorCode(payload))
}

func TestHandlerPrice(t *testing.T) {
	router := newTestRouter(t, nil)
	rr, payload := doRequest(t, router, http.MethodGet, "/api/v1/subjects/10/price", "")
	require.Equal(t, http.StatusOK, rr.Code)
	data := payload["data"].(map[string]any)
	require.Equal(t, 133000.0, data["price"])

	rr, payload = doRequest(t, router, http.MethodGet, "/api/v1/subjects/13/price", "")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "NO_PRICE", errorCode(payload))

	rr, payload = doRequest(t, router, http.MethodGet, "/api/v1/subjects/999/price", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "NOT_FOUND", errorCode(payload))

	rr, _ = doRequest(t, router, http.MethodGet, "/api/v1/subjects/abc/price", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerPreview(t *testing.T) {
	router := newTestRouter(t, nil)
	rr, payload := doRequest(t, router, http.MethodPost, "/api/v1/subjects/12/price/preview", `{"discount":{"profitPct":0,"profitFixed":100}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	data := payload["data"].(map[string]any)
	require.Equal(t, 900.0, data["profitAfterDiscount"])
	breakdown := data["breakdown"].(map[string]any)
	require.Equal(t, "components", breakdown["mode"])

	rr, payload = doRequest(t, router, http.MethodPost, "/api/v1/subjects/12/price/preview", `{"discount":{"profitPct":-1}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "BAD_REQUEST", errorCode(payload))
}

func TestHandlerSimple(t *testing.T) {
	router := newTestRouter(t, nil)
	rr, payload := doRequest(t, router, http.MethodPost, "/api/v1/prices/simple", `{"rate":1000,"profitKind":"fixed","profitValue":234,"rounding":{"mode":"nine","step":10,"side":"up"}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	data := payload["data"].(map[string]any)
	require.Equal(t, 1299.0, data["price"])

	rr, payload = doRequest(t, router, http.MethodPost, "/api/v1/prices/simple", `{"rate":0}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "NO_PRICE", errorCode(payload))
}

func TestHandlerRecalculate(t *testing.T) {
	enq := &stubEnqueuer{}
	router := newTestRouter(t, enq)
	rr, payload := doRequest(t, router, http.MethodPost, "/api/v1/recalculate", `{"formulaId":2}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, "task-1", payload["data"].(map[string]any)["taskId"])
	require.Equal(t, SubjectFilter{FormulaID: 2, EnabledOnly: true}, enq.filter)

	enq.err = errors.New("redis down")
	rr, payload = doRequest(t, router, http.MethodPost, "/api/v1/recalculate", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "INTERNAL", errorCode(payload))
}
