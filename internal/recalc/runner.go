// Package recalc recalculates stored prices in bulk.
package recalc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// DefaultConcurrency bounds parallel subject calculations.
const DefaultConcurrency = 4

// PriceCalculator prices one subject. *pricing.Calculator satisfies it.
type PriceCalculator interface {
	Calculate(ctx context.Context, subjectID int64) (*pricing.CalculationResult, error)
}

// Failure records one subject that could not be recalculated.
type Failure struct {
	SubjectID int64  `json:"subjectId"`
	Error     string `json:"error"`

	err error
}

// Summary reports the outcome of a run. Skipped subjects had no price and
// were left untouched.
type Summary struct {
	RunID    string        `json:"runId"`
	Total    int           `json:"total"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Failures []Failure     `json:"failures,omitempty"`
	Canceled bool          `json:"canceled"`
	Duration time.Duration `json:"duration"`
}

// Err joins every per-subject failure, or returns nil.
func (s Summary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(s.Failures))
	for _, f := range s.Failures {
		err := f.err
		if err == nil {
			err = errors.New(f.Error)
		}
		errs = append(errs, fmt.Errorf("subject %d: %w", f.SubjectID, err))
	}
	return errors.Join(errs...)
}

// Runner recalculates and writes prices for every matching subject.
type Runner struct {
	Calc        PriceCalculator
	Subjects    pricing.SubjectStore
	Writer      pricing.PriceWriter
	Concurrency int
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Run processes the subjects matching filter. Per-subject failures are
// counted and collected in the summary and never stop the run. A canceled
// context stops scheduling new subjects; the summary covers the ones handled
// and the context error is returned.
func (r *Runner) Run(ctx context.Context, filter pricing.SubjectFilter) (Summary, error) {
	if r == nil || r.Calc == nil || r.Subjects == nil || r.Writer == nil {
		return Summary{}, errors.New("recalc runner not configured")
	}
	start := r.now()
	summary := Summary{RunID: uuid.NewString()}
	logger := r.Logger.With().Str("run_id", summary.RunID).Int64("formula_id", filter.FormulaID).Logger()

	ids, err := r.Subjects.ListSubjects(ctx, filter)
	if err != nil {
		r.observeRun("error", start)
		return summary, fmt.Errorf("list subjects: %w", err)
	}
	summary.Total = len(ids)
	logger.Info().Int("total", summary.Total).Msg("recalculation started")

	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := r.process(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeUpdated:
				summary.Updated++
			case outcomeSkipped:
				summary.Skipped++
			default:
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{SubjectID: id, Error: err.Error(), err: err})
				logger.Warn().Err(err).Int64("subject_id", id).Msg("recalculation failed")
			}
			if obs.RecalcSubjectsTotal != nil {
				obs.RecalcSubjectsTotal.WithLabelValues(string(outcome)).Inc()
			}
			return nil
		})
	}
	_ = g.Wait()
	summary.Duration = r.now().Sub(start)

	if err := ctx.Err(); err != nil {
		summary.Canceled = true
		logger.Warn().Err(err).
			Int("updated", summary.Updated).
			Int("skipped", summary.Skipped).
			Int("failed", summary.Failed).
			Msg("recalculation canceled")
		r.observeRun("canceled", start)
		return summary, err
	}
	logger.Info().
		Int("total", summary.Total).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("recalculation finished")
	result := "ok"
	if summary.Failed > 0 {
		result = "partial"
	}
	r.observeRun(result, start)
	return summary, nil
}

type outcome string

const (
	outcomeUpdated outcome = "updated"
	outcomeSkipped outcome = "skipped"
	outcomeFailed  outcome = "failed"
)

func (r *Runner) process(ctx context.Context, subjectID int64) (outcome, error) {
	res, err := r.Calc.Calculate(ctx, subjectID)
	if err != nil {
		return outcomeFailed, err
	}
	if res == nil {
		return outcomeSkipped, nil
	}
	if err := r.Writer.WritePrice(ctx, subjectID, *res); err != nil {
		return outcomeFailed, fmt.Errorf("write price: %w", err)
	}
	return outcomeUpdated, nil
}

func (r *Runner) observeRun(result string, start time.Time) {
	if obs.RecalcRunsTotal != nil {
		obs.RecalcRunsTotal.WithLabelValues(result).Inc()
	}
	if obs.RecalcRunDuration != nil {
		obs.RecalcRunDuration.Observe(r.now().Sub(start).Seconds())
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
