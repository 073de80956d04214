package recalc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// TypeRecalculate is the asynq task type for batch recalculation.
const TypeRecalculate = "pricing:recalculate"

// Payload is the task body.
type Payload struct {
	FormulaID   int64 `json:"formulaId,omitempty"`
	EnabledOnly bool  `json:"enabledOnly"`
}

// NewTask builds a recalculation task for filter.
func NewTask(filter pricing.SubjectFilter) (*asynq.Task, error) {
	body, err := json.Marshal(Payload{FormulaID: filter.FormulaID, EnabledOnly: filter.EnabledOnly})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRecalculate, body), nil
}

// TaskEnqueuer is the subset of *asynq.Client used here.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules recalculation tasks.
type Enqueuer struct {
	Client   TaskEnqueuer
	Queue    string
	MaxRetry int
	// Unique suppresses duplicate tasks for the same filter within the window.
	Unique time.Duration
}

// EnqueueRecalc enqueues a run for filter and returns the task id.
func (e Enqueuer) EnqueueRecalc(ctx context.Context, filter pricing.SubjectFilter) (string, error) {
	if e.Client == nil {
		return "", errors.New("recalc: task client not configured")
	}
	task, err := NewTask(filter)
	if err != nil {
		return "", err
	}
	opts := []asynq.Option{asynq.MaxRetry(e.MaxRetry)}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if e.Unique > 0 {
		opts = append(opts, asynq.Unique(e.Unique))
	}
	info, err := e.Client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeRecalculate, err)
	}
	return info.ID, nil
}

// RunGuard serialises runs. Locker satisfies it.
type RunGuard interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// TaskHandler processes recalculation tasks.
type TaskHandler struct {
	Runner *Runner
	Guard  RunGuard
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler. A malformed payload or a run that
// overlaps another is not retried; per-subject failures are reported in the
// summary and do not fail the task.
func (h *TaskHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload Payload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	filter := pricing.SubjectFilter{FormulaID: payload.FormulaID, EnabledOnly: payload.EnabledOnly}
	run := func(ctx context.Context) error {
		summary, err := h.Runner.Run(ctx, filter)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			h.Logger.Warn().
				Str("run_id", summary.RunID).
				Int("failed", summary.Failed).
				Err(summary.Err()).
				Msg("recalculation completed with failures")
		}
		return nil
	}
	var err error
	if h.Guard != nil {
		err = h.Guard.Do(ctx, run)
	} else {
		err = run(ctx)
	}
	if errors.Is(err, ErrRunInProgress) {
		h.Logger.Info().Int64("formula_id", filter.FormulaID).Msg("recalculation skipped, run in progress")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
