package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/voralis/stageflow/types"
)

const defaultStageTimeout = 5 * time.Minute

type attemptOutcome struct {
	result *types.StageResult
	err    error
}

// invokeOnce runs a single executor attempt under the stage deadline.
// The executor runs in its own goroutine so a stuck implementation cannot
// wedge the interpreter loop; on timeout the attempt context is cancelled
// and the goroutine's eventual result is discarded.
func (e *Engine) invokeOnce(ctx context.Context, wf *Workflow, stage *StageDefinition, exec StageExecutor, task *Task) (*types.StageResult, error) {
	timeout := stage.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptOutcome{err: types.NewError(types.ErrStageFailed,
					fmt.Sprintf("executor panicked: %v", r)).WithStage(stage.ID)}
			}
		}()
		res, err := exec.Execute(attemptCtx, task)
		done <- attemptOutcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil && out.result == nil {
			return nil, types.NewError(types.ErrStageFailed, "executor returned no result").WithStage(stage.ID)
		}
		return out.result, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrRunCancelled, "workflow run cancelled").
				WithStage(stage.ID).WithCause(ctx.Err())
		}
		e.metrics.RecordTimeout(wf.ID, stage.ID)
		return nil, types.NewError(types.ErrStageTimeout,
			fmt.Sprintf("stage %s timed out after %s", stage.ID, timeout)).
			WithStage(stage.ID).WithRetryable(true)
	}
}

// runAttempts drives the retry loop for one stage. It returns the first
// successful result along with the attempt count, or a fatal error once
// the budget is spent. Run cancellation is never retried.
func (e *Engine) runAttempts(ctx context.Context, wf *Workflow, stage *StageDefinition, exec StageExecutor, task *Task) (*types.StageResult, int, *types.Error) {
	maxAttempts := 1
	var policy RetryPolicy
	if stage.Retry != nil {
		policy = *stage.Retry
		if policy.MaxAttempts > 0 {
			maxAttempts = policy.MaxAttempts
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := e.invokeOnce(ctx, wf, stage, exec, task)
		if err == nil {
			if res.Action == types.ActionError && !res.Recoverable {
				// Fatal regardless of remaining attempt budget.
				return nil, attempt, types.NewError(types.ErrStageFailed, res.Message).
					WithStage(stage.ID)
			}
			// A recoverable error result is not retried either: it falls
			// through to the stage's static wiring like any other result.
			return res, attempt, nil
		}
		lastErr = err

		if types.GetErrorCode(err) == types.ErrRunCancelled {
			return nil, attempt, asEngineError(err, stage.ID)
		}

		e.logger.Warn("stage attempt failed",
			zap.String("workflow_id", wf.ID),
			zap.String("stage_id", stage.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < maxAttempts {
			e.metrics.RecordRetry(wf.ID, stage.ID)
			if serr := sleepContext(ctx, policy.Delay(attempt)); serr != nil {
				return nil, attempt, types.NewError(types.ErrRunCancelled, "workflow run cancelled").
					WithStage(stage.ID).WithCause(serr)
			}
		}
	}

	if maxAttempts == 1 {
		return nil, 1, asEngineError(lastErr, stage.ID)
	}
	return nil, maxAttempts, types.NewError(types.ErrAttemptsExhausted, lastErr.Error()).
		WithStage(stage.ID).WithCause(lastErr)
}

// asEngineError lifts arbitrary executor errors into the structured form.
func asEngineError(err error, stageID string) *types.Error {
	if ee, ok := err.(*types.Error); ok {
		if ee.StageID == "" {
			return ee.WithStage(stageID)
		}
		return ee
	}
	return types.NewError(types.ErrStageFailed, err.Error()).WithStage(stageID).WithCause(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
