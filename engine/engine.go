package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/voralis/stageflow/internal/metrics"
	"github.com/voralis/stageflow/state"
	"github.com/voralis/stageflow/types"
)

// sourceEngine tags state changes originated by the interpreter itself,
// as opposed to changes merged from an executor's result.
const sourceEngine = "engine"

// Engine interprets workflow definitions stage by stage. It owns no state
// of its own beyond configuration; every run gets a fresh state container,
// so one Engine can serve concurrent runs.
type Engine struct {
	registry         *Registry
	input            InputProvider
	bus              EventBus
	logger           *zap.Logger
	metrics          *metrics.Collector
	tracer           trace.Tracer
	defaultTimeout   time.Duration
	checkpointStages bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithInputProvider wires the provider consulted when a stage asks to wait
// for input. Without one, wait_for_input results abort the run.
func WithInputProvider(p InputProvider) EngineOption {
	return func(e *Engine) { e.input = p }
}

// WithEventBus replaces the default bus lifecycle events publish to.
func WithEventBus(bus EventBus) EngineOption {
	return func(e *Engine) {
		if bus != nil {
			e.bus = bus
		}
	}
}

// WithMetrics wires a prometheus collector. Nil disables recording.
func WithMetrics(c *metrics.Collector) EngineOption {
	return func(e *Engine) { e.metrics = c }
}

// WithDefaultTimeout overrides the per-attempt deadline applied to stages
// that do not declare their own.
func WithDefaultTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithStageCheckpoints makes the engine save a named checkpoint on the
// session store before each stage runs, so callers can roll the returned
// session back to any stage boundary.
func WithStageCheckpoints() EngineOption {
	return func(e *Engine) { e.checkpointStages = true }
}

// New builds an Engine around the given executor registry.
func New(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:       registry,
		logger:         zap.NewNop(),
		defaultTimeout: defaultStageTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bus == nil {
		e.bus = NewEventBus(e.logger)
	}
	e.tracer = otel.Tracer("stageflow/engine")
	return e
}

// StageExecution is one entry in a run's execution log. A stage that paused
// for input still produces a single entry, built from its final result.
type StageExecution struct {
	StageID  string
	Executor string
	Result   *types.StageResult
	Attempts int
	Elapsed  time.Duration
}

// RunResult is the terminal outcome of a workflow run. Fatal conditions are
// reported here rather than panicking: Success is false, Error carries the
// human-readable message and Err the structured cause.
type RunResult struct {
	Success    bool
	FinalState *types.State
	// Session is the run's state container: full snapshot history, change
	// subscriptions and any stage checkpoints saved during the run.
	Session *state.Store
	Log     []StageExecution
	Output  any
	Error   string
	Err     error
}

// Execute runs the workflow to termination and returns the outcome bundle.
// The context bounds the whole run; cancelling it aborts the current stage
// and fails the run with a cancellation error.
func (e *Engine) Execute(ctx context.Context, wf *Workflow, initialInput map[string]any) *RunResult {
	runStart := time.Now()
	if wf == nil {
		err := types.NewError(types.ErrInvalidDefinition, "nil workflow")
		return &RunResult{Success: false, Error: err.Message, Err: err}
	}
	if err := wf.Validate(); err != nil {
		ee := asEngineError(err, "")
		return &RunResult{Success: false, Error: ee.Message, Err: ee}
	}

	payload := map[string]any{}
	if wf.InitialState != nil {
		for k, v := range wf.InitialState() {
			payload[k] = v
		}
	}
	for k, v := range initialInput {
		payload[k] = v
	}

	store := state.NewStore(payload,
		state.WithLogger(e.logger),
		state.WithStatus(types.StatusActive))
	sessionID := store.Read().SessionID

	logger := e.logger.With(
		zap.String("workflow_id", wf.ID),
		zap.String("session_id", sessionID))

	ctx, span := e.tracer.Start(ctx, "workflow.execute", trace.WithAttributes(
		attribute.String("workflow.id", wf.ID),
		attribute.String("session.id", sessionID)))
	defer span.End()

	e.bus.Publish(&WorkflowStartEvent{
		WorkflowID: wf.ID,
		SessionID:  sessionID,
		Timestamp_: time.Now(),
	})
	logger.Info("workflow run started", zap.String("initial_stage", wf.InitialStage))

	var log []StageExecution
	current := wf.InitialStage
	for current != "" {
		if cerr := ctx.Err(); cerr != nil {
			ferr := types.NewError(types.ErrRunCancelled, "workflow run cancelled").WithCause(cerr)
			return e.fail(wf, store, span, log, ferr, runStart)
		}

		stage, ok := wf.Stage(current)
		if !ok {
			ferr := types.NewError(types.ErrStageNotFound, "stage not found: "+current)
			return e.fail(wf, store, span, log, ferr, runStart)
		}
		exec, ok := e.registry.Get(stage.Executor)
		if !ok {
			ferr := types.NewError(types.ErrExecutorNotFound,
				"no executor registered for key: "+stage.Executor).WithStage(stage.ID)
			return e.fail(wf, store, span, log, ferr, runStart)
		}

		if e.checkpointStages {
			store.SaveCheckpoint(stage.ID)
		}
		e.bus.Publish(&StageStartEvent{
			WorkflowID: wf.ID,
			SessionID:  sessionID,
			StageID:    stage.ID,
			Executor:   stage.Executor,
			Timestamp_: time.Now(),
		})
		store.Update(state.Patch{Stage: &stage.ID, Executor: &stage.Executor}, sourceEngine)
		logger.Debug("entering stage",
			zap.String("stage_id", stage.ID),
			zap.String("executor", stage.Executor))

		if msg, ok := checkPreconditions(stage, store.Read()); !ok {
			ferr := types.NewError(types.ErrPrecondition, msg).WithStage(stage.ID)
			e.metrics.RecordStage(wf.ID, stage.ID, "precondition_failed", 0)
			return e.fail(wf, store, span, log, ferr, runStart)
		}

		stageStart := time.Now()
		res, attempts, ferr := e.runStage(ctx, wf, stage, exec, store, sessionID)
		elapsed := time.Since(stageStart)
		if ferr != nil {
			e.metrics.RecordStage(wf.ID, stage.ID, "error", elapsed)
			return e.fail(wf, store, span, log, ferr, runStart)
		}
		res.Elapsed = elapsed

		if len(res.StateUpdates) > 0 {
			store.UpdatePayload(res.StateUpdates, stage.Executor)
		}

		log = append(log, StageExecution{
			StageID:  stage.ID,
			Executor: stage.Executor,
			Result:   res,
			Attempts: attempts,
			Elapsed:  elapsed,
		})
		stageStatus := "success"
		if res.Action == types.ActionError {
			stageStatus = "recoverable_error"
		}
		e.metrics.RecordStage(wf.ID, stage.ID, stageStatus, elapsed)
		e.bus.Publish(&StageCompleteEvent{
			WorkflowID: wf.ID,
			SessionID:  sessionID,
			StageID:    stage.ID,
			Executor:   stage.Executor,
			Action:     res.Action,
			Attempts:   attempts,
			Elapsed:    elapsed,
			Timestamp_: time.Now(),
		})
		logger.Debug("stage completed",
			zap.String("stage_id", stage.ID),
			zap.String("action", string(res.Action)),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed))

		next, ferr := e.resolveNext(wf, stage, res, store)
		if ferr != nil {
			return e.fail(wf, store, span, log, ferr, runStart)
		}
		current = next
	}

	completed := types.StatusCompleted
	store.Update(state.Patch{Status: &completed}, sourceEngine)

	summary := ""
	if n := len(log); n > 0 {
		summary = log[n-1].Result.Summary
	}
	e.bus.Publish(&WorkflowCompleteEvent{
		WorkflowID: wf.ID,
		SessionID:  sessionID,
		Stages:     len(log),
		Summary:    summary,
		Timestamp_: time.Now(),
	})
	e.metrics.RecordRun(wf.ID, "completed", time.Since(runStart))
	span.SetStatus(codes.Ok, "")
	logger.Info("workflow run completed",
		zap.Int("stages", len(log)),
		zap.Duration("elapsed", time.Since(runStart)))

	return &RunResult{
		Success:    true,
		FinalState: store.Read(),
		Session:    store,
		Log:        log,
		Output:     lastOutput(log),
	}
}

// runStage executes one stage through its retry budget, then drives the
// wait-for-input loop: while the executor keeps asking for input, the engine
// acquires an answer, folds it into the stage input under "user_input" and
// re-invokes the same stage. The returned result is the final sub-step's.
func (e *Engine) runStage(ctx context.Context, wf *Workflow, stage *StageDefinition, exec StageExecutor, store *state.Store, sessionID string) (*types.StageResult, int, *types.Error) {
	ctx, span := e.tracer.Start(ctx, "stage."+stage.ID, trace.WithAttributes(
		attribute.String("stage.id", stage.ID),
		attribute.String("executor", stage.Executor)))
	defer span.End()

	task := e.buildTask(stage, store, sessionID)
	res, attempts, ferr := e.runAttempts(ctx, wf, stage, exec, task)
	if ferr != nil {
		span.SetStatus(codes.Error, ferr.Message)
		return nil, attempts, ferr
	}

	for res.Action == types.ActionWaitForInput {
		if e.input == nil {
			ferr := types.NewError(types.ErrInputUnavailable,
				"stage requested input but no input provider is configured").WithStage(stage.ID)
			span.SetStatus(codes.Error, ferr.Message)
			return nil, attempts, ferr
		}

		waiting := types.StatusWaitingForInput
		store.Update(state.Patch{Status: &waiting}, sourceEngine)
		e.logger.Debug("stage waiting for input",
			zap.String("stage_id", stage.ID),
			zap.String("prompt", res.Prompt))

		answer, err := e.input.Request(ctx, res.Prompt, res.Choices)
		if err != nil {
			code := types.ErrInputUnavailable
			if ctx.Err() != nil {
				code = types.ErrRunCancelled
			}
			ferr := types.NewError(code, "input request failed: "+err.Error()).
				WithStage(stage.ID).WithCause(err)
			span.SetStatus(codes.Error, ferr.Message)
			return nil, attempts, ferr
		}

		active := types.StatusActive
		store.Update(state.Patch{Status: &active}, sourceEngine)

		task = e.buildTask(stage, store, sessionID)
		task.Input["user_input"] = answer
		next, err := e.invokeOnce(ctx, wf, stage, exec, task)
		attempts++
		if err == nil && next.Action == types.ActionError && !next.Recoverable {
			err = types.NewError(types.ErrStageFailed, next.Message).WithStage(stage.ID)
		}
		if err != nil {
			ferr := asEngineError(err, stage.ID)
			span.SetStatus(codes.Error, ferr.Message)
			return nil, attempts, ferr
		}
		res = next
	}

	span.SetAttributes(attribute.Int("attempts", attempts))
	return res, attempts, nil
}

// buildTask snapshots state and projects the stage input. Without a
// projector the full payload snapshot is the input.
func (e *Engine) buildTask(stage *StageDefinition, store *state.Store, sessionID string) *Task {
	snapshot := store.Read()
	var input map[string]any
	if stage.Input != nil {
		input = stage.Input(snapshot)
	}
	if input == nil {
		input = snapshot.Payload
	}
	task := &Task{
		SessionID: sessionID,
		StageID:   stage.ID,
		Input:     input,
		State:     snapshot,
		Emit: func(name string, data map[string]any) {
			e.bus.Publish(&ProgressEvent{
				SessionID:  sessionID,
				StageID:    stage.ID,
				Name:       name,
				Data:       data,
				Timestamp_: time.Now(),
			})
		},
	}
	if e.input != nil {
		task.RequestInput = e.input.Request
	}
	return task
}

// resolveNext picks the following stage. Result-driven routing takes
// precedence over the stage's static wiring: complete ends the run, handoff
// jumps to its target, an explicit next stage wins over the NextRule.
func (e *Engine) resolveNext(wf *Workflow, stage *StageDefinition, res *types.StageResult, store *state.Store) (string, *types.Error) {
	switch res.Action {
	case types.ActionComplete:
		return "", nil
	case types.ActionHandoff:
		if _, ok := wf.Stage(res.Target); !ok {
			return "", types.NewError(types.ErrStageNotFound,
				"handoff target not found: "+res.Target).WithStage(stage.ID)
		}
		e.logger.Debug("handing off",
			zap.String("from", stage.ID),
			zap.String("to", res.Target),
			zap.String("reason", res.Reason))
		return res.Target, nil
	default:
		if res.NextStage != "" {
			return res.NextStage, nil
		}
		return stage.Next.Resolve(store.Read()), nil
	}
}

// fail marks the run failed, emits the error event and assembles the
// terminal bundle. Errors are always reported this way, never panicked.
func (e *Engine) fail(wf *Workflow, store *state.Store, span trace.Span, log []StageExecution, ferr *types.Error, runStart time.Time) *RunResult {
	errStatus := types.StatusError
	store.Update(state.Patch{Status: &errStatus}, sourceEngine)

	snapshot := store.Read()
	e.bus.Publish(&WorkflowErrorEvent{
		WorkflowID: wf.ID,
		SessionID:  snapshot.SessionID,
		StageID:    ferr.StageID,
		Code:       ferr.Code,
		Message:    ferr.Message,
		Timestamp_: time.Now(),
	})
	e.metrics.RecordRun(wf.ID, "error", time.Since(runStart))
	span.SetStatus(codes.Error, ferr.Message)
	e.logger.Error("workflow run failed",
		zap.String("workflow_id", wf.ID),
		zap.String("session_id", snapshot.SessionID),
		zap.String("stage_id", ferr.StageID),
		zap.Error(ferr))

	return &RunResult{
		Success:    false,
		FinalState: snapshot,
		Session:    store,
		Log:        log,
		Output:     lastOutput(log),
		Error:      ferr.Message,
		Err:        ferr,
	}
}

// lastOutput returns the most recent logged stage output, latest first.
func lastOutput(log []StageExecution) any {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Result != nil && log[i].Result.Success {
			return log[i].Result.Output
		}
	}
	return nil
}
