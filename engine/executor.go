package engine

import (
	"context"

	"github.com/voralis/stageflow/types"
)

// ProgressFunc lets an executor surface intermediate progress through the
// engine's event bus without depending on it.
type ProgressFunc func(name string, data map[string]any)

// Task carries everything an executor needs for one stage invocation. State
// is a deep-copied snapshot: mutating it has no effect on the run; updates
// travel back through StageResult.StateUpdates.
type Task struct {
	SessionID string
	StageID   string
	// Input is the projected stage input. When the stage resumes after a
	// wait_for_input result, the user's answer is folded in under the
	// "user_input" key.
	Input map[string]any
	State *types.State
	// Emit publishes an executor-originated progress event. Never nil.
	Emit ProgressFunc
	// RequestInput blocks for a user answer through the engine's input
	// provider. Nil when no provider is configured.
	RequestInput InputFunc
}

// StageExecutor is the pluggable unit of work a stage delegates to.
// Implementations must be safe for reuse across stages and runs; the engine
// never invokes the same run's executors concurrently.
type StageExecutor interface {
	// Key returns the registry key stages reference this executor by.
	Key() string
	// Execute performs the work and returns a structured result. A returned
	// error is a transient failure eligible for retry; non-recoverable
	// conditions belong in a result with ActionError and Recoverable=false.
	Execute(ctx context.Context, task *Task) (*types.StageResult, error)
}

// ExecutorFunc adapts a plain function to StageExecutor.
type ExecutorFunc struct {
	key string
	fn  func(ctx context.Context, task *Task) (*types.StageResult, error)
}

// NewExecutorFunc wraps fn as a StageExecutor registered under key.
func NewExecutorFunc(key string, fn func(ctx context.Context, task *Task) (*types.StageResult, error)) *ExecutorFunc {
	return &ExecutorFunc{key: key, fn: fn}
}

func (e *ExecutorFunc) Key() string { return e.key }

func (e *ExecutorFunc) Execute(ctx context.Context, task *Task) (*types.StageResult, error) {
	return e.fn(ctx, task)
}
