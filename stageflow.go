// Package stageflow provides a top-level convenience entry point for running
// stage-based workflows with minimal boilerplate.
//
// Usage:
//
//	import "github.com/voralis/stageflow"
//
//	reg := stageflow.NewRegistry(nil)
//	reg.RegisterFunc("greet", func(ctx context.Context, task *stageflow.Task) (*stageflow.StageResult, error) {
//	    return stageflow.Complete("hello "+task.SessionID, ""), nil
//	})
//	res := stageflow.NewEngine(reg).Execute(ctx, wf, nil)
//
// This is a thin wrapper around the engine, state and types packages; use it
// when you prefer the shorter import path.
package stageflow

import (
	"github.com/voralis/stageflow/engine"
	"github.com/voralis/stageflow/types"
)

// Core engine types.
type (
	Engine          = engine.Engine
	EngineOption    = engine.EngineOption
	Registry        = engine.Registry
	Workflow        = engine.Workflow
	StageDefinition = engine.StageDefinition
	RetryPolicy     = engine.RetryPolicy
	Precondition    = engine.Precondition
	NextRule        = engine.NextRule
	Task            = engine.Task
	StageExecutor   = engine.StageExecutor
	RunResult       = engine.RunResult
	StageExecution  = engine.StageExecution
	InputProvider   = engine.InputProvider
	EventBus        = engine.EventBus
	Event           = engine.Event
)

// Result and state contracts.
type (
	StageResult = types.StageResult
	State       = types.State
	Status      = types.Status
	NextAction  = types.NextAction
)

// NewEngine creates a workflow engine around the registry.
func NewEngine(reg *Registry, opts ...EngineOption) *Engine {
	return engine.New(reg, opts...)
}

// NewRegistry creates an empty executor registry.
var NewRegistry = engine.NewRegistry

// NewEventBus creates a synchronous lifecycle event bus.
var NewEventBus = engine.NewEventBus

// Engine options.
var (
	WithLogger         = engine.WithLogger
	WithInputProvider  = engine.WithInputProvider
	WithEventBus       = engine.WithEventBus
	WithMetrics          = engine.WithMetrics
	WithDefaultTimeout   = engine.WithDefaultTimeout
	WithStageCheckpoints = engine.WithStageCheckpoints
)

// Routing rules.
var (
	NextStage = engine.NextStage
	NextFunc  = engine.NextFunc
	Terminal  = engine.Terminal
)

// Stage result constructors.
var (
	Continue     = types.Continue
	WaitForInput = types.WaitForInput
	Handoff      = types.Handoff
	Complete     = types.Complete
	Fail         = types.Fail
)

// Input providers.
var (
	NewStaticInput = engine.NewStaticInput
	NewFuncInput   = engine.NewFuncInput
)
