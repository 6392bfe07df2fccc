package engine

import (
	"time"

	"github.com/voralis/stageflow/types"
)

// InputProjector maps the current state snapshot to the stage-specific task
// input handed to the executor. When nil, the whole domain payload is used.
type InputProjector func(s *types.State) map[string]any

// nextKind discriminates the NextRule tagged union.
type nextKind int

const (
	nextTerminal nextKind = iota
	nextStatic
	nextComputed
)

// NextRule decides a stage's successor when the executor result does not
// override it. The zero value is terminal.
type NextRule struct {
	kind  nextKind
	stage string
	fn    func(s *types.State) string
}

// NextStage wires a literal next stage id.
func NextStage(id string) NextRule {
	return NextRule{kind: nextStatic, stage: id}
}

// NextFunc computes the next stage from the post-update state. Returning ""
// ends the run.
func NextFunc(fn func(s *types.State) string) NextRule {
	return NextRule{kind: nextComputed, fn: fn}
}

// Terminal marks the stage as the end of the workflow.
func Terminal() NextRule {
	return NextRule{kind: nextTerminal}
}

// Resolve returns the next stage id, or "" for none.
func (r NextRule) Resolve(s *types.State) string {
	switch r.kind {
	case nextStatic:
		return r.stage
	case nextComputed:
		if r.fn == nil {
			return ""
		}
		return r.fn(s)
	default:
		return ""
	}
}

// RetryPolicy bounds the attempts of a single stage. Delay between attempt k
// and k+1 is BaseDelay * Multiplier^(k-1); Multiplier <= 0 means 1
// (constant delay). No delay follows the final attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// Delay returns the sleep before the attempt following failed attempt k
// (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= mult
	}
	return time.Duration(d)
}

// StageDefinition describes one named step of a workflow.
type StageDefinition struct {
	// ID is the unique stage identifier within the workflow.
	ID string
	// Name is the human-readable stage name.
	Name string
	// Executor is the registry key of the unit of work to invoke.
	Executor string
	// Input optionally projects the state into a stage-specific task input.
	Input InputProjector
	// Preconditions are evaluated in order before any attempt; the first
	// failure aborts the run with its message.
	Preconditions []Precondition
	// Retry bounds attempts; nil means a single attempt.
	Retry *RetryPolicy
	// Timeout caps each attempt; zero falls back to the engine default.
	Timeout time.Duration
	// Next is the static wiring used when the executor result does not
	// route elsewhere.
	Next NextRule
}

// Workflow is the declarative stage graph the engine interprets. It is data:
// the engine only reads the fields below.
type Workflow struct {
	// ID names the workflow.
	ID string
	// InitialStage is where execution starts.
	InitialStage string
	// Stages lists every stage definition.
	Stages []StageDefinition
	// InitialState optionally seeds the domain payload; caller-supplied
	// initial input wins on key collision.
	InitialState func() map[string]any
}

// Stage looks up a stage definition by id.
func (w *Workflow) Stage(id string) (*StageDefinition, bool) {
	for i := range w.Stages {
		if w.Stages[i].ID == id {
			return &w.Stages[i], true
		}
	}
	return nil, false
}

// Validate checks the definition for the configuration errors the engine
// would otherwise only hit mid-run.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return types.NewError(types.ErrInvalidDefinition, "workflow id is required")
	}
	if w.InitialStage == "" {
		return types.NewError(types.ErrInvalidDefinition, "initial stage is required")
	}
	seen := make(map[string]bool, len(w.Stages))
	for i := range w.Stages {
		st := &w.Stages[i]
		if st.ID == "" {
			return types.NewError(types.ErrInvalidDefinition, "stage id is required")
		}
		if seen[st.ID] {
			return types.NewError(types.ErrInvalidDefinition, "duplicate stage id: "+st.ID)
		}
		seen[st.ID] = true
		if st.Executor == "" {
			return types.NewError(types.ErrInvalidDefinition, "stage "+st.ID+" has no executor key")
		}
	}
	if !seen[w.InitialStage] {
		return types.NewError(types.ErrInvalidDefinition, "initial stage not defined: "+w.InitialStage)
	}
	return nil
}
