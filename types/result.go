package types

import "time"

// NextAction tags a stage result with its routing intent.
type NextAction string

const (
	// ActionContinue proceeds to the next stage (explicit or static wiring).
	ActionContinue NextAction = "continue"
	// ActionWaitForInput suspends the stage until the user answers a prompt.
	ActionWaitForInput NextAction = "wait_for_input"
	// ActionHandoff redirects control to a named stage, overriding wiring.
	ActionHandoff NextAction = "handoff"
	// ActionComplete ends the workflow run regardless of static wiring.
	ActionComplete NextAction = "complete"
	// ActionError reports an executor-level error; Recoverable decides
	// whether the run fails immediately or falls back to static wiring.
	ActionError NextAction = "error"
)

// StageResult is returned by a stage executor for a single invocation.
// Exactly one Action is set; the fields below it are only meaningful for
// the action they are documented under. A result is created fresh per
// attempt and folded into the engine's execution log.
type StageResult struct {
	Success      bool           `json:"success"`
	Output       any            `json:"output,omitempty"`
	StateUpdates map[string]any `json:"state_updates,omitempty"`
	Action       NextAction     `json:"action"`

	// NextStage optionally names the next stage for ActionContinue.
	NextStage string `json:"next_stage,omitempty"`

	// Prompt and Choices carry the input request for ActionWaitForInput.
	Prompt  string   `json:"prompt,omitempty"`
	Choices []string `json:"choices,omitempty"`

	// Target and Reason describe an ActionHandoff.
	Target string `json:"target,omitempty"`
	Reason string `json:"reason,omitempty"`

	// Summary carries the final summary for ActionComplete.
	Summary string `json:"summary,omitempty"`

	// Message and Recoverable describe an ActionError.
	Message     string `json:"message,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`

	// Elapsed is filled in by the engine after the attempt returns.
	Elapsed time.Duration `json:"elapsed"`
}

// Continue builds a success result that follows static wiring. Pass a
// non-empty nextStage to override the wiring with an explicit target.
func Continue(output any, nextStage string) *StageResult {
	return &StageResult{
		Success:   true,
		Output:    output,
		Action:    ActionContinue,
		NextStage: nextStage,
	}
}

// WaitForInput builds a result that suspends the stage on a user prompt.
func WaitForInput(prompt string, choices ...string) *StageResult {
	return &StageResult{
		Success: true,
		Action:  ActionWaitForInput,
		Prompt:  prompt,
		Choices: choices,
	}
}

// Handoff builds a result that redirects control to the named stage.
func Handoff(target, reason string) *StageResult {
	return &StageResult{
		Success: true,
		Action:  ActionHandoff,
		Target:  target,
		Reason:  reason,
	}
}

// Complete builds a result that ends the run with a summary.
func Complete(output any, summary string) *StageResult {
	return &StageResult{
		Success: true,
		Output:  output,
		Action:  ActionComplete,
		Summary: summary,
	}
}

// Fail builds an executor-signalled error result.
func Fail(message string, recoverable bool) *StageResult {
	return &StageResult{
		Action:      ActionError,
		Message:     message,
		Recoverable: recoverable,
	}
}

// WithUpdates attaches domain payload updates to the result.
func (r *StageResult) WithUpdates(updates map[string]any) *StageResult {
	r.StateUpdates = updates
	return r
}
