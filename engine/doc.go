// Package engine implements the stage-based workflow interpreter: it walks a
// declarative workflow definition one stage at a time, guards each stage with
// preconditions, wraps execution in bounded retries with backoff and a
// per-stage timeout race, folds executor state updates into the session
// store, and resolves the next stage from the executor's own routing intent
// before falling back to static wiring.
//
// One Engine may run many workflows, but each call to Execute drives exactly
// one session with its own state store; concurrent runs share nothing.
package engine
