package engine

import (
	"reflect"

	"github.com/voralis/stageflow/types"
)

// ConditionKind selects how a precondition evaluates its field.
type ConditionKind string

const (
	// CondExists passes when the field resolves to any value.
	CondExists ConditionKind = "exists"
	// CondNotEmpty passes when the field is present and neither nil nor "".
	CondNotEmpty ConditionKind = "not_empty"
	// CondEquals passes when the field deep-equals the configured value.
	CondEquals ConditionKind = "equals"
	// CondCustom delegates to a predicate over the whole state snapshot.
	CondCustom ConditionKind = "custom"
)

// Precondition guards a stage against running on state it cannot handle.
// Failing one is fatal for the run; preconditions are never retried.
type Precondition struct {
	// Field is a dotted path into the domain payload (ignored by CondCustom).
	Field string
	// Kind selects the evaluation.
	Kind ConditionKind
	// Value is the comparison value for CondEquals.
	Value any
	// Check is the predicate for CondCustom.
	Check func(s *types.State) bool
	// Message is surfaced as the run error when the precondition fails.
	Message string
}

// Evaluate reports whether the precondition holds for the snapshot.
func (p Precondition) Evaluate(s *types.State) bool {
	switch p.Kind {
	case CondExists:
		_, ok := s.Field(p.Field)
		return ok
	case CondNotEmpty:
		v, ok := s.Field(p.Field)
		return ok && v != nil && v != ""
	case CondEquals:
		v, ok := s.Field(p.Field)
		return ok && reflect.DeepEqual(v, p.Value)
	case CondCustom:
		return p.Check != nil && p.Check(s)
	default:
		return false
	}
}

// checkPreconditions evaluates the stage's preconditions in declared order
// and returns the first failing one's message. All preconditions are
// evaluated before any attempt is made, never partially mid-stage.
func checkPreconditions(stage *StageDefinition, s *types.State) (string, bool) {
	for _, p := range stage.Preconditions {
		if !p.Evaluate(s) {
			msg := p.Message
			if msg == "" {
				msg = "precondition failed on field " + p.Field
			}
			return msg, false
		}
	}
	return "", true
}
