package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voralis/stageflow/engine"
	"github.com/voralis/stageflow/types"
)

// WorkflowSpec is the YAML form of a workflow definition. Computed routing
// and custom preconditions are code-only; a spec expresses static wiring.
type WorkflowSpec struct {
	ID           string         `yaml:"id"`
	InitialStage string         `yaml:"initial_stage"`
	InitialState map[string]any `yaml:"initial_state"`
	Stages       []StageSpec    `yaml:"stages"`
}

// StageSpec is one stage entry of a WorkflowSpec.
type StageSpec struct {
	ID            string             `yaml:"id"`
	Name          string             `yaml:"name"`
	Executor      string             `yaml:"executor"`
	Preconditions []PreconditionSpec `yaml:"preconditions"`
	Retry         *RetrySpec         `yaml:"retry"`
	Timeout       duration           `yaml:"timeout"`
	// Next is the static next stage id; empty means terminal.
	Next string `yaml:"next"`
}

// PreconditionSpec is the YAML form of a stage precondition.
type PreconditionSpec struct {
	Field   string `yaml:"field"`
	Kind    string `yaml:"kind"`
	Value   any    `yaml:"value"`
	Message string `yaml:"message"`
}

// RetrySpec is the YAML form of a retry policy.
type RetrySpec struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   duration `yaml:"base_delay"`
	Multiplier  float64  `yaml:"multiplier"`
}

// duration parses YAML strings like "250ms" or "30s".
type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = duration(parsed)
	return nil
}

// Build converts the spec into an engine workflow and validates it.
func (s *WorkflowSpec) Build() (*engine.Workflow, error) {
	wf := &engine.Workflow{
		ID:           s.ID,
		InitialStage: s.InitialStage,
		Stages:       make([]engine.StageDefinition, 0, len(s.Stages)),
	}
	if len(s.InitialState) > 0 {
		seed := s.InitialState
		wf.InitialState = func() map[string]any { return seed }
	}

	for _, st := range s.Stages {
		def := engine.StageDefinition{
			ID:       st.ID,
			Name:     st.Name,
			Executor: st.Executor,
			Timeout:  time.Duration(st.Timeout),
		}
		for _, p := range st.Preconditions {
			kind, err := conditionKind(p.Kind)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", st.ID, err)
			}
			def.Preconditions = append(def.Preconditions, engine.Precondition{
				Field:   p.Field,
				Kind:    kind,
				Value:   p.Value,
				Message: p.Message,
			})
		}
		if st.Retry != nil {
			def.Retry = &engine.RetryPolicy{
				MaxAttempts: st.Retry.MaxAttempts,
				BaseDelay:   time.Duration(st.Retry.BaseDelay),
				Multiplier:  st.Retry.Multiplier,
			}
		}
		if st.Next != "" {
			def.Next = engine.NextStage(st.Next)
		}
		wf.Stages = append(wf.Stages, def)
	}

	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return wf, nil
}

func conditionKind(kind string) (engine.ConditionKind, error) {
	switch kind {
	case "exists", "":
		return engine.CondExists, nil
	case "not_empty":
		return engine.CondNotEmpty, nil
	case "equals":
		return engine.CondEquals, nil
	default:
		return "", types.NewError(types.ErrInvalidDefinition, "unknown precondition kind: "+kind)
	}
}

// LoadWorkflow reads and builds a workflow definition from a YAML file.
func LoadWorkflow(path string) (*engine.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return ParseWorkflow(data)
}

// ParseWorkflow builds a workflow definition from YAML bytes.
func ParseWorkflow(data []byte) (*engine.Workflow, error) {
	var spec WorkflowSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	return spec.Build()
}
