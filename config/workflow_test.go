package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voralis/stageflow/engine"
	"github.com/voralis/stageflow/types"
)

const orderWorkflowYAML = `
id: order-flow
initial_stage: validate
initial_state:
  region: eu
stages:
  - id: validate
    name: Validate order
    executor: validator
    preconditions:
      - field: order.id
        kind: exists
        message: order id is required
    retry:
      max_attempts: 3
      base_delay: 100ms
      multiplier: 2
    timeout: 30s
    next: charge
  - id: charge
    executor: biller
`

func TestParseWorkflow(t *testing.T) {
	wf, err := ParseWorkflow([]byte(orderWorkflowYAML))
	require.NoError(t, err)

	assert.Equal(t, "order-flow", wf.ID)
	assert.Equal(t, "validate", wf.InitialStage)
	require.NotNil(t, wf.InitialState)
	assert.Equal(t, "eu", wf.InitialState()["region"])
	require.Len(t, wf.Stages, 2)

	validate := wf.Stages[0]
	assert.Equal(t, "Validate order", validate.Name)
	assert.Equal(t, "validator", validate.Executor)
	assert.Equal(t, 30*time.Second, validate.Timeout)
	require.NotNil(t, validate.Retry)
	assert.Equal(t, 3, validate.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, validate.Retry.BaseDelay)
	assert.Equal(t, 2.0, validate.Retry.Multiplier)
	require.Len(t, validate.Preconditions, 1)
	assert.Equal(t, engine.CondExists, validate.Preconditions[0].Kind)
	assert.Equal(t, "order id is required", validate.Preconditions[0].Message)
	assert.Equal(t, "charge", validate.Next.Resolve(nil))

	charge := wf.Stages[1]
	assert.Nil(t, charge.Retry)
	assert.Equal(t, "", charge.Next.Resolve(nil))
}

func TestParseWorkflowUnknownConditionKind(t *testing.T) {
	_, err := ParseWorkflow([]byte(`
id: wf
initial_stage: a
stages:
  - id: a
    executor: x
    preconditions:
      - field: f
        kind: bogus
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown precondition kind")
}

func TestParseWorkflowInvalidDuration(t *testing.T) {
	_, err := ParseWorkflow([]byte(`
id: wf
initial_stage: a
stages:
  - id: a
    executor: x
    timeout: soon
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestParseWorkflowValidates(t *testing.T) {
	_, err := ParseWorkflow([]byte(`
id: wf
initial_stage: ghost
stages:
  - id: a
    executor: x
`))
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidDefinition, types.GetErrorCode(err))
}

func TestLoadWorkflowFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(orderWorkflowYAML), 0o600))

	wf, err := LoadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, "order-flow", wf.ID)
}

func TestLoadedWorkflowRuns(t *testing.T) {
	wf, err := ParseWorkflow([]byte(orderWorkflowYAML))
	require.NoError(t, err)

	reg := engine.NewRegistry(nil)
	reg.RegisterFunc("validator", func(ctx context.Context, task *engine.Task) (*types.StageResult, error) {
		return types.Continue(nil, "").WithUpdates(map[string]any{"validated": true}), nil
	})
	reg.RegisterFunc("biller", func(ctx context.Context, task *engine.Task) (*types.StageResult, error) {
		return types.Complete("charged", ""), nil
	})

	res := engine.New(reg).Execute(context.Background(), wf, map[string]any{
		"order": map[string]any{"id": "ord-7"},
	})

	require.True(t, res.Success)
	assert.Equal(t, "charged", res.Output)
	assert.Equal(t, "eu", res.FinalState.Payload["region"])
}
