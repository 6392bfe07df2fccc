package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voralis/stageflow/types"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry(nil)
	reg.RegisterFunc("echo", func(ctx context.Context, task *Task) (*types.StageResult, error) {
		return types.Complete(task.Input, ""), nil
	})

	exec, ok := reg.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", exec.Key())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryReplace(t *testing.T) {
	reg := NewRegistry(nil)
	reg.RegisterFunc("worker", func(ctx context.Context, task *Task) (*types.StageResult, error) {
		return types.Complete("v1", ""), nil
	})
	reg.RegisterFunc("worker", func(ctx context.Context, task *Task) (*types.StageResult, error) {
		return types.Complete("v2", ""), nil
	})

	exec, ok := reg.Get("worker")
	require.True(t, ok)
	res, err := exec.Execute(context.Background(), &Task{})
	require.NoError(t, err)
	assert.Equal(t, "v2", res.Output)
}

func TestRegistryKeys(t *testing.T) {
	reg := NewRegistry(nil)
	reg.RegisterFunc("b", func(ctx context.Context, task *Task) (*types.StageResult, error) { return types.Complete(nil, ""), nil })
	reg.RegisterFunc("a", func(ctx context.Context, task *Task) (*types.StageResult, error) { return types.Complete(nil, ""), nil })

	assert.ElementsMatch(t, []string{"a", "b"}, reg.Keys())
}
