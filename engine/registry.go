package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/voralis/stageflow/types"
)

// Registry maps executor keys to stage executors. Construct one at process
// start and pass it to every engine that needs lookup; there is no global
// instance.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]StageExecutor
	logger    *zap.Logger
}

// NewRegistry creates an empty executor registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		executors: make(map[string]StageExecutor),
		logger:    logger.With(zap.String("component", "executor_registry")),
	}
}

// Register adds an executor under its key, replacing any previous entry.
func (r *Registry) Register(exec StageExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := exec.Key()
	if _, exists := r.executors[key]; exists {
		r.logger.Warn("replacing registered executor", zap.String("key", key))
	}
	r.executors[key] = exec
}

// RegisterFunc is shorthand for Register(NewExecutorFunc(key, fn)).
func (r *Registry) RegisterFunc(key string, fn func(ctx context.Context, task *Task) (*types.StageResult, error)) {
	r.Register(NewExecutorFunc(key, fn))
}

// Get looks up an executor by key.
func (r *Registry) Get(key string) (StageExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[key]
	return exec, ok
}

// Keys returns the registered executor keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.executors))
	for k := range r.executors {
		keys = append(keys, k)
	}
	return keys
}
