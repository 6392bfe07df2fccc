package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voralis/stageflow/types"
)

// Listener receives the post-update snapshot and the change list for every
// update that produced at least one change. Each listener gets its own deep
// copy of the snapshot.
type Listener func(snapshot *types.State, changes []types.StateChange)

// Checkpoint is an opaque token encoding the history length at the moment it
// was taken. Pass it back to Rollback to restore the snapshot recorded just
// before the first update that followed it.
type Checkpoint struct {
	index int
}

// Patch describes one update call. Nil envelope fields are left untouched;
// Payload is merged into the domain payload key-wise (nested maps merge
// recursively, everything else replaces wholesale).
type Patch struct {
	Status   *types.Status
	Stage    *string
	Executor *string
	Payload  map[string]any
}

// Store holds the mutable session state for one workflow run, an append-only
// history of pre-update snapshots, and the change subscriptions driven off
// every real update.
type Store struct {
	mu        sync.RWMutex
	current   *types.State
	history   []*types.State
	named     map[string]Checkpoint
	listeners map[int64]Listener
	order     []int64
	nextSub   int64
	logger    *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *Store) {
		if id != "" {
			s.current.SessionID = id
		}
	}
}

// WithStatus seeds the initial status without recording an update.
func WithStatus(status types.Status) Option {
	return func(s *Store) {
		s.current.Status = status
	}
}

// NewStore creates a store seeded with the given initial payload. Defaults:
// status idle, generated session id, both timestamps set to now. The initial
// payload is copied, never aliased.
func NewStore(initial map[string]any, opts ...Option) *Store {
	now := time.Now()
	s := &Store{
		current: &types.State{
			SessionID: uuid.NewString(),
			Status:    types.StatusIdle,
			Payload:   copyPayload(initial),
			CreatedAt: now,
			UpdatedAt: now,
		},
		named:     make(map[string]Checkpoint),
		listeners: make(map[int64]Listener),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "state_store"),
		zap.String("session_id", s.current.SessionID))
	return s
}

// Read returns a deep copy of the current snapshot.
func (s *Store) Read() *types.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.current)
}

// Update applies a patch tagged with the given source. The pre-update
// snapshot is pushed onto history unconditionally; subscribers are notified
// only when at least one leaf actually changed. Returns the new snapshot.
func (s *Store) Update(patch Patch, source string) *types.State {
	s.mu.Lock()

	now := time.Now()
	changes := s.envelopeChanges(patch, now, source)
	changes = diffPayload(s.current.Payload, patch.Payload, nil, now, source, changes)

	// History records the attempt even when nothing changed.
	s.history = append(s.history, copyState(s.current))

	if patch.Status != nil {
		s.current.Status = *patch.Status
	}
	if patch.Stage != nil {
		s.current.CurrentStage = *patch.Stage
	}
	if patch.Executor != nil {
		s.current.CurrentExecutor = *patch.Executor
	}
	if s.current.Payload == nil {
		s.current.Payload = make(map[string]any)
	}
	mergePayload(s.current.Payload, patch.Payload)
	if now.After(s.current.UpdatedAt) {
		s.current.UpdatedAt = now
	}

	snapshot := copyState(s.current)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if len(changes) > 0 {
		s.notify(listeners, snapshot, changes)
	}
	return snapshot
}

// UpdatePayload is shorthand for a payload-only patch.
func (s *Store) UpdatePayload(payload map[string]any, source string) *types.State {
	return s.Update(Patch{Payload: payload}, source)
}

// Checkpoint returns a token encoding the history length right now.
func (s *Store) Checkpoint() Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Checkpoint{index: len(s.history)}
}

// Rollback restores the history entry the checkpoint points at. A token
// whose index is outside [0, len(history)) returns an error and leaves
// state untouched. Rollback is a direct restore: it neither pushes a new
// history entry nor notifies subscribers.
func (s *Store) Rollback(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.restore(cp)
}

func (s *Store) restore(cp Checkpoint) error {
	if cp.index < 0 || cp.index >= len(s.history) {
		return types.NewError(types.ErrInvalidCheckpoint, "checkpoint index out of range")
	}
	s.current = copyState(s.history[cp.index])
	s.logger.Debug("rolled back", zap.Int("history_index", cp.index))
	return nil
}

// SaveCheckpoint records a named checkpoint at the current history position,
// replacing any previous checkpoint under the same name.
func (s *Store) SaveCheckpoint(name string) Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := Checkpoint{index: len(s.history)}
	s.named[name] = cp
	return cp
}

// RollbackTo restores the named checkpoint. Unknown names and checkpoints
// pointing past the recorded history return an error.
func (s *Store) RollbackTo(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.named[name]
	if !ok {
		return types.NewError(types.ErrInvalidCheckpoint, "unknown checkpoint: "+name)
	}
	return s.restore(cp)
}

// Checkpoints lists the saved checkpoint names.
func (s *Store) Checkpoints() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.named))
	for name := range s.named {
		names = append(names, name)
	}
	return names
}

// Subscribe registers a listener and returns its unsubscribe function.
// Listeners are invoked in subscription order; a panicking listener is
// logged and does not prevent the others from running.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.listeners[id] = l
	s.order = append(s.order, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
		for i, sub := range s.order {
			if sub == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// History returns deep copies of every recorded pre-update snapshot.
func (s *Store) History() []*types.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.State, len(s.history))
	for i, h := range s.history {
		out[i] = copyState(h)
	}
	return out
}

// HistoryLen returns the number of recorded snapshots.
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// envelopeChanges computes change records for the fixed envelope fields.
func (s *Store) envelopeChanges(patch Patch, now time.Time, source string) []types.StateChange {
	var changes []types.StateChange
	if patch.Status != nil && *patch.Status != s.current.Status {
		changes = append(changes, types.StateChange{
			Path: []string{"status"}, Previous: s.current.Status, New: *patch.Status,
			Timestamp: now, Source: source,
		})
	}
	if patch.Stage != nil && *patch.Stage != s.current.CurrentStage {
		changes = append(changes, types.StateChange{
			Path: []string{"current_stage"}, Previous: s.current.CurrentStage, New: *patch.Stage,
			Timestamp: now, Source: source,
		})
	}
	if patch.Executor != nil && *patch.Executor != s.current.CurrentExecutor {
		changes = append(changes, types.StateChange{
			Path: []string{"current_executor"}, Previous: s.current.CurrentExecutor, New: *patch.Executor,
			Timestamp: now, Source: source,
		})
	}
	return changes
}

func (s *Store) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		if l, ok := s.listeners[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

func (s *Store) notify(listeners []Listener, snapshot *types.State, changes []types.StateChange) {
	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("state listener panicked", zap.Any("recover", r))
				}
			}()
			l(copyState(snapshot), changes)
		}()
	}
}
