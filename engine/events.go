package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/voralis/stageflow/types"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventWorkflowStart    EventType = "workflow:start"
	EventStageStart       EventType = "stage:start"
	EventStageComplete    EventType = "stage:complete"
	EventWorkflowComplete EventType = "workflow:complete"
	EventWorkflowError    EventType = "workflow:error"
	// EventProgress is the passthrough for executor-originated events.
	EventProgress EventType = "executor:progress"
)

// subscriptionCounter generates unique subscription ids.
var subscriptionCounter int64

// Event is a lifecycle event emitted by the engine.
type Event interface {
	Timestamp() time.Time
	Type() EventType
}

// EventHandler consumes events.
type EventHandler func(Event)

// EventBus distributes lifecycle events to handlers subscribed by type.
type EventBus interface {
	Publish(event Event)
	Subscribe(eventType EventType, handler EventHandler) string
	Unsubscribe(subscriptionID string)
}

// SimpleEventBus delivers events synchronously in publish order. Handlers
// are best-effort observers: a panicking handler is logged and skipped, and
// can never abort the run that published the event.
type SimpleEventBus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[string]EventHandler
	logger   *zap.Logger
}

// NewEventBus creates an event bus.
func NewEventBus(logger *zap.Logger) *SimpleEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimpleEventBus{
		handlers: make(map[EventType]map[string]EventHandler),
		logger:   logger.With(zap.String("component", "event_bus")),
	}
}

// Publish delivers the event to every handler subscribed to its type.
func (b *SimpleEventBus) Publish(event Event) {
	b.mu.RLock()
	src := b.handlers[event.Type()]
	handlers := make([]EventHandler, 0, len(src))
	for _, h := range src {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked",
						zap.String("event_type", string(event.Type())),
						zap.Any("recover", r))
				}
			}()
			handler(event)
		}()
	}
}

// Subscribe registers a handler for one event type and returns its
// subscription id.
func (b *SimpleEventBus) Subscribe(eventType EventType, handler EventHandler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]EventHandler)
	}
	id := fmt.Sprintf("%s-%d", eventType, atomic.AddInt64(&subscriptionCounter, 1))
	b.handlers[eventType][id] = handler
	return id
}

// Unsubscribe removes a subscription by id.
func (b *SimpleEventBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, handlers := range b.handlers {
		if _, ok := handlers[subscriptionID]; ok {
			delete(handlers, subscriptionID)
			if len(handlers) == 0 {
				delete(b.handlers, eventType)
			}
			return
		}
	}
}

// WorkflowStartEvent is emitted once per run before the first stage.
type WorkflowStartEvent struct {
	WorkflowID string
	SessionID  string
	Timestamp_ time.Time
}

func (e *WorkflowStartEvent) Timestamp() time.Time { return e.Timestamp_ }
func (e *WorkflowStartEvent) Type() EventType      { return EventWorkflowStart }

// StageStartEvent is emitted before a stage's preconditions are evaluated.
type StageStartEvent struct {
	WorkflowID string
	SessionID  string
	StageID    string
	Executor   string
	Timestamp_ time.Time
}

func (e *StageStartEvent) Timestamp() time.Time { return e.Timestamp_ }
func (e *StageStartEvent) Type() EventType      { return EventStageStart }

// StageCompleteEvent is emitted after a stage's result has been folded into
// state, including both sub-steps of an input-wait stage.
type StageCompleteEvent struct {
	WorkflowID string
	SessionID  string
	StageID    string
	Executor   string
	Action     types.NextAction
	Attempts   int
	Elapsed    time.Duration
	Timestamp_ time.Time
}

func (e *StageCompleteEvent) Timestamp() time.Time { return e.Timestamp_ }
func (e *StageCompleteEvent) Type() EventType      { return EventStageComplete }

// WorkflowCompleteEvent is emitted on normal termination.
type WorkflowCompleteEvent struct {
	WorkflowID string
	SessionID  string
	Stages     int
	Summary    string
	Timestamp_ time.Time
}

func (e *WorkflowCompleteEvent) Timestamp() time.Time { return e.Timestamp_ }
func (e *WorkflowCompleteEvent) Type() EventType      { return EventWorkflowComplete }

// WorkflowErrorEvent is emitted when a fatal error aborts the run.
type WorkflowErrorEvent struct {
	WorkflowID string
	SessionID  string
	StageID    string
	Code       types.ErrorCode
	Message    string
	Timestamp_ time.Time
}

func (e *WorkflowErrorEvent) Timestamp() time.Time { return e.Timestamp_ }
func (e *WorkflowErrorEvent) Type() EventType      { return EventWorkflowError }

// ProgressEvent carries an executor-originated progress notification.
type ProgressEvent struct {
	SessionID  string
	StageID    string
	Name       string
	Data       map[string]any
	Timestamp_ time.Time
}

func (e *ProgressEvent) Timestamp() time.Time { return e.Timestamp_ }
func (e *ProgressEvent) Type() EventType      { return EventProgress }
