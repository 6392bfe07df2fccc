package types

import "time"

// Status represents the lifecycle status of a workflow session.
type Status string

const (
	// StatusIdle is the status of a freshly created session.
	StatusIdle Status = "idle"
	// StatusActive indicates a workflow run is in progress.
	StatusActive Status = "active"
	// StatusWaitingForInput indicates the run is suspended on user input.
	StatusWaitingForInput Status = "waiting_for_input"
	// StatusCompleted is terminal: the run finished successfully.
	StatusCompleted Status = "completed"
	// StatusError is terminal: the run failed.
	StatusError Status = "error"
)

// Terminal reports whether no further stage may execute in this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// State is one immutable snapshot of a workflow session. The engine and the
// state store only ever hand out deep copies, so holding on to a *State is
// always safe.
type State struct {
	SessionID       string         `json:"session_id"`
	Status          Status         `json:"status"`
	CurrentStage    string         `json:"current_stage,omitempty"`
	CurrentExecutor string         `json:"current_executor,omitempty"`
	Payload         map[string]any `json:"payload"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Field looks up a dotted path inside the domain payload, e.g.
// "trip.destination". Traversing into a non-map value yields (nil, false)
// rather than an error.
func (s *State) Field(path string) (any, bool) {
	if s == nil || s.Payload == nil {
		return nil, false
	}
	var cur any = s.Payload
	start := 0
	for i := 0; i <= len(path); i++ {
		if i != len(path) && path[i] != '.' {
			continue
		}
		key := path[start:i]
		start = i + 1
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// StateChange records a single leaf-level difference produced by one update
// call. Path is ordered from root to the changed leaf; Source is a free-text
// tag naming the executor or system action that caused the change.
type StateChange struct {
	Path      []string  `json:"path"`
	Previous  any       `json:"previous"`
	New       any       `json:"new"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}
