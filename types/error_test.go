package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrStageFailed, "stage failed").
		WithCause(root).
		WithStage("fetch").
		WithRetryable(true)

	if GetErrorCode(err) != ErrStageFailed {
		t.Fatalf("expected code %s, got %s", ErrStageFailed, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if err.StageID != "fetch" {
		t.Fatalf("expected stage tag, got %q", err.StageID)
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_HelpersOnPlainError(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")
	if IsRetryable(plain) {
		t.Fatalf("plain errors are never retryable")
	}
	if GetErrorCode(plain) != "" {
		t.Fatalf("plain errors carry no code")
	}
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusIdle, StatusActive, StatusWaitingForInput} {
		if s.Terminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusError} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}

func TestState_Field(t *testing.T) {
	t.Parallel()

	s := &State{Payload: map[string]any{
		"query": "aspirin",
		"trip": map[string]any{
			"destination": "Kyoto",
			"days":        3,
		},
	}}

	if v, ok := s.Field("query"); !ok || v != "aspirin" {
		t.Fatalf("expected query, got %v %v", v, ok)
	}
	if v, ok := s.Field("trip.destination"); !ok || v != "Kyoto" {
		t.Fatalf("expected nested field, got %v %v", v, ok)
	}
	if _, ok := s.Field("trip.missing"); ok {
		t.Fatalf("missing key must not resolve")
	}
	// Traversing into a non-map value is absent, not an error.
	if _, ok := s.Field("query.deeper"); ok {
		t.Fatalf("traversal into scalar must not resolve")
	}
	if _, ok := (&State{}).Field("anything"); ok {
		t.Fatalf("empty payload must not resolve")
	}
}
