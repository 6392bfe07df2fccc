package engine

import (
	"context"

	"github.com/voralis/stageflow/types"
)

// InputFunc is the function form of the input provider contract.
type InputFunc func(ctx context.Context, prompt string, choices []string) (string, error)

// InputProvider blocks for a user answer to a prompt, optionally constrained
// to a fixed choice list. No timeout is enforced at this layer; the engine
// threads its run context through so a cancelled run unblocks the wait.
type InputProvider interface {
	Request(ctx context.Context, prompt string, choices []string) (string, error)
}

// FuncInput adapts an InputFunc to InputProvider.
type FuncInput struct {
	fn InputFunc
}

// NewFuncInput wraps fn as an InputProvider.
func NewFuncInput(fn InputFunc) *FuncInput {
	return &FuncInput{fn: fn}
}

func (f *FuncInput) Request(ctx context.Context, prompt string, choices []string) (string, error) {
	return f.fn(ctx, prompt, choices)
}

// StaticInput replays a fixed sequence of answers. Intended for tests and
// demos; requesting past the end returns an error.
type StaticInput struct {
	answers []string
	next    int
}

// NewStaticInput creates a provider that answers prompts in order.
func NewStaticInput(answers ...string) *StaticInput {
	return &StaticInput{answers: answers}
}

func (s *StaticInput) Request(ctx context.Context, prompt string, choices []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.next >= len(s.answers) {
		return "", types.NewError(types.ErrInputUnavailable, "no scripted answer left for prompt: "+prompt)
	}
	answer := s.answers[s.next]
	s.next++
	return answer, nil
}
