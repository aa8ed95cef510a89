package actions

import "context"

// Invocation is everything a handler gets for one step run. Params have
// already had $name tokens substituted. Variables is a snapshot owned by the
// handler call; writes to it are never seen by other steps.
type Invocation struct {
	ExecutionID string
	WorkflowID  string
	StepID      string
	Action      string
	Params      map[string]any
	Variables   map[string]any
}

// Result is a handler's successful (or partial) outcome. Variables are
// proposed updates, merged by the executor once the wave finishes.
type Result struct {
	Output    any
	Variables map[string]any
}

// Handler performs an action. Implementations must be safe for concurrent
// use: steps in the same wave run their handlers in parallel. A handler may
// return a non-nil Result together with an error; the output is still
// recorded on the failed step.
type Handler interface {
	Execute(ctx context.Context, inv Invocation) (*Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, inv Invocation) (*Result, error)

func (f HandlerFunc) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	return f(ctx, inv)
}

// Describer is implemented by handlers that can describe themselves in
// action listings.
type Describer interface {
	Description() string
}
