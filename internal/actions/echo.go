package actions

import "context"

// Echo returns its "message" parameter. It is the no-op action used for
// wiring tests and markers in workflows.
type Echo struct{}

func (Echo) Description() string { return "Return the message parameter" }

func (Echo) Execute(_ context.Context, inv Invocation) (*Result, error) {
	msg := stringParam(inv.Params, "message", "")
	return withOutputVar(inv.Params, map[string]any{"message": msg}, msg), nil
}

// SetVariables proposes every parameter as a variable update.
type SetVariables struct{}

func (SetVariables) Description() string { return "Set workflow variables from the step parameters" }

func (SetVariables) Execute(_ context.Context, inv Invocation) (*Result, error) {
	vars := make(map[string]any, len(inv.Params))
	for k, v := range inv.Params {
		vars[k] = v
	}
	return &Result{Output: vars, Variables: vars}, nil
}
