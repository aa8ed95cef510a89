package actions

import (
	"context"

	"github.com/rendis/gaiaflow/internal/expressions"
)

// JQ runs a jq query. Parameters: query (required), input (defaults to the
// variable snapshot), output_var.
type JQ struct {
	Engine *expressions.GoJQEngine
}

func (j *JQ) Description() string { return "Transform data with a jq query" }

func (j *JQ) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	query, err := requireString("jq", inv.Params, "query")
	if err != nil {
		return nil, err
	}
	input, ok := inv.Params["input"]
	if !ok {
		input = inv.Variables
	}

	results, err := j.Engine.Query(ctx, query, input)
	if err != nil {
		return nil, err
	}
	var out any
	switch len(results) {
	case 0:
	case 1:
		out = results[0]
	default:
		out = results
	}
	return withOutputVar(inv.Params, out, out), nil
}

// ExprEval evaluates an expr-lang expression. The environment holds every
// variable plus "params" for the step's own parameters. Parameters:
// expression (required), output_var.
type ExprEval struct {
	Engine *expressions.ExprEngine
}

func (e *ExprEval) Description() string { return "Evaluate an expr-lang expression" }

func (e *ExprEval) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	expression, err := requireString("expr.eval", inv.Params, "expression")
	if err != nil {
		return nil, err
	}

	env := make(map[string]any, len(inv.Variables)+1)
	for k, v := range inv.Variables {
		env[k] = v
	}
	env["params"] = inv.Params

	out, err := e.Engine.Evaluate(ctx, expression, env)
	if err != nil {
		return nil, err
	}
	return withOutputVar(inv.Params, out, out), nil
}
