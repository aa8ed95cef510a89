package expressions

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/gaiaflow/pkg/schema"
)

// ExprEngine evaluates expr-lang expressions for the expr.eval action.
// Programs are compiled against the variable snapshot so variables shadow
// built-ins of the same name; the cache is keyed by expression and the
// snapshot's shape.
type ExprEngine struct {
	cache *programCache[*vm.Program]
}

func NewExprEngine() *ExprEngine {
	return &ExprEngine{cache: newProgramCache[*vm.Program]()}
}

func (e *ExprEngine) Name() string { return "expr" }

// Evaluate runs expression with data as its environment. Unknown
// identifiers evaluate to nil.
func (e *ExprEngine) Evaluate(_ context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}
	env := data
	if env == nil {
		env = map[string]any{}
	}
	prg, err := e.cache.get(envKey(expression, env), func(string) (*vm.Program, error) {
		return compileExpr(expression, env)
	})
	if err != nil {
		return nil, err
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "expr evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err)
	}
	return out, nil
}

// envKey identifies a program by its source and the names and Go types of
// the environment it was compiled against.
func envKey(expression string, env map[string]any) string {
	var b strings.Builder
	b.WriteString(expression)
	for _, k := range slices.Sorted(maps.Keys(env)) {
		fmt.Fprintf(&b, "\x00%s:%T", k, env[k])
	}
	return b.String()
}

func compileExpr(expression string, env map[string]any) (*vm.Program, error) {
	prg, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "expr compile error in %q: %s", expression, err.Error()).
			WithCause(err)
	}
	return prg, nil
}

var _ Engine = (*ExprEngine)(nil)
