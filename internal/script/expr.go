package script

import (
	"context"
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEngine evaluates bodies as expr-lang expressions. Programs are
// goroutine-safe and shared between invocations.
type ExprEngine struct{}

// NewExprEngine creates an expression engine.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{}
}

// Name implements Engine.
func (e *ExprEngine) Name() string { return EngineExpr }

// Compile implements Engine. Parameters are typed as generic maps, so
// unknown identifiers are rejected at compile time.
func (e *ExprEngine) Compile(body string, params ...string) (Function, error) {
	if IsBlank(body) {
		return nil, &CompileError{Engine: EngineExpr, Err: errors.New("empty expression")}
	}
	env := make(map[string]any, len(params))
	for _, p := range params {
		env[p] = map[string]any{}
	}
	program, err := expr.Compile(body,
		expr.Env(env),
		expr.Function("jsonpath", exprJSONPath),
	)
	if err != nil {
		return nil, &CompileError{Engine: EngineExpr, Err: err}
	}
	return &exprFunction{program: program, params: params}, nil
}

type exprFunction struct {
	program *vm.Program
	params  []string
}

// Invoke runs the program. When it yields a map and there is more than one
// parameter, the map is merged into the last argument.
func (f *exprFunction) Invoke(ctx context.Context, args ...any) (result any, err error) {
	defer recoverInto(EngineExpr, &err)

	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, &RuntimeError{Engine: EngineExpr, Err: err}
		}
	}

	env := make(map[string]any, len(f.params))
	for i, p := range f.params {
		if i < len(args) {
			env[p] = args[i]
		} else {
			env[p] = nil
		}
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return nil, &RuntimeError{Engine: EngineExpr, Err: err}
	}

	if len(f.params) > 1 && len(args) == len(f.params) {
		if patch, ok := out.(map[string]any); ok {
			if target, ok := args[len(args)-1].(map[string]any); ok {
				for k, v := range patch {
					target[k] = v
				}
			}
		}
	}
	return out, nil
}

// jsonpath(document, path) -> list of matches
func exprJSONPath(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("jsonpath expects 2 arguments, got %d", len(params))
	}
	path, ok := params[1].(string)
	if !ok {
		return nil, fmt.Errorf("jsonpath path must be a string")
	}
	return JSONPath(params[0], path)
}
