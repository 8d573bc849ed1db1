package script

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Engine names.
const (
	EngineLua  = "lua"
	EngineExpr = "expr"
)

// ErrUnknownEngine is returned by New for an unsupported engine name.
var ErrUnknownEngine = errors.New("unknown script engine")

// Engine compiles function bodies.
type Engine interface {
	// Name returns the engine name.
	Name() string

	// Compile compiles body as a function of the named parameters.
	Compile(body string, params ...string) (Function, error)
}

// Function is a compiled body. It is safe for concurrent use.
type Function interface {
	// Invoke runs the function. Map arguments may be modified in place.
	Invoke(ctx context.Context, args ...any) (any, error)
}

// New returns the named engine. The empty name selects the Lua engine.
func New(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EngineLua, "":
		return NewLuaEngine(), nil
	case EngineExpr:
		return NewExprEngine(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// CompileError reports a body that could not be compiled.
type CompileError struct {
	Engine string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s compile error: %v", e.Engine, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// RuntimeError reports a failure while a compiled function ran.
type RuntimeError struct {
	Engine string
	Err    error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s runtime error: %v", e.Engine, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// Truthy applies JavaScript-like truthiness to a script result: nil, false,
// 0, NaN and "" are false; everything else is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case int:
		return t != 0
	case int64:
		return t != 0
	case int32:
		return t != 0
	case uint:
		return t != 0
	case uint64:
		return t != 0
	default:
		return true
	}
}

// IsBlank reports whether a body is empty or whitespace only. Blank matcher
// bodies are catch-alls and are never compiled.
func IsBlank(body string) bool {
	return strings.TrimSpace(body) == ""
}

// replaceMap overwrites dst's contents with src's.
func replaceMap(dst, src map[string]any) {
	for k := range dst {
		if _, ok := src[k]; !ok {
			delete(dst, k)
		}
	}
	for k, v := range src {
		dst[k] = v
	}
}

// recoverInto converts a panic into a RuntimeError stored in *err.
func recoverInto(engine string, err *error) {
	if r := recover(); r != nil {
		*err = &RuntimeError{Engine: engine, Err: fmt.Errorf("panic: %v", r)}
	}
}
