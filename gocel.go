// Package gocel provides a Go implementation of the Common Expression
// Language (CEL).
//
// CEL is a small, side-effect-free expression language for evaluating
// conditions and computing values over host-provided data. gocel is designed
// for embedding in services that evaluate the same rules many times:
//   - Compile once: a Program is immutable and safe for concurrent use
//   - Deterministic: no I/O, no unbounded loops, no wall-clock access
//   - Extensible: host functions with typed overloads
//
// # Quick Start
//
//	// Simple evaluation
//	result, err := gocel.Eval("user.age >= 18", map[string]any{"user": user})
//
//	// Compile once, evaluate many times
//	prog, err := gocel.Compile("items.filter(i, i.price > limit)")
//	ev := evaluator.New()
//	v1, _ := ev.Eval(ctx, prog, ctx1)
//	v2, _ := ev.Eval(ctx, prog, ctx2)
//
//	// With options
//	result, err := gocel.Eval("a + b", vars,
//	    gocel.WithTimeout(5*time.Second),
//	    gocel.WithNumericPromotion(true),
//	)
//
// # More Information
//
// For detailed documentation, see:
//   - Parser: github.com/sandrolain/gocel/pkg/parser
//   - Evaluator: github.com/sandrolain/gocel/pkg/evaluator
//   - Functions: github.com/sandrolain/gocel/pkg/functions
//   - Types: github.com/sandrolain/gocel/pkg/types
//   - Extensions: github.com/sandrolain/gocel/pkg/ext
package gocel

import (
	"context"
	"fmt"
	"time"

	"github.com/sandrolain/gocel/pkg/evaluator"
	"github.com/sandrolain/gocel/pkg/parser"
	"github.com/sandrolain/gocel/pkg/types"
)

// Version returns the current version of gocel.
func Version() string {
	return "v0.1.0-dev"
}

// defaultTimeout bounds Eval when the caller supplies no context.
const defaultTimeout = 30 * time.Second

// Re-exported option types and constructors, so simple programs only need
// the root package.
type (
	EvalOption    = evaluator.EvalOption
	CompileOption = parser.CompileOption
)

var (
	WithTimeout          = evaluator.WithTimeout
	WithDebug            = evaluator.WithDebug
	WithLogger           = evaluator.WithLogger
	WithMaxDepth         = evaluator.WithMaxDepth
	WithCaching          = evaluator.WithCaching
	WithCacheSize        = evaluator.WithCacheSize
	WithFunctions        = evaluator.WithFunctions
	WithCustomFunction   = evaluator.WithCustomFunction
	WithNumericPromotion = evaluator.WithNumericPromotion
	WithTruthyLogic      = evaluator.WithTruthyLogic
)

// Compile compiles a CEL expression for repeated evaluation.
//
// The compiled Program can be evaluated multiple times against different
// contexts. It is safe for concurrent use.
//
// Example:
//
//	prog, err := gocel.Compile("items.exists(i, i.price > 100)")
//	if err != nil {
//	    log.Fatal(err)
//	}
func Compile(src string, opts ...parser.CompileOption) (*types.Program, error) {
	return parser.Compile(src, opts...)
}

// MustCompile is like Compile but panics if the expression cannot be compiled.
// It simplifies safe initialization of global variables.
func MustCompile(src string) *types.Program {
	prog, err := Compile(src)
	if err != nil {
		panic(fmt.Sprintf("gocel: Compile(%q): %v", src, err))
	}
	return prog
}

// NewContext returns an evaluation context holding vars. Go functions in vars
// are registered as functions; everything else becomes a variable.
func NewContext(vars map[string]any) (*evaluator.EvalContext, error) {
	evalCtx := evaluator.NewContext()
	if err := evalCtx.Update(vars); err != nil {
		return nil, err
	}
	return evalCtx, nil
}

// Eval is a convenience function that compiles and evaluates an expression
// in a single call, returning a plain Go value (see types.ValueToNative).
//
// For repeated evaluations of the same expression, use Compile instead.
//
// Example:
//
//	result, err := gocel.Eval("name.startsWith('A')", map[string]any{"name": "Alice"})
func Eval(src string, vars map[string]any, opts ...evaluator.EvalOption) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return EvalWithContext(ctx, src, vars, opts...)
}

// EvalWithContext is like Eval with a caller-supplied context.
func EvalWithContext(ctx context.Context, src string, vars map[string]any, opts ...evaluator.EvalOption) (any, error) {
	prog, err := Compile(src)
	if err != nil {
		return nil, err
	}
	evalCtx, err := NewContext(vars)
	if err != nil {
		return nil, err
	}
	v, err := evaluator.New(opts...).Eval(ctx, prog, evalCtx)
	if err != nil {
		return nil, err
	}
	return types.ValueToNative(v), nil
}
