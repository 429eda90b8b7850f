package evaluator

// Package evaluator implements the CEL evaluation engine.
//
// The evaluator walks the AST of a compiled program against an EvalContext
// and produces a types.Value or a classified *types.Error. It supports:
//   - Strict and truthy boolean logic, with short-circuiting && and ||
//   - Comprehension macros with per-element scoped loop variables
//   - Deterministic overload dispatch over host, extension and built-in functions
//   - Timeout and cancellation via context.Context
//
// # Example
//
//	ev := evaluator.New()
//	prog, _ := parser.Compile("user.age >= 18 ? 'adult' : 'minor'")
//	evalCtx := evaluator.NewContext()
//	_ = evalCtx.AddVariable("user", map[string]any{"age": 16})
//	result, err := ev.Eval(ctx, prog, evalCtx)
//
// # Concurrency
//
// An Evaluator and a compiled program are immutable and may be shared by any
// number of goroutines, each evaluating against its own context.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sandrolain/gocel/pkg/cache"
	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/parser"
	"github.com/sandrolain/gocel/pkg/types"
)

// Evaluator evaluates compiled CEL programs.
type Evaluator struct {
	opts   EvalOptions
	logger *slog.Logger
	cache  *cache.Cache         // non-nil when caching is enabled
	ext    *functions.Registry // evaluator-wide extension overloads
}

// EvalOptions configures evaluator behavior.
type EvalOptions struct {
	// Caching enables compilation caching in Compile and EvalSource.
	// The default cache holds up to 256 programs with LRU eviction.
	Caching bool
	// CacheSize sets the maximum number of cached programs.
	// Only used when Caching is true and no explicit Cache is provided.
	CacheSize int
	// Cache is a shared program cache. If non-nil, caching is implicitly enabled.
	Cache *cache.Cache
	// MaxDepth limits the evaluation recursion depth. Zero disables the limit.
	MaxDepth int
	// Timeout bounds a single evaluation. Zero means no timeout.
	Timeout time.Duration
	// Debug enables debug logging.
	Debug bool
	// Logger for structured logging.
	Logger *slog.Logger
	// Functions are extension overloads available to every evaluation.
	Functions []functions.Overload
	// NumericPromotion lets arithmetic mix int or uint with double by
	// promoting the integer operand to double.
	NumericPromotion bool
	// TruthyLogic judges &&, ||, !, conditions and macro predicates by
	// truthiness instead of requiring bool operands.
	TruthyLogic bool
	// CompileOptions are passed to the parser by Compile and EvalSource.
	CompileOptions []parser.CompileOption
}

// New creates a new Evaluator.
func New(opts ...EvalOption) *Evaluator {
	options := EvalOptions{
		MaxDepth: 10000,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		if options.Debug {
			options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		} else {
			options.Logger = slog.New(slog.DiscardHandler)
		}
	}

	var c *cache.Cache
	if options.Cache != nil {
		c = options.Cache
	} else if options.Caching {
		c = cache.New(options.CacheSize)
	}

	ext := functions.NewRegistry()
	for _, ov := range options.Functions {
		if err := ext.Add(ov); err != nil {
			options.Logger.Warn("invalid extension function ignored", "function", ov.Name, "error", err)
		}
	}

	return &Evaluator{
		opts:   options,
		logger: options.Logger,
		cache:  c,
		ext:    ext,
	}
}

// Cache returns the program cache, or nil if caching is disabled.
func (e *Evaluator) Cache() *cache.Cache {
	return e.cache
}

// Options returns a copy of the evaluator options.
func (e *Evaluator) Options() EvalOptions {
	return e.opts
}

// Compile parses src, consulting the program cache when enabled.
func (e *Evaluator) Compile(src string) (*types.Program, error) {
	if e.cache == nil {
		return parser.Compile(src, e.opts.CompileOptions...)
	}
	return e.cache.GetOrCompile(src, func() (*types.Program, error) {
		return parser.Compile(src, e.opts.CompileOptions...)
	})
}

// EvalSource compiles and evaluates src in one step.
func (e *Evaluator) EvalSource(ctx context.Context, src string, evalCtx *EvalContext) (types.Value, error) {
	prog, err := e.Compile(src)
	if err != nil {
		return nil, err
	}
	return e.Eval(ctx, prog, evalCtx)
}

// Eval evaluates prog against evalCtx. A nil evalCtx evaluates against an
// empty context.
func (e *Evaluator) Eval(ctx context.Context, prog *types.Program, evalCtx *EvalContext) (types.Value, error) {
	if prog == nil || prog.AST() == nil {
		return nil, fmt.Errorf("invalid program")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if evalCtx == nil {
		evalCtx = NewContext()
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	if e.opts.MaxDepth > 0 {
		ctx = withNewRecurseDepthPtr(ctx)
	}

	result, err := e.evalNode(ctx, prog.AST(), evalCtx)
	if err != nil {
		return nil, locate(prog, err)
	}
	return result, nil
}

// locate fills line and column of a positioned error.
func locate(prog *types.Program, err error) error {
	var te *types.Error
	if errors.As(err, &te) && te.Position >= 0 && te.Line == 0 {
		te.WithLocation(prog.Location(te.Position))
	}
	return err
}

// EvalOption configures evaluation behavior.
type EvalOption func(*EvalOptions)

// WithCaching enables or disables compilation caching.
// When enabled, a default LRU cache of 256 programs is created.
func WithCaching(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.Caching = enabled
	}
}

// WithCacheSize sets the maximum number of cached programs.
// Only effective when combined with WithCaching(true).
func WithCacheSize(size int) EvalOption {
	return func(opts *EvalOptions) {
		opts.CacheSize = size
	}
}

// WithCache attaches a shared program cache.
func WithCache(c *cache.Cache) EvalOption {
	return func(opts *EvalOptions) {
		opts.Cache = c
	}
}

// WithTimeout sets the evaluation timeout.
func WithTimeout(timeout time.Duration) EvalOption {
	return func(opts *EvalOptions) {
		opts.Timeout = timeout
	}
}

// WithDebug enables or disables debug logging.
func WithDebug(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.Debug = enabled
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EvalOption {
	return func(opts *EvalOptions) {
		opts.Logger = logger
	}
}

// WithMaxDepth sets the maximum recursion depth.
func WithMaxDepth(depth int) EvalOption {
	return func(opts *EvalOptions) {
		opts.MaxDepth = depth
	}
}

// WithFunctions registers extension overloads for every evaluation.
// Context functions take precedence over them; built-ins come last.
func WithFunctions(ovs ...functions.Overload) EvalOption {
	return func(opts *EvalOptions) {
		opts.Functions = append(opts.Functions, ovs...)
	}
}

// WithCustomFunction registers a native Go function working on plain Go
// values.
//
// Example:
//
//	ev := evaluator.New(evaluator.WithCustomFunction("greet", func(ctx context.Context, args ...any) (any, error) {
//	    return "Hello, " + args[0].(string) + "!", nil
//	}))
func WithCustomFunction(name string, fn functions.CustomFunc) EvalOption {
	return WithFunctions(functions.Native(name, fn))
}

// WithNumericPromotion enables int to double promotion in mixed arithmetic.
func WithNumericPromotion(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.NumericPromotion = enabled
	}
}

// WithTruthyLogic switches boolean operators to truthiness semantics.
func WithTruthyLogic(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.TruthyLogic = enabled
	}
}

// WithCompileOptions sets the parser options used by Compile and EvalSource.
func WithCompileOptions(copts ...parser.CompileOption) EvalOption {
	return func(opts *EvalOptions) {
		opts.CompileOptions = append(opts.CompileOptions, copts...)
	}
}
