package parser

// Package parser implements the CEL expression parser.
//
// The parser is hand written: a Rob Pike style lexer feeds a Pratt
// (top-down operator precedence) parser that builds the AST in a node
// arena, giving every node a stable numeric ID. Macros (has, all, exists,
// exists_one, filter, map) are expanded while parsing.
//
// # Architecture
//
// The parser consists of three main components:
//   - Lexer: Tokenizes the input expression into a stream of tokens
//   - Parser: Builds an Abstract Syntax Tree (AST) from tokens
//   - Macro expansion: Rewrites macro calls into comprehension nodes
//
// Parsing stops at the first syntax error; no partial tree is ever returned.
//
// # Example
//
//	prog, err := parser.Compile("user.age >= 18 ? 'adult' : 'minor'")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ast := prog.AST()

import (
	"github.com/sandrolain/gocel/pkg/types"
)

// Parse parses a CEL expression with default options and returns the
// compiled Program.
//
// If parsing fails, it returns a *types.Error with code, message and
// line/column information.
//
// Example:
//
//	prog, err := parser.Parse("size(name) > 3")
//	if err != nil {
//	    var e *types.Error
//	    if errors.As(err, &e) {
//	        fmt.Printf("Parse error at %d:%d\n", e.Line, e.Column)
//	    }
//	    return
//	}
func Parse(src string) (*types.Program, error) {
	p := NewParser(src)
	return p.Parse()
}

// Compile parses src with the given options.
func Compile(src string, opts ...CompileOption) (*types.Program, error) {
	p := NewParser(src, opts...)
	return p.Parse()
}

// CompileOption configures compilation behavior.
type CompileOption func(*CompileOptions)

// CompileOptions holds parser configuration.
type CompileOptions struct {
	// MaxDepth limits expression nesting to prevent stack overflow.
	// Zero disables the limit.
	MaxDepth int
	// MaxLength limits the source length in bytes. Zero disables the limit.
	MaxLength int
}

func defaultCompileOptions() CompileOptions {
	return CompileOptions{
		MaxDepth:  250,
		MaxLength: 100_000,
	}
}

// WithMaxDepth sets the maximum parsing depth.
func WithMaxDepth(depth int) CompileOption {
	return func(opts *CompileOptions) {
		opts.MaxDepth = depth
	}
}

// WithMaxLength sets the maximum accepted source length in bytes.
func WithMaxLength(n int) CompileOption {
	return func(opts *CompileOptions) {
		opts.MaxLength = n
	}
}
