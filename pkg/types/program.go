// Package types defines the core type system for GoCEL.
//
// This package contains type definitions for:
//   - Program: compiled CEL expressions
//   - ASTNode: Abstract Syntax Tree nodes and their arena
//   - Value: runtime values (Null, Bool, Int, UInt, Double, String, Bytes,
//     List, Map, Timestamp, Duration, Optional, Function)
//   - Error types: structured errors with codes
package types

import (
	"sort"
	"strings"
)

// Program represents a compiled CEL expression.
//
// A Program can be evaluated multiple times against different contexts by
// passing it to [evaluator.Evaluator.Eval]. It is immutable after
// compilation and safe for concurrent use by multiple goroutines.
type Program struct {
	ast    *ASTNode
	source string
	arena  *NodeArena
	refs   []string
}

// NewProgram creates a new Program from an AST. arena may be nil when the
// tree was not allocated from an arena, in which case Node always returns nil.
func NewProgram(ast *ASTNode, source string, arena *NodeArena) *Program {
	return &Program{
		ast:    ast,
		source: source,
		arena:  arena,
		refs:   freeIdentifiers(ast),
	}
}

// AST returns the root of the Abstract Syntax Tree.
func (p *Program) AST() *ASTNode {
	return p.ast
}

// Source returns the original source code of the expression.
func (p *Program) Source() string {
	return p.source
}

// Node returns the node with the given ID, or nil.
func (p *Program) Node(id int64) *ASTNode {
	if p.arena == nil {
		return nil
	}
	return p.arena.Node(id)
}

// NodeCount returns the number of nodes reachable from the root.
func (p *Program) NodeCount() int {
	n := 0
	Walk(p.ast, func(*ASTNode) bool { n++; return true })
	return n
}

// References returns the sorted, de-duplicated names of the identifiers the
// expression reads from its context. Comprehension loop variables are not
// included while they are in scope. The receiver of a qualified function call
// such as optional.of(x) is reported too, since it may name a variable.
func (p *Program) References() []string {
	out := make([]string, len(p.refs))
	copy(out, p.refs)
	return out
}

// Location converts a byte offset into a 1-based line and column.
func (p *Program) Location(position int) (line, column int) {
	return Location(p.source, position)
}

// String returns a string representation of the program.
func (p *Program) String() string {
	return p.source
}

// Location converts a byte offset in src into a 1-based line and column.
// Columns count code points.
func Location(src string, position int) (line, column int) {
	if position < 0 {
		return 0, 0
	}
	if position > len(src) {
		position = len(src)
	}
	prefix := src[:position]
	line = strings.Count(prefix, "\n") + 1
	if i := strings.LastIndexByte(prefix, '\n'); i >= 0 {
		prefix = prefix[i+1:]
	}
	return line, len([]rune(prefix)) + 1
}

func freeIdentifiers(root *ASTNode) []string {
	seen := make(map[string]struct{})
	var visit func(n *ASTNode, bound map[string]int)
	visit = func(n *ASTNode, bound map[string]int) {
		if n == nil {
			return
		}
		switch n.Type {
		case NodeIdent:
			if bound[n.Name] == 0 {
				seen[n.Name] = struct{}{}
			}
			return
		case NodeComprehension:
			visit(n.LHS, bound)
			bound[n.IterVar]++
			for _, arg := range n.Arguments {
				visit(arg, bound)
			}
			bound[n.IterVar]--
			return
		}
		visit(n.LHS, bound)
		visit(n.RHS, bound)
		for _, arg := range n.Arguments {
			visit(arg, bound)
		}
		for _, e := range n.Expressions {
			visit(e, bound)
		}
	}
	visit(root, make(map[string]int))

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
