package parser

import (
	"fmt"

	"github.com/sandrolain/gocel/pkg/types"
)

// macroResult carries the outcome of a macro expansion.
type macroResult struct {
	node *types.ASTNode
	err  error
}

// macroArity lists the receiver-style macros and the argument counts that
// trigger them. Calls with any other argument count are ordinary method calls.
var macroArity = map[string][]int{
	types.MacroAll:       {2},
	types.MacroExists:    {2},
	types.MacroExistsOne: {2},
	"existsOne":          {2},
	types.MacroFilter:    {2},
	types.MacroMap:       {2, 3},
}

// expandMacro rewrites target.macro(var, ...) into a comprehension node.
// ok is false when the call is not a macro invocation.
func expandMacro(p *Parser, target *types.ASTNode, name Token, args []*types.ASTNode) (macroResult, bool) {
	arities, isMacro := macroArity[name.Value]
	if !isMacro {
		return macroResult{}, false
	}
	matched := false
	for _, n := range arities {
		if len(args) == n {
			matched = true
		}
	}
	if !matched {
		return macroResult{}, false
	}

	iterVar := args[0]
	if iterVar.Type != types.NodeIdent {
		return macroResult{err: p.errorAt(types.ErrInvalidMacro,
			fmt.Sprintf("%s() variable must be a simple name", name.Value), name)}, true
	}

	macro := name.Value
	if macro == "existsOne" {
		macro = types.MacroExistsOne
	}

	node := p.alloc(types.NodeComprehension, name.Position)
	node.Name = macro
	node.IterVar = iterVar.Name
	node.LHS = target
	node.Arguments = args[1:]
	return macroResult{node: node}, true
}

// expandHas rewrites has(operand.field) into a test-only select node.
func (p *Parser) expandHas(callee *types.ASTNode, args []*types.ASTNode) (*types.ASTNode, error) {
	if len(args) != 1 || args[0].Type != types.NodeSelect || args[0].TestOnly {
		tok := Token{Type: TokenName, Value: callee.Name, Position: callee.Position}
		return nil, p.errorAt(types.ErrInvalidMacro, "has() requires a single field selection argument", tok)
	}
	args[0].TestOnly = true
	return args[0], nil
}
