package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sandrolain/gocel/pkg/types"
)

// recurseDepthKey stores the per-evaluation depth counter in context.Context.
type recurseDepthKey struct{}

// withNewRecurseDepthPtr returns a context carrying a fresh depth counter.
// Call this once at the start of each top-level evaluation.
func withNewRecurseDepthPtr(ctx context.Context) context.Context {
	d := 0
	return context.WithValue(ctx, recurseDepthKey{}, &d)
}

func getRecurseDepthPtr(ctx context.Context) *int {
	if p, ok := ctx.Value(recurseDepthKey{}).(*int); ok {
		return p
	}
	return nil
}

// evalNode evaluates an AST node in the given context.
func (e *Evaluator) evalNode(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	select {
	case <-ctx.Done():
		return nil, types.Errorf(types.ErrEvalCancelled, "evaluation cancelled: %v", ctx.Err()).WithCause(ctx.Err())
	default:
	}

	if node == nil {
		return nil, types.Errorf(types.ErrInvalidTypeOperation, "missing expression")
	}

	if depth := getRecurseDepthPtr(ctx); depth != nil {
		*depth++
		defer func() { *depth-- }()
		if *depth > e.opts.MaxDepth {
			return nil, types.NewError(types.ErrStackOverflow, "maximum evaluation depth exceeded", node.Position)
		}
	}

	if e.opts.Debug {
		e.logger.Debug("eval node",
			"type", node.Type,
			"id", node.ID,
			"depth", evalCtx.Depth())
	}

	v, err := e.dispatchNode(ctx, node, evalCtx)
	if err != nil {
		var te *types.Error
		if errors.As(err, &te) {
			te.WithPosition(node.Position)
		}
		return nil, err
	}
	return v, nil
}

func (e *Evaluator) dispatchNode(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	switch node.Type {
	case types.NodeLiteral:
		return node.Value, nil
	case types.NodeIdent:
		return e.evalIdent(node, evalCtx)
	case types.NodeSelect:
		return e.evalSelect(ctx, node, evalCtx)
	case types.NodeIndex:
		return e.evalIndex(ctx, node, evalCtx)
	case types.NodeCall:
		return e.evalCall(ctx, node, evalCtx)
	case types.NodeUnary:
		return e.evalUnary(ctx, node, evalCtx)
	case types.NodeBinary:
		return e.evalBinary(ctx, node, evalCtx)
	case types.NodeCondition:
		return e.evalCondition(ctx, node, evalCtx)
	case types.NodeList:
		return e.evalList(ctx, node, evalCtx)
	case types.NodeMap:
		return e.evalMap(ctx, node, evalCtx)
	case types.NodeComprehension:
		return e.evalComprehension(ctx, node, evalCtx)
	default:
		return nil, fmt.Errorf("unsupported node type: %s", node.Type)
	}
}

// evalIdent resolves a name: variables first, then host functions as
// function values.
func (e *Evaluator) evalIdent(node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	if v, ok := evalCtx.Resolve(node.Name); ok {
		return v, nil
	}
	if evalCtx.HasFunction(node.Name) || e.ext.Has(node.Name) {
		return e.functionValue(evalCtx, node.Name), nil
	}
	return nil, types.NewError(types.ErrUndefinedVariable,
		fmt.Sprintf("undefined variable or function: '%s'", node.Name), node.Position).WithToken(node.Name)
}

// qualifiedName returns the dotted name of a select chain rooted at an
// identifier (a.b.c) together with the root identifier.
func qualifiedName(node *types.ASTNode) (name, root string, ok bool) {
	switch node.Type {
	case types.NodeIdent:
		return node.Name, node.Name, true
	case types.NodeSelect:
		if node.TestOnly {
			return "", "", false
		}
		prefix, root, ok := qualifiedName(node.LHS)
		if !ok {
			return "", "", false
		}
		return prefix + "." + node.Name, root, true
	}
	return "", "", false
}

// evalSelect evaluates operand.field and the has(operand.field) test.
func (e *Evaluator) evalSelect(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	// dotted variable names such as "request.auth" bound as a whole
	if name, root, ok := qualifiedName(node.LHS); ok {
		if _, bound := evalCtx.Resolve(root); !bound {
			if v, found := evalCtx.Resolve(name + "." + node.Name); found {
				if node.TestOnly {
					return types.True, nil
				}
				return v, nil
			}
		}
	}

	operand, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}

	m, ok := operand.(*types.Map)
	if !ok {
		return nil, types.NewError(types.ErrInvalidTypeOperation,
			fmt.Sprintf("type '%s' does not support field selection", types.TypeName(operand)), node.Position)
	}
	if node.TestOnly {
		return types.Bool(m.Has(types.String(node.Name))), nil
	}
	v, found := m.Get(types.String(node.Name))
	if !found {
		return nil, types.NewError(types.ErrNoSuchKey,
			fmt.Sprintf("no such key: '%s'", node.Name), node.Position).WithToken(node.Name)
	}
	return v, nil
}

// evalIndex evaluates operand[index]. The operand is evaluated exactly once.
func (e *Evaluator) evalIndex(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	operand, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}
	index, err := e.evalNode(ctx, node.RHS, evalCtx)
	if err != nil {
		return nil, err
	}

	switch x := operand.(type) {
	case types.List:
		i, err := toIndex(index, len(x))
		if err != nil {
			return nil, err
		}
		return x[i], nil
	case *types.Map:
		v, found := x.Get(index)
		if !found {
			return nil, types.Errorf(types.ErrNoSuchKey, "no such key: %s", types.Repr(index))
		}
		return v, nil
	case types.String:
		runes := []rune(string(x))
		i, err := toIndex(index, len(runes))
		if err != nil {
			return nil, err
		}
		return types.String(string(runes[i])), nil
	case types.Bytes:
		i, err := toIndex(index, len(x))
		if err != nil {
			return nil, err
		}
		return types.Bytes{x[i]}, nil
	}
	return nil, types.Errorf(types.ErrInvalidTypeOperation,
		"type '%s' does not support indexing", types.TypeName(operand))
}

// toIndex converts an int, uint or integral double index and checks bounds.
func toIndex(index types.Value, size int) (int, error) {
	var i int64
	switch x := index.(type) {
	case types.Int:
		i = int64(x)
	case types.UInt:
		if x > math.MaxInt64 {
			return 0, types.Errorf(types.ErrIndexOutOfRange, "index out of range: %d", uint64(x))
		}
		i = int64(x)
	case types.Double:
		f := float64(x)
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, types.Errorf(types.ErrInvalidTypeOperation, "invalid index %s", types.FormatDouble(f))
		}
		i = int64(f)
	default:
		return 0, types.Errorf(types.ErrInvalidTypeOperation,
			"index must be an integer, got %s", types.TypeName(index))
	}
	if i < 0 || i >= int64(size) {
		return 0, types.Errorf(types.ErrIndexOutOfRange, "index out of range: %d (size %d)", i, size)
	}
	return int(i), nil
}

// evalCondition evaluates only the selected branch.
func (e *Evaluator) evalCondition(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	cond, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}
	ok, err := e.condition(cond, "?:")
	if err != nil {
		return nil, err
	}
	if ok {
		return e.evalNode(ctx, node.RHS, evalCtx)
	}
	return e.evalNode(ctx, node.Expressions[0], evalCtx)
}

// condition interprets v as a boolean according to the logic mode.
func (e *Evaluator) condition(v types.Value, where string) (bool, error) {
	if b, ok := v.(types.Bool); ok {
		return bool(b), nil
	}
	if e.opts.TruthyLogic {
		return types.Truthy(v), nil
	}
	return false, types.Errorf(types.ErrNonBoolCondition,
		"%s requires a bool, got %s", where, types.TypeName(v))
}

// evalList builds a list, evaluating elements in source order.
func (e *Evaluator) evalList(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	out := make(types.List, len(node.Expressions))
	for i, elem := range node.Expressions {
		v, err := e.evalNode(ctx, elem, evalCtx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalMap builds a map, evaluating each key before its value.
func (e *Evaluator) evalMap(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	m := types.NewMap(len(node.Expressions))
	for _, entry := range node.Expressions {
		k, err := e.evalNode(ctx, entry.LHS, evalCtx)
		if err != nil {
			return nil, err
		}
		v, err := e.evalNode(ctx, entry.RHS, evalCtx)
		if err != nil {
			return nil, err
		}
		if err := m.Insert(k, v); err != nil {
			var te *types.Error
			if errors.As(err, &te) {
				te.WithPosition(entry.Position)
			}
			return nil, err
		}
	}
	return m, nil
}

// functionValue wraps a host function name as a callable value.
func (e *Evaluator) functionValue(evalCtx *EvalContext, name string) types.Function {
	return types.Function{
		Name: name,
		Call: func(ctx context.Context, args ...types.Value) (types.Value, error) {
			return e.dispatch(ctx, evalCtx, name, false, args)
		},
	}
}
