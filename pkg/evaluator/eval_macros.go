package evaluator

import (
	"context"
	"errors"

	"github.com/sandrolain/gocel/pkg/types"
)

// evalComprehension evaluates the all, exists, exists_one, filter and map
// macros. The range is evaluated once; each element is bound in its own
// child frame that is discarded after the element's evaluation.
func (e *Evaluator) evalComprehension(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	rng, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}

	var items types.List
	switch x := rng.(type) {
	case types.List:
		items = x
	case *types.Map:
		items = x.Keys()
	default:
		return nil, types.NewError(types.ErrInvalidTypeOperation,
			"macro '"+node.Name+"' cannot range over "+types.TypeName(rng), node.Position)
	}

	if e.opts.Debug {
		e.logger.Debug("comprehension",
			"macro", node.Name,
			"var", node.IterVar,
			"size", len(items))
	}

	switch node.Name {
	case types.MacroAll:
		for _, item := range items {
			ok, err := e.predicate(ctx, node, node.Arguments[0], evalCtx.NewChildContext(node.IterVar, item))
			if err != nil {
				return nil, err
			}
			if !ok {
				return types.False, nil
			}
		}
		return types.True, nil

	case types.MacroExists:
		for _, item := range items {
			ok, err := e.predicate(ctx, node, node.Arguments[0], evalCtx.NewChildContext(node.IterVar, item))
			if err != nil {
				return nil, err
			}
			if ok {
				return types.True, nil
			}
		}
		return types.False, nil

	case types.MacroExistsOne:
		count := 0
		for _, item := range items {
			ok, err := e.predicate(ctx, node, node.Arguments[0], evalCtx.NewChildContext(node.IterVar, item))
			if err != nil {
				return nil, err
			}
			if ok {
				count++
			}
		}
		return types.Bool(count == 1), nil

	case types.MacroFilter:
		out := make(types.List, 0, len(items))
		for _, item := range items {
			ok, err := e.predicate(ctx, node, node.Arguments[0], evalCtx.NewChildContext(node.IterVar, item))
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, item)
			}
		}
		return out, nil

	case types.MacroMap:
		filter, transform := (*types.ASTNode)(nil), node.Arguments[0]
		if len(node.Arguments) == 2 {
			filter, transform = node.Arguments[0], node.Arguments[1]
		}
		out := make(types.List, 0, len(items))
		for _, item := range items {
			frame := evalCtx.NewChildContext(node.IterVar, item)
			if filter != nil {
				ok, err := e.predicate(ctx, node, filter, frame)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			v, err := e.evalNode(ctx, transform, frame)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	return nil, types.NewError(types.ErrInvalidMacro, "unknown macro '"+node.Name+"'", node.Position)
}

// predicate evaluates a macro predicate in the element frame.
func (e *Evaluator) predicate(ctx context.Context, macro, pred *types.ASTNode, frame *EvalContext) (bool, error) {
	v, err := e.evalNode(ctx, pred, frame)
	if err != nil {
		return false, err
	}
	ok, err := e.condition(v, macro.Name+"() predicate")
	if err != nil {
		var te *types.Error
		if errors.As(err, &te) {
			te.WithPosition(pred.Position)
		}
		return false, err
	}
	return ok, nil
}
