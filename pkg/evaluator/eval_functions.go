package evaluator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

// evalCall evaluates global calls, method calls and qualified global calls
// such as optional.of(x).
func (e *Evaluator) evalCall(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	if node.LHS == nil {
		return e.evalGlobalCall(ctx, node, evalCtx)
	}

	// ident.name(...) with an unbound ident is a qualified global function
	if prefix, _, ok := qualifiedName(node.LHS); ok && !prefixBound(evalCtx, prefix) {
		args, err := e.evalArgs(ctx, node.Arguments, evalCtx)
		if err != nil {
			return nil, err
		}
		return e.dispatch(ctx, evalCtx, prefix+"."+node.Name, false, args)
	}

	recv, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}
	args := make([]types.Value, 1, len(node.Arguments)+1)
	args[0] = recv
	for _, arg := range node.Arguments {
		v, err := e.evalNode(ctx, arg, evalCtx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return e.dispatch(ctx, evalCtx, node.Name, true, args)
}

// prefixBound reports whether the dotted name, or any leading part of it,
// resolves to a variable.
func prefixBound(evalCtx *EvalContext, name string) bool {
	for i := 0; i <= len(name); i++ {
		if i < len(name) && name[i] != '.' {
			continue
		}
		if _, ok := evalCtx.Resolve(name[:i]); ok {
			return true
		}
	}
	return false
}

func (e *Evaluator) evalGlobalCall(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	args, err := e.evalArgs(ctx, node.Arguments, evalCtx)
	if err != nil {
		return nil, err
	}
	if v, ok := evalCtx.Resolve(node.Name); ok {
		if fn, isFn := v.(types.Function); isFn {
			return e.callFunctionValue(ctx, fn, args)
		}
	}
	return e.dispatch(ctx, evalCtx, node.Name, false, args)
}

// evalArgs evaluates call arguments left to right, each exactly once.
func (e *Evaluator) evalArgs(ctx context.Context, nodes []*types.ASTNode, evalCtx *EvalContext) ([]types.Value, error) {
	args := make([]types.Value, len(nodes))
	for i, arg := range nodes {
		v, err := e.evalNode(ctx, arg, evalCtx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (e *Evaluator) callFunctionValue(ctx context.Context, fn types.Function, args []types.Value) (types.Value, error) {
	if fn.Call == nil {
		return nil, types.Errorf(types.ErrUndefinedFunction, "function value '%s' is not callable", fn.Name)
	}
	return e.invoke(ctx, fn.Name, "", fn.Call, args, true)
}

// dispatch resolves name over the context frames (innermost first), the
// evaluator extensions and the built-ins, then invokes the selected overload.
func (e *Evaluator) dispatch(ctx context.Context, evalCtx *EvalContext, name string, receiver bool, args []types.Value) (types.Value, error) {
	var noMatch error
	try := func(reg *functions.Registry) (*functions.Overload, error) {
		if !reg.Has(name) {
			return nil, nil
		}
		ov, err := reg.Resolve(name, receiver, args)
		switch types.CodeOf(err) {
		case types.ErrUndefinedFunction:
			return nil, nil
		case types.ErrNoMatchingOverload:
			noMatch = err
			return nil, nil
		}
		return ov, err
	}

	for f := evalCtx; f != nil; f = f.parent {
		ov, err := try(f.funcs)
		if err != nil {
			return nil, err
		}
		if ov != nil {
			return e.invoke(ctx, name, ov.ID, ov.Fn, args, true)
		}
	}
	tiers := []struct {
		reg  *functions.Registry
		host bool
	}{
		{reg: e.ext, host: true},
		{reg: builtins(), host: false},
	}
	for _, tier := range tiers {
		ov, err := try(tier.reg)
		if err != nil {
			return nil, err
		}
		if ov != nil {
			return e.invoke(ctx, name, ov.ID, ov.Fn, args, tier.host)
		}
	}

	if noMatch != nil {
		return nil, noMatch
	}
	if receiver {
		return nil, types.Errorf(types.ErrUndefinedFunction, "undefined function '%s' for receiver %s",
			name, types.TypeName(args[0])).WithToken(name)
	}
	return nil, types.Errorf(types.ErrUndefinedFunction, "undefined function '%s'", name).WithToken(name)
}

// invoke calls fn. Failures of host functions are wrapped into runtime
// errors naming the function; host panics are recovered.
func (e *Evaluator) invoke(ctx context.Context, name, id string, fn functions.Func, args []types.Value, host bool) (result types.Value, err error) {
	if e.opts.Debug {
		e.logger.Debug("dispatch",
			"function", name,
			"overload", id,
			"args", len(args),
			"host", host)
	}

	if !host {
		return fn(ctx, args...)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("function panicked", "function", name, "panic", r)
			err = &types.Error{
				Code:     types.ErrFunctionFailed,
				Message:  fmt.Sprintf("function '%s' panicked: %v", name, r),
				Position: -1,
				Function: name,
			}
			result = nil
		}
	}()

	result, err = fn(ctx, args...)
	if err != nil {
		if e.opts.Debug {
			e.logger.Debug("function failed", "function", name, "error", err)
		}
		return nil, wrapHostError(name, err)
	}
	if result == nil {
		result = types.NullValue
	}
	return result, nil
}

func wrapHostError(name string, err error) error {
	var te *types.Error
	if errors.As(err, &te) {
		cp := *te
		if cp.Function == "" {
			cp.Function = name
		}
		return &cp
	}
	return &types.Error{
		Code:     types.ErrFunctionFailed,
		Message:  fmt.Sprintf("function '%s' error: %v", name, err),
		Position: -1,
		Function: name,
		Err:      err,
	}
}
