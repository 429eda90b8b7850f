package evaluator

import (
	"context"
	"math"
	"math/bits"
	"time"

	"github.com/sandrolain/gocel/pkg/types"
)

// evalUnary evaluates negation and logical not.
func (e *Evaluator) evalUnary(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	operand, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}

	switch node.Name {
	case "!":
		if b, ok := operand.(types.Bool); ok {
			return !b, nil
		}
		if e.opts.TruthyLogic {
			return types.Bool(!types.Truthy(operand)), nil
		}
	case "-":
		switch x := operand.(type) {
		case types.Int:
			if x == math.MinInt64 {
				return nil, types.Errorf(types.ErrOverflow, "integer overflow in negation")
			}
			return -x, nil
		case types.Double:
			return -x, nil
		case types.Duration:
			if x.Duration == math.MinInt64 {
				return nil, types.Errorf(types.ErrOverflow, "duration overflow in negation")
			}
			return types.Duration{Duration: -x.Duration}, nil
		}
	}
	return nil, types.Errorf(types.ErrNoSuchOverload,
		"no such overload: %s%s", node.Name, types.TypeName(operand))
}

// evalBinary evaluates binary operators. Logical operators short-circuit;
// every other operator evaluates the left then the right operand exactly once.
func (e *Evaluator) evalBinary(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	switch node.Name {
	case "&&":
		return e.evalAnd(ctx, node, evalCtx)
	case "||":
		return e.evalOr(ctx, node, evalCtx)
	}

	lhs, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}
	rhs, err := e.evalNode(ctx, node.RHS, evalCtx)
	if err != nil {
		return nil, err
	}

	switch node.Name {
	case "==":
		return types.Bool(types.Equal(lhs, rhs)), nil
	case "!=":
		return types.Bool(!types.Equal(lhs, rhs)), nil
	case "<", "<=", ">", ">=":
		return compareOp(node.Name, lhs, rhs)
	case "in":
		return membership(lhs, rhs)
	default:
		return e.arithmetic(node.Name, lhs, rhs)
	}
}

func (e *Evaluator) evalAnd(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	lhs, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}
	ok, err := e.condition(lhs, "&&")
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.False, nil
	}
	rhs, err := e.evalNode(ctx, node.RHS, evalCtx)
	if err != nil {
		return nil, err
	}
	ok, err = e.condition(rhs, "&&")
	if err != nil {
		return nil, err
	}
	return types.Bool(ok), nil
}

// evalOr returns a bool in strict mode. Under truthy logic it returns the
// first truthy operand, or the right operand when neither is truthy.
func (e *Evaluator) evalOr(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (types.Value, error) {
	lhs, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}
	ok, err := e.condition(lhs, "||")
	if err != nil {
		return nil, err
	}
	if ok {
		if e.opts.TruthyLogic {
			return lhs, nil
		}
		return types.True, nil
	}
	rhs, err := e.evalNode(ctx, node.RHS, evalCtx)
	if err != nil {
		return nil, err
	}
	if e.opts.TruthyLogic {
		return rhs, nil
	}
	ok, err = e.condition(rhs, "||")
	if err != nil {
		return nil, err
	}
	return types.Bool(ok), nil
}

func compareOp(op string, lhs, rhs types.Value) (types.Value, error) {
	c, ok := types.Compare(lhs, rhs)
	if !ok {
		if types.IsNumeric(lhs) && types.IsNumeric(rhs) {
			// NaN is unordered
			return types.False, nil
		}
		return nil, types.Errorf(types.ErrNoSuchOverload,
			"no such overload: %s %s %s", types.TypeName(lhs), op, types.TypeName(rhs))
	}
	switch op {
	case "<":
		return types.Bool(c < 0), nil
	case "<=":
		return types.Bool(c <= 0), nil
	case ">":
		return types.Bool(c > 0), nil
	default:
		return types.Bool(c >= 0), nil
	}
}

func membership(elem, container types.Value) (types.Value, error) {
	switch c := container.(type) {
	case types.List:
		for _, item := range c {
			if types.Equal(elem, item) {
				return types.True, nil
			}
		}
		return types.False, nil
	case *types.Map:
		return types.Bool(c.Has(elem)), nil
	}
	return nil, types.Errorf(types.ErrNoSuchOverload,
		"no such overload: %s in %s", types.TypeName(elem), types.TypeName(container))
}

// promote converts an int or uint operand to double when the other operand
// is a double.
func promote(lhs, rhs types.Value) (types.Value, types.Value) {
	_, ld := lhs.(types.Double)
	_, rd := rhs.(types.Double)
	switch {
	case ld && !rd:
		return lhs, toDouble(rhs)
	case rd && !ld:
		return toDouble(lhs), rhs
	}
	return lhs, rhs
}

func toDouble(v types.Value) types.Value {
	switch x := v.(type) {
	case types.Int:
		return types.Double(x)
	case types.UInt:
		return types.Double(x)
	}
	return v
}

// arithmetic evaluates + - * / % without implicit coercion.
func (e *Evaluator) arithmetic(op string, lhs, rhs types.Value) (types.Value, error) {
	if e.opts.NumericPromotion {
		lhs, rhs = promote(lhs, rhs)
	}

	switch a := lhs.(type) {
	case types.Int:
		if b, ok := rhs.(types.Int); ok {
			return intArith(op, int64(a), int64(b))
		}
	case types.UInt:
		if b, ok := rhs.(types.UInt); ok {
			return uintArith(op, uint64(a), uint64(b))
		}
	case types.Double:
		if b, ok := rhs.(types.Double); ok {
			return doubleArith(op, float64(a), float64(b))
		}
	case types.String:
		if b, ok := rhs.(types.String); ok && op == "+" {
			return a + b, nil
		}
	case types.Bytes:
		if b, ok := rhs.(types.Bytes); ok && op == "+" {
			out := make(types.Bytes, 0, len(a)+len(b))
			return append(append(out, a...), b...), nil
		}
	case types.List:
		if b, ok := rhs.(types.List); ok && op == "+" {
			out := make(types.List, 0, len(a)+len(b))
			return append(append(out, a...), b...), nil
		}
	case types.Timestamp:
		return timestampArith(op, a, rhs)
	case types.Duration:
		return durationArith(op, a, rhs)
	}
	return nil, mismatch(op, lhs, rhs)
}

func mismatch(op string, lhs, rhs types.Value) error {
	lk, rk := types.KindOf(lhs), types.KindOf(rhs)
	if (lk == types.KindInt && rk == types.KindUInt) || (lk == types.KindUInt && rk == types.KindInt) {
		return types.Errorf(types.ErrMixedSignedness,
			"no such overload: %s %s %s (mixed signed and unsigned integers)", lk, op, rk)
	}
	return types.Errorf(types.ErrNoSuchOverload, "no such overload: %s %s %s", lk, op, rk)
}

func intArith(op string, a, b int64) (types.Value, error) {
	switch op {
	case "+":
		r := a + b
		if (b > 0 && r < a) || (b < 0 && r > a) {
			return nil, overflow(op)
		}
		return types.Int(r), nil
	case "-":
		r := a - b
		if (b < 0 && r < a) || (b > 0 && r > a) {
			return nil, overflow(op)
		}
		return types.Int(r), nil
	case "*":
		if a == 0 || b == 0 {
			return types.Int(0), nil
		}
		r := a * b
		if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return nil, overflow(op)
		}
		return types.Int(r), nil
	case "/":
		if b == 0 {
			return nil, types.Errorf(types.ErrDivisionByZero, "division by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return nil, overflow(op)
		}
		return types.Int(a / b), nil
	case "%":
		if b == 0 {
			return nil, types.Errorf(types.ErrModulusByZero, "modulus by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return nil, overflow(op)
		}
		return types.Int(a % b), nil
	}
	return nil, types.Errorf(types.ErrNoSuchOverload, "no such overload: int %s int", op)
}

func uintArith(op string, a, b uint64) (types.Value, error) {
	switch op {
	case "+":
		r, carry := bits.Add64(a, b, 0)
		if carry != 0 {
			return nil, overflow(op)
		}
		return types.UInt(r), nil
	case "-":
		r, borrow := bits.Sub64(a, b, 0)
		if borrow != 0 {
			return nil, overflow(op)
		}
		return types.UInt(r), nil
	case "*":
		hi, lo := bits.Mul64(a, b)
		if hi != 0 {
			return nil, overflow(op)
		}
		return types.UInt(lo), nil
	case "/":
		if b == 0 {
			return nil, types.Errorf(types.ErrDivisionByZero, "division by zero")
		}
		return types.UInt(a / b), nil
	case "%":
		if b == 0 {
			return nil, types.Errorf(types.ErrModulusByZero, "modulus by zero")
		}
		return types.UInt(a % b), nil
	}
	return nil, types.Errorf(types.ErrNoSuchOverload, "no such overload: uint %s uint", op)
}

func doubleArith(op string, a, b float64) (types.Value, error) {
	switch op {
	case "+":
		return types.Double(a + b), nil
	case "-":
		return types.Double(a - b), nil
	case "*":
		return types.Double(a * b), nil
	case "/":
		if b == 0 {
			return nil, types.Errorf(types.ErrDivisionByZero, "division by zero")
		}
		return types.Double(a / b), nil
	}
	return nil, types.Errorf(types.ErrNoSuchOverload, "no such overload: double %s double", op)
}

func timestampArith(op string, a types.Timestamp, rhs types.Value) (types.Value, error) {
	switch b := rhs.(type) {
	case types.Duration:
		switch op {
		case "+":
			return types.NewTimestamp(a.Add(b.Duration))
		case "-":
			if b.Duration == math.MinInt64 {
				return nil, overflow(op)
			}
			return types.NewTimestamp(a.Add(-b.Duration))
		}
	case types.Timestamp:
		if op == "-" {
			d := a.Sub(b.Time)
			// Sub saturates instead of overflowing
			if !b.Add(d).Equal(a.Time) {
				return nil, overflow(op)
			}
			return types.Duration{Duration: d}, nil
		}
	}
	return nil, mismatch(op, a, rhs)
}

func durationArith(op string, a types.Duration, rhs types.Value) (types.Value, error) {
	switch b := rhs.(type) {
	case types.Duration:
		switch op {
		case "+", "-":
			r, err := intArith(op, int64(a.Duration), int64(b.Duration))
			if err != nil {
				return nil, types.Errorf(types.ErrOverflow, "duration overflow in '%s'", op)
			}
			return types.Duration{Duration: time.Duration(r.(types.Int))}, nil
		}
	case types.Timestamp:
		if op == "+" {
			return types.NewTimestamp(b.Add(a.Duration))
		}
	}
	return nil, mismatch(op, a, rhs)
}

func overflow(op string) error {
	return types.Errorf(types.ErrOverflow, "integer overflow in '%s'", op)
}
