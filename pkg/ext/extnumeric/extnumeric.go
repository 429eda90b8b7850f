// Package extnumeric provides extended numeric functions under the "math."
// namespace.
//
// Transcendental functions (exp, ln, log10, log, pow, sqrt) are computed with
// arbitrary-precision arithmetic from github.com/zephyrtronium/bigfloat and
// rounded to a double once, so results do not accumulate float64 error.
package extnumeric

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sort"

	"github.com/zephyrtronium/bigfloat"

	"github.com/sandrolain/gocel/pkg/ext/extutil"
	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

// prec is the working precision, in bits, of the arbitrary-precision
// functions.
const prec = 128

const (
	dyn  = types.KindDyn
	list = types.KindList
)

// All returns all extended numeric overloads.
func All() []functions.Overload {
	return extutil.Concat(
		Exp(),
		Ln(),
		Log10(),
		Log(),
		Pow(),
		Sqrt(),
		Abs(),
		Sign(),
		Rounding(),
		Clamp(),
		Trig(),
		Constants(),
		Median(),
		Variance(),
		Stddev(),
		Percentile(),
		Mode(),
	)
}

// number reads a numeric argument as a double.
func number(fn string, v types.Value) (float64, error) {
	f, ok := extutil.ToFloat(v)
	if !ok {
		return 0, types.Errorf(types.ErrNoSuchOverload, "%s: expected a number, got %s", fn, types.TypeName(v)).WithToken(fn)
	}
	return f, nil
}

// bigCall runs f on big.Float operands built from args. bigfloat signals
// domain errors by panicking with big.ErrNaN.
func bigCall(name string, f func(out *big.Float, in []*big.Float), args []types.Value) (res types.Value, err error) {
	in := make([]*big.Float, len(args))
	for k, a := range args {
		x, err := number(name, a)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(x) {
			return types.Double(math.NaN()), nil
		}
		in[k] = new(big.Float).SetPrec(prec).SetFloat64(x)
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		var nan big.ErrNaN
		if e, ok := r.(error); ok && errors.As(e, &nan) {
			res, err = nil, extutil.Errorf(name, "argument out of domain")
			return
		}
		panic(r)
	}()

	out := new(big.Float).SetPrec(prec)
	f(out, in)
	v, _ := out.Float64()
	return types.Double(v), nil
}

func monadic(name, id string, f func(out, in *big.Float) *big.Float) []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		return bigCall(name, func(out *big.Float, in []*big.Float) { f(out, in[0]) }, args)
	}
	return []functions.Overload{extutil.Global(name, id, fn, dyn)}
}

// Exp returns the overload for math.exp(x).
func Exp() []functions.Overload {
	return monadic("math.exp", "math_exp", bigfloat.Exp)
}

// Ln returns the overload for math.ln(x), the natural logarithm.
func Ln() []functions.Overload {
	return monadic("math.ln", "math_ln", bigfloat.Log)
}

// Log10 returns the overload for math.log10(x).
func Log10() []functions.Overload {
	return monadic("math.log10", "math_log10", func(out, in *big.Float) *big.Float {
		return logBase(out, in, 10)
	})
}

func logBase(out, in *big.Float, base float64) *big.Float {
	bigfloat.Log(out, in)
	b := new(big.Float).SetPrec(out.Prec()).SetFloat64(base)
	bigfloat.Log(b, b)
	return out.Quo(out, b)
}

// Log returns the overload for math.log(x, base).
func Log() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		base, err := number("math.log", args[1])
		if err != nil {
			return nil, err
		}
		if base <= 0 || base == 1 {
			return nil, extutil.Errorf("math.log", "invalid base %s", types.FormatDouble(base))
		}
		return bigCall("math.log", func(out *big.Float, in []*big.Float) {
			logBase(out, in[0], base)
		}, args[:1])
	}
	return []functions.Overload{extutil.Global("math.log", "math_log_base", fn, dyn, dyn)}
}

// Pow returns the overload for math.pow(x, y). A negative base requires an
// integral exponent.
func Pow() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		return bigCall("math.pow", func(out *big.Float, in []*big.Float) {
			x, y := in[0], in[1]
			if x.Sign() >= 0 || !y.IsInt() {
				bigfloat.Pow(out, x, y)
				return
			}
			bigfloat.Pow(out, new(big.Float).Abs(x), y)
			if odd(y) {
				out.Neg(out)
			}
		}, args)
	}
	return []functions.Overload{extutil.Global("math.pow", "math_pow", fn, dyn, dyn)}
}

func odd(y *big.Float) bool {
	n, _ := y.Int(nil)
	return n.Bit(0) == 1
}

// Sqrt returns the overload for math.sqrt(x).
func Sqrt() []functions.Overload {
	return monadic("math.sqrt", "math_sqrt", func(out, in *big.Float) *big.Float {
		return out.Sqrt(in)
	})
}

// Abs returns the overload for math.abs(x). The result keeps the argument
// type; the absolute value of the minimum int overflows.
func Abs() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		switch x := args[0].(type) {
		case types.Int:
			if x == math.MinInt64 {
				return nil, types.Errorf(types.ErrOverflow, "math.abs: integer overflow")
			}
			if x < 0 {
				return -x, nil
			}
			return x, nil
		case types.UInt:
			return x, nil
		case types.Double:
			return types.Double(math.Abs(float64(x))), nil
		}
		_, err := number("math.abs", args[0])
		return nil, err
	}
	return []functions.Overload{extutil.Global("math.abs", "math_abs", fn, dyn)}
}

// Sign returns the overload for math.sign(x): -1, 0 or 1 in the argument
// type.
func Sign() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		switch x := args[0].(type) {
		case types.Int:
			switch {
			case x > 0:
				return types.Int(1), nil
			case x < 0:
				return types.Int(-1), nil
			}
			return types.Int(0), nil
		case types.UInt:
			if x > 0 {
				return types.UInt(1), nil
			}
			return types.UInt(0), nil
		case types.Double:
			switch {
			case x > 0:
				return types.Double(1), nil
			case x < 0:
				return types.Double(-1), nil
			}
			return x, nil
		}
		_, err := number("math.sign", args[0])
		return nil, err
	}
	return []functions.Overload{extutil.Global("math.sign", "math_sign", fn, dyn)}
}

func unaryDouble(name, id string, f func(float64) float64) functions.Overload {
	return extutil.Global(name, id, func(_ context.Context, args ...types.Value) (types.Value, error) {
		x, err := number(name, args[0])
		if err != nil {
			return nil, err
		}
		return types.Double(f(x)), nil
	}, dyn)
}

// Rounding returns the overloads for math.ceil, math.floor, math.round and
// math.trunc. math.round rounds half away from zero.
func Rounding() []functions.Overload {
	return []functions.Overload{
		unaryDouble("math.ceil", "math_ceil", math.Ceil),
		unaryDouble("math.floor", "math_floor", math.Floor),
		unaryDouble("math.round", "math_round", math.Round),
		unaryDouble("math.trunc", "math_trunc", math.Trunc),
	}
}

// Clamp returns the overload for math.clamp(x, lo, hi). The result is one of
// the three arguments, unconverted.
func Clamp() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		x, lo, hi := args[0], args[1], args[2]
		for _, a := range args {
			if _, err := number("math.clamp", a); err != nil {
				return nil, err
			}
		}
		c, ok := types.Compare(lo, hi)
		if !ok || c > 0 {
			return nil, extutil.Errorf("math.clamp", "lower bound %s exceeds upper bound %s", types.Repr(lo), types.Repr(hi))
		}
		if c, ok := types.Compare(x, lo); ok && c < 0 {
			return lo, nil
		}
		if c, ok := types.Compare(x, hi); ok && c > 0 {
			return hi, nil
		}
		return x, nil
	}
	return []functions.Overload{extutil.Global("math.clamp", "math_clamp", fn, dyn, dyn, dyn)}
}

// Trig returns the trigonometric overloads. Angles are in radians.
func Trig() []functions.Overload {
	atan2 := func(_ context.Context, args ...types.Value) (types.Value, error) {
		y, err := number("math.atan2", args[0])
		if err != nil {
			return nil, err
		}
		x, err := number("math.atan2", args[1])
		if err != nil {
			return nil, err
		}
		return types.Double(math.Atan2(y, x)), nil
	}
	return []functions.Overload{
		unaryDouble("math.sin", "math_sin", math.Sin),
		unaryDouble("math.cos", "math_cos", math.Cos),
		unaryDouble("math.tan", "math_tan", math.Tan),
		unaryDouble("math.asin", "math_asin", math.Asin),
		unaryDouble("math.acos", "math_acos", math.Acos),
		unaryDouble("math.atan", "math_atan", math.Atan),
		extutil.Global("math.atan2", "math_atan2", atan2, dyn, dyn),
	}
}

// Constants returns the overloads for math.pi() and math.e().
func Constants() []functions.Overload {
	constant := func(v float64) functions.Func {
		return func(context.Context, ...types.Value) (types.Value, error) {
			return types.Double(v), nil
		}
	}
	return []functions.Overload{
		extutil.Global("math.pi", "math_pi", constant(math.Pi)),
		extutil.Global("math.e", "math_e", constant(math.E)),
	}
}

func sortedFloats(fn string, v types.Value) ([]float64, error) {
	nums, err := extutil.ToFloats(fn, v)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, extutil.Errorf(fn, "empty list")
	}
	sort.Float64s(nums)
	return nums, nil
}

// Median returns the overload for math.median(list).
func Median() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		nums, err := sortedFloats("math.median", args[0])
		if err != nil {
			return nil, err
		}
		mid := len(nums) / 2
		if len(nums)%2 == 0 {
			return types.Double((nums[mid-1] + nums[mid]) / 2), nil
		}
		return types.Double(nums[mid]), nil
	}
	return []functions.Overload{extutil.Global("math.median", "math_median", fn, list)}
}

func variance(fn string, v types.Value) (float64, error) {
	nums, err := extutil.ToFloats(fn, v)
	if err != nil {
		return 0, err
	}
	if len(nums) == 0 {
		return 0, extutil.Errorf(fn, "empty list")
	}
	var sum float64
	for _, n := range nums {
		sum += n
	}
	mean := sum / float64(len(nums))
	var sq float64
	for _, n := range nums {
		d := n - mean
		sq += d * d
	}
	return sq / float64(len(nums)), nil
}

// Variance returns the overload for math.variance(list), the population
// variance.
func Variance() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		v, err := variance("math.variance", args[0])
		if err != nil {
			return nil, err
		}
		return types.Double(v), nil
	}
	return []functions.Overload{extutil.Global("math.variance", "math_variance", fn, list)}
}

// Stddev returns the overload for math.stddev(list), the population standard
// deviation.
func Stddev() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		v, err := variance("math.stddev", args[0])
		if err != nil {
			return nil, err
		}
		return types.Double(math.Sqrt(v)), nil
	}
	return []functions.Overload{extutil.Global("math.stddev", "math_stddev", fn, list)}
}

// Percentile returns the overload for math.percentile(list, p) with p in
// [0, 100], interpolating linearly between neighbours.
func Percentile() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		p, err := number("math.percentile", args[1])
		if err != nil {
			return nil, err
		}
		if p < 0 || p > 100 || math.IsNaN(p) {
			return nil, extutil.Errorf("math.percentile", "p must be between 0 and 100")
		}
		nums, err := sortedFloats("math.percentile", args[0])
		if err != nil {
			return nil, err
		}
		idx := p / 100 * float64(len(nums)-1)
		lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
		if lo == hi {
			return types.Double(nums[lo]), nil
		}
		frac := idx - float64(lo)
		return types.Double(nums[lo]*(1-frac) + nums[hi]*frac), nil
	}
	return []functions.Overload{extutil.Global("math.percentile", "math_percentile", fn, list, dyn)}
}

// Mode returns the overload for math.mode(list). The result lists every
// most-frequent element in order of first appearance.
func Mode() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		items, ok := args[0].(types.List)
		if !ok {
			return nil, extutil.Errorf("math.mode", "expected a list, got %s", types.TypeName(args[0]))
		}
		counts := make([]int, len(items))
		best := 0
		for a := range items {
			for b := 0; b <= a; b++ {
				if types.Equal(items[a], items[b]) {
					counts[b]++
					if counts[b] > best {
						best = counts[b]
					}
					break
				}
			}
		}
		out := types.List{}
		for k, c := range counts {
			if c == best && c > 0 {
				out = append(out, items[k])
			}
		}
		return out, nil
	}
	return []functions.Overload{extutil.Global("math.mode", "math_mode", fn, list)}
}
