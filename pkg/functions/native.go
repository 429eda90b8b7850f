package functions

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/sandrolain/gocel/pkg/types"
)

var (
	contextType  = reflect.TypeFor[context.Context]()
	errorType    = reflect.TypeFor[error]()
	valueType    = reflect.TypeFor[types.Value]()
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
)

// Native wraps a CustomFunc as a global overload accepting any number of
// arguments of any kind.
func Native(name string, fn CustomFunc) Overload {
	return Overload{
		Name:     name,
		ID:       name + "_native",
		Args:     []types.Kind{types.KindDyn},
		Variadic: true,
		Fn: func(ctx context.Context, args ...types.Value) (types.Value, error) {
			native := make([]any, len(args))
			for i, a := range args {
				native[i] = types.ValueToNative(a)
			}
			out, err := fn(ctx, native...)
			if err != nil {
				return nil, err
			}
			return types.NativeToValue(out)
		},
	}
}

// FromGo adapts an arbitrary Go function into a global overload.
//
// Accepted shapes:
//   - Func, or func(context.Context, ...types.Value) (types.Value, error)
//   - CustomFunc, or func(context.Context, ...any) (any, error)
//   - any other func, optionally taking a leading context.Context and
//     returning one value, one value and an error, only an error, or nothing
//
// For the general case the arity is inferred from the Go signature. Parameters
// typed as a concrete CEL value (types.String, types.Int, ...) restrict the
// argument kind; all other parameters accept any kind and are converted at
// call time, failing with ErrInvalidArgument when the conversion is lossy or
// impossible.
func FromGo(name string, fn any) (Overload, error) {
	switch f := fn.(type) {
	case nil:
		return Overload{}, fmt.Errorf("function %s is nil", name)
	case Func:
		return Overload{Name: name, Args: []types.Kind{types.KindDyn}, Variadic: true, Fn: f}, nil
	case func(context.Context, ...types.Value) (types.Value, error):
		return Overload{Name: name, Args: []types.Kind{types.KindDyn}, Variadic: true, Fn: f}, nil
	case CustomFunc:
		return Native(name, f), nil
	case func(context.Context, ...any) (any, error):
		return Native(name, f), nil
	}

	rv := reflect.ValueOf(fn)
	ft := rv.Type()
	if ft.Kind() != reflect.Func {
		return Overload{}, fmt.Errorf("%s is not a function: %T", name, fn)
	}

	withCtx := ft.NumIn() > 0 && ft.In(0) == contextType
	first := 0
	if withCtx {
		first = 1
	}

	numOut := ft.NumOut()
	withErr := numOut > 0 && ft.Out(numOut-1) == errorType
	switch {
	case numOut > 2:
		return Overload{}, fmt.Errorf("function %s returns too many values", name)
	case numOut == 2 && !withErr:
		return Overload{}, fmt.Errorf("function %s: second result must be an error", name)
	}

	params := make([]reflect.Type, 0, ft.NumIn()-first)
	kinds := make([]types.Kind, 0, ft.NumIn()-first)
	for i := first; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		if ft.IsVariadic() && i == ft.NumIn()-1 {
			pt = pt.Elem()
		}
		params = append(params, pt)
		kinds = append(kinds, kindForParam(pt))
	}
	variadic := ft.IsVariadic()

	call := func(ctx context.Context, args ...types.Value) (types.Value, error) {
		in := make([]reflect.Value, 0, len(args)+first)
		if withCtx {
			if ctx == nil {
				ctx = context.Background()
			}
			in = append(in, reflect.ValueOf(&ctx).Elem())
		}
		for i, arg := range args {
			pt := params[min(i, len(params)-1)]
			av, err := convertArg(arg, pt)
			if err != nil {
				return nil, types.Errorf(types.ErrInvalidArgument,
					"argument %d of '%s': %v", i+1, name, err)
			}
			in = append(in, av)
		}
		out := rv.Call(in)
		if withErr {
			if errv := out[len(out)-1]; !errv.IsNil() {
				return nil, errv.Interface().(error)
			}
			out = out[:len(out)-1]
		}
		if len(out) == 0 {
			return types.NullValue, nil
		}
		return types.NativeToValue(out[0].Interface())
	}

	return Overload{Name: name, Args: kinds, Variadic: variadic, Fn: call}, nil
}

// kindForParam restricts the argument kind only when the Go parameter is a
// concrete CEL value type.
func kindForParam(t reflect.Type) types.Kind {
	if t.Kind() == reflect.Interface || !t.Implements(valueType) {
		return types.KindDyn
	}
	zero := reflect.Zero(t).Interface().(types.Value)
	return zero.Kind()
}

func convertArg(v types.Value, t reflect.Type) (reflect.Value, error) {
	if v != nil && reflect.TypeOf(v).AssignableTo(t) {
		return reflect.ValueOf(v), nil
	}
	switch t {
	case timeType:
		if ts, ok := v.(types.Timestamp); ok {
			return reflect.ValueOf(ts.Time), nil
		}
		return reflect.Value{}, fmt.Errorf("expected timestamp, got %s", types.TypeName(v))
	case durationType:
		if d, ok := v.(types.Duration); ok {
			return reflect.ValueOf(d.Duration), nil
		}
		return reflect.Value{}, fmt.Errorf("expected duration, got %s", types.TypeName(v))
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Interface:
		native := types.ValueToNative(v)
		if native == nil {
			return reflect.Zero(t), nil
		}
		nv := reflect.ValueOf(native)
		if !nv.Type().AssignableTo(t) {
			return reflect.Value{}, fmt.Errorf("cannot use %s as %s", types.TypeName(v), t)
		}
		out.Set(nv)
		return out, nil
	case reflect.Bool:
		b, ok := v.(types.Bool)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected bool, got %s", types.TypeName(v))
		}
		out.SetBool(bool(b))
		return out, nil
	case reflect.String:
		s, ok := v.(types.String)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected string, got %s", types.TypeName(v))
		}
		out.SetString(string(s))
		return out, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := toInt64(v)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", i, t)
		}
		out.SetInt(i)
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := toUint64(v)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowUint(u) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", u, t)
		}
		out.SetUint(u)
		return out, nil
	case reflect.Float32, reflect.Float64:
		switch n := v.(type) {
		case types.Double:
			out.SetFloat(float64(n))
		case types.Int:
			out.SetFloat(float64(n))
		case types.UInt:
			out.SetFloat(float64(n))
		default:
			return reflect.Value{}, fmt.Errorf("expected number, got %s", types.TypeName(v))
		}
		return out, nil
	case reflect.Slice:
		if b, ok := v.(types.Bytes); ok && t.Elem().Kind() == reflect.Uint8 {
			out.SetBytes(append([]byte(nil), b...))
			return out, nil
		}
		list, ok := v.(types.List)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected list, got %s", types.TypeName(v))
		}
		out = reflect.MakeSlice(t, len(list), len(list))
		for i, e := range list {
			ev, err := convertArg(e, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	case reflect.Map:
		m, ok := v.(*types.Map)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected map, got %s", types.TypeName(v))
		}
		out = reflect.MakeMapWithSize(t, m.Len())
		var convErr error
		m.Range(func(k, val types.Value) bool {
			kv, err := convertArg(k, t.Key())
			if err != nil {
				convErr = fmt.Errorf("key %s: %w", types.Repr(k), err)
				return false
			}
			vv, err := convertArg(val, t.Elem())
			if err != nil {
				convErr = fmt.Errorf("entry %s: %w", types.Repr(k), err)
				return false
			}
			out.SetMapIndex(kv, vv)
			return true
		})
		if convErr != nil {
			return reflect.Value{}, convErr
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", t)
}

func toInt64(v types.Value) (int64, error) {
	switch n := v.(type) {
	case types.Int:
		return int64(n), nil
	case types.UInt:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", uint64(n))
		}
		return int64(n), nil
	case types.Double:
		f := float64(n)
		if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
			return 0, fmt.Errorf("value %s is not an integer", types.FormatDouble(f))
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("expected integer, got %s", types.TypeName(v))
}

func toUint64(v types.Value) (uint64, error) {
	switch n := v.(type) {
	case types.UInt:
		return uint64(n), nil
	case types.Int:
		if n < 0 {
			return 0, fmt.Errorf("value %d is negative", int64(n))
		}
		return uint64(n), nil
	case types.Double:
		f := float64(n)
		if f != math.Trunc(f) || f < 0 || f >= 1<<64 {
			return 0, fmt.Errorf("value %s is not an unsigned integer", types.FormatDouble(f))
		}
		return uint64(f), nil
	}
	return 0, fmt.Errorf("expected unsigned integer, got %s", types.TypeName(v))
}
