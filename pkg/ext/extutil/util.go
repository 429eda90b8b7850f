// Package extutil provides shared helpers for the ext sub-packages.
package extutil

import (
	"fmt"

	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

// Global declares a global overload.
func Global(name, id string, fn functions.Func, args ...types.Kind) functions.Overload {
	return functions.Overload{Name: name, ID: id, Args: args, Fn: fn}
}

// Method declares a receiver overload; the first kind is the receiver.
func Method(name, id string, fn functions.Func, args ...types.Kind) functions.Overload {
	return functions.Overload{Name: name, ID: id, Receiver: true, Args: args, Fn: fn}
}

// Concat flattens overload groups into one slice.
func Concat(groups ...[]functions.Overload) []functions.Overload {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	out := make([]functions.Overload, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Errorf returns an invalid-argument error prefixed with the function name.
func Errorf(fn, format string, args ...any) *types.Error {
	return types.Errorf(types.ErrInvalidArgument, "%s: %s", fn, fmt.Sprintf(format, args...)).WithToken(fn)
}

// Str returns the string held by v. Callers rely on overload kinds, so the
// assertion only fails on a programming error.
func Str(v types.Value) string {
	return string(v.(types.String))
}

// Int returns the integer held by v.
func Int(v types.Value) int64 {
	return int64(v.(types.Int))
}

// ToFloat converts a numeric value to float64.
func ToFloat(v types.Value) (float64, bool) {
	switch x := v.(type) {
	case types.Int:
		return float64(x), true
	case types.UInt:
		return float64(x), true
	case types.Double:
		return float64(x), true
	}
	return 0, false
}

// ToFloats converts a list of numbers to float64 values.
func ToFloats(fn string, v types.Value) ([]float64, error) {
	list, ok := v.(types.List)
	if !ok {
		return nil, Errorf(fn, "expected a list, got %s", types.TypeName(v))
	}
	out := make([]float64, len(list))
	for i, item := range list {
		f, ok := ToFloat(item)
		if !ok {
			return nil, Errorf(fn, "element %d is %s, not a number", i, types.TypeName(item))
		}
		out[i] = f
	}
	return out, nil
}

// Strings converts a list of strings to a Go slice.
func Strings(fn string, v types.Value) ([]string, error) {
	list, ok := v.(types.List)
	if !ok {
		return nil, Errorf(fn, "expected a list, got %s", types.TypeName(v))
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(types.String)
		if !ok {
			return nil, Errorf(fn, "element %d is %s, not a string", i, types.TypeName(item))
		}
		out[i] = string(s)
	}
	return out, nil
}

// StrOrBytes returns the raw bytes of a string or bytes value.
func StrOrBytes(v types.Value) ([]byte, bool) {
	switch x := v.(type) {
	case types.String:
		return []byte(x), true
	case types.Bytes:
		return x, true
	}
	return nil, false
}
