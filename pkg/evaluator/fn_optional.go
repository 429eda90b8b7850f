package evaluator

import (
	"context"

	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

func optionalOverloads() []functions.Overload {
	return []functions.Overload{
		global("optional.of", "optional_of", fnOptionalOf, types.KindDyn),
		global("optional.none", "optional_none", fnOptionalNone),
		global("optional.ofNonZeroValue", "optional_of_non_zero_value", fnOptionalOfNonZero, types.KindDyn),
		method("hasValue", "optional_has_value", fnOptionalHasValue, types.KindOptional),
		method("value", "optional_value", fnOptionalValue, types.KindOptional),
		method("orValue", "optional_or_value", fnOptionalOrValue, types.KindOptional, types.KindDyn),
		method("or", "optional_or_optional", fnOptionalOr, types.KindOptional, types.KindOptional),
	}
}

func fnOptionalOf(_ context.Context, args ...types.Value) (types.Value, error) {
	return types.OptionalOf(args[0]), nil
}

func fnOptionalNone(context.Context, ...types.Value) (types.Value, error) {
	return types.OptionalNone, nil
}

// fnOptionalOfNonZero returns none for zero values: null, false, 0, 0u,
// 0.0, empty strings, bytes, lists and maps, the zero duration, the Unix
// epoch and empty optionals.
func fnOptionalOfNonZero(_ context.Context, args ...types.Value) (types.Value, error) {
	if isZeroValue(args[0]) {
		return types.OptionalNone, nil
	}
	return types.OptionalOf(args[0]), nil
}

func isZeroValue(v types.Value) bool {
	if ts, ok := v.(types.Timestamp); ok {
		return ts.Unix() == 0 && ts.Nanosecond() == 0
	}
	if _, ok := v.(types.Function); ok {
		return false
	}
	return !types.Truthy(v)
}

func fnOptionalHasValue(_ context.Context, args ...types.Value) (types.Value, error) {
	return types.Bool(args[0].(types.Optional).HasValue()), nil
}

func fnOptionalValue(_ context.Context, args ...types.Value) (types.Value, error) {
	v, ok := args[0].(types.Optional).Value()
	if !ok {
		return nil, types.Errorf(types.ErrOptionalNone, "optional.none() dereference")
	}
	return v, nil
}

func fnOptionalOrValue(_ context.Context, args ...types.Value) (types.Value, error) {
	if v, ok := args[0].(types.Optional).Value(); ok {
		return v, nil
	}
	return args[1], nil
}

func fnOptionalOr(_ context.Context, args ...types.Value) (types.Value, error) {
	if args[0].(types.Optional).HasValue() {
		return args[0], nil
	}
	return args[1], nil
}
