package evaluator

import (
	"context"
	"strings"

	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

func stringOverloads() []functions.Overload {
	ovs := []functions.Overload{
		method("contains", "contains_string", fnContains, types.KindString, types.KindString),
		method("startsWith", "starts_with_string", fnStartsWith, types.KindString, types.KindString),
		method("endsWith", "ends_with_string", fnEndsWith, types.KindString, types.KindString),
	}
	return append(ovs, both("matches", "matches_string", fnMatches, types.KindString, types.KindString)...)
}

func fnContains(_ context.Context, args ...types.Value) (types.Value, error) {
	return types.Bool(strings.Contains(string(args[0].(types.String)), string(args[1].(types.String)))), nil
}

func fnStartsWith(_ context.Context, args ...types.Value) (types.Value, error) {
	return types.Bool(strings.HasPrefix(string(args[0].(types.String)), string(args[1].(types.String)))), nil
}

func fnEndsWith(_ context.Context, args ...types.Value) (types.Value, error) {
	return types.Bool(strings.HasSuffix(string(args[0].(types.String)), string(args[1].(types.String)))), nil
}

// fnMatches reports whether the string contains a match of the RE2 pattern.
func fnMatches(_ context.Context, args ...types.Value) (types.Value, error) {
	pattern := string(args[1].(types.String))
	re, err := compileRegex(pattern)
	if err != nil {
		return nil, err
	}
	return types.Bool(re.MatchString(string(args[0].(types.String)))), nil
}
