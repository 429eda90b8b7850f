package evaluator

import (
	"context"
	"unicode/utf8"

	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

func aggregateOverloads() []functions.Overload {
	var ovs []functions.Overload
	ovs = append(ovs, both("size", "size_string", fnSize, types.KindString)...)
	ovs = append(ovs, both("size", "size_bytes", fnSize, types.KindBytes)...)
	ovs = append(ovs, both("size", "size_list", fnSize, types.KindList)...)
	ovs = append(ovs, both("size", "size_map", fnSize, types.KindMap)...)
	ovs = append(ovs,
		functions.Overload{Name: "min", ID: "min_dyn", Args: []types.Kind{types.KindDyn}, Variadic: true, Fn: fnMin},
		functions.Overload{Name: "max", ID: "max_dyn", Args: []types.Kind{types.KindDyn}, Variadic: true, Fn: fnMax},
		method("min", "list_min", fnMin, types.KindList),
		method("max", "list_max", fnMax, types.KindList),
	)
	return ovs
}

// fnSize counts code points for strings and elements for collections.
func fnSize(_ context.Context, args ...types.Value) (types.Value, error) {
	switch x := args[0].(type) {
	case types.String:
		return types.Int(utf8.RuneCountInString(string(x))), nil
	case types.Bytes:
		return types.Int(len(x)), nil
	case types.List:
		return types.Int(len(x)), nil
	case *types.Map:
		return types.Int(x.Len()), nil
	}
	return nil, types.Errorf(types.ErrNoSuchOverload, "size() not supported for %s", types.TypeName(args[0]))
}

func fnMin(_ context.Context, args ...types.Value) (types.Value, error) {
	return extremum("min", args, -1)
}

func fnMax(_ context.Context, args ...types.Value) (types.Value, error) {
	return extremum("max", args, 1)
}

// extremum picks the smallest (sign -1) or largest (sign 1) value. A single
// list argument is treated as the candidate set.
func extremum(name string, args []types.Value, sign int) (types.Value, error) {
	candidates := args
	if len(args) == 1 {
		if list, ok := args[0].(types.List); ok {
			candidates = list
		}
	}
	if len(candidates) == 0 {
		return nil, types.Errorf(types.ErrInvalidArgument, "%s() requires at least one value", name)
	}

	best := candidates[0]
	if _, ok := types.Compare(best, best); !ok {
		return nil, types.Errorf(types.ErrNoSuchOverload, "%s() not supported for %s", name, types.TypeName(best))
	}
	for _, v := range candidates[1:] {
		c, ok := types.Compare(v, best)
		if !ok {
			return nil, types.Errorf(types.ErrNoSuchOverload,
				"%s() cannot compare %s with %s", name, types.TypeName(v), types.TypeName(best))
		}
		if c*sign > 0 {
			best = v
		}
	}
	return best, nil
}
