package evaluator

import (
	"sync"

	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

var (
	builtinRegistry     *functions.Registry
	builtinRegistryOnce sync.Once
)

// builtins returns the read-only registry of built-in overloads.
func builtins() *functions.Registry {
	builtinRegistryOnce.Do(func() {
		reg := functions.NewRegistry()
		for _, group := range [][]functions.Overload{
			aggregateOverloads(),
			conversionOverloads(),
			stringOverloads(),
			datetimeOverloads(),
			optionalOverloads(),
		} {
			if err := reg.Add(group...); err != nil {
				panic("evaluator: invalid built-in overload: " + err.Error())
			}
		}
		builtinRegistry = reg
	})
	return builtinRegistry
}

// BuiltinNames returns the sorted names of the built-in functions.
func BuiltinNames() []string {
	return builtins().Names()
}

// global declares a global overload.
func global(name, id string, fn functions.Func, args ...types.Kind) functions.Overload {
	return functions.Overload{Name: name, ID: id, Args: args, Fn: fn}
}

// method declares a receiver overload; the first kind is the receiver.
func method(name, id string, fn functions.Func, args ...types.Kind) functions.Overload {
	return functions.Overload{Name: name, ID: id, Receiver: true, Args: args, Fn: fn}
}

// both declares the same implementation as a global function and a method.
func both(name, id string, fn functions.Func, args ...types.Kind) []functions.Overload {
	return []functions.Overload{
		global(name, id, fn, args...),
		method(name, id+"_method", fn, args...),
	}
}
