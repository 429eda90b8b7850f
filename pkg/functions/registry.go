// Package functions provides the overload model shared by built-in and
// host-registered CEL functions.
//
// Every callable, whatever its origin, is represented as an [Overload]: a
// name, a call style (global or receiver), a parameter signature expressed
// in value kinds, and a [Func] implementation. Overloads are collected in a
// [Registry] that resolves calls deterministically.
//
// # Example
//
//	reg := functions.NewRegistry()
//	_ = reg.Add(functions.Overload{
//	    Name: "greet",
//	    Args: []types.Kind{types.KindString},
//	    Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
//	        return types.String("Hello, " + string(args[0].(types.String)) + "!"), nil
//	    },
//	})
package functions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandrolain/gocel/pkg/types"
)

// Func is the uniform implementation signature of an overload. args holds
// the receiver first for receiver-style overloads.
type Func = types.Func

// CustomFunc is the signature for user-defined functions working on plain Go
// values. Arguments are converted with [types.ValueToNative] and the result
// with [types.NativeToValue].
type CustomFunc func(ctx context.Context, args ...any) (any, error)

// Overload describes one implementation of a named function.
type Overload struct {
	// Name is the function name as it appears in expressions. Qualified
	// names such as "optional.of" are allowed for global functions.
	Name string
	// ID optionally identifies the overload in diagnostics
	// (e.g. "string_contains_string").
	ID string
	// Receiver marks a method-style overload invoked as target.name(args).
	// The receiver is the first entry of Args.
	Receiver bool
	// Args lists the parameter kinds. types.KindDyn accepts any value.
	Args []types.Kind
	// Variadic makes the last entry of Args repeat zero or more times.
	Variadic bool
	// Fn is the implementation.
	Fn Func
}

// String renders the overload signature, e.g. "string.contains(string)".
func (o *Overload) String() string {
	var sb strings.Builder
	params := o.Args
	if o.Receiver && len(params) > 0 {
		sb.WriteString(params[0].String())
		sb.WriteByte('.')
		params = params[1:]
	}
	sb.WriteString(o.Name)
	sb.WriteByte('(')
	for i, k := range params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k.String())
		if o.Variadic && i == len(params)-1 {
			sb.WriteString("...")
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// Match reports whether args fit the overload signature and how specific
// the match is: the number of arguments matched by a concrete kind rather
// than dyn.
func (o *Overload) Match(args []types.Value) (score int, ok bool) {
	n := len(o.Args)
	if o.Variadic {
		if len(args) < n-1 {
			return 0, false
		}
	} else if len(args) != n {
		return 0, false
	}
	for i, arg := range args {
		want := o.Args[min(i, n-1)]
		if want == types.KindDyn {
			continue
		}
		if types.KindOf(arg) != want {
			return 0, false
		}
		score++
	}
	return score, true
}

func (o *Overload) sameSignature(other *Overload) bool {
	if o.Name != other.Name || o.Receiver != other.Receiver || o.Variadic != other.Variadic ||
		len(o.Args) != len(other.Args) {
		return false
	}
	for i := range o.Args {
		if o.Args[i] != other.Args[i] {
			return false
		}
	}
	return true
}

// Registry holds overloads indexed by function name.
//
// A Registry is not safe for concurrent mutation. Build it first, then share
// it read-only.
type Registry struct {
	byName map[string][]*Overload
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string][]*Overload)}
}

// Add registers overloads. An overload with exactly the same signature as an
// existing one replaces it.
func (r *Registry) Add(ovs ...Overload) error {
	for i := range ovs {
		ov := ovs[i]
		if ov.Name == "" {
			return fmt.Errorf("overload name must not be empty")
		}
		if ov.Fn == nil {
			return fmt.Errorf("overload %s has no implementation", ov.Name)
		}
		if ov.Receiver && len(ov.Args) == 0 {
			return fmt.Errorf("receiver overload %s must declare the receiver kind", ov.Name)
		}
		if ov.Variadic && len(ov.Args) == 0 {
			return fmt.Errorf("variadic overload %s must declare the repeated kind", ov.Name)
		}
		existing := r.byName[ov.Name]
		replaced := false
		for j, e := range existing {
			if e.sameSignature(&ov) {
				existing[j] = &ov
				replaced = true
				break
			}
		}
		if !replaced {
			r.byName[ov.Name] = append(existing, &ov)
		}
	}
	return nil
}

// Has reports whether any overload is registered under name.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	return len(r.byName[name]) > 0
}

// Lookup returns the overloads registered under name.
func (r *Registry) Lookup(name string) []*Overload {
	if r == nil {
		return nil
	}
	return r.byName[name]
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the registry. Overloads themselves
// are shared.
func (r *Registry) Clone() *Registry {
	out := NewRegistry()
	if r == nil {
		return out
	}
	for name, ovs := range r.byName {
		out.byName[name] = append([]*Overload(nil), ovs...)
	}
	return out
}

// Len returns the number of registered overloads.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, ovs := range r.byName {
		n += len(ovs)
	}
	return n
}

// Resolve selects the overload of name that best matches args for the given
// call style. It fails with:
//   - ErrUndefinedFunction when no overload of that name and style exists
//   - ErrNoMatchingOverload when none accepts the argument kinds
//   - ErrAmbiguousOverload when two overloads match equally well
func (r *Registry) Resolve(name string, receiver bool, args []types.Value) (*Overload, error) {
	var (
		best      *Overload
		bestScore = -1
		tied      bool
		styled    bool
	)
	for _, ov := range r.Lookup(name) {
		if ov.Receiver != receiver {
			continue
		}
		styled = true
		score, ok := ov.Match(args)
		if !ok {
			continue
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = ov, score, false
		case score == bestScore:
			tied = true
		}
	}
	switch {
	case !styled:
		return nil, types.Errorf(types.ErrUndefinedFunction, "undefined function '%s'", name)
	case best == nil:
		return nil, types.Errorf(types.ErrNoMatchingOverload,
			"no matching overload for '%s' applied to (%s)", name, kindList(args))
	case tied:
		return nil, types.Errorf(types.ErrAmbiguousOverload,
			"ambiguous overloads for '%s' applied to (%s)", name, kindList(args))
	}
	return best, nil
}

func kindList(args []types.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = types.TypeName(a)
	}
	return strings.Join(parts, ", ")
}
