package evaluator

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

// EvalContext is one frame of the binding environment: host variables and
// host functions, or a single macro loop variable.
//
// Lookup walks from the innermost frame outward and stops at the first
// match. Child frames never modify their parents, so one base context can be
// shared read-only by concurrent evaluations. A single frame is not safe for
// concurrent mutation.
type EvalContext struct {
	// parent is the enclosing frame
	parent *EvalContext

	// iter holds the loop variable of a macro frame
	iter      bool
	iterName  string
	iterValue types.Value

	vars  map[string]types.Value
	funcs *functions.Registry

	// depth is the number of enclosing frames
	depth int
}

// NewContext creates an empty root context.
func NewContext() *EvalContext {
	return &EvalContext{}
}

// NewChildContext creates a frame binding a single name, as used for macro
// loop variables. The binding shadows any outer binding of the same name.
func (c *EvalContext) NewChildContext(name string, value types.Value) *EvalContext {
	return &EvalContext{
		parent:    c,
		iter:      true,
		iterName:  name,
		iterValue: value,
		depth:     c.depth + 1,
	}
}

// NewChild creates an empty overlay frame. Bindings added to the child are
// discarded with it and leave c untouched.
func (c *EvalContext) NewChild() *EvalContext {
	return &EvalContext{
		parent: c,
		depth:  c.depth + 1,
	}
}

// Parent returns the enclosing frame, or nil for a root context.
func (c *EvalContext) Parent() *EvalContext {
	return c.parent
}

// Depth returns the number of enclosing frames.
func (c *EvalContext) Depth() int {
	return c.depth
}

// AddVariable binds name to a host value converted with types.NativeToValue.
func (c *EvalContext) AddVariable(name string, value any) error {
	if name == "" {
		return fmt.Errorf("variable name must not be empty")
	}
	v, err := types.NativeToValue(value)
	if err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	c.SetVariable(name, v)
	return nil
}

// SetVariable binds name to v without conversion.
func (c *EvalContext) SetVariable(name string, v types.Value) {
	if c.iter {
		// loop frames are immutable; promote to a regular frame
		c.vars = map[string]types.Value{c.iterName: c.iterValue}
		c.iter = false
	}
	if c.vars == nil {
		c.vars = make(map[string]types.Value)
	}
	c.vars[name] = v
}

// AddFunction registers a host function under name.
//
// fn may be a functions.Overload (its Name is replaced by name), a slice of
// overloads, a functions.Func, a functions.CustomFunc or any Go function,
// which is adapted with functions.FromGo.
func (c *EvalContext) AddFunction(name string, fn any) error {
	if name == "" {
		return fmt.Errorf("function name must not be empty")
	}
	switch f := fn.(type) {
	case functions.Overload:
		f.Name = name
		return c.AddOverloads(f)
	case []functions.Overload:
		ovs := make([]functions.Overload, len(f))
		for i, ov := range f {
			ov.Name = name
			ovs[i] = ov
		}
		return c.AddOverloads(ovs...)
	}
	ov, err := functions.FromGo(name, fn)
	if err != nil {
		return err
	}
	return c.AddOverloads(ov)
}

// AddOverloads registers overloads in this frame.
func (c *EvalContext) AddOverloads(ovs ...functions.Overload) error {
	if c.funcs == nil {
		c.funcs = functions.NewRegistry()
	}
	return c.funcs.Add(ovs...)
}

// Update adds every binding: Go functions are registered as functions and
// everything else as variables. Names are processed in sorted order so the
// first failure is deterministic.
func (c *EvalContext) Update(bindings map[string]any) error {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := bindings[name]
		var err error
		if isCallable(value) {
			err = c.AddFunction(name, value)
		} else {
			err = c.AddVariable(name, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func isCallable(v any) bool {
	switch v.(type) {
	case nil:
		return false
	case functions.Overload, []functions.Overload:
		return true
	}
	return reflect.TypeOf(v).Kind() == reflect.Func
}

// Resolve looks up a variable through the frame chain.
func (c *EvalContext) Resolve(name string) (types.Value, bool) {
	for f := c; f != nil; f = f.parent {
		if f.iter {
			if f.iterName == name {
				return f.iterValue, true
			}
			continue
		}
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// HasFunction reports whether any frame registers a function called name.
func (c *EvalContext) HasFunction(name string) bool {
	for f := c; f != nil; f = f.parent {
		if f.funcs.Has(name) {
			return true
		}
	}
	return false
}

// Clone returns a copy of this frame sharing the same parent. Changes to
// the clone do not affect c.
func (c *EvalContext) Clone() *EvalContext {
	clone := &EvalContext{
		parent:    c.parent,
		iter:      c.iter,
		iterName:  c.iterName,
		iterValue: c.iterValue,
		depth:     c.depth,
	}
	if c.vars != nil {
		clone.vars = make(map[string]types.Value, len(c.vars))
		for k, v := range c.vars {
			clone.vars[k] = v
		}
	}
	if c.funcs != nil {
		clone.funcs = c.funcs.Clone()
	}
	return clone
}

// VariableNames returns the sorted names of all visible variables.
func (c *EvalContext) VariableNames() []string {
	seen := make(map[string]struct{})
	for f := c; f != nil; f = f.parent {
		if f.iter {
			seen[f.iterName] = struct{}{}
			continue
		}
		for name := range f.vars {
			seen[name] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// FunctionNames returns the sorted names of all host functions visible from c.
func (c *EvalContext) FunctionNames() []string {
	seen := make(map[string]struct{})
	for f := c; f != nil; f = f.parent {
		for _, name := range f.funcs.Names() {
			seen[name] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// String returns a string representation of the context.
func (c *EvalContext) String() string {
	if c.iter {
		return fmt.Sprintf("Context{depth=%d, iter=%s}", c.depth, c.iterName)
	}
	return fmt.Sprintf("Context{depth=%d, variables=%d, functions=%d}", c.depth, len(c.vars), c.funcs.Len())
}
