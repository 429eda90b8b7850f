package evaluator_test

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/sandrolain/gocel/pkg/evaluator"
	"github.com/sandrolain/gocel/pkg/types"
)

func TestContextVariables(t *testing.T) {
	c := evaluator.NewContext()
	if err := c.AddVariable("n", 3); err != nil {
		t.Fatalf("AddVariable() error: %v", err)
	}
	c.SetVariable("s", types.String("x"))

	v, ok := c.Resolve("n")
	if !ok {
		t.Fatal("Resolve(n) not found")
	}
	assertValue(t, "n", v, types.Int(3))

	if _, ok := c.Resolve("missing"); ok {
		t.Error("Resolve(missing) should fail")
	}

	if err := c.AddVariable("", 1); err == nil {
		t.Error("AddVariable with empty name should fail")
	}
	if err := c.AddVariable("ch", make(chan int)); err == nil {
		t.Error("AddVariable with a channel should fail")
	}

	want := []string{"n", "s"}
	if got := c.VariableNames(); !slices.Equal(got, want) {
		t.Errorf("VariableNames() = %v, want %v", got, want)
	}
}

func TestContextChildFrames(t *testing.T) {
	root := evaluator.NewContext()
	_ = root.AddVariable("a", 1)
	_ = root.AddVariable("b", 2)

	child := root.NewChild()
	_ = child.AddVariable("a", 10)

	if child.Parent() != root || child.Depth() != 1 {
		t.Errorf("Parent/Depth mismatch: depth=%d", child.Depth())
	}

	v, _ := child.Resolve("a")
	assertValue(t, "child a", v, types.Int(10))
	v, _ = child.Resolve("b")
	assertValue(t, "child b", v, types.Int(2))

	// the parent is untouched
	v, _ = root.Resolve("a")
	assertValue(t, "root a", v, types.Int(1))

	loop := child.NewChildContext("x", types.Int(7))
	v, _ = loop.Resolve("x")
	assertValue(t, "loop x", v, types.Int(7))
	if _, ok := child.Resolve("x"); ok {
		t.Error("loop variable leaked into its parent")
	}
	if loop.Depth() != 2 {
		t.Errorf("loop Depth() = %d, want 2", loop.Depth())
	}

	// adding to a loop frame keeps the loop binding
	loop.SetVariable("y", types.Int(8))
	v, _ = loop.Resolve("x")
	assertValue(t, "loop x after SetVariable", v, types.Int(7))
}

func TestContextFunctionRegistration(t *testing.T) {
	c := evaluator.NewContext()

	if err := c.AddFunction("twice", func(x int64) int64 { return 2 * x }); err != nil {
		t.Fatalf("AddFunction() error: %v", err)
	}
	if err := c.AddFunction("bad", 42); err == nil {
		t.Error("AddFunction with a non-function should fail")
	}
	if err := c.AddFunction("", func() {}); err == nil {
		t.Error("AddFunction with empty name should fail")
	}

	if !c.HasFunction("twice") {
		t.Error("HasFunction(twice) = false")
	}
	if !c.NewChild().HasFunction("twice") {
		t.Error("child should see parent functions")
	}
	if got := c.FunctionNames(); !slices.Equal(got, []string{"twice"}) {
		t.Errorf("FunctionNames() = %v", got)
	}
}

func TestContextUpdate(t *testing.T) {
	c := evaluator.NewContext()
	err := c.Update(map[string]any{
		"name":  "Ada",
		"upper": strings.ToUpper,
		"tags":  []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	if !c.HasFunction("upper") {
		t.Error("Update should register functions")
	}
	if _, ok := c.Resolve("upper"); ok {
		t.Error("functions must not be bound as variables")
	}

	got, err := evaluator.New().EvalSource(context.Background(), "upper(name) + tags[1]", c)
	if err != nil {
		t.Fatalf("EvalSource() error: %v", err)
	}
	assertValue(t, "upper(name) + tags[1]", got, types.String("ADAb"))
}

func TestContextClone(t *testing.T) {
	c := evaluator.NewContext()
	_ = c.AddVariable("a", 1)
	_ = c.AddFunction("f", func() int64 { return 1 })

	clone := c.Clone()
	_ = clone.AddVariable("a", 2)
	_ = clone.AddFunction("g", func() int64 { return 2 })

	v, _ := c.Resolve("a")
	assertValue(t, "original a", v, types.Int(1))
	if c.HasFunction("g") {
		t.Error("clone functions leaked into the original")
	}
	if !clone.HasFunction("f") {
		t.Error("clone lost the original functions")
	}
}

func TestContextString(t *testing.T) {
	c := evaluator.NewContext()
	_ = c.AddVariable("a", 1)
	if s := c.String(); !strings.Contains(s, "variables=1") {
		t.Errorf("String() = %q", s)
	}
	if s := c.NewChildContext("x", types.Int(1)).String(); !strings.Contains(s, "iter=x") {
		t.Errorf("String() = %q", s)
	}
}
