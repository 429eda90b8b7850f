package evaluator_test

import (
	"context"
	"strings"
	"testing"

	"github.com/sandrolain/gocel/pkg/evaluator"
	"github.com/sandrolain/gocel/pkg/parser"
	"github.com/sandrolain/gocel/pkg/types"
)

func TestEvalStream(t *testing.T) {
	prog, err := parser.Compile("price * qty > limit")
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	base := evaluator.NewContext()
	_ = base.AddVariable("limit", 100)

	input := strings.Join([]string{
		`{"price": 10, "qty": 20}`,
		`{"price": 10, "qty": 5}`,
		`{"price": "x", "qty": 5}`,
		`[1, 2]`,
		`{"price": 1.5, "qty": 2}`,
	}, "\n")

	ch, err := evaluator.New().EvalStream(context.Background(), prog, base, strings.NewReader(input))
	if err != nil {
		t.Fatalf("EvalStream() error: %v", err)
	}

	var results []evaluator.StreamResult
	for res := range ch {
		results = append(results, res)
	}
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}

	for i, res := range results {
		if res.Index != i {
			t.Errorf("result %d: Index = %d", i, res.Index)
		}
	}
	assertValue(t, "doc 0", results[0].Value, types.True)
	assertValue(t, "doc 1", results[1].Value, types.False)
	if !types.IsTypeError(results[2].Err) {
		t.Errorf("doc 2: want type error, got %v", results[2].Err)
	}
	if results[3].Err == nil {
		t.Error("doc 3: want error for non-object document")
	}
	// double * int is not defined without promotion
	if types.CodeOf(results[4].Err) != types.ErrNoSuchOverload {
		t.Errorf("doc 4: want %s, got %v", types.ErrNoSuchOverload, results[4].Err)
	}

	if _, ok := base.Resolve("price"); ok {
		t.Error("document bindings leaked into the base context")
	}
}

func TestEvalStreamMalformedInput(t *testing.T) {
	prog, _ := parser.Compile("a")
	ch, err := evaluator.New().EvalStream(context.Background(), prog, nil, strings.NewReader(`{"a": 1} {"a": `))
	if err != nil {
		t.Fatalf("EvalStream() error: %v", err)
	}

	var results []evaluator.StreamResult
	for res := range ch {
		results = append(results, res)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	assertValue(t, "doc 0", results[0].Value, types.Int(1))
	if results[1].Err == nil {
		t.Error("want decode error for the truncated document")
	}
}

func TestEvalStreamCancel(t *testing.T) {
	prog, _ := parser.Compile("a")
	ctx, cancel := context.WithCancel(context.Background())
	input := strings.Repeat(`{"a": 1}`+"\n", 1000)

	ch, err := evaluator.New().EvalStream(ctx, prog, nil, strings.NewReader(input))
	if err != nil {
		t.Fatalf("EvalStream() error: %v", err)
	}
	<-ch
	cancel()

	// the channel must be closed after cancellation
	n := 0
	for range ch {
		n++
	}
	if n >= 999 {
		t.Errorf("stream kept producing after cancel: %d results", n)
	}
}

func TestEvalStreamInvalidProgram(t *testing.T) {
	if _, err := evaluator.New().EvalStream(context.Background(), nil, nil, strings.NewReader("")); err == nil {
		t.Error("EvalStream(nil) expected error")
	}
}
