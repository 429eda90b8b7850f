package gocel_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/sandrolain/gocel"
	"github.com/sandrolain/gocel/pkg/types"
)

func TestVersion(t *testing.T) {
	if v := gocel.Version(); v == "" {
		t.Error("Version() returned an empty string")
	}
}

func TestEval(t *testing.T) {
	vars := map[string]any{
		"user": map[string]any{"name": "Alice", "age": 30, "roles": []string{"admin", "dev"}},
		"n":    uint8(7),
	}
	tests := []struct {
		expr string
		want any
	}{
		{`1 + 2 * 3`, int64(7)},
		{`user.age >= 18`, true},
		{`user.name + '!'`, "Alice!"},
		{`'admin' in user.roles`, true},
		{`n + 1u`, uint64(8)},
		{`user.roles.map(r, r.size())`, []any{int64(5), int64(3)}},
		{`{'a': 1}`, map[string]any{"a": int64(1)}},
		{`null`, nil},
		{`b'ab'`, []byte("ab")},
		{`3.0 / 2.0`, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := gocel.Eval(tt.expr, vars)
			if err != nil {
				t.Fatalf("Eval() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v (%T), want %#v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		expr string
		vars map[string]any
		code types.ErrorCode
	}{
		{`1 +`, nil, types.ErrUnexpectedEnd},
		{``, nil, types.ErrEmptyExpression},
		{`missing`, nil, types.ErrUndefinedVariable},
		{`1 / 0`, nil, types.ErrDivisionByZero},
		{`1 + 1u`, nil, types.ErrMixedSignedness},
		{`1 + 1.0`, nil, types.ErrNoSuchOverload},
		{`m.k`, map[string]any{"m": map[string]any{}}, types.ErrNoSuchKey},
		{`nope()`, nil, types.ErrUndefinedFunction},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := gocel.Eval(tt.expr, tt.vars)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := types.CodeOf(err); got != tt.code {
				t.Errorf("error code = %s, want %s (%v)", got, tt.code, err)
			}
		})
	}
}

func TestEvalInvalidVariable(t *testing.T) {
	_, err := gocel.Eval(`x`, map[string]any{"x": make(chan int)})
	if err == nil {
		t.Fatal("expected an error for an unsupported Go value")
	}
}

func TestEvalWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gocel.EvalWithContext(ctx, `[1, 2, 3].map(x, x * 2)`, nil)
	if types.CodeOf(err) != types.ErrEvalCancelled {
		t.Fatalf("error = %v, want %s", err, types.ErrEvalCancelled)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error does not wrap context.Canceled: %v", err)
	}
}

func TestEvalOptions(t *testing.T) {
	got, err := gocel.Eval(`1 + 2.5`, nil, gocel.WithNumericPromotion(true))
	if err != nil || got != 3.5 {
		t.Errorf("numeric promotion: got %v, err %v", got, err)
	}

	got, err = gocel.Eval(`'' || 'x'`, nil, gocel.WithTruthyLogic(true))
	if err != nil || got != "x" {
		t.Errorf("truthy logic: got %v, err %v", got, err)
	}

	got, err = gocel.Eval(`size(s)`, map[string]any{"s": "abc"}, gocel.WithTimeout(time.Second))
	if err != nil || got != int64(3) {
		t.Errorf("timeout: got %v, err %v", got, err)
	}

	_, err = gocel.Eval(`[[[[1]]]]`, nil, gocel.WithMaxDepth(2))
	if types.CodeOf(err) != types.ErrStackOverflow {
		t.Errorf("max depth: error = %v, want %s", err, types.ErrStackOverflow)
	}
}

func TestCompile(t *testing.T) {
	prog, err := gocel.Compile(`a && b`)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if prog.Source() != `a && b` {
		t.Errorf("Source() = %q", prog.Source())
	}

	_, err = gocel.Compile(`a &&`)
	if !types.IsSyntaxError(err) {
		t.Fatalf("Compile() error = %v, want a syntax error", err)
	}
}

func TestMustCompile(t *testing.T) {
	if prog := gocel.MustCompile(`1`); prog == nil {
		t.Fatal("MustCompile() returned nil")
	}

	defer func() {
		if recover() == nil {
			t.Error("MustCompile() did not panic on an invalid expression")
		}
	}()
	gocel.MustCompile(`(`)
}

func TestNewContext(t *testing.T) {
	evalCtx, err := gocel.NewContext(map[string]any{
		"x":      1,
		"double": func(n int64) int64 { return n * 2 },
	})
	if err != nil {
		t.Fatalf("NewContext() error: %v", err)
	}
	if _, ok := evalCtx.Resolve("x"); !ok {
		t.Error("variable x not bound")
	}
	if !evalCtx.HasFunction("double") {
		t.Error("function double not registered")
	}

	got, err := gocel.Eval(`double(x)`, map[string]any{
		"x":      21,
		"double": func(n int64) int64 { return n * 2 },
	})
	if err != nil || got != int64(42) {
		t.Errorf("double(x): got %v, err %v", got, err)
	}
}

func TestCustomFunction(t *testing.T) {
	greet := gocel.WithCustomFunction("greet", func(_ context.Context, args ...any) (any, error) {
		return "Hello, " + args[0].(string) + "!", nil
	})
	got, err := gocel.Eval(`greet(name)`, map[string]any{"name": "World"}, greet)
	if err != nil || got != "Hello, World!" {
		t.Errorf("got %v, err %v", got, err)
	}

	failing := gocel.WithCustomFunction("fail", func(context.Context, ...any) (any, error) {
		return nil, errors.New("intentional")
	})
	_, err = gocel.Eval(`fail()`, nil, failing)
	if types.CodeOf(err) != types.ErrFunctionFailed {
		t.Errorf("error = %v, want %s", err, types.ErrFunctionFailed)
	}
}
