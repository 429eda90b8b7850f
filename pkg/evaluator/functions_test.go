package evaluator_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/sandrolain/gocel/pkg/evaluator"
	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

func TestBuiltinFunctions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want types.Value
	}{
		// size
		{"size string counts code points", "size('héllo')", types.Int(5)},
		{"size method", "'abc'.size()", types.Int(3)},
		{"size bytes", "size(b'ab')", types.Int(2)},
		{"size list", "[1, 2].size()", types.Int(2)},
		{"size map", "size({'a': 1})", types.Int(1)},

		// conversions
		{"int from string", "int('42')", types.Int(42)},
		{"int truncates", "int(3.9)", types.Int(3)},
		{"int truncates negative", "int(-3.9)", types.Int(-3)},
		{"int from uint", "int(5u)", types.Int(5)},
		{"int from timestamp", "int(timestamp('1970-01-01T00:01:00Z'))", types.Int(60)},
		{"uint from int", "uint(3)", types.UInt(3)},
		{"double from int", "double(1)", types.Double(1)},
		{"double from string", "double('1.5')", types.Double(1.5)},
		{"string from double", "string(1.5)", types.String("1.5")},
		{"string from integral double", "string(2.0)", types.String("2.0")},
		{"string from bool", "string(true)", types.String("true")},
		{"string from bytes", "string(b'hi')", types.String("hi")},
		{"string from uint", "string(7u)", types.String("7")},
		{"string from duration", "string(duration('90m'))", types.String("5400s")},
		{"string from timestamp", "string(timestamp('2024-03-15T10:30:00Z'))", types.String("2024-03-15T10:30:00Z")},
		{"bytes from string", "bytes('a')", types.Bytes("a")},
		{"bool from string", "bool('true')", types.True},
		{"dyn", "dyn(1) == 1", types.True},
		{"type int", "type(1)", types.String("int")},
		{"type list", "type([])", types.String("list")},
		{"type timestamp", "type(timestamp('2024-01-01T00:00:00Z'))", types.String("google.protobuf.Timestamp")},
		{"timestamp from int", "timestamp(0) == timestamp('1970-01-01T00:00:00Z')", types.True},
		{"duration", "duration('1h30m') == duration('90m')", types.True},

		// min and max
		{"min variadic", "min(3, 1, 2)", types.Int(1)},
		{"max list", "max([1, 5, 2])", types.Int(5)},
		{"min method", "[3, 1].min()", types.Int(1)},
		{"max mixed numerics", "max(1, 2.5)", types.Double(2.5)},
		{"min strings", "min('b', 'a')", types.String("a")},

		// strings
		{"contains", "'hello'.contains('ell')", types.True},
		{"startsWith", "'hello'.startsWith('he')", types.True},
		{"endsWith", "'hello'.endsWith('lo')", types.True},
		{"endsWith false", "'hello'.endsWith('he')", types.False},
		{"matches global", "matches('abc', '^a')", types.True},
		{"matches method", "'abc'.matches('c$')", types.True},
		{"matches is unanchored", "'xabcx'.matches('b')", types.True},

		// timestamps and durations
		{"getFullYear", "timestamp('2024-03-15T10:30:00Z').getFullYear()", types.Int(2024)},
		{"getMonth is zero based", "timestamp('2024-03-15T10:30:00Z').getMonth()", types.Int(2)},
		{"getDate is one based", "timestamp('2024-03-15T10:30:00Z').getDate()", types.Int(15)},
		{"getDayOfMonth is zero based", "timestamp('2024-03-15T10:30:00Z').getDayOfMonth()", types.Int(14)},
		{"getDayOfWeek", "timestamp('2024-03-15T10:30:00Z').getDayOfWeek()", types.Int(5)},
		{"getDayOfYear", "timestamp('2024-03-15T10:30:00Z').getDayOfYear()", types.Int(74)},
		{"getHours", "timestamp('2024-03-15T10:30:00Z').getHours()", types.Int(10)},
		{"getHours with offset", "timestamp('2024-03-15T10:30:00Z').getHours('+02:00')", types.Int(12)},
		{"getHours with zone", "timestamp('2024-01-15T10:30:00Z').getHours('UTC')", types.Int(10)},
		{"getMilliseconds", "timestamp('2024-03-15T10:30:00.250Z').getMilliseconds()", types.Int(250)},
		{"duration total minutes", "duration('1h30m').getMinutes()", types.Int(90)},
		{"duration total seconds", "duration('1m').getSeconds()", types.Int(60)},

		// optionals
		{"optional of", "optional.of(1).value()", types.Int(1)},
		{"optional none", "optional.none().hasValue()", types.False},
		{"optional orValue", "optional.none().orValue(5)", types.Int(5)},
		{"optional orValue present", "optional.of(1).orValue(5)", types.Int(1)},
		{"optional non zero", "optional.ofNonZeroValue(0).hasValue()", types.False},
		{"optional non zero present", "optional.ofNonZeroValue('a').hasValue()", types.True},
		{"optional or", "optional.none().or(optional.of(2)).value()", types.Int(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertValue(t, tt.src, eval(t, tt.src, nil), tt.want)
		})
	}
}

func TestBuiltinFunctionErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code types.ErrorCode
	}{
		{"int from bad string", "int('x')", types.ErrConversion},
		{"int out of range", "int(1e19)", types.ErrConversion},
		{"uint from negative", "uint(-1)", types.ErrConversion},
		{"bool from bad string", "bool('yes please')", types.ErrConversion},
		{"bad timestamp", "timestamp('2024')", types.ErrConversion},
		{"timestamp out of range", "timestamp(253402300800)", types.ErrTimestampRange},
		{"bad duration", "duration('forever')", types.ErrConversion},
		{"bad regex", "'a'.matches('[')", types.ErrInvalidRegex},
		{"empty optional", "optional.none().value()", types.ErrOptionalNone},
		{"min of nothing", "min([])", types.ErrInvalidArgument},
		{"max incomparable", "max(1, 'a')", types.ErrNoSuchOverload},
		{"unknown timezone", "timestamp('2024-01-01T00:00:00Z').getHours('Mars/Olympus')", types.ErrInvalidArgument},
		{"bad offset", "timestamp('2024-01-01T00:00:00Z').getHours('+25:00')", types.ErrInvalidArgument},
		{"wrong receiver", "1.contains('a')", types.ErrNoMatchingOverload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := evalExpectError(t, tt.src, nil)
			if te.Code != tt.code {
				t.Errorf("Eval(%q) code = %s, want %s (%v)", tt.src, te.Code, tt.code, te)
			}
		})
	}
}

func TestMatchesPatternsFromData(t *testing.T) {
	// more distinct patterns than the compiled-pattern cache keeps
	for i := range 600 {
		vars := map[string]any{"s": fmt.Sprintf("id-%d", i), "p": fmt.Sprintf("^id-%d$", i)}
		assertValue(t, "s.matches(p)", eval(t, "s.matches(p)", vars), types.True)
	}
	// an evicted pattern compiles again
	vars := map[string]any{"s": "id-0", "p": "^id-0$"}
	assertValue(t, "s.matches(p)", eval(t, "s.matches(p)", vars), types.True)

	for range 2 {
		te := evalExpectError(t, "'a'.matches(p)", map[string]any{"p": "("})
		if te.Code != types.ErrInvalidRegex {
			t.Errorf("code = %s, want %s", te.Code, types.ErrInvalidRegex)
		}
	}
}

func TestBuiltinNames(t *testing.T) {
	names := evaluator.BuiltinNames()
	for _, want := range []string{"size", "int", "matches", "getFullYear", "optional.of"} {
		if !slices.Contains(names, want) {
			t.Errorf("BuiltinNames() missing %q", want)
		}
	}
	if !slices.IsSorted(names) {
		t.Error("BuiltinNames() should be sorted")
	}
}

func TestHostFunctionError(t *testing.T) {
	boom := errors.New("boom")
	fail := evaluator.WithCustomFunction("fail", func(ctx context.Context, args ...any) (any, error) {
		return nil, boom
	})

	te := evalExpectError(t, "1 + fail()", nil, fail)
	if te.Code != types.ErrFunctionFailed {
		t.Errorf("code = %s, want %s", te.Code, types.ErrFunctionFailed)
	}
	if te.Function != "fail" {
		t.Errorf("Function = %q, want fail", te.Function)
	}
	if !errors.Is(te, boom) {
		t.Error("error should wrap the host error")
	}
	if !strings.Contains(te.Message, "function 'fail' error: boom") {
		t.Errorf("Message = %q", te.Message)
	}
	if te.Position != 4 {
		t.Errorf("Position = %d, want 4", te.Position)
	}
}

func TestHostFunctionTypedError(t *testing.T) {
	check := evaluator.WithCustomFunction("check", func(ctx context.Context, args ...any) (any, error) {
		return nil, types.Errorf(types.ErrInvalidArgument, "bad input")
	})

	te := evalExpectError(t, "check(1)", nil, check)
	if te.Code != types.ErrInvalidArgument {
		t.Errorf("code = %s, want %s", te.Code, types.ErrInvalidArgument)
	}
	if te.Function != "check" {
		t.Errorf("Function = %q, want check", te.Function)
	}
}

func TestHostFunctionPanic(t *testing.T) {
	explode := evaluator.WithCustomFunction("explode", func(ctx context.Context, args ...any) (any, error) {
		panic("kaboom")
	})

	te := evalExpectError(t, "explode()", nil, explode)
	if te.Code != types.ErrFunctionFailed {
		t.Errorf("code = %s, want %s", te.Code, types.ErrFunctionFailed)
	}
	if !strings.Contains(te.Message, "kaboom") {
		t.Errorf("Message = %q, want panic value", te.Message)
	}
}

func TestHostFunctionNilResult(t *testing.T) {
	nothing := evaluator.WithCustomFunction("nothing", func(ctx context.Context, args ...any) (any, error) {
		return nil, nil
	})
	assertValue(t, "nothing()", eval(t, "nothing()", nil, nothing), types.NullValue)
}

func TestContextFunctions(t *testing.T) {
	vars := map[string]any{
		"greet": func(name string) string { return "hello " + name },
		"add":   func(a, b int64) int64 { return a + b },
		"sum": func(xs ...int64) int64 {
			var total int64
			for _, x := range xs {
				total += x
			}
			return total
		},
		"now": func(ctx context.Context) (time.Time, error) {
			return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil
		},
		"user": map[string]any{"name": "Ada"},
	}

	tests := []struct {
		src  string
		want types.Value
	}{
		{"greet(user.name)", types.String("hello Ada")},
		{"add(1, 2)", types.Int(3)},
		{"sum()", types.Int(0)},
		{"sum(1, 2, 3)", types.Int(6)},
		{"now().getFullYear()", types.Int(2024)},
		{"[1, 2].map(x, add(x, 10))", list(types.Int(11), types.Int(12))},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assertValue(t, tt.src, eval(t, tt.src, vars), tt.want)
		})
	}

	te := evalExpectError(t, "add(1, 'x')", vars)
	if te.Code != types.ErrInvalidArgument {
		t.Errorf("add(1, 'x') code = %s, want %s", te.Code, types.ErrInvalidArgument)
	}
}

func TestDispatchPrecedence(t *testing.T) {
	// context functions shadow built-ins with the same style
	vars := map[string]any{
		"size": func(any) int64 { return 99 },
	}
	assertValue(t, "size('abc')", eval(t, "size('abc')", vars), types.Int(99))
	// the host size has no receiver style, so methods fall through
	assertValue(t, "'abc'.size()", eval(t, "'abc'.size()", vars), types.Int(3))

	// extensions that do not match fall through to the built-ins
	ext := evaluator.WithFunctions(functions.Overload{
		Name: "double",
		ID:   "double_hex_string",
		Args: []types.Kind{types.KindString},
		Fn: func(ctx context.Context, args ...types.Value) (types.Value, error) {
			return types.Double(255), nil
		},
	})
	assertValue(t, "double('ff')", eval(t, "double('ff')", nil, ext), types.Double(255))
	assertValue(t, "double(1)", eval(t, "double(1)", nil, ext), types.Double(1))

	// context functions shadow extensions
	vars = map[string]any{
		"double": func(ctx context.Context, args ...types.Value) (types.Value, error) {
			return types.Double(-1), nil
		},
	}
	assertValue(t, "double('ff')", eval(t, "double('ff')", vars, ext), types.Double(-1))
}

func TestDispatchInnermostFrameWins(t *testing.T) {
	root := evaluator.NewContext()
	if err := root.AddFunction("who", func() string { return "root" }); err != nil {
		t.Fatal(err)
	}
	child := root.NewChild()
	if err := child.AddFunction("who", func() string { return "child" }); err != nil {
		t.Fatal(err)
	}

	ev := evaluator.New()
	got, err := ev.EvalSource(context.Background(), "who()", child)
	if err != nil {
		t.Fatalf("EvalSource() error: %v", err)
	}
	assertValue(t, "who() in child", got, types.String("child"))

	got, err = ev.EvalSource(context.Background(), "who()", root)
	if err != nil {
		t.Fatalf("EvalSource() error: %v", err)
	}
	assertValue(t, "who() in root", got, types.String("root"))
}

func TestDispatchOverloads(t *testing.T) {
	pick := func(id string) functions.Func {
		return func(ctx context.Context, args ...types.Value) (types.Value, error) {
			return types.String(id), nil
		}
	}
	evalCtx := evaluator.NewContext()
	err := evalCtx.AddFunction("f", []functions.Overload{
		{ID: "f_int_dyn", Args: []types.Kind{types.KindInt, types.KindDyn}, Fn: pick("int_dyn")},
		{ID: "f_dyn_int", Args: []types.Kind{types.KindDyn, types.KindInt}, Fn: pick("dyn_int")},
		{ID: "f_int_int", Args: []types.Kind{types.KindInt, types.KindInt, types.KindInt}, Fn: pick("int_int_int")},
	})
	if err != nil {
		t.Fatalf("AddFunction() error: %v", err)
	}

	ev := evaluator.New()
	run := func(src string) (types.Value, error) {
		return ev.EvalSource(context.Background(), src, evalCtx)
	}

	got, err := run("f(1, 'a')")
	if err != nil {
		t.Fatalf("f(1, 'a') error: %v", err)
	}
	assertValue(t, "f(1, 'a')", got, types.String("int_dyn"))

	got, err = run("f('a', 1)")
	if err != nil {
		t.Fatalf("f('a', 1) error: %v", err)
	}
	assertValue(t, "f('a', 1)", got, types.String("dyn_int"))

	if _, err := run("f(1, 2)"); types.CodeOf(err) != types.ErrAmbiguousOverload {
		t.Errorf("f(1, 2) error = %v, want %s", err, types.ErrAmbiguousOverload)
	}
	if _, err := run("f('a', 'b')"); types.CodeOf(err) != types.ErrNoMatchingOverload {
		t.Errorf("f('a', 'b') error = %v, want %s", err, types.ErrNoMatchingOverload)
	}
}

func TestReceiverHostFunction(t *testing.T) {
	shout := evaluator.WithFunctions(functions.Overload{
		Name:     "shout",
		ID:       "string_shout",
		Receiver: true,
		Args:     []types.Kind{types.KindString},
		Fn: func(ctx context.Context, args ...types.Value) (types.Value, error) {
			return types.String(strings.ToUpper(string(args[0].(types.String))) + "!"), nil
		},
	})

	assertValue(t, "'hi'.shout()", eval(t, "'hi'.shout()", nil, shout), types.String("HI!"))

	te := evalExpectError(t, "shout('hi')", nil, shout)
	if te.Code != types.ErrUndefinedFunction {
		t.Errorf("shout('hi') code = %s, want %s", te.Code, types.ErrUndefinedFunction)
	}
}

func TestQualifiedFunctionNames(t *testing.T) {
	vars := map[string]any{
		"math.twice": func(x int64) int64 { return 2 * x },
	}
	assertValue(t, "math.twice(21)", eval(t, "math.twice(21)", vars), types.Int(42))

	// a bound root turns the call back into a method call on the value
	vars["math"] = map[string]any{"twice": 1}
	te := evalExpectError(t, "math.twice(21)", vars)
	if te.Code != types.ErrUndefinedFunction {
		t.Errorf("code = %s, want %s", te.Code, types.ErrUndefinedFunction)
	}
}

func TestFunctionValues(t *testing.T) {
	twice := types.Function{
		Name: "twice",
		Call: func(ctx context.Context, args ...types.Value) (types.Value, error) {
			return args[0].(types.Int) * 2, nil
		},
	}
	vars := map[string]any{
		"f":   twice,
		"inc": func(x int64) int64 { return x + 1 },
	}

	assertValue(t, "f(4)", eval(t, "f(4)", vars), types.Int(8))

	got := eval(t, "inc", vars)
	fn, ok := got.(types.Function)
	if !ok {
		t.Fatalf("inc = %s, want a function value", types.TypeName(got))
	}
	if fn.Name != "inc" {
		t.Errorf("Name = %q, want inc", fn.Name)
	}
	v, err := fn.Call(context.Background(), types.Int(1))
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	assertValue(t, "inc(1)", v, types.Int(2))
}
