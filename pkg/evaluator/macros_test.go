package evaluator_test

import (
	"testing"

	"github.com/sandrolain/gocel/pkg/types"
)

func TestMacros(t *testing.T) {
	vars := map[string]any{
		"nums":  []any{1, 2, 3, 4},
		"users": []any{map[string]any{"name": "a", "age": 30}, map[string]any{"name": "b", "age": 15}},
		"m":     map[string]any{"a": 1, "b": 2},
	}

	tests := []struct {
		name string
		src  string
		want types.Value
	}{
		{"all true", "nums.all(x, x > 0)", types.True},
		{"all false", "nums.all(x, x > 1)", types.False},
		{"all empty", "[].all(x, x > 0)", types.True},
		{"exists true", "nums.exists(x, x == 3)", types.True},
		{"exists false", "nums.exists(x, x > 10)", types.False},
		{"exists empty", "[].exists(x, true)", types.False},
		{"exists_one true", "nums.exists_one(x, x == 2)", types.True},
		{"exists_one two matches", "nums.exists_one(x, x > 2)", types.False},
		{"filter", "nums.filter(x, x % 2 == 0)", list(types.Int(2), types.Int(4))},
		{"map", "nums.map(x, x * x)", list(types.Int(1), types.Int(4), types.Int(9), types.Int(16))},
		{"map with filter", "nums.map(x, x > 2, x * 10)", list(types.Int(30), types.Int(40))},
		{"field access in predicate", "users.filter(u, u.age >= 18).map(u, u.name)", list(types.String("a"))},
		{"map over map keys", "m.map(k, k)", list(types.String("a"), types.String("b"))},
		{"map values through keys", "m.map(k, m[k])", list(types.Int(1), types.Int(2))},
		{"all over map keys", "m.all(k, k in ['a', 'b'])", types.True},
		{"nested", "[[1, 2], [3]].map(l, l.map(x, x * 10))",
			list(list(types.Int(10), types.Int(20)), list(types.Int(30)))},
		{"nested closure", "[1, 2].map(x, [10, 20].map(y, x + y))",
			list(list(types.Int(11), types.Int(21)), list(types.Int(12), types.Int(22)))},
		{"size of filter", "size(nums.filter(x, x > 1))", types.Int(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertValue(t, tt.src, eval(t, tt.src, vars), tt.want)
		})
	}
}

func TestMacroVariableScope(t *testing.T) {
	// the loop variable shadows the outer binding and does not leak
	vars := map[string]any{"x": 10}
	got := eval(t, "[1, 2].map(x, x * 2) + [x]", vars)
	assertValue(t, "shadowing", got, list(types.Int(2), types.Int(4), types.Int(10)))

	te := evalExpectError(t, "[1, 2].map(x, x * 2) + [x]", nil)
	if te.Code != types.ErrUndefinedVariable {
		t.Errorf("leaked loop variable: code = %s, want %s", te.Code, types.ErrUndefinedVariable)
	}

	// a sibling macro sees its own variable only
	te = evalExpectError(t, "[1].all(a, true) && [2].all(b, a == b)", nil)
	if te.Code != types.ErrUndefinedVariable {
		t.Errorf("sibling scope: code = %s, want %s", te.Code, types.ErrUndefinedVariable)
	}
}

func TestMacroShortCircuit(t *testing.T) {
	// all stops at the first false element, exists at the first true one
	assertValue(t, "all", eval(t, "[1, 0, 2].all(x, x != 0 && 10 / x > 1)", nil), types.False)
	assertValue(t, "exists", eval(t, "[2, 0].exists(x, 10 / x == 5)", nil), types.True)
}

func TestMacroErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code types.ErrorCode
	}{
		{"non-bool predicate", "[1, 2].all(x, x)", types.ErrNonBoolCondition},
		{"non-bool filter", "[1, 2].filter(x, 'a')", types.ErrNonBoolCondition},
		{"range over int", "5.all(x, true)", types.ErrInvalidTypeOperation},
		{"range over string", "'abc'.map(c, c)", types.ErrInvalidTypeOperation},
		{"error inside body", "[1, 0].map(x, 10 / x)", types.ErrDivisionByZero},
		{"error inside exists_one", "[1, 0].exists_one(x, 10 / x == 10)", types.ErrDivisionByZero},
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

func TestMacroPredicatePosition(t *testing.T) {
	te := evalExpectError(t, "[1].all(x, x + 1)", nil)
	if te.Position != 13 {
		t.Errorf("Position = %d, want 13 (%v)", te.Position, te)
	}
}
