package parser_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/sandrolain/gocel/pkg/parser"
	"github.com/sandrolain/gocel/pkg/types"
)

// sexpr renders an AST in a compact prefix form used to compare trees.
func sexpr(n *types.ASTNode) string {
	if n == nil {
		return "<nil>"
	}
	var sb strings.Builder
	writeSexpr(&sb, n)
	return sb.String()
}

func writeSexpr(sb *strings.Builder, n *types.ASTNode) {
	switch n.Type {
	case types.NodeLiteral:
		sb.WriteString(types.Repr(n.Value))
	case types.NodeIdent:
		sb.WriteString(n.Name)
	case types.NodeSelect:
		if n.TestOnly {
			sb.WriteString("has(")
		}
		writeSexpr(sb, n.LHS)
		sb.WriteString("." + n.Name)
		if n.TestOnly {
			sb.WriteString(")")
		}
	case types.NodeIndex:
		writeSexpr(sb, n.LHS)
		sb.WriteString("[")
		writeSexpr(sb, n.RHS)
		sb.WriteString("]")
	case types.NodeCall:
		if n.LHS != nil {
			writeSexpr(sb, n.LHS)
			sb.WriteString(".")
		}
		sb.WriteString(n.Name + "(")
		for i, a := range n.Arguments {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeSexpr(sb, a)
		}
		sb.WriteString(")")
	case types.NodeUnary:
		sb.WriteString("(" + n.Name)
		writeSexpr(sb, n.LHS)
		sb.WriteString(")")
	case types.NodeBinary:
		sb.WriteString("(")
		writeSexpr(sb, n.LHS)
		sb.WriteString(" " + n.Name + " ")
		writeSexpr(sb, n.RHS)
		sb.WriteString(")")
	case types.NodeCondition:
		sb.WriteString("(")
		writeSexpr(sb, n.LHS)
		sb.WriteString(" ? ")
		writeSexpr(sb, n.RHS)
		sb.WriteString(" : ")
		writeSexpr(sb, n.Expressions[0])
		sb.WriteString(")")
	case types.NodeList:
		sb.WriteString("[")
		for i, e := range n.Expressions {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeSexpr(sb, e)
		}
		sb.WriteString("]")
	case types.NodeMap:
		sb.WriteString("{")
		for i, e := range n.Expressions {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeSexpr(sb, e.LHS)
			sb.WriteString(": ")
			writeSexpr(sb, e.RHS)
		}
		sb.WriteString("}")
	case types.NodeComprehension:
		writeSexpr(sb, n.LHS)
		sb.WriteString("." + n.Name + "<" + n.IterVar + ">(")
		for i, a := range n.Arguments {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeSexpr(sb, a)
		}
		sb.WriteString(")")
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"1 - 2 - 3", "((1 - 2) - 3)"},
		{"a || b && c", "(a || (b && c))"},
		{"a && b || c", "((a && b) || c)"},
		{"a == b && c != d", "((a == b) && (c != d))"},
		{"x in [1, 2] || y", "((x in [1, 2]) || y)"},
		{"!a && b", "((!a) && b)"},
		{"-a.b", "(-a.b)"},
		{"!!a", "(!(!a))"},
		{"a < b + 1", "(a < (b + 1))"},
		{"a ? b : c ? d : e", "(a ? b : (c ? d : e))"},
		{"a || b ? c : d", "((a || b) ? c : d)"},
		{"a.b[0].c", "a.b[0].c"},
		{"10 % 3 / 2", "((10 % 3) / 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			prog, err := parser.Parse(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := sexpr(prog.AST()); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  types.Value
	}{
		{"42", types.Int(42)},
		{"-42", types.Int(-42)},
		{"-9223372036854775808", types.Int(math.MinInt64)},
		{"0x10", types.Int(16)},
		{"18446744073709551615u", types.UInt(math.MaxUint64)},
		{"0xFFu", types.UInt(255)},
		{"2.5", types.Double(2.5)},
		{"-0.5", types.Double(-0.5)},
		{"1e3", types.Double(1000)},
		{"true", types.True},
		{"false", types.False},
		{"null", types.NullValue},
		{`"hello"`, types.String("hello")},
		{`'tab\there'`, types.String("tab\there")},
		{`"é\U0001F600"`, types.String("é😀")},
		{`"\x41\101"`, types.String("AA")},
		{`"\xff"`, types.String("ÿ")},
		{`r"\n"`, types.String(`\n`)},
		{`'''multi
line'''`, types.String("multi\nline")},
		{`"""say "hi" """`, types.String(`say "hi" `)},
		{`b"\xff\000"`, types.Bytes{0xff, 0x00}},
		{`b'abc'`, types.Bytes("abc")},
		{`"\?\"\'\` + "`" + `"`, types.String("?\"'`")},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			prog, err := parser.Parse(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			n := prog.AST()
			if n.Type != types.NodeLiteral {
				t.Fatalf("node type = %s", n.Type)
			}
			if n.Value.Kind() != tt.want.Kind() || !types.Equal(n.Value, tt.want) {
				t.Errorf("got %s, want %s", types.Repr(n.Value), types.Repr(tt.want))
			}
		})
	}
}

func TestParseCallsAndMacros(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"size(x)", "size(x)"},
		{"'abc'.startsWith('a')", `"abc".startsWith("a")`},
		{"optional.of(1)", "optional.of(1)"},
		{"f(1, 2,)", "f(1, 2)"},
		{"[1, 2, 3,]", "[1, 2, 3]"},
		{"{'a': 1, 2: b,}", `{"a": 1, 2: b}`},
		{"{}", "{}"},
		{"[]", "[]"},
		{"has(a.b)", "has(a.b)"},
		{"has(a.b.c)", "has(a.b.c)"},
		{"[1, 2].all(x, x > 0)", "[1, 2].all<x>((x > 0))"},
		{"l.exists(x, x == 2)", "l.exists<x>((x == 2))"},
		{"l.exists_one(x, x)", "l.exists_one<x>(x)"},
		{"l.existsOne(x, x)", "l.exists_one<x>(x)"},
		{"l.filter(x, x > 1)", "l.filter<x>((x > 1))"},
		{"l.map(x, x * 2)", "l.map<x>((x * 2))"},
		{"l.map(x, x > 1, x * 2)", "l.map<x>((x > 1), (x * 2))"},
		{"l.all(x)", "l.all(x)"},
		{".a.b", "a.b"},
		{"a // trailing comment", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			prog, err := parser.Parse(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := sexpr(prog.AST()); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		code   types.ErrorCode
		line   int
		column int
	}{
		{"empty", "", types.ErrEmptyExpression, 1, 1},
		{"only comment", "// nothing", types.ErrEmptyExpression, 1, 11},
		{"unexpected token", "1 + )", types.ErrSyntaxError, 1, 5},
		{"trailing tokens", "1 2", types.ErrSyntaxError, 1, 3},
		{"unclosed paren", "(1 + 2", types.ErrUnexpectedEnd, 1, 7},
		{"unclosed list", "[1, 2", types.ErrUnexpectedEnd, 1, 6},
		{"missing colon", "a ? b", types.ErrUnexpectedEnd, 1, 6},
		{"dangling operator", "1 +", types.ErrUnexpectedEnd, 1, 4},
		{"unterminated string", "'abc", types.ErrStringNotClosed, 1, 1},
		{"bad escape", `"\q"`, types.ErrUnsupportedEscape, 1, 1},
		{"unicode escape in bytes", `b"\u0041"`, types.ErrUnsupportedEscape, 1, 1},
		{"surrogate", `"\ud800"`, types.ErrUnsupportedEscape, 1, 1},
		{"int overflow", "9223372036854775808", types.ErrNumberOutOfRange, 1, 1},
		{"uint overflow", "18446744073709551616u", types.ErrNumberOutOfRange, 1, 1},
		{"uint marker on double", "1.0u", types.ErrInvalidNumber, 1, 1},
		{"reserved word", "if + 1", types.ErrReservedIdentifier, 1, 1},
		{"has without select", "has(a)", types.ErrInvalidMacro, 1, 1},
		{"macro variable", "l.all(x.y, true)", types.ErrInvalidMacro, 1, 3},
		{"call on literal", "1(2)", types.ErrSyntaxError, 1, 2},
		{"second line", "a +\n  * b", types.ErrSyntaxError, 2, 3},
		{"single equals", "a = b", types.ErrInvalidCharacter, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := parser.Parse(tt.input)
			if err == nil {
				t.Fatalf("expected error, got program %v", prog)
			}
			if prog != nil {
				t.Error("a failed parse must not return a program")
			}
			var e *types.Error
			if !errors.As(err, &e) {
				t.Fatalf("error %T is not *types.Error", err)
			}
			if e.Code != tt.code {
				t.Errorf("code = %s, want %s (%v)", e.Code, tt.code, err)
			}
			if e.Line != tt.line || e.Column != tt.column {
				t.Errorf("location = %d:%d, want %d:%d", e.Line, e.Column, tt.line, tt.column)
			}
			if !types.IsSyntaxError(err) {
				t.Error("parse errors must classify as syntax errors")
			}
		})
	}
}

func TestIncompleteInput(t *testing.T) {
	for _, src := range []string{"[1, 2", "f(", "'''abc", "a ?"} {
		_, err := parser.Parse(src)
		if !types.IsIncomplete(err) {
			t.Errorf("%q: expected incomplete error, got %v", src, err)
		}
	}
	if _, err := parser.Parse("1 + )"); types.IsIncomplete(err) {
		t.Error("a misplaced token is not incomplete input")
	}
}

func TestNodeIDs(t *testing.T) {
	prog, err := parser.Parse("a + b * [1, 2].map(x, x)")
	if err != nil {
		t.Fatal(err)
	}

	seen := map[int64]bool{}
	types.Walk(prog.AST(), func(n *types.ASTNode) bool {
		if n.ID <= 0 {
			t.Errorf("node %s has no ID", n)
		}
		if seen[n.ID] {
			t.Errorf("duplicate ID %d", n.ID)
		}
		seen[n.ID] = true
		if prog.Node(n.ID) != n {
			t.Errorf("Node(%d) does not resolve to %s", n.ID, n)
		}
		for _, child := range []*types.ASTNode{n.LHS, n.RHS} {
			if child != nil && child.ID >= n.ID {
				t.Errorf("child %s (ID %d) was not built before parent %s (ID %d)", child, child.ID, n, n.ID)
			}
		}
		return true
	})
	if prog.NodeCount() != len(seen) {
		t.Errorf("NodeCount = %d, walked %d", prog.NodeCount(), len(seen))
	}
}

func TestReferences(t *testing.T) {
	prog, err := parser.Parse("user.age > limit && items.all(i, i.price < limit) && i == 1")
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(prog.References(), ",")
	if got != "i,items,limit,user" {
		t.Errorf("references = %s", got)
	}

	prog, err = parser.Parse("[1, 2].map(x, x * 2)")
	if err != nil {
		t.Fatal(err)
	}
	if refs := prog.References(); len(refs) != 0 {
		t.Errorf("loop variables must not be references: %v", refs)
	}
}

func TestMaxDepthAndLength(t *testing.T) {
	deep := strings.Repeat("(", 300) + "1" + strings.Repeat(")", 300)
	if _, err := parser.Parse(deep); types.CodeOf(err) != types.ErrNestingTooDeep {
		t.Errorf("expected nesting error, got %v", err)
	}
	if _, err := parser.Compile(deep, parser.WithMaxDepth(0)); err != nil {
		t.Errorf("unlimited depth: %v", err)
	}

	long := strings.Repeat("1 + ", 50) + "1"
	if _, err := parser.Compile(long, parser.WithMaxLength(10)); types.CodeOf(err) != types.ErrExpressionTooLong {
		t.Errorf("expected length error, got %v", err)
	}
}
