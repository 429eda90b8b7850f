package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sandrolain/gocel/internal/config"
	"github.com/sandrolain/gocel/pkg/types"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunExpression(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"arithmetic", []string{"1 + 2 * 3"}, "7\n"},
		{"joined args", []string{"1", "+", "2"}, "3\n"},
		{"string is raw", []string{"'hello'"}, "hello\n"},
		{"inline context", []string{"-c", `{"x": 2, "name": "Bob"}`, "name + ':' + string(x * 3)"}, "Bob:6\n"},
		{"json output", []string{"-o", "json", "{'a': [1, true]}"}, "{\n  \"a\": [\n    1,\n    true\n  ]\n}\n"},
		{"pretty scalar", []string{"-o", "pretty", "42"}, "42 (int)\n"},
		{"promote", []string{"-promote", "1 + 0.5"}, "1.5\n"},
		{"truthy", []string{"-truthy", "'' || 'fallback'"}, "fallback\n"},
		{"extensions", []string{"'snake_case'.camelCase()"}, "snakeCase\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runCLI(t, "", tt.args...)
			if r.code != exitOK {
				t.Fatalf("exit code = %d, stderr: %s", r.code, r.stderr)
			}
			if r.stdout != tt.want {
				t.Errorf("stdout = %q, want %q", r.stdout, tt.want)
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"syntax error", []string{"1 +"}, exitError, string(types.ErrUnexpectedEnd)},
		{"runtime error", []string{"1 / 0"}, exitError, string(types.ErrDivisionByZero)},
		{"no expression", nil, exitUsage, "no expression provided"},
		{"bad context", []string{"-c", "{", "1"}, exitUsage, "invalid JSON in context"},
		{"bad output", []string{"-o", "xml", "1"}, exitUsage, "invalid output format"},
		{"unknown flag", []string{"-nope", "1"}, exitUsage, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runCLI(t, "", tt.args...)
			if r.code != tt.code {
				t.Errorf("exit code = %d, want %d", r.code, tt.code)
			}
			if !strings.Contains(r.stderr, tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", r.stderr, tt.want)
			}
		})
	}
}

func TestRunContextSources(t *testing.T) {
	env := writeFile(t, "vars.env", "USER=alice\nROLE=dev\n")
	ctxFile := writeFile(t, "ctx.json", `{"ROLE": "admin", "n": 1}`)

	r := runCLI(t, "", "-env-file", env, "-f", ctxFile, "-c", `{"n": 2}`, "USER + ' ' + ROLE + ' ' + string(n)")
	if r.code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", r.code, r.stderr)
	}
	if r.stdout != "alice admin 2\n" {
		t.Errorf("stdout = %q", r.stdout)
	}
}

func TestRunVerboseAndTiming(t *testing.T) {
	r := runCLI(t, "", "-t", "-v", "-c", `{"a": 1}`, "a + 1")
	if r.code != exitOK {
		t.Fatalf("exit code = %d", r.code)
	}
	for _, want := range []string{"Evaluated in", "Expression: a + 1", "Result type: int", "Context variables: 1"} {
		if !strings.Contains(r.stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, r.stderr)
		}
	}
}

func TestRunFile(t *testing.T) {
	exprs := writeFile(t, "exprs.cel", "# comment\n1 + 1\n\n'a' + 'b'\n1 / 0\n")

	r := runCLI(t, "", "-file", exprs)
	if r.code != exitError {
		t.Errorf("exit code = %d, want %d", r.code, exitError)
	}
	for _, want := range []string{"Expression", "1 + 1", "ab", "Error: D1002"} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, r.stdout)
		}
	}

	r = runCLI(t, "", "-o", "json", "-file", exprs)
	var results []map[string]any
	if err := json.Unmarshal([]byte(r.stdout), &results); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, r.stdout)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0]["result"] != float64(2) || results[1]["result"] != "ab" || results[2]["error"] == nil {
		t.Errorf("results = %v", results)
	}
}

func TestRunStream(t *testing.T) {
	input := `{"x": 1}
{"x": 2}
[1]
{"x": 3}
`
	r := runCLI(t, input, "-stream", "x * 10")
	if r.code != exitError {
		t.Errorf("exit code = %d, want %d", r.code, exitError)
	}
	if r.stdout != "10\n20\n30\n" {
		t.Errorf("stdout = %q", r.stdout)
	}
	if !strings.Contains(r.stderr, "document 2") {
		t.Errorf("stderr = %q, want the failing document index", r.stderr)
	}
}

func TestLibCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "lib.db")

	r := runCLI(t, "", "lib", "add", "-lib", db, "-d", "adult check", "adult", "age >= 18")
	if r.code != exitOK || !strings.Contains(r.stdout, "Saved adult") {
		t.Fatalf("add: code %d, out %q, err %q", r.code, r.stdout, r.stderr)
	}
	if r = runCLI(t, "", "lib", "add", "-lib", db, "adult", "true"); r.code != exitError {
		t.Errorf("duplicate add: code = %d, want %d", r.code, exitError)
	}

	r = runCLI(t, "", "lib", "get", "-lib", db, "adult")
	if r.code != exitOK || !strings.Contains(r.stdout, "age >= 18") || !strings.Contains(r.stdout, "adult check") {
		t.Errorf("get: code %d, out %q", r.code, r.stdout)
	}

	r = runCLI(t, "", "lib", "run", "-lib", db, "-c", `{"age": 20}`, "adult")
	if r.code != exitOK || r.stdout != "true\n" {
		t.Errorf("run: code %d, out %q, err %q", r.code, r.stdout, r.stderr)
	}

	if r = runCLI(t, "", "lib", "add", "-lib", db, "-force", "adult", "age >= 21"); r.code != exitOK {
		t.Errorf("forced add: code %d, err %q", r.code, r.stderr)
	}
	r = runCLI(t, "", "lib", "run", "-lib", db, "-c", `{"age": 20}`, "adult")
	if r.stdout != "false\n" {
		t.Errorf("run after update: out %q", r.stdout)
	}

	r = runCLI(t, "", "lib", "list", "-lib", db)
	if r.code != exitOK || !strings.Contains(r.stdout, "adult") {
		t.Errorf("list: code %d, out %q", r.code, r.stdout)
	}

	if r = runCLI(t, "", "lib", "rm", "-lib", db, "adult"); r.code != exitOK {
		t.Errorf("rm: code %d, err %q", r.code, r.stderr)
	}
	r = runCLI(t, "", "lib", "get", "-lib", db, "adult")
	if r.code != exitError || !strings.Contains(r.stderr, "not found") {
		t.Errorf("get after rm: code %d, err %q", r.code, r.stderr)
	}

	r = runCLI(t, "", "lib", "list", "-lib", db)
	if !strings.Contains(r.stdout, "No saved expressions") {
		t.Errorf("empty list: out %q", r.stdout)
	}
}

func TestLibUsage(t *testing.T) {
	for _, args := range [][]string{
		{"lib"},
		{"lib", "frobnicate"},
		{"lib", "get"},
		{"lib", "add", "only-name"},
	} {
		if r := runCLI(t, "", args...); r.code != exitUsage {
			t.Errorf("%v: exit code = %d, want %d", args, r.code, exitUsage)
		}
	}
}

func newTestSession(t *testing.T) (*session, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	cfg := config.Default()
	cfg.LibraryDB = filepath.Join(t.TempDir(), "lib.db")
	s := &session{app: newApp(cfg, false, strings.NewReader(""), &out, &errOut)}
	t.Cleanup(s.close)
	return s, &out, &errOut
}

func TestSessionCommands(t *testing.T) {
	ctx := context.Background()
	s, out, errOut := newTestSession(t)

	if !s.handle(ctx, "help") || !strings.Contains(out.String(), "REPL commands") {
		t.Errorf("help output: %q", out.String())
	}

	out.Reset()
	s.handle(ctx, "context")
	if !strings.Contains(out.String(), "No context variables set") {
		t.Errorf("empty context output: %q", out.String())
	}

	out.Reset()
	s.handle(ctx, "let x = 20 + 1")
	if out.String() != "x = 21\n" {
		t.Errorf("let output: %q", out.String())
	}

	out.Reset()
	s.handle(ctx, "x * 2")
	if out.String() != "42\n" {
		t.Errorf("eval output: %q", out.String())
	}

	out.Reset()
	s.handle(ctx, "context")
	if !strings.Contains(out.String(), "x") || !strings.Contains(out.String(), "21") {
		t.Errorf("context output: %q", out.String())
	}

	out.Reset()
	s.handle(ctx, "history")
	if !strings.Contains(out.String(), "x * 2") {
		t.Errorf("history output: %q", out.String())
	}

	s.handle(ctx, "1 / 0")
	if !strings.Contains(errOut.String(), "D1002") {
		t.Errorf("error output: %q", errOut.String())
	}

	if s.handle(ctx, "exit") {
		t.Error("exit did not end the session")
	}
}

func TestSessionLoadSaveRun(t *testing.T) {
	ctx := context.Background()
	s, out, errOut := newTestSession(t)

	path := writeFile(t, "ctx.json", `{"price": 10, "qty": 3}`)
	s.handle(ctx, "load "+path)
	if !strings.Contains(out.String(), "Loaded 2 variables") {
		t.Fatalf("load output: %q, err %q", out.String(), errOut.String())
	}

	out.Reset()
	s.handle(ctx, "save total price * qty")
	if !strings.Contains(out.String(), "Saved total") {
		t.Fatalf("save output: %q, err %q", out.String(), errOut.String())
	}

	out.Reset()
	s.handle(ctx, "run total")
	if out.String() != "30\n" {
		t.Errorf("run output: %q, err %q", out.String(), errOut.String())
	}

	errOut.Reset()
	s.handle(ctx, "run missing")
	if !strings.Contains(errOut.String(), "not found") {
		t.Errorf("run missing: %q", errOut.String())
	}
}

func TestSessionHistoryLimit(t *testing.T) {
	s, _, _ := newTestSession(t)
	for i := 0; i < historyLimit+5; i++ {
		s.handle(context.Background(), "1")
	}
	if len(s.history) != historyLimit {
		t.Errorf("history length = %d, want %d", len(s.history), historyLimit)
	}
}

func TestSessionCommandNamesAsVariables(t *testing.T) {
	s, out, _ := newTestSession(t)
	s.app.vars["history"] = []any{"a"}
	s.handle(context.Background(), "history.size()")
	if out.String() != "1\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestFormatValue(t *testing.T) {
	long := make(types.List, 40)
	for i := range long {
		long[i] = types.Int(i)
	}
	m := types.NewMap(1)
	_ = m.Set(types.String("k"), types.String("v"))

	tests := []struct {
		name   string
		v      types.Value
		format string
		want   string
	}{
		{"auto string", types.String("hi"), config.OutputAuto, "hi"},
		{"auto list", types.List{types.Int(1), types.String("a")}, config.OutputAuto, `[1, "a"]`},
		{"auto long list", long, config.OutputAuto, "Index  Value\n0      0"},
		{"pretty map", m, config.OutputPretty, "Key  Value\nk    v"},
		{"pretty scalar", types.Double(1.5), config.OutputPretty, "1.5 (double)"},
		{"json", types.List{types.NullValue}, config.OutputJSON, "[\n  null\n]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatValue(tt.v, tt.format)
			if err != nil {
				t.Fatalf("formatValue() error: %v", err)
			}
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("formatValue() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestReadExpressions(t *testing.T) {
	got, err := readExpressions(strings.NewReader("  # c\n\n a \nb\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("readExpressions() = %q", got)
	}
}
