package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/peterh/liner"

	"github.com/sandrolain/gocel"
	"github.com/sandrolain/gocel/internal/library"
	"github.com/sandrolain/gocel/pkg/parser"
	"github.com/sandrolain/gocel/pkg/types"
)

const (
	promptMain   = "cel> "
	promptCont   = "...> "
	historyLimit = 10
)

var helpText = `REPL commands:
  help                     Show this help message
  context                  Show the context variables
  history                  Show the recent evaluations
  load <file>              Merge variables from a JSON file into the context
  let <name> = <expr>      Evaluate expr and bind the result to name
  save <name> <expr>       Save expr in the expression library
  run <name>               Evaluate a saved expression
  exit, quit               Leave the REPL

Examples:
  1 + 2 * 3
  "hello".size()
  [1, 2, 3].map(x, x * 2)
  {"name": "Alice"}.name
  timestamp("2024-01-01T00:00:00Z") + duration("1h")
`

type historyEntry struct {
	expr    string
	result  string
	elapsed time.Duration
}

// session is the state of one interactive session. Commands write to the
// app's output so they can be driven without a terminal.
type session struct {
	app     *app
	history []historyEntry
	lib     *library.Library
}

func (s *session) close() {
	if s.lib != nil {
		s.lib.Close()
	}
}

func (s *session) library() (*library.Library, error) {
	if s.lib == nil {
		lib, err := library.Open(s.app.cfg.LibraryDB)
		if err != nil {
			return nil, err
		}
		s.lib = lib
	}
	return s.lib, nil
}

func (s *session) errorf(format string, args ...any) {
	fmt.Fprintln(s.app.errOut, red(fmt.Sprintf(format, args...)))
}

// handle runs one REPL input. It reports false when the session should end.
func (s *session) handle(ctx context.Context, input string) bool {
	line := strings.TrimSpace(input)
	if line == "" {
		return true
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "exit", "quit":
		if arg == "" {
			fmt.Fprintln(s.app.out, "Goodbye!")
			return false
		}
	case "help":
		if arg == "" {
			fmt.Fprint(s.app.out, helpText)
			return true
		}
	case "context":
		if arg == "" {
			s.showContext()
			return true
		}
	case "history":
		if arg == "" {
			s.showHistory()
			return true
		}
	case "load":
		if arg != "" {
			s.load(arg)
			return true
		}
	case "let":
		if name, expr, ok := strings.Cut(arg, "="); ok && isIdent(strings.TrimSpace(name)) {
			s.let(ctx, strings.TrimSpace(name), strings.TrimSpace(expr))
			return true
		}
	case "save":
		if name, expr, ok := strings.Cut(arg, " "); ok {
			s.save(ctx, name, strings.TrimSpace(expr))
			return true
		}
	case "run":
		if arg != "" && isIdent(arg) {
			s.run(ctx, arg)
			return true
		}
	}

	s.evaluate(ctx, line)
	return true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func (s *session) evaluate(ctx context.Context, src string) {
	v, elapsed, err := s.app.eval(ctx, src, s.app.vars)
	if err != nil {
		s.errorf("Error: %v", err)
		return
	}
	text, err := formatValue(v, s.app.cfg.Output)
	if err != nil {
		s.errorf("Error: %v", err)
		return
	}
	fmt.Fprintln(s.app.out, text)
	if s.app.timing {
		fmt.Fprintf(s.app.errOut, "Evaluated in %.2fms\n", float64(elapsed.Microseconds())/1000)
	}
	s.history = append(s.history, historyEntry{expr: src, result: display(v), elapsed: elapsed})
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
}

func (s *session) showContext() {
	if len(s.app.vars) == 0 {
		fmt.Fprintln(s.app.out, "No context variables set")
		return
	}
	names := make([]string, 0, len(s.app.vars))
	for name := range s.app.vars {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(s.app.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Variable\tType\tValue")
	for _, name := range names {
		v, err := types.NativeToValue(s.app.vars[name])
		if err != nil {
			fmt.Fprintf(tw, "%s\t%T\t%v\n", name, s.app.vars[name], s.app.vars[name])
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, types.TypeName(v), truncate(display(v), 50))
	}
	tw.Flush()
}

func (s *session) showHistory() {
	if len(s.history) == 0 {
		fmt.Fprintln(s.app.out, "No history available")
		return
	}
	tw := tabwriter.NewWriter(s.app.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tExpression\tResult\tTime (ms)")
	for i, h := range s.history {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\n", i+1, h.expr, truncate(h.result, 50), float64(h.elapsed.Microseconds())/1000)
	}
	tw.Flush()
}

func (s *session) load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		s.errorf("Error loading context: %v", err)
		return
	}
	vars, err := decodeVars(data)
	if err != nil {
		s.errorf("Error loading context: %s: %v", path, err)
		return
	}
	mergeVars(s.app.vars, vars)
	fmt.Fprintln(s.app.out, green(fmt.Sprintf("Loaded %d variables from %s", len(vars), path)))
}

func (s *session) let(ctx context.Context, name, src string) {
	v, _, err := s.app.eval(ctx, src, s.app.vars)
	if err != nil {
		s.errorf("Error: %v", err)
		return
	}
	s.app.vars[name] = types.ValueToNative(v)
	fmt.Fprintf(s.app.out, "%s = %s\n", name, types.Repr(v))
}

func (s *session) save(ctx context.Context, name, src string) {
	lib, err := s.library()
	if err != nil {
		s.errorf("Error: %v", err)
		return
	}
	if err := lib.Add(ctx, library.Entry{Name: name, Expression: src}); err != nil {
		s.errorf("Error: %v", err)
		return
	}
	fmt.Fprintln(s.app.out, green("Saved "+name))
}

func (s *session) run(ctx context.Context, name string) {
	lib, err := s.library()
	if err != nil {
		s.errorf("Error: %v", err)
		return
	}
	e, err := lib.Get(ctx, name)
	if err != nil {
		s.errorf("Error: %v", err)
		return
	}
	s.evaluate(ctx, e.Expression)
}

// readByParseProbe reads lines until they form a complete expression: input
// that only fails because it ends early continues on the next line.
func readByParseProbe(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl-C drops the pending input.
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if _, perr := parser.Compile(src); types.IsIncomplete(perr) && !isCommand(src) {
			continue
		}
		return src, true
	}
}

func isCommand(src string) bool {
	cmd, _, _ := strings.Cut(strings.TrimSpace(src), " ")
	switch strings.ToLower(cmd) {
	case "help", "context", "history", "load", "let", "save", "run", "exit", "quit":
		return true
	}
	return false
}

func (a *app) repl(ctx context.Context) int {
	fmt.Fprintf(a.out, "CEL REPL (gocel %s)\nType 'help' for commands, 'exit' to quit. Ctrl+C cancels input, Ctrl+D exits.\n", gocel.Version())

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetMultiLineMode(true)

	histPath := a.cfg.HistoryFile
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if err := os.MkdirAll(filepath.Dir(histPath), 0o755); err != nil {
			a.logger.Warn("cannot create history directory", "path", histPath, "error", err)
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		if _, ok := <-sigc; ok {
			ln.Close()
			os.Exit(130)
		}
	}()

	s := &session{app: a}
	defer s.close()
	for {
		src, ok := readByParseProbe(ln)
		if !ok {
			fmt.Fprintln(a.out)
			return exitOK
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		if !s.handle(ctx, src) {
			return exitOK
		}
	}
}
