// Command cel evaluates CEL expressions from the command line.
//
// Usage:
//
//	cel [flags] <expression>          Evaluate one expression.
//	cel [flags] -file exprs.cel       Evaluate every line of a file.
//	cel [flags] -stream <expression>  Evaluate once per JSON object on stdin.
//	cel -i [flags]                    Start the interactive REPL.
//	cel lib <command> [args]          Manage the saved expression library.
//
// Context variables come from -env-file (strings), -f (JSON file) and -c
// (JSON object), in that order; later sources override earlier ones.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sandrolain/gocel"
	"github.com/sandrolain/gocel/internal/config"
	"github.com/sandrolain/gocel/pkg/evaluator"
	"github.com/sandrolain/gocel/pkg/ext"
	"github.com/sandrolain/gocel/pkg/types"
)

const appName = "cel"

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// app carries the settings shared by every mode.
type app struct {
	cfg     config.Config
	ev      *evaluator.Evaluator
	logger  *slog.Logger
	vars    map[string]any
	stdin   io.Reader
	out     io.Writer
	errOut  io.Writer
	timing  bool
	verbose bool
}

func newApp(cfg config.Config, verbose bool, stdin io.Reader, stdout, stderr io.Writer) *app {
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return &app{
		cfg:    cfg,
		logger: logger,
		ev: evaluator.New(
			evaluator.WithLogger(logger),
			evaluator.WithDebug(verbose),
			evaluator.WithCaching(true),
			evaluator.WithNumericPromotion(cfg.Promote),
			evaluator.WithTruthyLogic(cfg.Truthy),
			ext.WithAll(),
		),
		vars:    map[string]any{},
		stdin:   stdin,
		out:     stdout,
		errOut:  stderr,
		verbose: verbose,
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "lib" {
		return runLib(ctx, args[1:], stdin, stdout, stderr)
	}

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(fs) }
	var envFiles stringList
	ctxJSON := fs.String("c", "", "context variables as a JSON object")
	ctxFile := fs.String("f", "", "read context variables from a JSON `file`")
	fs.Var(&envFiles, "env-file", "bind the entries of a dotenv `file` as string variables (repeatable)")
	exprFile := fs.String("file", "", "evaluate the expressions in `file`, one per line")
	output := fs.String("o", "", "output `format`: auto, json or pretty")
	interactive := fs.Bool("i", false, "start the interactive REPL")
	timing := fs.Bool("t", false, "print the evaluation time")
	verbose := fs.Bool("v", false, "verbose output and debug logging")
	promote := fs.Bool("promote", false, "promote int to double in mixed arithmetic")
	truthy := fs.Bool("truthy", false, "use truthiness for &&, || and !")
	libPath := fs.String("lib", "", "expression library database `path`")
	stream := fs.Bool("stream", false, "evaluate the expression once per JSON object read from stdin")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return exitUsage
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["o"] {
		if cfg.Output, err = config.ParseOutput(*output); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", appName, err)
			return exitUsage
		}
	}
	if set["promote"] {
		cfg.Promote = *promote
	}
	if set["truthy"] {
		cfg.Truthy = *truthy
	}
	if set["lib"] {
		cfg.LibraryDB = *libPath
	}

	a := newApp(cfg, *verbose, stdin, stdout, stderr)
	a.timing = *timing
	if err := a.loadVars(envFiles, *ctxFile, *ctxJSON); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return exitUsage
	}

	exprs := fs.Args()
	switch {
	case *interactive:
		return a.repl(ctx)
	case *exprFile != "":
		return a.evalFile(ctx, *exprFile)
	case len(exprs) == 0:
		fmt.Fprintf(stderr, "%s: no expression provided\n", appName)
		fs.Usage()
		return exitUsage
	case *stream:
		return a.evalStream(ctx, strings.Join(exprs, " "))
	}
	return a.evalOne(ctx, strings.Join(exprs, " "))
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, `CEL expression evaluator (gocel %s)

Usage:
  %[2]s [flags] <expression>
  %[2]s [flags] -file <expressions file>
  %[2]s [flags] -stream <expression> < documents.ndjson
  %[2]s -i [flags]
  %[2]s lib <add|get|list|rm|run> [flags] [args]

Flags:
`, gocel.Version(), appName)
	fs.PrintDefaults()
}

// loadVars merges the context sources: dotenv files, then a JSON file, then
// inline JSON.
func (a *app) loadVars(envFiles []string, ctxFile, ctxJSON string) error {
	if len(envFiles) > 0 {
		vars, err := config.ReadVars(envFiles...)
		if err != nil {
			return err
		}
		mergeVars(a.vars, vars)
	}
	if ctxFile != "" {
		data, err := os.ReadFile(ctxFile)
		if err != nil {
			return fmt.Errorf("context file: %w", err)
		}
		vars, err := decodeVars(data)
		if err != nil {
			return fmt.Errorf("context file %s: %w", ctxFile, err)
		}
		mergeVars(a.vars, vars)
	}
	if ctxJSON != "" {
		vars, err := decodeVars([]byte(ctxJSON))
		if err != nil {
			return fmt.Errorf("invalid JSON in context: %w", err)
		}
		mergeVars(a.vars, vars)
	}
	return nil
}

func mergeVars(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

// decodeVars parses a JSON object. Numbers keep their integer-ness.
func decodeVars(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var vars map[string]any
	if err := dec.Decode(&vars); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	if vars == nil {
		vars = map[string]any{}
	}
	return vars, nil
}

// eval compiles and evaluates src against vars.
func (a *app) eval(ctx context.Context, src string, vars map[string]any) (types.Value, time.Duration, error) {
	start := time.Now()
	prog, err := a.ev.Compile(src)
	if err != nil {
		return nil, 0, err
	}
	evalCtx, err := gocel.NewContext(vars)
	if err != nil {
		return nil, 0, err
	}
	v, err := a.ev.Eval(ctx, prog, evalCtx)
	elapsed := time.Since(start)
	a.logger.Debug("evaluated", "expression", src, "elapsed", elapsed, "error", err)
	return v, elapsed, err
}

func (a *app) evalOne(ctx context.Context, src string) int {
	v, elapsed, err := a.eval(ctx, src, a.vars)
	if err != nil {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
		return exitError
	}
	text, err := formatValue(v, a.cfg.Output)
	if err != nil {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
		return exitError
	}
	fmt.Fprintln(a.out, text)
	if a.timing {
		fmt.Fprintf(a.errOut, "Evaluated in %.2fms\n", float64(elapsed.Microseconds())/1000)
	}
	if a.verbose {
		fmt.Fprintf(a.errOut, "Expression: %s\n", src)
		fmt.Fprintf(a.errOut, "Result type: %s\n", types.TypeName(v))
		fmt.Fprintf(a.errOut, "Context variables: %d\n", len(a.vars))
	}
	return exitOK
}

// readExpressions returns the non-blank lines of r that are not # comments.
func readExpressions(r io.Reader) ([]string, error) {
	var exprs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		exprs = append(exprs, line)
	}
	return exprs, sc.Err()
}

type fileResult struct {
	Expression string  `json:"expression"`
	Result     any     `json:"result,omitempty"`
	Error      string  `json:"error,omitempty"`
	TimeMS     float64 `json:"time_ms"`

	display string
}

func (a *app) evalFile(ctx context.Context, path string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(a.errOut, "Error: expression file: %v\n", err)
		return exitError
	}
	defer f.Close()
	exprs, err := readExpressions(f)
	if err != nil {
		fmt.Fprintf(a.errOut, "Error: expression file: %v\n", err)
		return exitError
	}
	if len(exprs) == 0 {
		fmt.Fprintln(a.errOut, "No expressions found in file")
		return exitOK
	}

	code := exitOK
	results := make([]fileResult, len(exprs))
	for i, src := range exprs {
		v, elapsed, err := a.eval(ctx, src, a.vars)
		results[i] = fileResult{Expression: src, TimeMS: float64(elapsed.Microseconds()) / 1000}
		if err != nil {
			results[i].Error = err.Error()
			code = exitError
			continue
		}
		results[i].Result = types.ToJSONCompatible(v)
		results[i].display = display(v)
	}

	if a.cfg.Output == config.OutputJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			fmt.Fprintf(a.errOut, "Error: %v\n", err)
			return exitError
		}
		fmt.Fprintln(a.out, string(data))
		return code
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tExpression\tResult\tTime (ms)")
	for i, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%d\t%s\tError: %s\t-\n", i+1, r.Expression, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\n", i+1, r.Expression, truncate(r.display, 50), r.TimeMS)
	}
	tw.Flush()
	return code
}

func (a *app) evalStream(ctx context.Context, src string) int {
	prog, err := a.ev.Compile(src)
	if err != nil {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
		return exitError
	}
	base, err := gocel.NewContext(a.vars)
	if err != nil {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
		return exitError
	}
	results, err := a.ev.EvalStream(ctx, prog, base, a.stdin)
	if err != nil {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
		return exitError
	}

	code := exitOK
	for res := range results {
		if res.Err != nil {
			fmt.Fprintf(a.errOut, "Error: %v\n", res.Err)
			code = exitError
			continue
		}
		data, err := json.Marshal(types.ToJSONCompatible(res.Value))
		if err != nil {
			fmt.Fprintf(a.errOut, "Error: document %d: %v\n", res.Index, err)
			code = exitError
			continue
		}
		fmt.Fprintln(a.out, string(data))
	}
	return code
}
