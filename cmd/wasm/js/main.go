//go:build js && wasm

// Command gocel-wasm-js is the WebAssembly entrypoint for browser and Node.js.
//
// It exposes a global `gocel` object with the following API:
//
//	gocel.version()               → string
//	gocel.eval(expr, varsJSON)    → resultJSON  (throws on error)
//	gocel.compile(expr)           → { eval(varsJSON) → resultJSON }  (throws on error)
//
// varsJSON is a JSON object whose members become the expression variables.
// Integral JSON numbers are bound as int, all others as double.
//
// Build:
//
//	GOOS=js GOARCH=wasm go build -o gocel.wasm ./cmd/wasm/js/
//
// Usage in Node.js:
//
//	const result = gocel.eval('user.age >= 18', JSON.stringify({user: {age: 30}}))
//	console.log(JSON.parse(result)) // true
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/sandrolain/gocel"
	"github.com/sandrolain/gocel/pkg/evaluator"
	"github.com/sandrolain/gocel/pkg/ext"
	"github.com/sandrolain/gocel/pkg/types"
)

// jsThrow panics with a JS Error so the caller receives a thrown exception.
func jsThrow(msg string) {
	js.Global().Get("Error").New(msg)
	panic(msg)
}

func decodeVars(fn, varsJSON string) map[string]any {
	vars := map[string]any{}
	if varsJSON == "" {
		return vars
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(varsJSON)))
	dec.UseNumber()
	if err := dec.Decode(&vars); err != nil {
		jsThrow(fmt.Sprintf("%s: variables must be a JSON object: %v", fn, err))
	}
	return vars
}

func encodeResult(fn string, v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		jsThrow(fmt.Sprintf("%s: marshal result: %v", fn, err))
	}
	return string(out)
}

// jsEval implements gocel.eval(expr, varsJSON) → resultJSON.
func jsEval(_ js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		jsThrow("gocel.eval requires an expression (string) and optional variables (JSON string)")
	}
	varsJSON := ""
	if len(args) > 1 {
		varsJSON = args[1].String()
	}

	result, err := gocel.EvalWithContext(context.Background(), args[0].String(),
		decodeVars("gocel.eval", varsJSON), ext.WithAll())
	if err != nil {
		jsThrow(fmt.Sprintf("gocel.eval: %v", err))
	}
	return encodeResult("gocel.eval", result)
}

// jsCompile implements gocel.compile(expr) → { eval(varsJSON) → resultJSON }.
func jsCompile(_ js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		jsThrow("gocel.compile requires 1 argument: expr (string)")
	}

	prog, err := gocel.Compile(args[0].String())
	if err != nil {
		jsThrow(fmt.Sprintf("gocel.compile: %v", err))
	}

	ev := evaluator.New(ext.WithAll())

	evalFn := js.FuncOf(func(_ js.Value, innerArgs []js.Value) interface{} {
		varsJSON := ""
		if len(innerArgs) > 0 {
			varsJSON = innerArgs[0].String()
		}
		evalCtx, e := gocel.NewContext(decodeVars("compiled.eval", varsJSON))
		if e != nil {
			jsThrow(fmt.Sprintf("compiled.eval: %v", e))
		}
		r, e := ev.Eval(context.Background(), prog, evalCtx)
		if e != nil {
			jsThrow(fmt.Sprintf("compiled.eval: %v", e))
		}
		return encodeResult("compiled.eval", types.ToJSONCompatible(r))
	})

	return js.ValueOf(map[string]interface{}{"eval": evalFn})
}

func main() {
	api := map[string]interface{}{
		"eval":    js.FuncOf(jsEval),
		"compile": js.FuncOf(jsCompile),
		"version": js.FuncOf(func(_ js.Value, _ []js.Value) interface{} {
			return gocel.Version()
		}),
	}
	js.Global().Set("gocel", js.ValueOf(api))

	// The JS event loop owns execution from here.
	select {}
}
