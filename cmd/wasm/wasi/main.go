//go:build wasip1

// Command gocel-wasm-wasi is the WASI (wasip1) entrypoint for use from any
// language that supports the WebAssembly System Interface.
//
// Protocol: single JSON object on stdin → single JSON object on stdout.
//
//	stdin:  { "expr": "<cel>", "vars": { "<name>": <any JSON value>, ... } }
//	stdout: { "result": <any JSON value> }                  on success
//	        { "error": "<message>", "code": "<code>" }     on failure (exit code 1)
//
// Build:
//
//	GOOS=wasip1 GOARCH=wasm go build -o gocel.wasm ./cmd/wasm/wasi/
//
// Usage with wasmtime CLI:
//
//	echo '{"expr":"name.startsWith(\"A\")","vars":{"name":"Alice"}}' | wasmtime gocel.wasm
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/sandrolain/gocel"
	"github.com/sandrolain/gocel/pkg/evaluator"
	"github.com/sandrolain/gocel/pkg/ext"
	"github.com/sandrolain/gocel/pkg/types"
)

type request struct {
	Expr string         `json:"expr"`
	Vars map[string]any `json:"vars"`
}

type response struct {
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

func writeResponse(r response, exitCode int) {
	_ = json.NewEncoder(os.Stdout).Encode(r)
	os.Exit(exitCode)
}

func fail(err error) {
	writeResponse(response{Error: err.Error(), Code: string(types.CodeOf(err))}, 1)
}

func main() {
	var req request
	dec := json.NewDecoder(os.Stdin)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeResponse(response{Error: "invalid request JSON: " + err.Error()}, 1)
	}

	prog, err := gocel.Compile(req.Expr)
	if err != nil {
		fail(err)
	}
	evalCtx, err := gocel.NewContext(req.Vars)
	if err != nil {
		fail(err)
	}
	v, err := evaluator.New(ext.WithAll()).Eval(context.Background(), prog, evalCtx)
	if err != nil {
		fail(err)
	}

	writeResponse(response{Result: types.ToJSONCompatible(v)}, 0)
}
