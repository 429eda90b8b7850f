package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sandrolain/gocel/pkg/types"
)

// StreamResult holds the output of a single streaming evaluation step.
type StreamResult struct {
	// Index is the zero-based position of the input document.
	Index int
	// Value is the result for one input document, or nil when Err is set.
	Value types.Value
	// Err is non-nil when decoding or evaluating the document failed.
	Err error
}

// EvalStream reads a sequence of JSON objects from r (NDJSON or concatenated
// JSON) and evaluates prog once per object. Each object's fields become
// variables of a fresh child frame of base, so bindings never leak between
// documents.
//
// Evaluation errors and non-object documents are reported per document and
// the stream continues. A malformed JSON stream is reported once and ends the
// stream. The channel is closed when the input is exhausted or ctx is
// cancelled; the caller must drain it or cancel ctx.
func (e *Evaluator) EvalStream(ctx context.Context, prog *types.Program, base *EvalContext, r io.Reader) (<-chan StreamResult, error) {
	if prog == nil || prog.AST() == nil {
		return nil, fmt.Errorf("invalid program")
	}
	if base == nil {
		base = NewContext()
	}

	ch := make(chan StreamResult, 16)

	go func() {
		defer close(ch)

		dec := json.NewDecoder(r)
		dec.UseNumber()
		for i := 0; ; i++ {
			if ctx.Err() != nil {
				return
			}

			var doc any
			if err := dec.Decode(&doc); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				send(ctx, ch, StreamResult{Index: i, Err: fmt.Errorf("document %d: %w", i, err)})
				return
			}

			res := StreamResult{Index: i}
			bindings, ok := doc.(map[string]any)
			if !ok {
				res.Err = fmt.Errorf("document %d: expected a JSON object", i)
			} else {
				frame := base.NewChild()
				if err := frame.Update(bindings); err != nil {
					res.Err = fmt.Errorf("document %d: %w", i, err)
				} else {
					res.Value, res.Err = e.Eval(ctx, prog, frame)
				}
			}
			if !send(ctx, ch, res) {
				return
			}
		}
	}()

	return ch, nil
}

func send(ctx context.Context, ch chan<- StreamResult, res StreamResult) bool {
	select {
	case ch <- res:
		return true
	case <-ctx.Done():
		return false
	}
}
