// Package ext provides optional extension functions that go beyond the CEL
// standard library.
//
// The extension functions live in sub-packages grouped by category:
//   - extstring   – indexOf, substring, split, join, upper(locale), normalize, camelCase, …
//   - extnumeric  – math.exp, math.ln, math.pow, math.clamp, trig, math.median, …
//   - extarray    – first, last, take, skip, flatten, chunk, sort, set ops, lists.range, …
//   - extobject   – keys, values, pairs, pick, omit, merge, rename, maps.fromPairs, …
//   - extdatetime – dateAdd, dateDiff, components, startOf, endOf, format, time.parse
//   - extcrypto   – hash, hmac, bcrypt.verify, bcrypt.cost
//   - extformat   – formatNumber, formatCurrency, csv.parse, json.decode, base64, hex, …
//   - extjwt      – jwt.claims, jwt.header, jwt.verify, jwt.sign, jwt.expired
//
// # Integration – all extensions at once
//
//	import "github.com/sandrolain/gocel/pkg/ext"
//
//	result, err := gocel.Eval(expr, vars, ext.WithAll())
//
// # Integration – by category
//
//	result, err := gocel.Eval(expr, vars,
//	    ext.WithString(),
//	    ext.WithArray(),
//	)
//
// # Integration – single function from a sub-package
//
//	import "github.com/sandrolain/gocel/pkg/ext/extstring"
//
//	result, err := gocel.Eval(expr, vars,
//	    gocel.WithFunctions(extstring.CamelCase()...),
//	)
package ext

import (
	"github.com/sandrolain/gocel/pkg/evaluator"
	"github.com/sandrolain/gocel/pkg/ext/extarray"
	"github.com/sandrolain/gocel/pkg/ext/extcrypto"
	"github.com/sandrolain/gocel/pkg/ext/extdatetime"
	"github.com/sandrolain/gocel/pkg/ext/extformat"
	"github.com/sandrolain/gocel/pkg/ext/extjwt"
	"github.com/sandrolain/gocel/pkg/ext/extnumeric"
	"github.com/sandrolain/gocel/pkg/ext/extobject"
	"github.com/sandrolain/gocel/pkg/ext/extstring"
	"github.com/sandrolain/gocel/pkg/ext/extutil"
	"github.com/sandrolain/gocel/pkg/functions"
)

// All returns every extension overload.
func All() []functions.Overload {
	return extutil.Concat(
		extstring.All(),
		extnumeric.All(),
		extarray.All(),
		extobject.All(),
		extdatetime.All(),
		extcrypto.All(),
		extformat.All(),
		extjwt.All(),
	)
}

// WithAll returns an EvalOption that registers all extension functions.
func WithAll() evaluator.EvalOption {
	return evaluator.WithFunctions(All()...)
}

// WithString returns an EvalOption for the extended string functions.
func WithString() evaluator.EvalOption {
	return evaluator.WithFunctions(extstring.All()...)
}

// WithNumeric returns an EvalOption for the extended numeric functions.
func WithNumeric() evaluator.EvalOption {
	return evaluator.WithFunctions(extnumeric.All()...)
}

// WithArray returns an EvalOption for the extended list functions.
func WithArray() evaluator.EvalOption {
	return evaluator.WithFunctions(extarray.All()...)
}

// WithObject returns an EvalOption for the extended map functions.
func WithObject() evaluator.EvalOption {
	return evaluator.WithFunctions(extobject.All()...)
}

// WithDateTime returns an EvalOption for the extended timestamp functions.
func WithDateTime() evaluator.EvalOption {
	return evaluator.WithFunctions(extdatetime.All()...)
}

// WithCrypto returns an EvalOption for the hashing functions.
func WithCrypto() evaluator.EvalOption {
	return evaluator.WithFunctions(extcrypto.All()...)
}

// WithFormat returns an EvalOption for the data-format functions.
func WithFormat() evaluator.EvalOption {
	return evaluator.WithFunctions(extformat.All()...)
}

// WithJWT returns an EvalOption for the JSON Web Token functions.
func WithJWT() evaluator.EvalOption {
	return evaluator.WithFunctions(extjwt.All()...)
}
