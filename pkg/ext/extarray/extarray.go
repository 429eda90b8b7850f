// Package extarray provides extended list functions beyond the CEL standard
// library. Most are receiver-style: [1, 2, 3].take(2).
//
// Element equality follows the == operator, so 1 and 1.0 are the same element
// for distinct() and the set operations.
package extarray

import (
	"context"
	"math"
	"sort"

	"github.com/sandrolain/gocel/pkg/ext/extutil"
	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

// maxRangeItems bounds the length of lists.range results.
const maxRangeItems = 100000

const (
	i    = types.KindInt
	list = types.KindList
	dyn  = types.KindDyn
)

// All returns all extended list overloads.
func All() []functions.Overload {
	return extutil.Concat(
		First(),
		Last(),
		Take(),
		Skip(),
		Slice(),
		Flatten(),
		Chunk(),
		Window(),
		Distinct(),
		Reverse(),
		Sort(),
		Union(),
		Intersection(),
		Difference(),
		SymmetricDifference(),
		Zip(),
		Range(),
	)
}

func items(v types.Value) types.List {
	return v.(types.List)
}

// First returns the overload for list.first(), an optional holding the first
// element.
func First() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		l := items(args[0])
		if len(l) == 0 {
			return types.OptionalNone, nil
		}
		return types.OptionalOf(l[0]), nil
	}
	return []functions.Overload{extutil.Method("first", "list_first", fn, list)}
}

// Last returns the overload for list.last().
func Last() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		l := items(args[0])
		if len(l) == 0 {
			return types.OptionalNone, nil
		}
		return types.OptionalOf(l[len(l)-1]), nil
	}
	return []functions.Overload{extutil.Method("last", "list_last", fn, list)}
}

// Take returns the overload for list.take(n): at most the first n elements.
func Take() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		l, n := items(args[0]), extutil.Int(args[1])
		if n < 0 {
			return nil, extutil.Errorf("take", "count must be non-negative, got %d", n)
		}
		return l[:min(int64(len(l)), n)], nil
	}
	return []functions.Overload{extutil.Method("take", "list_take", fn, list, i)}
}

// Skip returns the overload for list.skip(n): the list without its first n
// elements.
func Skip() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		l, n := items(args[0]), extutil.Int(args[1])
		if n < 0 {
			return nil, extutil.Errorf("skip", "count must be non-negative, got %d", n)
		}
		return l[min(int64(len(l)), n):], nil
	}
	return []functions.Overload{extutil.Method("skip", "list_skip", fn, list, i)}
}

// Slice returns the overloads for list.slice(start [, end]). Negative indices
// count from the end and out-of-range indices are clamped.
func Slice() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		l := items(args[0])
		n := int64(len(l))
		start, end := normaliseIndex(extutil.Int(args[1]), n), n
		if len(args) == 3 {
			end = normaliseIndex(extutil.Int(args[2]), n)
		}
		if start >= end {
			return types.List{}, nil
		}
		return l[start:end], nil
	}
	return []functions.Overload{
		extutil.Method("slice", "list_slice", fn, list, i),
		extutil.Method("slice", "list_slice_range", fn, list, i, i),
	}
}

func normaliseIndex(idx, length int64) int64 {
	if idx < 0 {
		idx += length
	}
	return max(0, min(idx, length))
}

// Flatten returns the overloads for list.flatten([depth]). Without depth the
// list is flattened completely.
func Flatten() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		depth := int64(-1)
		if len(args) == 2 {
			depth = extutil.Int(args[1])
			if depth < 0 {
				return nil, extutil.Errorf("flatten", "depth must be non-negative, got %d", depth)
			}
		}
		return flatten(items(args[0]), depth, types.List{}), nil
	}
	return []functions.Overload{
		extutil.Method("flatten", "list_flatten", fn, list),
		extutil.Method("flatten", "list_flatten_depth", fn, list, i),
	}
}

// flatten appends the elements of l to out, descending into nested lists
// while depth is non-zero. A negative depth is unlimited.
func flatten(l types.List, depth int64, out types.List) types.List {
	for _, item := range l {
		if inner, ok := item.(types.List); ok && depth != 0 {
			out = flatten(inner, depth-1, out)
			continue
		}
		out = append(out, item)
	}
	return out
}

// Chunk returns the overload for list.chunk(size).
func Chunk() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		l, size := items(args[0]), extutil.Int(args[1])
		if size <= 0 {
			return nil, extutil.Errorf("chunk", "size must be positive, got %d", size)
		}
		out := types.List{}
		n := int64(len(l))
		for start := int64(0); start < n; {
			end := start + min(size, n-start)
			out = append(out, l[start:end])
			start = end
		}
		return out, nil
	}
	return []functions.Overload{extutil.Method("chunk", "list_chunk", fn, list, i)}
}

// Window returns the overload for list.window(size, step), a sliding window
// over the list. Trailing partial windows are dropped.
func Window() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		l, size, step := items(args[0]), extutil.Int(args[1]), extutil.Int(args[2])
		if size <= 0 || step <= 0 {
			return nil, extutil.Errorf("window", "size and step must be positive")
		}
		out := types.List{}
		n := int64(len(l))
		for start := int64(0); size <= n-start; start += min(step, n) {
			out = append(out, l[start:start+size])
		}
		return out, nil
	}
	return []functions.Overload{extutil.Method("window", "list_window", fn, list, i, i)}
}

func contains(l types.List, v types.Value) bool {
	for _, item := range l {
		if types.Equal(item, v) {
			return true
		}
	}
	return false
}

func distinct(l types.List) types.List {
	out := types.List{}
	for _, item := range l {
		if !contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}

// Distinct returns the overload for list.distinct(), keeping the first
// occurrence of each element.
func Distinct() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		return distinct(items(args[0])), nil
	}
	return []functions.Overload{extutil.Method("distinct", "list_distinct", fn, list)}
}

// Reverse returns the overload for list.reverse().
func Reverse() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		l := items(args[0])
		out := make(types.List, len(l))
		for k, item := range l {
			out[len(l)-1-k] = item
		}
		return out, nil
	}
	return []functions.Overload{extutil.Method("reverse", "list_reverse", fn, list)}
}

// Sort returns the overload for list.sort(). Elements must be mutually
// ordered: numbers, strings, bytes, bools, timestamps or durations.
func Sort() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		l := items(args[0])
		for k := 1; k < len(l); k++ {
			if !types.Comparable(l[0], l[k]) {
				return nil, types.Errorf(types.ErrNoSuchOverload,
					"sort: cannot order %s and %s", types.TypeName(l[0]), types.TypeName(l[k])).WithToken("sort")
			}
		}
		out := make(types.List, len(l))
		copy(out, l)
		sort.SliceStable(out, func(a, b int) bool {
			c, _ := types.Compare(out[a], out[b])
			return c < 0
		})
		return out, nil
	}
	return []functions.Overload{extutil.Method("sort", "list_sort", fn, list)}
}

func setOp(name string, op func(a, b types.List) types.List) []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		return op(items(args[0]), items(args[1])), nil
	}
	return []functions.Overload{extutil.Method(name, "list_"+name, fn, list, list)}
}

// Union returns the overload for a.union(b): the distinct elements of both
// lists in order of first appearance.
func Union() []functions.Overload {
	return setOp("union", func(a, b types.List) types.List {
		all := make(types.List, 0, len(a)+len(b))
		return distinct(append(append(all, a...), b...))
	})
}

// Intersection returns the overload for a.intersection(b).
func Intersection() []functions.Overload {
	return setOp("intersection", func(a, b types.List) types.List {
		out := types.List{}
		for _, item := range distinct(a) {
			if contains(b, item) {
				out = append(out, item)
			}
		}
		return out
	})
}

// Difference returns the overload for a.difference(b): elements of a that
// are not in b.
func Difference() []functions.Overload {
	return setOp("difference", func(a, b types.List) types.List {
		out := types.List{}
		for _, item := range distinct(a) {
			if !contains(b, item) {
				out = append(out, item)
			}
		}
		return out
	})
}

// SymmetricDifference returns the overload for a.symmetricDifference(b).
func SymmetricDifference() []functions.Overload {
	return setOp("symmetricDifference", func(a, b types.List) types.List {
		out := types.List{}
		for _, item := range distinct(a) {
			if !contains(b, item) {
				out = append(out, item)
			}
		}
		for _, item := range distinct(b) {
			if !contains(a, item) {
				out = append(out, item)
			}
		}
		return out
	})
}

// Zip returns the overloads for a.zip(b [, fill]). Without fill the result
// stops at the shorter list; with fill the shorter list is padded.
func Zip() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		a, b := items(args[0]), items(args[1])
		n := min(len(a), len(b))
		if len(args) == 3 {
			n = max(len(a), len(b))
		}
		out := make(types.List, n)
		for k := range n {
			pair := types.List{nil, nil}
			for side, l := range []types.List{a, b} {
				if k < len(l) {
					pair[side] = l[k]
				} else {
					pair[side] = args[2]
				}
			}
			out[k] = pair
		}
		return out, nil
	}
	return []functions.Overload{
		extutil.Method("zip", "list_zip", fn, list, list),
		extutil.Method("zip", "list_zip_fill", fn, list, list, dyn),
	}
}

// Range returns the overloads for lists.range(end) and
// lists.range(start, end [, step]). end is exclusive.
func Range() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		start, end, step := int64(0), extutil.Int(args[0]), int64(1)
		if len(args) >= 2 {
			start, end = extutil.Int(args[0]), extutil.Int(args[1])
		}
		if len(args) == 3 {
			step = extutil.Int(args[2])
			if step == 0 {
				return nil, extutil.Errorf("lists.range", "step must not be zero")
			}
		}
		out := types.List{}
		for v := start; (step > 0 && v < end) || (step < 0 && v > end); v += step {
			if len(out) >= maxRangeItems {
				return nil, extutil.Errorf("lists.range", "would produce more than %d items", maxRangeItems)
			}
			out = append(out, types.Int(v))
			if (step > 0 && v > math.MaxInt64-step) || (step < 0 && v < math.MinInt64-step) {
				break
			}
		}
		return out, nil
	}
	return []functions.Overload{
		extutil.Global("lists.range", "lists_range", fn, i),
		extutil.Global("lists.range", "lists_range_start", fn, i, i),
		extutil.Global("lists.range", "lists_range_step", fn, i, i, i),
	}
}
