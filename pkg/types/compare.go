package types

import (
	"bytes"
	"math"
	"strings"
)

const (
	twoTo63 = float64(1 << 63)
	twoTo64 = float64(1<<63) * 2
)

// IsNumeric reports whether v is an Int, UInt or Double.
func IsNumeric(v Value) bool {
	switch v.(type) {
	case Int, UInt, Double:
		return true
	}
	return false
}

// Equal reports whether a and b are equal under CEL semantics. Numbers
// compare by mathematical value across Int, UInt and Double; values of
// different non-numeric kinds are never equal.
func Equal(a, b Value) bool {
	if IsNumeric(a) && IsNumeric(b) {
		c, ok := compareNumeric(a, b)
		return ok && c == 0
	}
	switch x := a.(type) {
	case nil, Null:
		return KindOf(b) == KindNull
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Bytes:
		y, ok := b.(Bytes)
		return ok && bytes.Equal(x, y)
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Map:
		y, ok := b.(*Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		equal := true
		x.Range(func(k, v Value) bool {
			w, found := y.Get(k)
			equal = found && Equal(v, w)
			return equal
		})
		return equal
	case Timestamp:
		y, ok := b.(Timestamp)
		return ok && x.Time.Equal(y.Time)
	case Duration:
		y, ok := b.(Duration)
		return ok && x.Duration == y.Duration
	case Optional:
		y, ok := b.(Optional)
		if !ok || x.ok != y.ok {
			return false
		}
		return !x.ok || Equal(x.value, y.value)
	case Function:
		y, ok := b.(Function)
		return ok && x.Name == y.Name
	}
	return false
}

// Compare orders a and b. ok is false when the pair has no ordering, either
// because the kinds are incompatible or because a NaN is involved.
func Compare(a, b Value) (cmp int, ok bool) {
	if IsNumeric(a) && IsNumeric(b) {
		return compareNumeric(a, b)
	}
	switch x := a.(type) {
	case String:
		if y, isStr := b.(String); isStr {
			return strings.Compare(string(x), string(y)), true
		}
	case Bytes:
		if y, isBytes := b.(Bytes); isBytes {
			return bytes.Compare(x, y), true
		}
	case Bool:
		if y, isBool := b.(Bool); isBool {
			switch {
			case x == y:
				return 0, true
			case !bool(x):
				return -1, true
			default:
				return 1, true
			}
		}
	case Timestamp:
		if y, isTs := b.(Timestamp); isTs {
			return x.Time.Compare(y.Time), true
		}
	case Duration:
		if y, isDur := b.(Duration); isDur {
			return cmp3(int64(x.Duration), int64(y.Duration)), true
		}
	}
	return 0, false
}

// Comparable reports whether a and b belong to kinds that have an ordering
// with each other, independently of NaN.
func Comparable(a, b Value) bool {
	if IsNumeric(a) && IsNumeric(b) {
		return true
	}
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case KindString, KindBytes, KindBool, KindTimestamp, KindDuration:
		return true
	}
	return false
}

func compareNumeric(a, b Value) (int, bool) {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			return cmp3(int64(x), int64(y)), true
		case UInt:
			return compareIntUint(int64(x), uint64(y)), true
		case Double:
			return compareIntDouble(int64(x), float64(y))
		}
	case UInt:
		switch y := b.(type) {
		case Int:
			return -compareIntUint(int64(y), uint64(x)), true
		case UInt:
			return cmp3u(uint64(x), uint64(y)), true
		case Double:
			return compareUintDouble(uint64(x), float64(y))
		}
	case Double:
		switch y := b.(type) {
		case Int:
			c, ok := compareIntDouble(int64(y), float64(x))
			return -c, ok
		case UInt:
			c, ok := compareUintDouble(uint64(y), float64(x))
			return -c, ok
		case Double:
			fx, fy := float64(x), float64(y)
			if math.IsNaN(fx) || math.IsNaN(fy) {
				return 0, false
			}
			switch {
			case fx < fy:
				return -1, true
			case fx > fy:
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

func compareIntUint(i int64, u uint64) int {
	if i < 0 {
		return -1
	}
	return cmp3u(uint64(i), u)
}

func compareIntDouble(i int64, d float64) (int, bool) {
	switch {
	case math.IsNaN(d):
		return 0, false
	case d >= twoTo63:
		return -1, true
	case d < -twoTo63:
		return 1, true
	}
	t := math.Trunc(d)
	if c := cmp3(i, int64(t)); c != 0 {
		return c, true
	}
	switch frac := d - t; {
	case frac > 0:
		return -1, true
	case frac < 0:
		return 1, true
	}
	return 0, true
}

func compareUintDouble(u uint64, d float64) (int, bool) {
	switch {
	case math.IsNaN(d):
		return 0, false
	case d < 0:
		return 1, true
	case d >= twoTo64:
		return -1, true
	}
	t := math.Trunc(d)
	if c := cmp3u(u, uint64(t)); c != 0 {
		return c, true
	}
	if d-t > 0 {
		return -1, true
	}
	return 0, true
}

func cmp3(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmp3u(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
