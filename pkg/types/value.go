package types

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind identifies the variant of a Value.
type Kind uint8

// Value kinds. KindDyn never tags a runtime value; overload signatures use it
// to accept any argument.
const (
	KindDyn Kind = iota
	KindNull
	KindBool
	KindInt
	KindUInt
	KindDouble
	KindString
	KindBytes
	KindList
	KindMap
	KindTimestamp
	KindDuration
	KindOptional
	KindFunction
)

var kindNames = [...]string{
	KindDyn:       "dyn",
	KindNull:      "null_type",
	KindBool:      "bool",
	KindInt:       "int",
	KindUInt:      "uint",
	KindDouble:    "double",
	KindString:    "string",
	KindBytes:     "bytes",
	KindList:      "list",
	KindMap:       "map",
	KindTimestamp: "google.protobuf.Timestamp",
	KindDuration:  "google.protobuf.Duration",
	KindOptional:  "optional_type",
	KindFunction:  "function",
}

// String returns the CEL type name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a CEL runtime value. The set of implementations is closed:
// Null, Bool, Int, UInt, Double, String, Bytes, List, *Map, Timestamp,
// Duration, Optional and Function.
//
// Values are immutable once constructed. Operators and functions build new
// values instead of modifying their operands.
type Value interface {
	Kind() Kind
}

// Null is the CEL null value.
type Null struct{}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// NullValue is the singleton value used for CEL null.
var NullValue = Null{}

type (
	Bool   bool
	Int    int64
	UInt   uint64
	Double float64
	String string
	Bytes  []byte
	List   []Value
)

// Boolean singletons.
const (
	True  = Bool(true)
	False = Bool(false)
)

// Timestamp is a point in time with nanosecond precision, always normalised to UTC.
type Timestamp struct {
	time.Time
}

// Duration is a signed span of time with nanosecond precision.
type Duration struct {
	time.Duration
}

// Valid timestamp range: 0001-01-01T00:00:00Z to 9999-12-31T23:59:59.999999999Z.
var (
	MinTimestamp = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxTimestamp = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)
)

// NewTimestamp wraps t, failing when it falls outside the supported range.
func NewTimestamp(t time.Time) (Timestamp, error) {
	t = t.UTC()
	if t.Before(MinTimestamp) || t.After(MaxTimestamp) {
		return Timestamp{}, Errorf(ErrTimestampRange, "timestamp %s out of range", t.Format(time.RFC3339Nano))
	}
	return Timestamp{Time: t}, nil
}

// Optional is a possibly-empty wrapper around another value.
type Optional struct {
	value Value
	ok    bool
}

// OptionalOf returns an optional holding v. A nil v is stored as NullValue.
func OptionalOf(v Value) Optional {
	if v == nil {
		v = NullValue
	}
	return Optional{value: v, ok: true}
}

// OptionalNone is the empty optional.
var OptionalNone = Optional{}

// HasValue reports whether the optional holds a value.
func (o Optional) HasValue() bool { return o.ok }

// Value returns the wrapped value and whether it is present.
func (o Optional) Value() (Value, bool) { return o.value, o.ok }

// Func is the signature shared by built-in and host-supplied callables.
type Func func(ctx context.Context, args ...Value) (Value, error)

// Function is a reference to a named callable.
type Function struct {
	Name string
	Call Func
}

func (Null) Kind() Kind      { return KindNull }
func (Bool) Kind() Kind      { return KindBool }
func (Int) Kind() Kind       { return KindInt }
func (UInt) Kind() Kind      { return KindUInt }
func (Double) Kind() Kind    { return KindDouble }
func (String) Kind() Kind    { return KindString }
func (Bytes) Kind() Kind     { return KindBytes }
func (List) Kind() Kind      { return KindList }
func (*Map) Kind() Kind      { return KindMap }
func (Timestamp) Kind() Kind { return KindTimestamp }
func (Duration) Kind() Kind  { return KindDuration }
func (Optional) Kind() Kind  { return KindOptional }
func (Function) Kind() Kind  { return KindFunction }

// KindOf returns the kind of v, treating nil as null.
func KindOf(v Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.Kind()
}

// TypeName returns the name reported by the type() function.
func TypeName(v Value) string {
	return KindOf(v).String()
}

// Truthy reports whether v counts as true under truthy logic: false, null,
// zero numbers, empty strings, bytes, lists and maps, the zero duration and
// empty optionals are falsy.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(x)
	case Int:
		return x != 0
	case UInt:
		return x != 0
	case Double:
		return x != 0 && !math.IsNaN(float64(x))
	case String:
		return x != ""
	case Bytes:
		return len(x) > 0
	case List:
		return len(x) > 0
	case *Map:
		return x.Len() > 0
	case Duration:
		return x.Duration != 0
	case Optional:
		return x.ok
	default:
		return true
	}
}

// Repr returns the CEL source-like representation of v.
func Repr(v Value) string {
	var sb strings.Builder
	writeRepr(&sb, v)
	return sb.String()
}

func writeRepr(sb *strings.Builder, v Value) {
	switch x := v.(type) {
	case nil, Null:
		sb.WriteString("null")
	case Bool:
		sb.WriteString(strconv.FormatBool(bool(x)))
	case Int:
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case UInt:
		sb.WriteString(strconv.FormatUint(uint64(x), 10))
		sb.WriteByte('u')
	case Double:
		sb.WriteString(FormatDouble(float64(x)))
	case String:
		sb.WriteString(strconv.Quote(string(x)))
	case Bytes:
		sb.WriteByte('b')
		sb.WriteString(quoteBytes(x))
	case List:
		sb.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeRepr(sb, e)
		}
		sb.WriteByte(']')
	case *Map:
		sb.WriteByte('{')
		i := 0
		x.Range(func(k, val Value) bool {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeRepr(sb, k)
			sb.WriteString(": ")
			writeRepr(sb, val)
			i++
			return true
		})
		sb.WriteByte('}')
	case Timestamp:
		sb.WriteString("timestamp(")
		sb.WriteString(strconv.Quote(x.UTC().Format(time.RFC3339Nano)))
		sb.WriteByte(')')
	case Duration:
		sb.WriteString("duration(")
		sb.WriteString(strconv.Quote(FormatDuration(x.Duration)))
		sb.WriteByte(')')
	case Optional:
		if !x.ok {
			sb.WriteString("optional.none()")
			return
		}
		sb.WriteString("optional.of(")
		writeRepr(sb, x.value)
		sb.WriteByte(')')
	case Function:
		sb.WriteString("function(")
		sb.WriteString(x.Name)
		sb.WriteByte(')')
	default:
		sb.WriteString("<unknown>")
	}
}

// FormatDouble renders f so that integral values keep a trailing ".0".
func FormatDouble(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+infinity"
	case math.IsInf(f, -1):
		return "-infinity"
	case math.IsNaN(f):
		return "NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// FormatDuration renders d in seconds with an "s" suffix, e.g. "90s" or "1.5s".
func FormatDuration(d time.Duration) string {
	secs := d / time.Second
	nanos := d % time.Second
	if nanos == 0 {
		return strconv.FormatInt(int64(secs), 10) + "s"
	}
	s := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	return s + "s"
}

func quoteBytes(b []byte) string {
	if utf8.Valid(b) {
		return strconv.Quote(string(b))
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range b {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			sb.WriteByte(c)
			continue
		}
		sb.WriteString(`\x`)
		sb.WriteString(strconv.FormatUint(uint64(c)>>4, 16))
		sb.WriteString(strconv.FormatUint(uint64(c)&0xf, 16))
	}
	sb.WriteByte('"')
	return sb.String()
}
