package evaluator

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

func conversionOverloads() []functions.Overload {
	return []functions.Overload{
		global("int", "int_int", fnInt, types.KindInt),
		global("int", "uint_to_int", fnInt, types.KindUInt),
		global("int", "double_to_int", fnInt, types.KindDouble),
		global("int", "string_to_int", fnInt, types.KindString),
		global("int", "timestamp_to_int", fnInt, types.KindTimestamp),

		global("uint", "uint_uint", fnUint, types.KindUInt),
		global("uint", "int_to_uint", fnUint, types.KindInt),
		global("uint", "double_to_uint", fnUint, types.KindDouble),
		global("uint", "string_to_uint", fnUint, types.KindString),

		global("double", "double_double", fnDouble, types.KindDouble),
		global("double", "int_to_double", fnDouble, types.KindInt),
		global("double", "uint_to_double", fnDouble, types.KindUInt),
		global("double", "string_to_double", fnDouble, types.KindString),

		global("string", "string_string", fnString, types.KindString),
		global("string", "int_to_string", fnString, types.KindInt),
		global("string", "uint_to_string", fnString, types.KindUInt),
		global("string", "double_to_string", fnString, types.KindDouble),
		global("string", "bool_to_string", fnString, types.KindBool),
		global("string", "bytes_to_string", fnString, types.KindBytes),
		global("string", "timestamp_to_string", fnString, types.KindTimestamp),
		global("string", "duration_to_string", fnString, types.KindDuration),

		global("bytes", "bytes_bytes", fnBytes, types.KindBytes),
		global("bytes", "string_to_bytes", fnBytes, types.KindString),

		global("bool", "bool_bool", fnBool, types.KindBool),
		global("bool", "string_to_bool", fnBool, types.KindString),

		global("dyn", "to_dyn", fnDyn, types.KindDyn),
		global("type", "type", fnType, types.KindDyn),

		global("timestamp", "timestamp_timestamp", fnTimestamp, types.KindTimestamp),
		global("timestamp", "string_to_timestamp", fnTimestamp, types.KindString),
		global("timestamp", "int_to_timestamp", fnTimestamp, types.KindInt),

		global("duration", "duration_duration", fnDuration, types.KindDuration),
		global("duration", "string_to_duration", fnDuration, types.KindString),
	}
}

func conversionError(target string, v types.Value, format string, args ...any) error {
	return types.Errorf(types.ErrConversion, "cannot convert %s to %s: "+format,
		append([]any{types.TypeName(v), target}, args...)...)
}

func fnInt(_ context.Context, args ...types.Value) (types.Value, error) {
	switch x := args[0].(type) {
	case types.Int:
		return x, nil
	case types.UInt:
		if x > math.MaxInt64 {
			return nil, conversionError("int", x, "value %d out of range", uint64(x))
		}
		return types.Int(x), nil
	case types.Double:
		f := float64(x)
		if math.IsNaN(f) || f < -(1<<63) || f >= 1<<63 {
			return nil, conversionError("int", x, "value %s out of range", types.FormatDouble(f))
		}
		return types.Int(int64(f)), nil
	case types.String:
		i, err := strconv.ParseInt(string(x), 10, 64)
		if err != nil {
			return nil, conversionError("int", x, "invalid integer %q", string(x))
		}
		return types.Int(i), nil
	case types.Timestamp:
		return types.Int(x.Unix()), nil
	}
	return nil, conversionError("int", args[0], "unsupported type")
}

func fnUint(_ context.Context, args ...types.Value) (types.Value, error) {
	switch x := args[0].(type) {
	case types.UInt:
		return x, nil
	case types.Int:
		if x < 0 {
			return nil, conversionError("uint", x, "value %d out of range", int64(x))
		}
		return types.UInt(x), nil
	case types.Double:
		f := float64(x)
		if math.IsNaN(f) || f <= -1 || f >= 1<<64 {
			return nil, conversionError("uint", x, "value %s out of range", types.FormatDouble(f))
		}
		return types.UInt(uint64(f)), nil
	case types.String:
		u, err := strconv.ParseUint(string(x), 10, 64)
		if err != nil {
			return nil, conversionError("uint", x, "invalid unsigned integer %q", string(x))
		}
		return types.UInt(u), nil
	}
	return nil, conversionError("uint", args[0], "unsupported type")
}

func fnDouble(_ context.Context, args ...types.Value) (types.Value, error) {
	switch x := args[0].(type) {
	case types.Double:
		return x, nil
	case types.Int:
		return types.Double(x), nil
	case types.UInt:
		return types.Double(x), nil
	case types.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		// out of range values parse as ±Inf
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, conversionError("double", x, "invalid number %q", string(x))
		}
		return types.Double(f), nil
	}
	return nil, conversionError("double", args[0], "unsupported type")
}

func fnString(_ context.Context, args ...types.Value) (types.Value, error) {
	switch x := args[0].(type) {
	case types.String:
		return x, nil
	case types.Int:
		return types.String(strconv.FormatInt(int64(x), 10)), nil
	case types.UInt:
		return types.String(strconv.FormatUint(uint64(x), 10)), nil
	case types.Double:
		return types.String(types.FormatDouble(float64(x))), nil
	case types.Bool:
		return types.String(strconv.FormatBool(bool(x))), nil
	case types.Bytes:
		if !utf8.Valid(x) {
			return nil, conversionError("string", x, "invalid UTF-8")
		}
		return types.String(x), nil
	case types.Timestamp:
		return types.String(x.Format(time.RFC3339Nano)), nil
	case types.Duration:
		return types.String(types.FormatDuration(x.Duration)), nil
	}
	return nil, conversionError("string", args[0], "unsupported type")
}

func fnBytes(_ context.Context, args ...types.Value) (types.Value, error) {
	switch x := args[0].(type) {
	case types.Bytes:
		return x, nil
	case types.String:
		return types.Bytes(x), nil
	}
	return nil, conversionError("bytes", args[0], "unsupported type")
}

func fnBool(_ context.Context, args ...types.Value) (types.Value, error) {
	switch x := args[0].(type) {
	case types.Bool:
		return x, nil
	case types.String:
		b, err := strconv.ParseBool(string(x))
		if err != nil {
			return nil, conversionError("bool", x, "invalid boolean %q", string(x))
		}
		return types.Bool(b), nil
	}
	return nil, conversionError("bool", args[0], "unsupported type")
}

func fnDyn(_ context.Context, args ...types.Value) (types.Value, error) {
	return args[0], nil
}

// fnType returns the type name of its argument.
func fnType(_ context.Context, args ...types.Value) (types.Value, error) {
	return types.String(types.TypeName(args[0])), nil
}

func fnTimestamp(_ context.Context, args ...types.Value) (types.Value, error) {
	switch x := args[0].(type) {
	case types.Timestamp:
		return x, nil
	case types.String:
		t, err := time.Parse(time.RFC3339Nano, string(x))
		if err != nil {
			return nil, conversionError("timestamp", x, "invalid RFC 3339 timestamp %q", string(x))
		}
		return types.NewTimestamp(t)
	case types.Int:
		if int64(x) < types.MinTimestamp.Unix() || int64(x) > types.MaxTimestamp.Unix() {
			return nil, types.Errorf(types.ErrTimestampRange, "timestamp %d out of range", int64(x))
		}
		return types.NewTimestamp(time.Unix(int64(x), 0))
	}
	return nil, conversionError("timestamp", args[0], "unsupported type")
}

// fnDuration parses durations such as "1h30m", "-1.5s" or "250ms".
func fnDuration(_ context.Context, args ...types.Value) (types.Value, error) {
	switch x := args[0].(type) {
	case types.Duration:
		return x, nil
	case types.String:
		d, err := time.ParseDuration(string(x))
		if err != nil {
			return nil, conversionError("duration", x, "invalid duration %q", string(x))
		}
		return types.Duration{Duration: d}, nil
	}
	return nil, conversionError("duration", args[0], "unsupported type")
}
