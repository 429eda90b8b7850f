package types

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"
)

// NativeToValue converts a host Go value into a CEL Value.
//
// Supported inputs: nil, bool, all integer and float kinds, string, []byte,
// time.Time, time.Duration, json.Number, slices and arrays, maps whose keys
// are strings, integers or bools, and values that already implement Value.
// Map keys of Go maps are sorted so the resulting entry order is stable.
func NativeToValue(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return NullValue, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(x), nil
	case int8:
		return Int(x), nil
	case int16:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint:
		return UInt(x), nil
	case uint8:
		return UInt(x), nil
	case uint16:
		return UInt(x), nil
	case uint32:
		return UInt(x), nil
	case uint64:
		return UInt(x), nil
	case float32:
		return Double(x), nil
	case float64:
		return Double(x), nil
	case string:
		return String(x), nil
	case []byte:
		return Bytes(x), nil
	case time.Time:
		return NewTimestamp(x)
	case time.Duration:
		return Duration{Duration: x}, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid json number %q: %w", x.String(), err)
		}
		return Double(f), nil
	case []any:
		out := make(List, len(x))
		for i, e := range x {
			ev, err := NativeToValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap(len(x))
		for _, k := range keys {
			ev, err := NativeToValue(x[k])
			if err != nil {
				return nil, err
			}
			if err := m.Insert(String(k), ev); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
	return reflectToValue(reflect.ValueOf(v))
}

func reflectToValue(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return NullValue, nil
		}
		return NativeToValue(rv.Elem().Interface())
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return UInt(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Double(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return Bytes(rv.Bytes()), nil
		}
		out := make(List, rv.Len())
		for i := range rv.Len() {
			ev, err := NativeToValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case reflect.Map:
		type entry struct {
			key Value
			val reflect.Value
		}
		entries := make([]entry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			kv, err := NativeToValue(iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry{key: kv, val: iter.Value()})
		}
		sort.Slice(entries, func(i, j int) bool {
			return lessKey(entries[i].key, entries[j].key)
		})
		m := NewMap(len(entries))
		for _, e := range entries {
			ev, err := NativeToValue(e.val.Interface())
			if err != nil {
				return nil, err
			}
			if err := m.Insert(e.key, ev); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
	if !rv.IsValid() {
		return NullValue, nil
	}
	return nil, fmt.Errorf("unsupported host value of type %s", rv.Type())
}

// lessKey orders map keys by kind first, then by value.
func lessKey(a, b Value) bool {
	ka, kb := KindOf(a), KindOf(b)
	if IsNumeric(a) && IsNumeric(b) {
		c, _ := Compare(a, b)
		return c < 0
	}
	if ka != kb {
		return ka < kb
	}
	c, _ := Compare(a, b)
	return c < 0
}

// ValueToNative converts a CEL Value into a plain Go value: nil, bool, int64,
// uint64, float64, string, []byte, time.Time, time.Duration, []any and
// map[string]any (or map[any]any when a key is not a string). Optionals
// convert to their wrapped value, or nil when empty. Functions are returned
// unchanged.
func ValueToNative(v Value) any {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(x)
	case Int:
		return int64(x)
	case UInt:
		return uint64(x)
	case Double:
		return float64(x)
	case String:
		return string(x)
	case Bytes:
		return []byte(x)
	case List:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ValueToNative(e)
		}
		return out
	case *Map:
		allStrings := true
		x.Range(func(k, _ Value) bool {
			_, allStrings = k.(String)
			return allStrings
		})
		if allStrings {
			out := make(map[string]any, x.Len())
			x.Range(func(k, val Value) bool {
				out[string(k.(String))] = ValueToNative(val)
				return true
			})
			return out
		}
		out := make(map[any]any, x.Len())
		x.Range(func(k, val Value) bool {
			out[ValueToNative(k)] = ValueToNative(val)
			return true
		})
		return out
	case Timestamp:
		return x.Time
	case Duration:
		return x.Duration
	case Optional:
		if !x.ok {
			return nil
		}
		return ValueToNative(x.value)
	default:
		return v
	}
}

// ToJSONCompatible converts v like ValueToNative but renders timestamps,
// durations and non-string map keys as strings so that the result can be
// passed to encoding/json.
func ToJSONCompatible(v Value) any {
	switch x := v.(type) {
	case List:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ToJSONCompatible(e)
		}
		return out
	case *Map:
		out := make(map[string]any, x.Len())
		x.Range(func(k, val Value) bool {
			key, isStr := k.(String)
			if isStr {
				out[string(key)] = ToJSONCompatible(val)
			} else {
				out[Repr(k)] = ToJSONCompatible(val)
			}
			return true
		})
		return out
	case Timestamp:
		return x.UTC().Format(time.RFC3339Nano)
	case Duration:
		return FormatDuration(x.Duration)
	case Optional:
		if !x.ok {
			return nil
		}
		return ToJSONCompatible(x.value)
	case Function:
		return x.Name
	default:
		return ValueToNative(v)
	}
}
