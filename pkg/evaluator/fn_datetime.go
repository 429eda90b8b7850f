package evaluator

import (
	"context"
	"time"

	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

// timestampFields maps accessor names to the component they extract.
var timestampFields = map[string]func(t time.Time) int64{
	"getFullYear":     func(t time.Time) int64 { return int64(t.Year()) },
	"getMonth":        func(t time.Time) int64 { return int64(t.Month()) - 1 },
	"getDate":         func(t time.Time) int64 { return int64(t.Day()) },
	"getDayOfMonth":   func(t time.Time) int64 { return int64(t.Day()) - 1 },
	"getDayOfWeek":    func(t time.Time) int64 { return int64(t.Weekday()) },
	"getDayOfYear":    func(t time.Time) int64 { return int64(t.YearDay()) - 1 },
	"getHours":        func(t time.Time) int64 { return int64(t.Hour()) },
	"getMinutes":      func(t time.Time) int64 { return int64(t.Minute()) },
	"getSeconds":      func(t time.Time) int64 { return int64(t.Second()) },
	"getMilliseconds": func(t time.Time) int64 { return int64(t.Nanosecond() / int(time.Millisecond)) },
}

// durationFields return totals, not components.
var durationFields = map[string]func(d time.Duration) int64{
	"getHours":        func(d time.Duration) int64 { return int64(d / time.Hour) },
	"getMinutes":      func(d time.Duration) int64 { return int64(d / time.Minute) },
	"getSeconds":      func(d time.Duration) int64 { return int64(d / time.Second) },
	"getMilliseconds": func(d time.Duration) int64 { return int64(d / time.Millisecond) },
}

func datetimeOverloads() []functions.Overload {
	var ovs []functions.Overload
	for name, field := range timestampFields {
		fn := timestampAccessor(field)
		ovs = append(ovs,
			method(name, "timestamp_"+name, fn, types.KindTimestamp),
			method(name, "timestamp_"+name+"_tz", fn, types.KindTimestamp, types.KindString),
		)
	}
	for name, field := range durationFields {
		ovs = append(ovs, method(name, "duration_"+name, durationAccessor(field), types.KindDuration))
	}
	return ovs
}

func timestampAccessor(field func(time.Time) int64) functions.Func {
	return func(_ context.Context, args ...types.Value) (types.Value, error) {
		t := args[0].(types.Timestamp).Time
		if len(args) == 2 {
			loc, err := types.ParseTimezone(string(args[1].(types.String)))
			if err != nil {
				return nil, err
			}
			t = t.In(loc)
		}
		return types.Int(field(t)), nil
	}
}

func durationAccessor(field func(time.Duration) int64) functions.Func {
	return func(_ context.Context, args ...types.Value) (types.Value, error) {
		return types.Int(field(args[0].(types.Duration).Duration)), nil
	}
}
