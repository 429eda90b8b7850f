// Package extdatetime provides extended timestamp functions beyond the CEL
// standard library: calendar arithmetic, truncation, formatting and parsing.
//
// Functions that take an optional timezone accept an IANA zone name or a
// fixed offset such as "+02:00"; without one they work in UTC. Results are
// always range-checked timestamps.
package extdatetime

import (
	"context"
	"strings"
	"time"

	"github.com/sandrolain/gocel/pkg/ext/extutil"
	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

const (
	ts = types.KindTimestamp
	s  = types.KindString
	i  = types.KindInt
)

// layouts maps the named layouts accepted by format() and time.parse().
// Any other layout string is a Go reference-time layout.
var layouts = map[string]string{
	"RFC3339":     time.RFC3339,
	"RFC3339Nano": time.RFC3339Nano,
	"RFC1123":     time.RFC1123,
	"RFC1123Z":    time.RFC1123Z,
	"RFC822":      time.RFC822,
	"RFC850":      time.RFC850,
	"Kitchen":     time.Kitchen,
	"DateTime":    time.DateTime,
	"DateOnly":    time.DateOnly,
	"TimeOnly":    time.TimeOnly,
}

func layoutFor(name string) string {
	if l, ok := layouts[name]; ok {
		return l
	}
	return name
}

// All returns all extended timestamp overloads.
func All() []functions.Overload {
	return extutil.Concat(
		DateAdd(),
		DateDiff(),
		Components(),
		StartOf(),
		EndOf(),
		Format(),
		Parse(),
	)
}

func timeOf(v types.Value) time.Time {
	return v.(types.Timestamp).Time
}

// inZone returns args[0] in the zone named by args[at], if present.
func inZone(args []types.Value, at int) (time.Time, error) {
	t := timeOf(args[0])
	if len(args) <= at {
		return t, nil
	}
	loc, err := types.ParseTimezone(extutil.Str(args[at]))
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// DateAdd returns the overload for ts.dateAdd(amount, unit). Calendar units
// (year, month, week, day) follow time.AddDate normalisation; clock units
// (hour, minute, second, millisecond) add a fixed duration.
func DateAdd() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		t, n, unit := timeOf(args[0]), extutil.Int(args[1]), strings.ToLower(extutil.Str(args[2]))
		var out time.Time
		switch unit {
		case "year":
			out = t.AddDate(int(n), 0, 0)
		case "month":
			out = t.AddDate(0, int(n), 0)
		case "week":
			out = t.AddDate(0, 0, int(n)*7)
		case "day":
			out = t.AddDate(0, 0, int(n))
		default:
			step, ok := clockUnits[unit]
			if !ok {
				return nil, extutil.Errorf("dateAdd", "unsupported unit %q", unit)
			}
			if n > int64(maxSpan/step) || n < -int64(maxSpan/step) {
				return nil, types.Errorf(types.ErrTimestampRange, "dateAdd: %d %s out of range", n, unit)
			}
			out = t.Add(time.Duration(n) * step)
		}
		return types.NewTimestamp(out)
	}
	return []functions.Overload{extutil.Method("dateAdd", "timestamp_date_add", fn, ts, i, s)}
}

// maxSpan is the widest offset between two valid timestamps that a
// time.Duration can hold.
const maxSpan = time.Duration(1<<63 - 1)

var clockUnits = map[string]time.Duration{
	"hour":        time.Hour,
	"minute":      time.Minute,
	"second":      time.Second,
	"millisecond": time.Millisecond,
}

// DateDiff returns the overload for from.dateDiff(to, unit): the number of
// whole units from from to to, truncated toward zero.
func DateDiff() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		from, to, unit := timeOf(args[0]), timeOf(args[1]), strings.ToLower(extutil.Str(args[2]))
		switch unit {
		case "year":
			return types.Int(monthsBetween(from, to) / 12), nil
		case "month":
			return types.Int(monthsBetween(from, to)), nil
		case "week":
			return types.Int(daysBetween(from, to) / 7), nil
		case "day":
			return types.Int(daysBetween(from, to)), nil
		}
		step, ok := clockUnits[unit]
		if !ok {
			return nil, extutil.Errorf("dateDiff", "unsupported unit %q", unit)
		}
		secs := to.Unix() - from.Unix()
		nanos := int64(to.Nanosecond() - from.Nanosecond())
		if step >= time.Second {
			per := int64(step / time.Second)
			if secs > 0 && nanos < 0 {
				secs--
			} else if secs < 0 && nanos > 0 {
				secs++
			}
			return types.Int(secs / per), nil
		}
		return types.Int(secs*1000 + nanos/int64(time.Millisecond)), nil
	}
	return []functions.Overload{extutil.Method("dateDiff", "timestamp_date_diff", fn, ts, ts, s)}
}

// daysBetween counts whole 24h days, which is exact in UTC.
func daysBetween(from, to time.Time) int64 {
	secs := to.Unix() - from.Unix()
	nanos := to.Nanosecond() - from.Nanosecond()
	if secs > 0 && nanos < 0 {
		secs--
	} else if secs < 0 && nanos > 0 {
		secs++
	}
	return secs / 86400
}

// monthsBetween counts whole calendar months.
func monthsBetween(from, to time.Time) int64 {
	y1, m1, _ := from.Date()
	y2, m2, _ := to.Date()
	months := int64(y2-y1)*12 + int64(m2-m1)
	switch {
	case months > 0 && from.AddDate(0, int(months), 0).After(to):
		months--
	case months < 0 && from.AddDate(0, int(months), 0).Before(to):
		months++
	}
	return months
}

// Components returns the overloads for ts.components([tz]): a map with the
// year, month (1-12), day, hour, minute, second, millisecond and weekday
// (0 = Sunday) of the timestamp.
func Components() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		t, err := inZone(args, 1)
		if err != nil {
			return nil, err
		}
		out := types.NewMap(8)
		for _, f := range []struct {
			name string
			v    int
		}{
			{"year", t.Year()},
			{"month", int(t.Month())},
			{"day", t.Day()},
			{"hour", t.Hour()},
			{"minute", t.Minute()},
			{"second", t.Second()},
			{"millisecond", t.Nanosecond() / int(time.Millisecond)},
			{"weekday", int(t.Weekday())},
		} {
			_ = out.Insert(types.String(f.name), types.Int(f.v))
		}
		return out, nil
	}
	return []functions.Overload{
		extutil.Method("components", "timestamp_components", fn, ts),
		extutil.Method("components", "timestamp_components_tz", fn, ts, s),
	}
}

// truncate returns the start of the unit containing t, in t's location.
// Weeks start on Monday.
func truncate(t time.Time, unit string) (time.Time, bool) {
	y, mo, d := t.Date()
	h, mi, sec := t.Clock()
	loc := t.Location()
	switch unit {
	case "year":
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc), true
	case "month":
		return time.Date(y, mo, 1, 0, 0, 0, 0, loc), true
	case "week":
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, mo, d-offset, 0, 0, 0, 0, loc), true
	case "day":
		return time.Date(y, mo, d, 0, 0, 0, 0, loc), true
	case "hour":
		return time.Date(y, mo, d, h, 0, 0, 0, loc), true
	case "minute":
		return time.Date(y, mo, d, h, mi, 0, 0, loc), true
	case "second":
		return time.Date(y, mo, d, h, mi, sec, 0, loc), true
	}
	return time.Time{}, false
}

// next returns the start of the unit following start.
func next(start time.Time, unit string) time.Time {
	switch unit {
	case "year":
		return start.AddDate(1, 0, 0)
	case "month":
		return start.AddDate(0, 1, 0)
	case "week":
		return start.AddDate(0, 0, 7)
	case "day":
		return start.AddDate(0, 0, 1)
	case "hour":
		return start.Add(time.Hour)
	case "minute":
		return start.Add(time.Minute)
	}
	return start.Add(time.Second)
}

// StartOf returns the overloads for ts.startOf(unit [, tz]).
func StartOf() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		t, err := inZone(args, 2)
		if err != nil {
			return nil, err
		}
		start, ok := truncate(t, strings.ToLower(extutil.Str(args[1])))
		if !ok {
			return nil, extutil.Errorf("startOf", "unsupported unit %q", extutil.Str(args[1]))
		}
		return types.NewTimestamp(start)
	}
	return []functions.Overload{
		extutil.Method("startOf", "timestamp_start_of", fn, ts, s),
		extutil.Method("startOf", "timestamp_start_of_tz", fn, ts, s, s),
	}
}

// EndOf returns the overloads for ts.endOf(unit [, tz]), the last
// nanosecond of the unit.
func EndOf() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		t, err := inZone(args, 2)
		if err != nil {
			return nil, err
		}
		unit := strings.ToLower(extutil.Str(args[1]))
		start, ok := truncate(t, unit)
		if !ok {
			return nil, extutil.Errorf("endOf", "unsupported unit %q", extutil.Str(args[1]))
		}
		return types.NewTimestamp(next(start, unit).Add(-time.Nanosecond))
	}
	return []functions.Overload{
		extutil.Method("endOf", "timestamp_end_of", fn, ts, s),
		extutil.Method("endOf", "timestamp_end_of_tz", fn, ts, s, s),
	}
}

// Format returns the overloads for ts.format(layout [, tz]). layout is a
// named layout such as "RFC1123" or a Go reference-time layout.
func Format() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		t, err := inZone(args, 2)
		if err != nil {
			return nil, err
		}
		return types.String(t.Format(layoutFor(extutil.Str(args[1])))), nil
	}
	return []functions.Overload{
		extutil.Method("format", "timestamp_format", fn, ts, s),
		extutil.Method("format", "timestamp_format_tz", fn, ts, s, s),
	}
}

// Parse returns the overloads for time.parse(value, layout [, tz]). Values
// without an offset are read in tz, or UTC.
func Parse() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		loc := time.UTC
		if len(args) == 3 {
			var err error
			if loc, err = types.ParseTimezone(extutil.Str(args[2])); err != nil {
				return nil, err
			}
		}
		t, err := time.ParseInLocation(layoutFor(extutil.Str(args[1])), extutil.Str(args[0]), loc)
		if err != nil {
			return nil, types.Errorf(types.ErrConversion, "time.parse: %v", err).WithCause(err)
		}
		return types.NewTimestamp(t)
	}
	return []functions.Overload{
		extutil.Global("time.parse", "time_parse", fn, s, s),
		extutil.Global("time.parse", "time_parse_tz", fn, s, s, s),
	}
}
