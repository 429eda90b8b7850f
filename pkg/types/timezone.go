package types

import (
	"strconv"
	"strings"
	"time"
)

// ParseTimezone accepts an IANA zone name or a fixed offset such as
// "+05:30" or "-08:00".
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" {
		return nil, Errorf(ErrInvalidArgument, "empty timezone")
	}
	if tz[0] == '+' || tz[0] == '-' {
		hh, mm, ok := strings.Cut(tz[1:], ":")
		if ok {
			h, herr := strconv.Atoi(hh)
			m, merr := strconv.Atoi(mm)
			if herr == nil && merr == nil && h >= 0 && h <= 23 && m >= 0 && m <= 59 {
				offset := h*3600 + m*60
				if tz[0] == '-' {
					offset = -offset
				}
				return time.FixedZone(tz, offset), nil
			}
		}
		return nil, Errorf(ErrInvalidArgument, "invalid timezone offset %q", tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, Errorf(ErrInvalidArgument, "unknown timezone %q", tz).WithCause(err)
	}
	return loc, nil
}
