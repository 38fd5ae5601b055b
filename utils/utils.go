package utils

import (
	"strconv"
	"strings"
	"time"
)

// MillisToUTC converts a millisecond epoch timestamp to UTC time.
func MillisToUTC(timestampMs int64) time.Time {
	return time.UnixMilli(timestampMs).UTC()
}

// ParseExchangeTimestamp parses an exchange-reported "seconds.micros"
// timestamp string, e.g. "1710498600.123456". Returns the zero time when
// the value is not parseable.
func ParseExchangeTimestamp(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2)
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}

	var nanos int64
	if len(parts) == 2 && parts[1] != "" {
		frac := parts[1]
		if len(frac) > 9 {
			frac = frac[:9]
		}
		for len(frac) < 9 {
			frac += "0"
		}
		if n, err := strconv.ParseInt(frac, 10, 64); err == nil {
			nanos = n
		}
	}

	return time.Unix(secs, nanos).UTC()
}
