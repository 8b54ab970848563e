package subtitle

import (
	"strconv"
	"strings"

	"github.com/zsiec/playcore/internal/errors"
)

// ParseTimestamp parses "HH:MM:SS,mmm" or "HH:MM:SS.mmm" into milliseconds.
// Exactly three colon-separated components are required. Components are not
// range checked, so "00:90:00,000" is 90 minutes. The digits after the
// delimiter are a millisecond count, not a decimal fraction: "01,5" is
// 1005 ms and "01,500" is 1500 ms.
func ParseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, errors.NewSubtitleError("invalid timestamp %q: want HH:MM:SS,mmm", s)
	}

	hours, ok := parseDigits(parts[0])
	if !ok {
		return 0, errors.NewSubtitleError("invalid hours in timestamp %q", s)
	}
	minutes, ok := parseDigits(parts[1])
	if !ok {
		return 0, errors.NewSubtitleError("invalid minutes in timestamp %q", s)
	}

	secPart, frac, hasFrac := strings.Cut(strings.ReplaceAll(parts[2], ",", "."), ".")
	seconds, ok := parseDigits(secPart)
	if !ok {
		return 0, errors.NewSubtitleError("invalid seconds in timestamp %q", s)
	}

	var millis int64
	if hasFrac {
		if millis, ok = parseDigits(frac); !ok {
			return 0, errors.NewSubtitleError("invalid milliseconds in timestamp %q", s)
		}
	}

	return hours*3_600_000 + minutes*60_000 + seconds*1000 + millis, nil
}

// FormatTimestamp renders ms as "HH:MM:SS.mmm".
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	sec := ms / 1000 % 60
	return pad(h, 2) + ":" + pad(m, 2) + ":" + pad(sec, 2) + "." + pad(ms%1000, 3)
}

func pad(v int64, width int) string {
	s := strconv.FormatInt(v, 10)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func parseDigits(s string) (int64, bool) {
	if s == "" || len(s) > 12 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}
