package timex

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ToEpoch converts t to seconds since the Unix epoch, keeping sub-second
// precision in the fractional part.
func ToEpoch(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// FromEpoch is the inverse of ToEpoch. The result is in UTC and rounded to the
// microsecond, which is what both storage backends keep.
func FromEpoch(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	nsec := int64(math.Round(frac*1e6)) * 1e3
	return time.Unix(int64(whole), nsec).UTC()
}

// layouts accepted by Parse, most specific first. The sqlite driver stores
// time.Time using the first two.
var layouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse reads a textual timestamp produced by a database driver or by the
// legacy wire format (ISO-8601).
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", s)
}

// TruncateDate drops the clock part of t, keeping the UTC calendar date.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
