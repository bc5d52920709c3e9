package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/osissync/internal/timex"
)

// Normalize converts a value read from storage or decoded from the wire into
// the canonical Go type of a scalar or temporal field: string, int64,
// float64, bool or time.Time (UTC). nil stays nil.
//
// Temporal fields accept time.Time, epoch seconds (any number) and textual
// timestamps. Date fields are truncated to the calendar date.
func Normalize(f Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch f.Type {
	case String:
		switch value := v.(type) {
		case string:
			return value, nil
		case json.Number:
			return value.String(), nil
		case time.Time:
			return value.UTC().Format(time.RFC3339Nano), nil
		default:
			return fmt.Sprint(value), nil
		}

	case Int:
		switch value := v.(type) {
		case int64:
			return value, nil
		case int:
			return int64(value), nil
		case int32:
			return int64(value), nil
		case float64:
			if value != math.Trunc(value) {
				return nil, fmt.Errorf("%s: %v is not an integer", f.Name, value)
			}
			return int64(value), nil
		case json.Number:
			return parseInt(f, value.String())
		case string:
			return parseInt(f, value)
		case bool:
			if value {
				return int64(1), nil
			}
			return int64(0), nil
		}

	case Float:
		switch value := v.(type) {
		case float64:
			return value, nil
		case float32:
			return float64(value), nil
		case int64:
			return float64(value), nil
		case int:
			return float64(value), nil
		case json.Number:
			return parseFloat(f, value.String())
		case string:
			return parseFloat(f, value)
		}

	case Bool:
		switch value := v.(type) {
		case bool:
			return value, nil
		case int64:
			return value != 0, nil
		case int:
			return value != 0, nil
		case float64:
			return value != 0, nil
		case json.Number:
			n, err := parseFloat(f, value.String())
			if err != nil {
				return nil, err
			}
			return n.(float64) != 0, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			return b, nil
		}

	case DateTime, Date:
		t, err := toTime(f, v)
		if err != nil {
			return nil, err
		}
		if f.Type == Date {
			t = timex.TruncateDate(t)
		}
		return t, nil
	}

	return nil, fmt.Errorf("%s: cannot use %T as %s", f.Name, v, f.Type)
}

func toTime(f Field, v any) (time.Time, error) {
	switch value := v.(type) {
	case time.Time:
		return value.UTC(), nil
	case *time.Time:
		if value == nil {
			return time.Time{}, fmt.Errorf("%s: nil time", f.Name)
		}
		return value.UTC(), nil
	case float64:
		return timex.FromEpoch(value), nil
	case int64:
		return timex.FromEpoch(float64(value)), nil
	case int:
		return timex.FromEpoch(float64(value)), nil
	case json.Number:
		sec, err := value.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", f.Name, err)
		}
		return timex.FromEpoch(sec), nil
	case string:
		t, err := timex.Parse(value)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", f.Name, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%s: cannot use %T as %s", f.Name, v, f.Type)
}

func parseInt(f Field, s string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return n, nil
}

func parseFloat(f Field, s string) (any, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return n, nil
}
