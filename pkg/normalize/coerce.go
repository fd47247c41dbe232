package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

type Kind int

const (
	Text Kind = iota
	Int
	Float
	Time
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Int:
		return "int"
	case Float:
		return "float"
	case Time:
		return "time"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type Column struct {
	Name string
	Kind Kind
}

// Coerce converts v to the Go type backing k: string, int64, float64 or
// time.Time. Values that cannot be converted become nil. It never panics.
func Coerce(k Kind, v any) any {
	var (
		out any
		ok  bool
	)
	switch k {
	case Text:
		out, ok = toText(v)
	case Int:
		out, ok = toInt(v)
	case Float:
		out, ok = toFloat(v)
	case Time:
		out, ok = toTime(v)
	}
	if !ok {
		return nil
	}
	return out
}

func toText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case *string:
		if t == nil {
			return "", false
		}
		return *t, true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		if f, err := t.Float64(); err == nil {
			return toText(f)
		}
		return t.String(), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return toText(float64(t))
	case bool:
		return strconv.FormatBool(t), true
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), true
	case *time.Time:
		if t == nil {
			return "", false
		}
		return toText(*t)
	case fmt.Stringer:
		return t.String(), true
	}
	if i, ok := asInt64(v); ok {
		return strconv.FormatInt(i, 10), true
	}
	return fmt.Sprint(v), true
}

func toInt(v any) (int64, bool) {
	if i, ok := asInt64(v); ok {
		return i, true
	}
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		return toInt(string(t))
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return toInt(f)
		}
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t != math.Trunc(t) ||
			t < math.MinInt64 || t >= math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float32:
		return toInt(float64(t))
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case json.Number:
		var err error
		if f, err = t.Float64(); err != nil {
			return 0, false
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(t), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toTime accepts instants, RFC3339 and anything dateparse reads, and unix
// seconds.
func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return toTime(*t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.UTC(), true
		}
		ts, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return ts.UTC(), true
	}
	if f, ok := toFloat(v); ok {
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
	return time.Time{}, false
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), t <= math.MaxInt64
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), t <= math.MaxInt64
	case *int64:
		if t == nil {
			return 0, false
		}
		return *t, true
	}
	return 0, false
}
