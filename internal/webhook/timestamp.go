package webhook

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"funnel-crm/internal/apperror"
)

// EpochSecondsCutoff separates epoch seconds from epoch milliseconds. Values
// below it in magnitude are seconds. The cutoff is kept for compatibility
// with existing senders even though it misreads seconds past year 2286.
const EpochSecondsCutoff = 10_000_000_000

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// NormalizeTimestamp converts a webhook timestamp into UTC. Numbers are epoch
// seconds or milliseconds (see EpochSecondsCutoff), strings are ISO-8601.
// Missing, zero and empty values fall back to now.
func NormalizeTimestamp(raw any, now time.Time) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return now.UTC(), nil
	case float64:
		return fromEpoch(v, now)
	case float32:
		return fromEpoch(float64(v), now)
	case int:
		return fromEpoch(float64(v), now)
	case int64:
		return fromEpoch(float64(v), now)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, apperror.Validation("invalid timestamp %q", v.String())
		}
		return fromEpoch(f, now)
	case string:
		return fromISO(v, now)
	default:
		return time.Time{}, apperror.Validation("invalid timestamp type %T", raw)
	}
}

func fromEpoch(v float64, now time.Time) (time.Time, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, apperror.Validation("invalid timestamp")
	}
	if v == 0 {
		return now.UTC(), nil
	}
	// Milliseconds must fit in an int64.
	if math.Abs(v) >= math.MaxInt64 {
		return time.Time{}, apperror.Validation("timestamp %g out of range", v)
	}
	if math.Abs(v) < EpochSecondsCutoff {
		return time.UnixMilli(int64(math.Round(v * 1000))).UTC(), nil
	}
	return time.UnixMilli(int64(v)).UTC(), nil
}

func fromISO(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.UTC(), nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperror.Validation("invalid timestamp %q: expected ISO-8601", s)
}
