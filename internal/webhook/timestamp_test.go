package webhook

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"funnel-crm/internal/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	nov2023 := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	tests := []struct {
		name string
		raw  any
		want time.Time
	}{
		{"missing", nil, now},
		{"zero", float64(0), now},
		{"empty string", "", now},
		{"epoch seconds", float64(1700000000), nov2023},
		{"epoch milliseconds", float64(1700000000000), nov2023},
		{"fractional seconds", 1700000000.25, nov2023.Add(250 * time.Millisecond)},
		{"json number seconds", json.Number("1700000000"), nov2023},
		{"json number millis", json.Number("1700000000000"), nov2023},
		{"int seconds", 1700000000, nov2023},
		{"just below cutoff is seconds", float64(EpochSecondsCutoff - 1), time.Unix(EpochSecondsCutoff-1, 0).UTC()},
		{"cutoff is milliseconds", float64(EpochSecondsCutoff), time.UnixMilli(EpochSecondsCutoff).UTC()},
		{"negative seconds", float64(-86400), time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"rfc3339 utc", "2023-11-14T22:13:20Z", nov2023},
		{"rfc3339 offset", "2023-11-14T17:13:20-05:00", nov2023},
		{"rfc3339 millis", "2023-11-14T22:13:20.000Z", nov2023},
		{"no zone", "2023-11-14T22:13:20", nov2023},
		{"date only", "2023-11-14", time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeTimestamp(tc.raw, now)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestNormalizeTimestamp_SecondsAndMillisAgree(t *testing.T) {
	now := time.Now()
	secs, err := NormalizeTimestamp(float64(1700000000), now)
	require.NoError(t, err)
	millis, err := NormalizeTimestamp(float64(1700000000000), now)
	require.NoError(t, err)

	assert.True(t, secs.Equal(millis))
	assert.Equal(t, 2023, secs.Year())
}

func TestNormalizeTimestamp_Invalid(t *testing.T) {
	now := time.Now()
	for _, raw := range []any{"yesterday", "1700000000", true, map[string]any{"at": 1}, json.Number("abc"),
		1e20, -1e20, json.Number("100000000000000000000"), math.Inf(1), math.NaN()} {
		_, err := NormalizeTimestamp(raw, now)
		assert.True(t, apperror.Is(err, apperror.KindValidation), "raw %v", raw)
	}
}
