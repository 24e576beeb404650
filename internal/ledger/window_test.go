package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name          string
		lastInbound   *time.Time
		wantOpen      bool
		wantRemaining time.Duration
	}{
		{"no inbound message", nil, false, 0},
		{"just received", at(0), true, WindowLength},
		{"one hour ago", at(-time.Hour), true, 23 * time.Hour},
		{"one second before expiry", at(-WindowLength + time.Second), true, time.Second},
		{"exactly 24h ago", at(-WindowLength), false, 0},
		{"two days ago", at(-48 * time.Hour), false, 0},
		{"future timestamp is clamped", at(3 * time.Hour), true, WindowLength},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := ComputeWindow(tc.lastInbound, now)
			assert.Equal(t, tc.wantOpen, w.IsOpen)
			assert.Equal(t, tc.wantRemaining, w.Remaining)
			if tc.lastInbound == nil {
				assert.Nil(t, w.LastInboundAt)
				assert.Nil(t, w.ExpiresAt)
				return
			}
			require.NotNil(t, w.ExpiresAt)
			assert.True(t, w.ExpiresAt.Equal(tc.lastInbound.Add(WindowLength)))
		})
	}
}

func TestWindowRemainingSeconds(t *testing.T) {
	w := Window{IsOpen: true, Remaining: 90*time.Second + 500*time.Millisecond}
	assert.EqualValues(t, 90, w.RemainingSeconds())
}
