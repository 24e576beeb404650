package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleIDUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *uint
		wantErr bool
	}{
		{"number", `{"stageId": 7}`, uintPtr(7), false},
		{"numeric string", `{"stageId": "7"}`, uintPtr(7), false},
		{"padded string", `{"stageId": " 12 "}`, uintPtr(12), false},
		{"null", `{"stageId": null}`, nil, false},
		{"empty string", `{"stageId": ""}`, nil, false},
		{"absent", `{}`, nil, false},
		{"zero", `{"stageId": 0}`, nil, true},
		{"negative", `{"stageId": -3}`, nil, true},
		{"fraction", `{"stageId": 1.5}`, nil, true},
		{"word", `{"stageId": "abc"}`, nil, true},
		{"bool", `{"stageId": true}`, nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var p InboundPayload
			err := json.Unmarshal([]byte(tc.raw), &p)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.StageID.Value)
		})
	}
}

func TestFlexibleIDMarshal(t *testing.T) {
	raw, err := json.Marshal(FlexibleID{Value: uintPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, "5", string(raw))

	raw, err = json.Marshal(FlexibleID{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestInboundPayloadTimestampKeepsType(t *testing.T) {
	var p InboundPayload
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"2023-11-14T22:13:20Z"}`), &p))
	assert.Equal(t, "2023-11-14T22:13:20Z", p.Timestamp)

	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":1700000000}`), &p))
	assert.Equal(t, float64(1700000000), p.Timestamp)
}

func uintPtr(v uint) *uint {
	return &v
}
