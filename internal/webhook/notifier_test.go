package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"funnel-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func sampleMessage() (*models.Message, *models.Contact, *models.Account) {
	url, ftype, fname := "/files/1700000000000_abc.pdf", "application/pdf", "quote.pdf"
	name := "Ana"
	msg := &models.Message{
		ID:        42,
		ContactID: 3,
		Body:      "📎 Attached file: quote.pdf",
		Direction: models.DirectionOutbound,
		Timestamp: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
		FileURL:   &url,
		FileType:  &ftype,
		FileName:  &fname,
	}
	contact := &models.Contact{ID: 3, Phone: "+1555", Name: &name}
	acc := &models.Account{ID: 9, Email: "owner@example.com"}
	return msg, contact, acc
}

func TestNotifierBuild(t *testing.T) {
	n := NewNotifier("http://hooks.local/n8n", "https://crm.example.com/", time.Second, zaptest.NewLogger(t))
	msg, contact, acc := sampleMessage()

	payload := n.Build(msg, contact, acc)
	assert.EqualValues(t, 42, payload.MessageID)
	assert.Equal(t, "outbound", payload.Direction)
	assert.Equal(t, "+1555", payload.ContactPhone)
	assert.Equal(t, "Ana", *payload.ContactName)
	assert.EqualValues(t, 9, payload.UserID)
	assert.Equal(t, "owner@example.com", payload.UserEmail)
	assert.Equal(t, "https://crm.example.com/files/1700000000000_abc.pdf", payload.FileURL)
	assert.Equal(t, "quote.pdf", payload.FileName)

	t.Run("absolute urls are kept", func(t *testing.T) {
		abs := "https://cdn.example.com/x.png"
		msg.FileURL = &abs
		assert.Equal(t, abs, n.Build(msg, contact, acc).FileURL)
	})

	t.Run("no attachment omits file fields", func(t *testing.T) {
		msg.FileURL, msg.FileType, msg.FileName = nil, nil, nil
		raw, err := json.Marshal(n.Build(msg, contact, acc))
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "fileUrl")
		assert.NotContains(t, string(raw), "fileName")
	})
}

func TestNotifyAsyncPostsPayload(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		assert.NoError(t, json.Unmarshal(body, &payload))
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "http://localhost:8080", time.Second, zaptest.NewLogger(t))
	msg, contact, acc := sampleMessage()
	n.NotifyAsync(msg, contact, acc)
	n.Wait()

	select {
	case payload := <-received:
		assert.EqualValues(t, 42, payload["messageId"])
		assert.Equal(t, "outbound", payload["direction"])
		assert.Equal(t, "http://localhost:8080/files/1700000000000_abc.pdf", payload["fileUrl"])
	default:
		t.Fatal("webhook was not called")
	}
}

func TestNotifyAsyncSwallowsFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.DebugLevel)
	n := NewNotifier(srv.URL, "", time.Second, zap.New(core))
	msg, contact, acc := sampleMessage()
	n.NotifyAsync(msg, contact, acc)
	n.Wait()

	assert.EqualValues(t, 1, calls.Load(), "no retries")
	warnings := logs.FilterMessage("automation webhook notification failed").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zap.WarnLevel, warnings[0].Level)
}

func TestNotifyAsyncTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	core, logs := observer.New(zap.DebugLevel)
	n := NewNotifier(srv.URL, "", 50*time.Millisecond, zap.New(core))
	msg, contact, acc := sampleMessage()

	start := time.Now()
	n.NotifyAsync(msg, contact, acc)
	n.Wait()

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, logs.FilterMessage("automation webhook notification failed").Len())
}

func TestNotifierDisabled(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	n := NewNotifier("", "", time.Second, zap.New(core))
	assert.False(t, n.Enabled())

	msg, contact, acc := sampleMessage()
	n.NotifyAsync(msg, contact, acc)
	n.Wait()
	assert.Zero(t, logs.Len())
}
