package ledger

import (
	"context"
	"testing"
	"time"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/database/dbtest"
	"funnel-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func seed(t *testing.T, db *gorm.DB) (owner, stranger models.Account, contact models.Contact) {
	t.Helper()
	owner = models.Account{Email: "owner@example.com", PasswordHash: "x", APIKey: "key_owner"}
	stranger = models.Account{Email: "stranger@example.com", PasswordHash: "x", APIKey: "key_stranger"}
	require.NoError(t, db.Create(&owner).Error)
	require.NoError(t, db.Create(&stranger).Error)

	contact = models.Contact{AccountID: owner.ID, Phone: "+1555"}
	require.NoError(t, db.Create(&contact).Error)
	return owner, stranger, contact
}

func TestAppend(t *testing.T) {
	db := dbtest.New(t)
	l := New(db).WithClock(fixedClock(base))
	ctx := context.Background()
	_, _, contact := seed(t, db)

	t.Run("defaults status and timestamp", func(t *testing.T) {
		msg, err := l.Append(ctx, AppendInput{ContactID: contact.ID, Body: "hi", Direction: models.DirectionInbound})
		require.NoError(t, err)
		assert.NotZero(t, msg.ID)
		assert.Equal(t, models.StatusReceived, msg.Status)
		assert.True(t, msg.Timestamp.Equal(base))

		out, err := l.Append(ctx, AppendInput{ContactID: contact.ID, Body: "hello", Direction: models.DirectionOutbound})
		require.NoError(t, err)
		assert.Equal(t, models.StatusSent, out.Status)
	})

	t.Run("keeps explicit status and timestamp", func(t *testing.T) {
		ts := base.Add(-time.Hour)
		msg, err := l.Append(ctx, AppendInput{
			ContactID: contact.ID, Body: "queued", Direction: models.DirectionOutbound,
			Status: "pending", Timestamp: ts,
		})
		require.NoError(t, err)
		assert.Equal(t, "pending", msg.Status)
		assert.True(t, msg.Timestamp.Equal(ts))
	})

	t.Run("stores attachment metadata", func(t *testing.T) {
		msg, err := l.Append(ctx, AppendInput{
			ContactID: contact.ID, Body: "📎 Attached file: a.pdf", Direction: models.DirectionOutbound,
			Attachment: &Attachment{URL: "/files/1_a.pdf", Type: "application/pdf", Name: "a.pdf"},
		})
		require.NoError(t, err)
		require.NotNil(t, msg.FileURL)
		assert.Equal(t, "/files/1_a.pdf", *msg.FileURL)
		require.NotNil(t, msg.FileName)
		assert.Equal(t, "a.pdf", *msg.FileName)
	})

	t.Run("rejects empty body", func(t *testing.T) {
		_, err := l.Append(ctx, AppendInput{ContactID: contact.ID, Body: "  ", Direction: models.DirectionInbound})
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	})

	t.Run("rejects unknown direction", func(t *testing.T) {
		_, err := l.Append(ctx, AppendInput{ContactID: contact.ID, Body: "x", Direction: "sideways"})
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	})
}

func TestListOrdersByTimestamp(t *testing.T) {
	db := dbtest.New(t)
	l := New(db)
	ctx := context.Background()
	owner, stranger, contact := seed(t, db)

	t1, t2, t3 := base, base.Add(time.Minute), base.Add(2*time.Minute)
	for _, m := range []struct {
		body string
		ts   time.Time
	}{{"third", t3}, {"first", t1}, {"second", t2}} {
		_, err := l.Append(ctx, AppendInput{ContactID: contact.ID, Body: m.body, Direction: models.DirectionInbound, Timestamp: m.ts})
		require.NoError(t, err)
	}

	messages, err := l.List(ctx, contact.ID, owner.ID, false)
	require.NoError(t, err)
	bodies := make([]string, 0, len(messages))
	for _, m := range messages {
		bodies = append(bodies, m.Body)
	}
	assert.Equal(t, []string{"first", "second", "third"}, bodies)

	t.Run("stranger is forbidden", func(t *testing.T) {
		_, err := l.List(ctx, contact.ID, stranger.ID, false)
		assert.True(t, apperror.Is(err, apperror.KindForbidden))
	})

	t.Run("admin override reads", func(t *testing.T) {
		messages, err := l.List(ctx, contact.ID, stranger.ID, true)
		require.NoError(t, err)
		assert.Len(t, messages, 3)
	})

	t.Run("missing contact", func(t *testing.T) {
		_, err := l.List(ctx, 9999, owner.ID, true)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})
}

func TestClear(t *testing.T) {
	db := dbtest.New(t)
	l := New(db)
	ctx := context.Background()
	owner, stranger, contact := seed(t, db)

	for _, body := range []string{"a", "b"} {
		_, err := l.Append(ctx, AppendInput{ContactID: contact.ID, Body: body, Direction: models.DirectionOutbound})
		require.NoError(t, err)
	}

	_, err := l.Clear(ctx, contact.ID, stranger.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	deleted, err := l.Clear(ctx, contact.ID, owner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	messages, err := l.List(ctx, contact.ID, owner.ID, false)
	require.NoError(t, err)
	assert.Empty(t, messages)

	var count int64
	require.NoError(t, db.Model(&models.Contact{}).Where("id = ?", contact.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestResponseWindow(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	_, _, contact := seed(t, db)
	l := New(db).WithClock(fixedClock(base))

	w, err := l.ResponseWindow(ctx, contact.ID)
	require.NoError(t, err)
	assert.False(t, w.IsOpen)
	assert.Zero(t, w.Remaining)

	t.Run("outbound messages do not open it", func(t *testing.T) {
		_, err := l.Append(ctx, AppendInput{ContactID: contact.ID, Body: "ping", Direction: models.DirectionOutbound})
		require.NoError(t, err)
		w, err := l.ResponseWindow(ctx, contact.ID)
		require.NoError(t, err)
		assert.False(t, w.IsOpen)
	})

	t.Run("stale inbound keeps it closed", func(t *testing.T) {
		_, err := l.Append(ctx, AppendInput{
			ContactID: contact.ID, Body: "old", Direction: models.DirectionInbound,
			Timestamp: base.Add(-25 * time.Hour),
		})
		require.NoError(t, err)
		w, err := l.ResponseWindow(ctx, contact.ID)
		require.NoError(t, err)
		assert.False(t, w.IsOpen)
		assert.Zero(t, w.Remaining)
	})

	t.Run("fresh inbound opens it", func(t *testing.T) {
		_, err := l.Append(ctx, AppendInput{ContactID: contact.ID, Body: "hi", Direction: models.DirectionInbound})
		require.NoError(t, err)
		w, err := l.ResponseWindow(ctx, contact.ID)
		require.NoError(t, err)
		assert.True(t, w.IsOpen)
		assert.Greater(t, w.Remaining, time.Duration(0))
		assert.LessOrEqual(t, w.Remaining, WindowLength)
	})

	t.Run("closes by clock alone", func(t *testing.T) {
		later := l.WithClock(fixedClock(base.Add(WindowLength)))
		w, err := later.ResponseWindow(ctx, contact.ID)
		require.NoError(t, err)
		assert.False(t, w.IsOpen)
	})
}

func TestLatest(t *testing.T) {
	db := dbtest.New(t)
	l := New(db)
	ctx := context.Background()
	_, _, contact := seed(t, db)

	msg, err := l.Latest(ctx, contact.ID)
	require.NoError(t, err)
	assert.Nil(t, msg)

	_, err = l.Append(ctx, AppendInput{ContactID: contact.ID, Body: "newest", Direction: models.DirectionInbound, Timestamp: base})
	require.NoError(t, err)
	_, err = l.Append(ctx, AppendInput{ContactID: contact.ID, Body: "backfilled", Direction: models.DirectionInbound, Timestamp: base.Add(-time.Hour)})
	require.NoError(t, err)

	msg, err = l.Latest(ctx, contact.ID)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "newest", msg.Body)
}
