package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return mr, rdb
}

func TestGetOrSetJSONLoadsOnce(t *testing.T) {
	t.Parallel()

	_, rdb := newTestClient(t)
	cache := NewCache(rdb)
	ctx := context.Background()

	var calls atomic.Int32
	loader := func(context.Context) (domain.EventType, error) {
		calls.Add(1)
		return domain.EventType{ID: 7, Slug: "intro", LengthMinutes: 30}, nil
	}

	for i := 0; i < 3; i++ {
		et, err := GetOrSetJSON(ctx, cache, KeyEventType(7), time.Minute, loader)
		require.NoError(t, err)
		assert.Equal(t, "intro", et.Slug)
	}
	assert.EqualValues(t, 1, calls.Load())

	require.NoError(t, cache.InvalidateEventType(ctx, 7))
	_, err := GetOrSetJSON(ctx, cache, KeyEventType(7), time.Minute, loader)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestIdempotencyClaim(t *testing.T) {
	t.Parallel()

	_, rdb := newTestClient(t)
	idem := NewIdempotencyStore(rdb, time.Hour)
	ctx := context.Background()
	key := KeyIdemBooking("abc")

	state, _, err := idem.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemAcquired, state)

	state, _, err = idem.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemInProgress, state)

	require.NoError(t, idem.SaveResult(ctx, key, IdemResult{Status: 200, Body: `{"uid":"u1","note":"a:b"}`}))

	state, res, err := idem.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemDone, state)
	assert.Equal(t, 200, res.Status)
	assert.JSONEq(t, `{"uid":"u1","note":"a:b"}`, res.Body)

	require.NoError(t, idem.Release(ctx, key))
	state, _, err = idem.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemAcquired, state)
}

func TestSlidingWindowLimiter(t *testing.T) {
	t.Parallel()

	_, rdb := newTestClient(t)
	l := NewSlidingWindowLimiter(rdb, "bookings", 2, time.Minute)
	start := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	now := start
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, _, err := l.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, hits, retry, err := l.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 2, hits)
	assert.Equal(t, time.Minute, retry)

	ok, _, _, err = l.Allow(ctx, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok, "callers are limited independently")

	// rejected hits do not push the window forward
	now = start.Add(30 * time.Second)
	ok, _, retry, err = l.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, retry)

	now = start.Add(time.Minute + time.Millisecond)
	ok, hits, _, err = l.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, hits)
}

func TestSlidingWindowLimiterDisabled(t *testing.T) {
	t.Parallel()

	_, rdb := newTestClient(t)
	l := NewSlidingWindowLimiter(rdb, "bookings", 0, time.Minute)

	for i := 0; i < 5; i++ {
		ok, _, _, err := l.Allow(context.Background(), "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestWebhookQueue(t *testing.T) {
	t.Parallel()

	_, rdb := newTestClient(t)
	q := NewWebhookQueue(rdb, time.Hour)
	ctx := context.Background()

	now := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }
	start := now.Add(2 * time.Hour)

	payload := domain.WebhookPayload{BookingID: 1, UID: "b1", Status: domain.BookingAccepted, StartTime: start}
	created := domain.Webhook{Trigger: domain.TriggerBookingCreated, Payload: payload}
	started := domain.Webhook{Trigger: domain.TriggerMeetingStarted, Payload: payload, DeliverAt: &start}

	require.NoError(t, q.Schedule(ctx, created))
	require.NoError(t, q.Schedule(ctx, created), "duplicates are dropped")
	require.NoError(t, q.Schedule(ctx, started))

	n, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	due, err := q.PopDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, domain.TriggerBookingCreated, due[0].Trigger)
	assert.Equal(t, "b1", due[0].Payload.UID)

	require.NoError(t, q.Cancel(ctx, "b1"))

	due, err = q.PopDue(ctx, start.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "cancelled meeting trigger is not delivered")
}

func TestNotificationStream(t *testing.T) {
	t.Parallel()

	_, rdb := newTestClient(t)
	s := NewNotificationStream(rdb, 0)
	ctx := context.Background()

	n := domain.Notification{
		Template:   domain.TemplateScheduled,
		Recipients: []domain.Person{{Email: "guest@example.com", Name: "Guest"}},
		Payload:    domain.NotificationPayload{BookingUID: "b1", Title: "Intro"},
	}
	require.NoError(t, s.Send(ctx, n))

	entries, err := s.Read(ctx, "0", 10, -1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TemplateScheduled, entries[0].Notification.Template)
	assert.Equal(t, "guest@example.com", entries[0].Notification.Recipients[0].Email)
	assert.Equal(t, "b1", entries[0].Notification.Payload.BookingUID)
}
