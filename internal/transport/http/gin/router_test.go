package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/slotbook/internal/domain"
	redisrepo "github.com/kirinyoku/slotbook/internal/repository/redis"
	"github.com/kirinyoku/slotbook/internal/repository/sqlite"
	"github.com/kirinyoku/slotbook/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type api struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T, rateLimit int) *api {
	t.Helper()

	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := service.NewServices(service.Deps{
		Store:   store,
		Cache:   redisrepo.NewCache(rdb),
		Limiter: redisrepo.NewSlidingWindowLimiter(rdb, "bookings", rateLimit, time.Minute),
		Logger:  logger,
	}, service.Config{})

	return &api{
		t:      t,
		router: NewRouter(svcs, redisrepo.NewIdempotencyStore(rdb, time.Hour), logger),
	}
}

func (a *api) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// seed creates a host available around the clock and an individual event
// type owned by it.
func (a *api) seed() int64 {
	a.t.Helper()

	w := a.do(http.MethodPost, "/admin/users", CreateUserRequest{Email: "host@example.com", Name: "Host", TimeZone: "UTC"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	userID := decode[CreatedResponse](a.t, w).ID

	everyDay := []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	w = a.do(http.MethodPost, "/admin/schedules", CreateScheduleRequest{
		UserID:       userID,
		Name:         "Always",
		TimeZone:     "UTC",
		Availability: []domain.AvailabilityRule{{Days: everyDay, StartMinute: 0, EndMinute: 24 * 60}},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/admin/event-types", domain.EventType{OwnerID: userID, Slug: "intro", Title: "Intro", LengthMinutes: 30})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	return decode[domain.EventType](a.t, w).ID
}

func bookingRequest(eventTypeID int64, start time.Time) CreateBookingRequest {
	return CreateBookingRequest{
		EventTypeID: eventTypeID,
		Start:       start,
		End:         start.Add(30 * time.Minute),
		TimeZone:    "UTC",
		Booker:      PersonInput{Email: "booker@example.com", Name: "Booker", TimeZone: "UTC"},
	}
}

func nextSlot() time.Time {
	return time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
}

func TestBookingLifecycle(t *testing.T) {
	t.Parallel()

	a := newAPI(t, 100)
	eventTypeID := a.seed()

	w := a.do(http.MethodPost, "/bookings", bookingRequest(eventTypeID, nextSlot()), "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[BookingResponse](t, w)
	require.NotNil(t, created.Booking)
	assert.Equal(t, domain.BookingAccepted, created.Booking.Status)
	assert.True(t, created.IsNewBooking)

	replay := a.do(http.MethodPost, "/bookings", bookingRequest(eventTypeID, nextSlot()), "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, created.Booking.UID, decode[BookingResponse](t, replay).Booking.UID)

	w = a.do(http.MethodGet, "/bookings/"+created.Booking.UID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.Booking.UID, decode[domain.Booking](t, w).UID)

	w = a.do(http.MethodPost, "/bookings/"+created.Booking.UID+"/cancel", CancelBookingRequest{Reason: "changed plans"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.BookingCancelled, decode[domain.Booking](t, w).Status)

	w = a.do(http.MethodPost, "/bookings/"+created.Booking.UID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestIdempotentReplayKeepsSeatJoinStatus(t *testing.T) {
	t.Parallel()

	a := newAPI(t, 100)
	intro := a.seed()

	w := a.do(http.MethodGet, "/event-types/"+strconv.FormatInt(intro, 10), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	owner := decode[domain.EventType](t, w).OwnerID

	seats := 3
	w = a.do(http.MethodPost, "/admin/event-types", domain.EventType{
		OwnerID: owner, Slug: "group", Title: "Group", LengthMinutes: 30, SeatsPerTimeSlot: &seats,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	group := decode[domain.EventType](t, w).ID

	start := nextSlot()
	w = a.do(http.MethodPost, "/bookings", bookingRequest(group, start))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	join := bookingRequest(group, start)
	join.Booker.Email = "second@example.com"
	w = a.do(http.MethodPost, "/bookings", join, "Idempotency-Key", "seat-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	joined := decode[BookingResponse](t, w)
	assert.False(t, joined.IsNewBooking)

	replay := a.do(http.MethodPost, "/bookings", join, "Idempotency-Key", "seat-1")
	require.Equal(t, http.StatusOK, replay.Code, replay.Body.String())
	assert.Equal(t, joined.SeatReferenceUID, decode[BookingResponse](t, replay).SeatReferenceUID)
}

func TestCreateBookingConflict(t *testing.T) {
	t.Parallel()

	a := newAPI(t, 100)
	eventTypeID := a.seed()
	start := nextSlot()

	w := a.do(http.MethodPost, "/bookings", bookingRequest(eventTypeID, start))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	again := bookingRequest(eventTypeID, start)
	again.Booker.Email = "other@example.com"
	w = a.do(http.MethodPost, "/bookings", again)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestCreateBookingErrors(t *testing.T) {
	t.Parallel()

	a := newAPI(t, 100)
	eventTypeID := a.seed()

	w := a.do(http.MethodPost, "/bookings", map[string]any{"event_type_id": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	long := bookingRequest(eventTypeID, nextSlot())
	long.End = long.Start.Add(45 * time.Minute)
	w = a.do(http.MethodPost, "/bookings", long)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	nameless := bookingRequest(eventTypeID, nextSlot())
	nameless.Booker.Name = ""
	w = a.do(http.MethodPost, "/bookings", nameless)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Fields, "booker.name")

	w = a.do(http.MethodPost, "/bookings", bookingRequest(eventTypeID+100, nextSlot()))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodGet, "/bookings/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateBookingRateLimited(t *testing.T) {
	t.Parallel()

	a := newAPI(t, 1)
	eventTypeID := a.seed()

	w := a.do(http.MethodPost, "/bookings", bookingRequest(eventTypeID, nextSlot()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/bookings", bookingRequest(eventTypeID, nextSlot().Add(time.Hour)))
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, secs)
}

func TestGetEventTypeETag(t *testing.T) {
	t.Parallel()

	a := newAPI(t, 100)
	eventTypeID := a.seed()
	path := "/event-types/" + strconv.FormatInt(eventTypeID, 10)

	w := a.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)

	w = a.do(http.MethodGet, path, nil, "If-None-Match", tag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = a.do(http.MethodGet, "/event-types/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetryAfterRoundsUp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1", retryAfter(0))
	assert.Equal(t, "2", retryAfter(1500*time.Millisecond))
	assert.Equal(t, "60", retryAfter(time.Minute))
}
