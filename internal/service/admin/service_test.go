package admin

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/hashedlink"
	redisrepo "github.com/kirinyoku/slotbook/internal/repository/redis"
	"github.com/kirinyoku/slotbook/internal/repository/sqlite"
)

type env struct {
	svc   *Service
	store *sqlite.Store
	mr    *miniredis.Miniredis
	codec *hashedlink.Codec
}

func newEnv(t *testing.T) *env {
	t.Helper()

	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	codec, err := hashedlink.NewCodec("admin-test-secret-value")
	require.NoError(t, err)

	return &env{
		svc:   New(store, redisrepo.NewCache(rdb), codec),
		store: store,
		mr:    mr,
		codec: codec,
	}
}

func (e *env) user(t *testing.T, email string) domain.User {
	t.Helper()

	u := domain.User{Email: email, Name: "Host", TimeZone: "Europe/Berlin"}
	require.NoError(t, e.svc.CreateUser(context.Background(), &u))
	return u
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()

	u := e.user(t, "Alice@Example.com")
	assert.NotZero(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)

	dup := domain.User{Email: "alice@example.com", Name: "Again"}
	assert.ErrorIs(t, e.svc.CreateUser(ctx, &dup), ErrUserConflict)

	bad := domain.User{Email: "not-an-email"}
	assert.ErrorIs(t, e.svc.CreateUser(ctx, &bad), ErrInvalidInput)

	badTZ := domain.User{Email: "bob@example.com", TimeZone: "Mars/Olympus"}
	assert.ErrorIs(t, e.svc.CreateUser(ctx, &badTZ), ErrInvalidInput)
}

func TestCreateScheduleBecomesDefault(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, "alice@example.com")

	sc := domain.Schedule{
		UserID:   u.ID,
		Name:     "Working hours",
		TimeZone: "Europe/Berlin",
		Availability: []domain.AvailabilityRule{
			{Days: []time.Weekday{time.Monday}, StartMinute: 540, EndMinute: 1020},
		},
	}
	require.NoError(t, e.svc.CreateSchedule(ctx, &sc))

	users, err := e.store.Users().GetUsers(ctx, []int64{u.ID})
	require.NoError(t, err)
	require.NotNil(t, users[0].DefaultScheduleID)
	assert.Equal(t, sc.ID, *users[0].DefaultScheduleID)

	orphan := domain.Schedule{UserID: 999, Name: "Nobody"}
	assert.ErrorIs(t, e.svc.CreateSchedule(ctx, &orphan), ErrUserNotFound)

	broken := domain.Schedule{
		UserID:       u.ID,
		Availability: []domain.AvailabilityRule{{StartMinute: 600, EndMinute: 500, Days: []time.Weekday{time.Monday}}},
	}
	assert.ErrorIs(t, e.svc.CreateSchedule(ctx, &broken), ErrInvalidInput)
}

func TestCreateEventType(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")

	et := domain.EventType{OwnerID: owner.ID, Slug: "intro", Title: "Intro", LengthMinutes: 30}
	require.NoError(t, e.svc.CreateEventType(ctx, &et))
	require.Len(t, et.Hosts, 1)
	assert.Equal(t, owner.ID, et.Hosts[0].UserID)
	assert.True(t, et.Hosts[0].IsFixed)

	stored, err := e.store.EventTypes().GetEventType(ctx, et.ID)
	require.NoError(t, err)
	assert.Equal(t, "intro", stored.Slug)

	dup := domain.EventType{OwnerID: owner.ID, Slug: "intro", LengthMinutes: 15}
	assert.ErrorIs(t, e.svc.CreateEventType(ctx, &dup), ErrEventTypeConflict)
}

func TestCreateEventTypeInvalidatesCache(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")

	// a stale entry for the id the next event type will get
	require.NoError(t, e.mr.Set(redisrepo.KeyEventType(1), `{"id":1,"slug":"stale"}`))

	et := domain.EventType{OwnerID: owner.ID, Slug: "fresh", LengthMinutes: 30}
	require.NoError(t, e.svc.CreateEventType(ctx, &et))
	require.Equal(t, int64(1), et.ID)

	assert.False(t, e.mr.Exists(redisrepo.KeyEventType(1)))
}

func TestCreateEventTypeRejectsInconsistentConfig(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	seats := 3

	cases := map[string]domain.EventType{
		"zero length":          {OwnerID: owner.ID, Slug: "a"},
		"seats require review": {OwnerID: owner.ID, Slug: "b", LengthMinutes: 30, SeatsPerTimeSlot: &seats, RequiresConfirmation: true},
		"unknown scheduling":   {OwnerID: owner.ID, Slug: "c", LengthMinutes: 30, SchedulingType: "RANDOM"},
		"bad limit period":     {OwnerID: owner.ID, Slug: "d", LengthMinutes: 30, BookingLimits: domain.BookingLimits{"PER_DECADE": 1}},
	}
	for name, et := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, e.svc.CreateEventType(ctx, &et), ErrInvalidInput)
		})
	}

	missingHost := domain.EventType{
		OwnerID:       owner.ID,
		Slug:          "e",
		LengthMinutes: 30,
		Hosts:         []domain.HostRef{{UserID: 404}},
	}
	assert.ErrorIs(t, e.svc.CreateEventType(ctx, &missingHost), ErrUserNotFound)
}

func TestCreateHashedLink(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")

	et := domain.EventType{OwnerID: owner.ID, Slug: "private", LengthMinutes: 30}
	require.NoError(t, e.svc.CreateEventType(ctx, &et))

	token, link, err := e.svc.CreateHashedLink(ctx, et.ID, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)

	hash, eventTypeID, err := e.codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, link.Hash, hash)
	assert.Equal(t, et.ID, eventTypeID)

	stored, err := e.store.HashedLinks().GetHashedLink(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, et.ID, stored.EventTypeID)

	_, _, err = e.svc.CreateHashedLink(ctx, 404, 0)
	assert.ErrorIs(t, err, ErrEventTypeNotFound)
}
