package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
	"github.com/kirinyoku/slotbook/internal/repository/sqlite"
)

// monday is 2026-11-02, a Monday; the fixture clock sits a day earlier.
var monday = time.Date(2026, time.November, 2, 0, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type recordingWebhooks struct {
	mu        sync.Mutex
	scheduled []domain.Webhook
	cancelled []string
}

func (r *recordingWebhooks) Schedule(_ context.Context, w domain.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, w)
	return nil
}

func (r *recordingWebhooks) Cancel(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, uid)
	return nil
}

func (r *recordingWebhooks) triggers(uid string) []domain.WebhookTrigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookTrigger
	for _, w := range r.scheduled {
		if w.Payload.UID == uid {
			out = append(out, w.Trigger)
		}
	}
	return out
}

func (r *recordingWebhooks) find(uid string, trigger domain.WebhookTrigger) (domain.Webhook, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.scheduled {
		if w.Payload.UID == uid && w.Trigger == trigger {
			return w, true
		}
	}
	return domain.Webhook{}, false
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

// recipients lists the emails that received template t for booking uid.
func (r *recordingNotifier) recipients(uid string, t domain.Template) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		if n.Payload.BookingUID != uid || n.Template != t {
			continue
		}
		for _, p := range n.Recipients {
			out = append(out, p.Email)
		}
	}
	return out
}

type fakeMeetings struct {
	mu      sync.Mutex
	created int
	updated int
	deleted int
	err     error
}

func (m *fakeMeetings) CreateMeeting(_ context.Context, b domain.Booking) (domain.BookingReference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.BookingReference{}, m.err
	}
	m.created++
	return domain.BookingReference{Type: "link", UID: b.UID, MeetingURL: "https://meet.test/" + b.UID}, nil
}

func (m *fakeMeetings) UpdateMeeting(_ context.Context, ref domain.BookingReference, b domain.Booking) (domain.BookingReference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.BookingReference{}, m.err
	}
	m.updated++
	return domain.BookingReference{Type: ref.Type, UID: ref.UID, MeetingURL: ref.MeetingURL}, nil
}

func (m *fakeMeetings) DeleteMeeting(context.Context, domain.BookingReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted++
	return nil
}

type fakeLinks map[string]struct {
	hash        string
	eventTypeID int64
}

func (f fakeLinks) Verify(token string) (string, int64, error) {
	l, ok := f[token]
	if !ok {
		return "", 0, errors.New("bad token")
	}
	return l.hash, l.eventTypeID, nil
}

type stubLimiter struct{ allow bool }

func (s stubLimiter) Allow(context.Context, string) (bool, int64, time.Duration, error) {
	return s.allow, 1, time.Minute, nil
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *sqlite.Store
	svc      *Service
	webhooks *recordingWebhooks
	notifier *recordingNotifier
	meetings *fakeMeetings
	now      time.Time
	seq      int
}

type option func(*Deps, *Config)

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()

	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	f := &fixture{
		t:        t,
		ctx:      ctx,
		store:    store,
		webhooks: &recordingWebhooks{},
		notifier: &recordingNotifier{},
		meetings: &fakeMeetings{},
		now:      monday.Add(-24 * time.Hour),
	}

	deps := Deps{
		Store:    store,
		Meetings: f.meetings,
		Webhooks: f.webhooks,
		Notifier: f.notifier,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return f.now },
	}
	cfg := Config{ICalDomain: "test.local"}
	for _, opt := range opts {
		opt(&deps, &cfg)
	}

	f.svc = New(deps, cfg)
	return f
}

func weekdays(startMinute, endMinute int) domain.AvailabilityRule {
	return domain.AvailabilityRule{
		Days:        []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		StartMinute: startMinute,
		EndMinute:   endMinute,
	}
}

// host creates a user whose default schedule is rules in tz, or 09:00-18:00
// on weekdays when no rules are given.
func (f *fixture) host(name, tz string, rules ...domain.AvailabilityRule) domain.User {
	f.t.Helper()

	u := domain.User{Email: strings.ToLower(name) + "@example.com", Name: name, TimeZone: tz, Locale: "en"}
	require.NoError(f.t, f.store.Users().CreateUser(f.ctx, &u))

	if len(rules) == 0 {
		rules = []domain.AvailabilityRule{weekdays(9*60, 18*60)}
	}
	s := domain.Schedule{UserID: u.ID, Name: "Working hours", TimeZone: tz, Availability: rules}
	require.NoError(f.t, f.store.Schedules().CreateSchedule(f.ctx, &s))

	return u
}

func (f *fixture) eventType(et domain.EventType, hosts ...domain.User) *domain.EventType {
	f.t.Helper()

	f.seq++
	et.Slug = fmt.Sprintf("event-%d", f.seq)
	if et.Title == "" {
		et.Title = "Intro call"
	}
	if et.LengthMinutes == 0 {
		et.LengthMinutes = 30
	}
	et.OwnerID = hosts[0].ID
	if et.Hosts == nil {
		for _, h := range hosts {
			et.Hosts = append(et.Hosts, domain.HostRef{UserID: h.ID, IsFixed: et.SchedulingType != domain.SchedulingRoundRobin})
		}
	}

	require.NoError(f.t, f.store.EventTypes().CreateEventType(f.ctx, &et))
	return &et
}

// block stores an accepted booking for organizer under a separate event type
// so it does not count towards fairness or limits of the type under test.
func (f *fixture) block(organizer domain.User, start time.Time) {
	f.t.Helper()

	blocker := f.eventType(domain.EventType{Title: "Blocker"}, organizer)
	b := &domain.Booking{
		UID:         uuid.NewString(),
		EventTypeID: blocker.ID,
		Title:       "Busy",
		Status:      domain.BookingAccepted,
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		OrganizerID: organizer.ID,
		ICalUID:     "busy@test.local",
		CreatedAt:   f.now,
	}
	require.NoError(f.t, f.store.Bookings().Create(f.ctx, b))
}

func (f *fixture) request(et *domain.EventType, start time.Time, email string) CreateRequest {
	return CreateRequest{
		EventTypeID: et.ID,
		Start:       start,
		End:         start.Add(time.Duration(et.LengthMinutes) * time.Minute),
		TimeZone:    "Europe/Berlin",
		Booker: Booker{
			Email:    email,
			Name:     "Guest " + strings.Split(email, "@")[0],
			TimeZone: "Europe/Berlin",
			Locale:   "en",
		},
	}
}

func (f *fixture) booking(uid string) *domain.Booking {
	f.t.Helper()

	b, err := f.store.Bookings().GetByUID(f.ctx, uid)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) activeBookings(u domain.User, w domain.TimeWindow) []domain.Booking {
	f.t.Helper()

	out, err := f.store.Bookings().FindOverlapping(f.ctx, repository.OverlapQuery{UserID: u.ID, Email: u.Email, Window: w})
	require.NoError(f.t, err)
	return out
}
