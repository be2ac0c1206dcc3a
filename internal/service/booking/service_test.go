package booking

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/slotbook/internal/domain"
)

func TestCreateAcceptedInOrganizerTimeZone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	host := f.host("Asha", "Asia/Kolkata")
	et := f.eventType(domain.EventType{}, host)

	// 03:30 UTC is 09:00 in Kolkata.
	res, err := f.svc.Create(f.ctx, f.request(et, at(0, 3, 30), "guest@example.com"))
	require.NoError(t, err)

	b := res.Booking
	assert.True(t, res.IsNewBooking)
	assert.Equal(t, domain.BookingAccepted, b.Status)
	assert.Equal(t, host.ID, b.OrganizerID)
	assert.Equal(t, b.UID+"@test.local", b.ICalUID)
	assert.Zero(t, b.ICalSequence)

	assert.Equal(t, []domain.WebhookTrigger{
		domain.TriggerBookingCreated,
		domain.TriggerMeetingStarted,
		domain.TriggerMeetingEnded,
	}, f.webhooks.triggers(b.UID))

	started, ok := f.webhooks.find(b.UID, domain.TriggerMeetingStarted)
	require.True(t, ok)
	require.NotNil(t, started.DeliverAt)
	assert.True(t, started.DeliverAt.Equal(at(0, 3, 30)))

	assert.ElementsMatch(t,
		[]string{"asha@example.com", "guest@example.com"},
		f.notifier.recipients(b.UID, domain.TemplateScheduled),
	)

	stored := f.booking(b.UID)
	require.Len(t, stored.References, 1)
	assert.Equal(t, "https://meet.test/"+b.UID, stored.References[0].MeetingURL)

	// 08:30 in Kolkata is before working hours.
	_, err = f.svc.Create(f.ctx, f.request(et, at(0, 3, 0), "early@example.com"))
	assert.ErrorIs(t, err, ErrHostsUnavailable)
}

func TestCreateRequiringConfirmationIsPending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	host := f.host("Asha", "Asia/Kolkata")
	et := f.eventType(domain.EventType{RequiresConfirmation: true}, host)

	res, err := f.svc.Create(f.ctx, f.request(et, at(0, 3, 30), "guest@example.com"))
	require.NoError(t, err)

	b := res.Booking
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, []domain.WebhookTrigger{domain.TriggerBookingRequested}, f.webhooks.triggers(b.UID))
	assert.Equal(t, []string{"asha@example.com"}, f.notifier.recipients(b.UID, domain.TemplateRequested))
	assert.Equal(t, []string{"guest@example.com"}, f.notifier.recipients(b.UID, domain.TemplateRequestReceived))

	// the organizer booking their own event still needs confirmation
	res, err = f.svc.Create(f.ctx, f.request(et, at(0, 4, 30), "asha@example.com"))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, res.Booking.Status)
}

func TestCreateRejectsUnofferedLength(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	host := f.host("Asha", "UTC")
	et := f.eventType(domain.EventType{MultipleDurations: []int{60}}, host)

	req := f.request(et, at(0, 10, 0), "guest@example.com")
	req.End = req.Start.Add(45 * time.Minute)
	_, err := f.svc.Create(f.ctx, req)
	assert.ErrorIs(t, err, ErrInvalidEventLength)

	req.End = req.Start.Add(60 * time.Minute)
	_, err = f.svc.Create(f.ctx, req)
	assert.NoError(t, err)
}

func TestCreateValidatesRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.svc.Create(f.ctx, CreateRequest{
		EventTypeID: 1,
		Start:       at(0, 10, 0),
		End:         at(0, 9, 0),
		Booker:      Booker{Email: "not-an-email"},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.FieldErrors, "end")
	assert.Contains(t, verr.FieldErrors, "booker.email")
	assert.Contains(t, verr.FieldErrors, "booker.name")
	assert.Equal(t, "validation", ErrorKind(err))

	_, err = f.svc.Create(f.ctx, CreateRequest{
		EventTypeID: 404,
		Start:       at(0, 10, 0),
		End:         at(0, 10, 30),
		Booker:      Booker{Email: "guest@example.com", Name: "Guest"},
	})
	assert.ErrorIs(t, err, ErrEventTypeNotFound)
}

func TestCollectiveRequiresEveryHost(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.host("Alice", "UTC")
	bob := f.host("Bob", "UTC")
	et := f.eventType(domain.EventType{SchedulingType: domain.SchedulingCollective}, alice, bob)

	f.block(bob, at(0, 10, 0))

	_, err := f.svc.Create(f.ctx, f.request(et, at(0, 10, 0), "guest@example.com"))
	require.ErrorIs(t, err, ErrHostsUnavailable)

	var hu HostsUnavailableError
	require.ErrorAs(t, err, &hu)
	assert.Equal(t, []int64{bob.ID}, hu.UserIDs)
	assert.Empty(t, f.activeBookings(alice, domain.TimeWindow{Start: at(0, 10, 0), End: at(0, 10, 30)}))

	req := f.request(et, at(0, 11, 0), "guest@example.com")
	req.TeamMemberEmail = "BOB@example.com"
	res, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	assert.Equal(t, bob.ID, res.Booking.OrganizerID)
	hostAttendees := res.Booking.HostAttendees()
	require.Len(t, hostAttendees, 1)
	assert.Equal(t, alice.Email, hostAttendees[0].Email)
	assert.ElementsMatch(t,
		[]string{"bob@example.com", "alice@example.com", "guest@example.com"},
		f.notifier.recipients(res.Booking.UID, domain.TemplateScheduled),
	)
}

func TestRoundRobinSkipsBusyHost(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.host("Alice", "UTC")
	bob := f.host("Bob", "UTC")
	et := f.eventType(domain.EventType{SchedulingType: domain.SchedulingRoundRobin}, alice, bob)

	f.block(alice, at(0, 10, 0))

	res, err := f.svc.Create(f.ctx, f.request(et, at(0, 10, 0), "guest@example.com"))
	require.NoError(t, err)
	assert.Equal(t, bob.ID, res.Booking.OrganizerID)
	assert.Empty(t, res.Booking.HostAttendees())
}

func TestRoundRobinContactOwnerWins(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.host("Alice", "UTC")
	bob := f.host("Bob", "UTC")
	one, five := 1, 5
	et := f.eventType(domain.EventType{
		SchedulingType: domain.SchedulingRoundRobin,
		Hosts: []domain.HostRef{
			{UserID: alice.ID, Priority: &one},
			{UserID: bob.ID, Priority: &five},
		},
	}, alice, bob)

	req := f.request(et, at(0, 10, 0), "guest@example.com")
	req.ContactOwnerEmail = bob.Email
	res, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, res.Booking.OrganizerID)

	res, err = f.svc.Create(f.ctx, f.request(et, at(0, 11, 0), "other@example.com"))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, res.Booking.OrganizerID, "lower priority value wins without a contact owner")
}

func TestRoundRobinBalancesByWeight(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.host("Alice", "UTC")
	bob := f.host("Bob", "UTC")
	heavy := 300
	et := f.eventType(domain.EventType{
		SchedulingType: domain.SchedulingRoundRobin,
		Hosts: []domain.HostRef{
			{UserID: alice.ID},
			{UserID: bob.ID, Weight: &heavy},
		},
	}, alice, bob)

	var organizers []int64
	for i, hour := range []int{10, 11, 12} {
		res, err := f.svc.Create(f.ctx, f.request(et, at(0, hour, 0), []string{"a@x.io", "b@x.io", "c@x.io"}[i]))
		require.NoError(t, err)
		organizers = append(organizers, res.Booking.OrganizerID)
	}

	// 0/100 vs 0/300 ties on id; then 1/100 vs 0/300; then 1/100 vs 1/300.
	assert.Equal(t, []int64{alice.ID, bob.ID, bob.ID}, organizers)
}

func TestRoundRobinRequiresFixedHosts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	lead := f.host("Lead", "UTC")
	alice := f.host("Alice", "UTC")
	et := f.eventType(domain.EventType{
		SchedulingType: domain.SchedulingRoundRobin,
		Hosts: []domain.HostRef{
			{UserID: lead.ID, IsFixed: true},
			{UserID: alice.ID},
		},
	}, lead, alice)

	res, err := f.svc.Create(f.ctx, f.request(et, at(0, 10, 0), "guest@example.com"))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, res.Booking.OrganizerID)
	require.Len(t, res.Booking.HostAttendees(), 1)
	assert.Equal(t, lead.Email, res.Booking.HostAttendees()[0].Email)

	f.block(lead, at(0, 11, 0))
	_, err = f.svc.Create(f.ctx, f.request(et, at(0, 11, 0), "guest2@example.com"))
	assert.ErrorIs(t, err, ErrHostsUnavailable)

	f.block(alice, at(0, 12, 0))
	_, err = f.svc.Create(f.ctx, f.request(et, at(0, 12, 0), "guest3@example.com"))
	assert.ErrorIs(t, err, ErrNoAvailableUsersFound)
}

func TestRoundRobinLooksAheadForRecurringSeries(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.host("Alice", "UTC")
	bob := f.host("Bob", "UTC")
	et := f.eventType(domain.EventType{SchedulingType: domain.SchedulingRoundRobin}, alice, bob)

	f.block(alice, at(7, 10, 0))

	req := f.request(et, at(0, 10, 0), "guest@example.com")
	req.RecurringWindows = []domain.TimeWindow{{Start: at(7, 10, 0), End: at(7, 10, 30)}}
	res, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, res.Booking.OrganizerID)
}

func TestRoundRobinPreferredHostMustCoverSeries(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.host("Alice", "UTC")
	bob := f.host("Bob", "UTC")
	et := f.eventType(domain.EventType{SchedulingType: domain.SchedulingRoundRobin}, alice, bob)

	f.block(bob, at(7, 10, 0))

	req := f.request(et, at(0, 10, 0), "guest@example.com")
	req.ContactOwnerEmail = bob.Email
	req.RecurringWindows = []domain.TimeWindow{{Start: at(7, 10, 0), End: at(7, 10, 30)}}
	res, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, res.Booking.OrganizerID)

	req = f.request(et, at(0, 11, 0), "other@example.com")
	req.ContactOwnerEmail = bob.Email
	res, err = f.svc.Create(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, res.Booking.OrganizerID)
}

func TestBookingLimitsAreEnforced(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	host := f.host("Asha", "UTC")
	et := f.eventType(domain.EventType{
		BookingLimits:  domain.BookingLimits{domain.PerDay: 1},
		DurationLimits: domain.DurationLimits{domain.PerWeek: 60},
	}, host)

	_, err := f.svc.Create(f.ctx, f.request(et, at(0, 10, 0), "a@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Create(f.ctx, f.request(et, at(0, 11, 0), "b@example.com"))
	assert.ErrorIs(t, err, ErrHostsUnavailable, "daily count reached")

	_, err = f.svc.Create(f.ctx, f.request(et, at(1, 10, 0), "c@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Create(f.ctx, f.request(et, at(2, 10, 0), "d@example.com"))
	assert.ErrorIs(t, err, ErrHostsUnavailable, "weekly minutes reached")

	_, err = f.svc.Create(f.ctx, f.request(et, at(7, 10, 0), "e@example.com"))
	assert.NoError(t, err, "next ISO week")
}

func TestSeatCapacityHoldsUnderConcurrency(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	host := f.host("Asha", "UTC")
	two := 2
	et := f.eventType(domain.EventType{SeatsPerTimeSlot: &two}, host)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*Result
		errs    []error
	)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Create(f.ctx, f.request(et, at(0, 10, 0), email))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results = append(results, res)
		}()
	}
	wg.Wait()

	require.Len(t, results, 2)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNoAvailableSeats)

	assert.Equal(t, results[0].Booking.UID, results[1].Booking.UID)
	assert.NotEqual(t, results[0].IsNewBooking, results[1].IsNewBooking)
	assert.NotEqual(t, results[0].SeatReferenceUID, results[1].SeatReferenceUID)

	stored := f.booking(results[0].Booking.UID)
	assert.Equal(t, 2, stored.SeatsTaken)
	assert.Len(t, stored.Guests(), 2)
	assert.Zero(t, stored.SeatsRemaining())

	created := 0
	for _, tr := range f.webhooks.triggers(stored.UID) {
		if tr == domain.TriggerBookingCreated {
			created++
		}
	}
	assert.Equal(t, 2, created, "one trigger per seat")
}

func TestSeatedRequestRejectsGuests(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	host := f.host("Asha", "UTC")
	two := 2
	et := f.eventType(domain.EventType{SeatsPerTimeSlot: &two}, host)

	req := f.request(et, at(0, 10, 0), "a@example.com")
	req.Guests = []Booker{{Email: "b@example.com", Name: "B"}}
	_, err := f.svc.Create(f.ctx, req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.FieldErrors, "guests")
}

func TestMeetingFailureDegradesByDefault(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.meetings.err = errors.New("provider down")
	host := f.host("Asha", "UTC")
	et := f.eventType(domain.EventType{}, host)

	res, err := f.svc.Create(f.ctx, f.request(et, at(0, 10, 0), "guest@example.com"))
	require.NoError(t, err)

	stored := f.booking(res.Booking.UID)
	assert.Equal(t, domain.BookingAccepted, stored.Status)
	assert.Empty(t, stored.References)
	assert.Contains(t, f.webhooks.triggers(stored.UID), domain.TriggerBookingCreated)
	assert.NotEmpty(t, f.notifier.recipients(stored.UID, domain.TemplateScheduled))
}

func TestMeetingFailureCanAbortBooking(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(_ *Deps, cfg *Config) { cfg.FailOnMeetingError = true })
	f.meetings.err = errors.New("provider down")
	host := f.host("Asha", "UTC")
	et := f.eventType(domain.EventType{}, host)

	_, err := f.svc.Create(f.ctx, f.request(et, at(0, 10, 0), "guest@example.com"))
	assert.ErrorIs(t, err, ErrMeetingProvider)
	assert.Empty(t, f.activeBookings(host, domain.TimeWindow{Start: at(0, 10, 0), End: at(0, 10, 30)}))
}

func TestNotificationFailureKeepsBooking(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")
	host := f.host("Asha", "UTC")
	et := f.eventType(domain.EventType{}, host)

	res, err := f.svc.Create(f.ctx, f.request(et, at(0, 10, 0), "guest@example.com"))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingAccepted, f.booking(res.Booking.UID).Status)
}

func TestHashedLinkIsSingleUse(t *testing.T) {
	t.Parallel()

	links := fakeLinks{}
	f := newFixture(t, func(d *Deps, _ *Config) { d.Links = links })
	host := f.host("Asha", "UTC")
	et := f.eventType(domain.EventType{}, host)

	links["tok"] = struct {
		hash        string
		eventTypeID int64
	}{"h1", et.ID}
	require.NoError(t, f.store.HashedLinks().CreateHashedLink(f.ctx, &domain.HashedLink{
		Hash:        "h1",
		EventTypeID: et.ID,
		CreatedAt:   f.now,
	}))

	req := f.request(et, at(0, 10, 0), "guest@example.com")
	req.HashedLinkToken = "tok"
	_, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	link, err := f.store.HashedLinks().GetHashedLink(f.ctx, "h1")
	require.NoError(t, err)
	assert.NotNil(t, link.UsedAt)

	req = f.request(et, at(0, 11, 0), "again@example.com")
	req.HashedLinkToken = "tok"
	_, err = f.svc.Create(f.ctx, req)
	assert.ErrorIs(t, err, ErrHashedLinkInvalid)

	req.HashedLinkToken = "forged"
	_, err = f.svc.Create(f.ctx, req)
	assert.ErrorIs(t, err, ErrHashedLinkInvalid)
}

func TestRateLimitedCaller(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(d *Deps, _ *Config) { d.Limiter = stubLimiter{allow: false} })
	host := f.host("Asha", "UTC")
	et := f.eventType(domain.EventType{}, host)

	req := f.request(et, at(0, 10, 0), "guest@example.com")
	req.RateLimitKey = "10.0.0.1"
	_, err := f.svc.Create(f.ctx, req)
	require.ErrorIs(t, err, ErrRateLimited)

	var rl RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, time.Minute, rl.RetryAfter)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	host := f.host("Asha", "UTC")
	et := f.eventType(domain.EventType{}, host)

	res, err := f.svc.Create(f.ctx, f.request(et, at(0, 10, 0), "guest@example.com"))
	require.NoError(t, err)
	uid := res.Booking.UID

	b, err := f.svc.Cancel(f.ctx, uid, "conflict")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, b.Status)

	stored := f.booking(uid)
	assert.Equal(t, domain.BookingCancelled, stored.Status)
	assert.Equal(t, "conflict", stored.CancellationReason)

	assert.Contains(t, f.webhooks.cancelled, uid)
	assert.Contains(t, f.webhooks.triggers(uid), domain.TriggerBookingCancelled)
	assert.ElementsMatch(t,
		[]string{"asha@example.com", "guest@example.com"},
		f.notifier.recipients(uid, domain.TemplateCancelled),
	)
	assert.Equal(t, 1, f.meetings.deleted)

	_, err = f.svc.Cancel(f.ctx, uid, "again")
	assert.ErrorIs(t, err, ErrBookingAlreadyCancelled)

	_, err = f.svc.Cancel(f.ctx, "missing", "")
	assert.ErrorIs(t, err, ErrBookingNotFound)

	// the slot is free again
	_, err = f.svc.Create(f.ctx, f.request(et, at(0, 10, 0), "guest@example.com"))
	assert.NoError(t, err)
}
