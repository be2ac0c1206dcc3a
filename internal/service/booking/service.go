package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/logging"
	"github.com/kirinyoku/slotbook/internal/repository"
	"github.com/kirinyoku/slotbook/internal/uow"
)

const (
	defaultICalDomain     = "slotbook.local"
	defaultFairnessWindow = 30 * 24 * time.Hour
	defaultLookahead      = 2
	rescheduledReason     = "rescheduled"
)

type Config struct {
	ICalDomain         string
	RequestTimeout     time.Duration
	FairnessWindow     time.Duration
	RecurringLookahead int
	FailOnMeetingError bool
	SideEffectTimeout  time.Duration
	ResolveConcurrency int
}

// Deps are the collaborators of the engine. Store is required; a nil
// dispatcher or provider disables that side effect.
type Deps struct {
	Store      repository.Store
	EventTypes EventTypeLoader
	Meetings   MeetingProvider
	Webhooks   WebhookDispatcher
	Notifier   NotificationDispatcher
	Links      LinkVerifier
	Limiter    RateLimiter
	Logger     *slog.Logger
	Now        func() time.Time
}

type Service struct {
	store      repository.Store
	eventTypes EventTypeLoader
	resolver   *Resolver
	assigner   *Assigner
	seats      SeatManager
	meetings   MeetingProvider
	webhooks   WebhookDispatcher
	notifier   NotificationDispatcher
	links      LinkVerifier
	limiter    RateLimiter
	uow        *uow.UoW[repository.Repositories]
	log        *slog.Logger
	now        func() time.Time
	cfg        Config
}

func New(deps Deps, cfg Config) *Service {
	if cfg.ICalDomain == "" {
		cfg.ICalDomain = defaultICalDomain
	}
	if cfg.FairnessWindow <= 0 {
		cfg.FairnessWindow = defaultFairnessWindow
	}
	if cfg.RecurringLookahead <= 0 {
		cfg.RecurringLookahead = defaultLookahead
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	eventTypes := deps.EventTypes
	if eventTypes == nil {
		eventTypes = deps.Store.EventTypes()
	}

	resolver := NewResolver(deps.Store, cfg.ResolveConcurrency)

	return &Service{
		store:      deps.Store,
		eventTypes: eventTypes,
		resolver:   resolver,
		assigner:   NewAssigner(resolver, deps.Store.Bookings(), cfg.FairnessWindow, cfg.RecurringLookahead, now),
		meetings:   deps.Meetings,
		webhooks:   deps.Webhooks,
		notifier:   deps.Notifier,
		links:      deps.Links,
		limiter:    deps.Limiter,
		uow:        uow.New[repository.Repositories](deps.Store, cfg.SideEffectTimeout),
		log:        log,
		now:        now,
		cfg:        cfg,
	}
}

// bookingRun carries the per-request state shared by the create and
// reschedule paths.
type bookingRun struct {
	req      CreateRequest
	et       *domain.EventType
	window   domain.TimeWindow
	hosts    []domain.Host
	booker   domain.Attendee
	linkHash string
}

// Create books a slot, or moves an existing booking when RescheduleUID is set.
//
// Parameters:
//   - ctx: request-scoped context; its deadline bounds the whole operation.
//   - req: the booking request.
//
// Returns:
//   - *Result: the stored booking, with the booker's seat on seated event types.
//   - error: *booking.ValidationError for malformed input.
//   - error: booking.ErrInvalidEventLength if the window length is not offered.
//   - error: booking.ErrHostsUnavailable or booking.ErrNoAvailableUsersFound if nobody can host.
//   - error: booking.ErrBookingConflict if the slot was taken concurrently.
//   - error: booking.ErrNoAvailableSeats if a seated slot is full.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Result, error) {
	const op = "service.booking.Create"

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	log := logging.ServiceLogger(ctx, s.log, "booking", "Create",
		"event_type_id", req.EventTypeID,
		"reschedule_uid", req.RescheduleUID,
	)

	run, err := s.prepare(ctx, req)
	if err != nil {
		log.Info("booking rejected", "error_kind", ErrorKind(err), "error", err)
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var res *Result
	if req.RescheduleUID != "" {
		res, err = s.reschedule(ctx, run)
	} else {
		res, err = s.create(ctx, run)
	}
	if err != nil {
		log.Info("booking rejected", "error_kind", ErrorKind(err), "error", err)
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	log.Info("booking stored",
		"booking_uid", res.Booking.UID,
		"status", res.Booking.Status,
		"organizer_id", res.Booking.OrganizerID,
		"new_booking", res.IsNewBooking,
	)

	return res, nil
}

// prepare validates the request and loads what both paths need.
func (s *Service) prepare(ctx context.Context, req CreateRequest) (*bookingRun, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if err := s.allow(ctx, req.RateLimitKey); err != nil {
		return nil, err
	}

	et, err := s.eventTypes.GetEventType(ctx, req.EventTypeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrEventTypeNotFound) {
			return nil, ErrEventTypeNotFound
		}
		return nil, err
	}

	if et.SeatsEnabled() && len(req.Guests) > 0 {
		return nil, &ValidationError{FieldErrors: map[string]string{
			"guests": "not allowed on seated event types",
		}}
	}

	w, err := domain.NewTimeWindow(req.Start, req.End, req.TimeZone)
	if err != nil {
		return nil, &ValidationError{FieldErrors: map[string]string{"end": err.Error()}}
	}
	if !et.AllowsDuration(w.Duration()) {
		return nil, ErrInvalidEventLength
	}

	linkHash, err := s.checkLink(ctx, req.HashedLinkToken, et)
	if err != nil {
		return nil, err
	}

	hosts, err := s.loadHosts(ctx, et)
	if err != nil {
		return nil, err
	}

	return &bookingRun{
		req:      req,
		et:       et,
		window:   w,
		hosts:    hosts,
		booker:   req.Booker.attendee(),
		linkHash: linkHash,
	}, nil
}

func (s *Service) create(ctx context.Context, run *bookingRun) (*Result, error) {
	const op = "service.booking.create"

	et, w := run.et, run.window

	// An open seated slot is already committed, so it skips assignment.
	slot, err := s.seats.FindSlot(ctx, s.store.Bookings(), et, w, "")
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var (
		draft     *domain.Booking
		organizer domain.Person
	)
	if slot == nil {
		a, err := s.assigner.Assign(ctx, AssignInput{
			EventType:         et,
			Hosts:             run.hosts,
			Window:            w,
			TeamMemberEmail:   run.req.TeamMemberEmail,
			ContactOwnerEmail: run.req.ContactOwnerEmail,
			RoutedHostIDs:     run.req.RoutedHostIDs,
			FollowingWindows:  run.req.RecurringWindows,
		})
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}

		confirmed := IsConfirmedByDefault(et, w.Start, s.now(), equalEmail(run.booker.Email, a.Organizer.Email), false)
		draft = s.draft(run, a, statusFor(confirmed))
		if !et.SeatsEnabled() {
			draft.Attendees = append(s.guestAttendees(run), draft.Attendees...)
		}
		organizer = a.Organizer.Person()
	}

	meeting, err := s.premeet(ctx, draft, nil)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var res Result
	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		e := effects{linkHash: run.linkHash, meeting: meeting}

		if et.SeatsEnabled() {
			sr, err := s.seats.AttachOrCreate(ctx, tx.Bookings(), et, w, run.booker, "",
				func(ctx context.Context, first domain.Attendee) (*domain.Booking, error) {
					if draft == nil {
						return nil, ErrBookingConflict
					}
					b := *draft
					b.Attendees = append([]domain.Attendee{first}, draft.Attendees...)
					b.SeatsTaken = 1
					if err := insert(ctx, tx, &b); err != nil {
						return nil, err
					}
					return &b, nil
				})
			if err != nil {
				return err
			}

			res = Result{Booking: sr.Booking, SeatReferenceUID: sr.Attendee.SeatReferenceUID, IsNewBooking: sr.IsNewBooking}
			seat := sr.Attendee
			e.change = change{kind: changeCreated, booking: sr.Booking, organizer: organizer, seat: &seat}
			if !sr.IsNewBooking {
				e.change.kind = changeSeatAdded
				e.meeting = meetingNone
				after(func(ctx context.Context) { s.dropPremade(ctx, draft) })
			}
		} else {
			if err := insert(ctx, tx, draft); err != nil {
				return err
			}
			res = Result{Booking: draft, IsNewBooking: true}
			e.change = change{kind: changeCreated, booking: draft, organizer: organizer}
		}

		after(func(ctx context.Context) {
			if e.change.organizer.Email == "" {
				e.change.organizer = s.personFor(ctx, run.hosts, e.change.booking.OrganizerID)
			}
			s.emit(ctx, e)
		})
		return nil
	})
	if err != nil {
		s.dropPremade(ctx, draft)
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &res, nil
}

// draft builds an unsaved booking for the assignment. Co-hosts are listed as
// host attendees.
func (s *Service) draft(run *bookingRun, a Assignment, status domain.BookingStatus) *domain.Booking {
	uid := bookingUID(a.Organizer.ID, run.window, uuid.NewString())

	b := &domain.Booking{
		UID:          uid,
		EventTypeID:  run.et.ID,
		Title:        fmt.Sprintf("%s between %s and %s", run.et.Title, a.Organizer.Name, run.booker.Name),
		Status:       status,
		StartTime:    run.window.Start,
		EndTime:      run.window.End,
		OrganizerID:  a.Organizer.ID,
		ICalUID:      iCalUID(uid, s.cfg.ICalDomain),
		ICalSequence: 0,
		CreatedAt:    s.now().UTC(),
	}

	if run.et.SeatsEnabled() {
		capacity := *run.et.SeatsPerTimeSlot
		b.SeatCapacity = &capacity
	}

	for _, h := range a.CoHosts {
		b.Attendees = append(b.Attendees, domain.Attendee{
			Email:    h.Email,
			Name:     h.Name,
			TimeZone: h.TimeZone,
			Locale:   h.Locale,
			IsHost:   true,
		})
	}

	return b
}

func (s *Service) guestAttendees(run *bookingRun) []domain.Attendee {
	out := []domain.Attendee{run.booker}
	for _, g := range run.req.Guests {
		out = append(out, g.attendee())
	}
	return out
}

// premeet provisions the meeting before the transaction when meeting
// failures must abort the booking. Otherwise it returns the action to run
// after commit.
func (s *Service) premeet(ctx context.Context, draft *domain.Booking, existing *domain.BookingReference) (meetingAction, error) {
	if draft == nil || s.meetings == nil {
		return meetingNone, nil
	}

	action := meetingCreate
	if existing != nil {
		action = meetingUpdate
	}
	if !s.cfg.FailOnMeetingError {
		return action, nil
	}

	var (
		ref domain.BookingReference
		err error
	)
	if existing != nil {
		ref, err = s.meetings.UpdateMeeting(ctx, *existing, *draft)
	} else {
		ref, err = s.meetings.CreateMeeting(ctx, *draft)
	}
	if err != nil {
		return meetingNone, fmt.Errorf("%w: %v", ErrMeetingProvider, err)
	}

	draft.References = append(draft.References, ref)
	return meetingNone, nil
}

// dropPremade removes meetings provisioned for a booking that never committed.
func (s *Service) dropPremade(ctx context.Context, draft *domain.Booking) {
	if draft == nil || s.meetings == nil || !s.cfg.FailOnMeetingError {
		return
	}
	for _, ref := range draft.References {
		if err := s.meetings.DeleteMeeting(context.WithoutCancel(ctx), ref); err != nil {
			s.log.Warn("orphan meeting not deleted", "meeting_uid", ref.UID, "error", err)
		}
	}
}

func insert(ctx context.Context, tx repository.Repositories, b *domain.Booking) error {
	if err := tx.Bookings().Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrBookingConflict
		}
		return err
	}
	return nil
}

// Cancel cancels a booking, drops its pending triggers and notifies its
// members.
//
// Parameters:
//   - ctx: request-scoped context.
//   - uid: booking uid.
//   - reason: free-form cancellation reason.
//
// Returns:
//   - *domain.Booking: the cancelled booking.
//   - error: booking.ErrBookingNotFound if no booking has the uid.
//   - error: booking.ErrBookingAlreadyCancelled if it was already cancelled.
func (s *Service) Cancel(ctx context.Context, uid, reason string) (*domain.Booking, error) {
	const op = "service.booking.Cancel"

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	b, err := s.store.Bookings().GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if b.Status == domain.BookingCancelled {
		return nil, fmt.Errorf("%s:%w", op, ErrBookingAlreadyCancelled)
	}

	organizer := s.personFor(ctx, nil, b.OrganizerID)

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		if err := tx.Bookings().Cancel(ctx, uid, repository.Cancellation{Reason: reason}); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBookingAlreadyCancelled
			}
			return err
		}

		b.Status = domain.BookingCancelled
		b.CancellationReason = reason

		after(func(ctx context.Context) {
			s.emit(ctx, effects{
				change:           change{kind: changeCancelled, booking: b, organizer: organizer},
				deleteMeetings:   b.References,
				cancelTriggersOf: b.UID,
			})
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	logging.ServiceLogger(ctx, s.log, "booking", "Cancel").Info("booking cancelled", "booking_uid", uid)

	return b, nil
}

func (s *Service) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}

func (s *Service) allow(ctx context.Context, key string) error {
	if s.limiter == nil || key == "" {
		return nil
	}

	ok, _, retry, err := s.limiter.Allow(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return RateLimitedError{RetryAfter: retry}
	}

	return nil
}

// checkLink verifies a single-use booking link and returns its hash. The link
// is consumed after the booking commits.
func (s *Service) checkLink(ctx context.Context, token string, et *domain.EventType) (string, error) {
	if token == "" {
		return "", nil
	}
	if s.links == nil {
		return "", ErrHashedLinkInvalid
	}

	hash, eventTypeID, err := s.links.Verify(token)
	if err != nil || eventTypeID != et.ID {
		return "", ErrHashedLinkInvalid
	}

	link, err := s.store.HashedLinks().GetHashedLink(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrHashedLinkInvalid
		}
		return "", err
	}
	if link.EventTypeID != et.ID || !link.Usable(s.now()) {
		return "", ErrHashedLinkInvalid
	}

	return hash, nil
}

// loadHosts resolves the configured hosts into users. An event type without
// hosts is hosted by its owner. Hosts of non round-robin types are all fixed.
func (s *Service) loadHosts(ctx context.Context, et *domain.EventType) ([]domain.Host, error) {
	refs := et.Hosts
	if len(refs) == 0 {
		refs = []domain.HostRef{{UserID: et.OwnerID, IsFixed: true}}
	}

	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.UserID)
	}

	users, err := s.store.Users().GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	hosts := make([]domain.Host, 0, len(users))
	for i, u := range users {
		h := domain.NewHost(u, refs[i])
		if et.SchedulingType != domain.SchedulingRoundRobin {
			h.IsFixed = true
		}
		hosts = append(hosts, h)
	}

	return hosts, nil
}

// personFor finds the user among hosts, falling back to the store.
func (s *Service) personFor(ctx context.Context, hosts []domain.Host, userID int64) domain.Person {
	for _, h := range hosts {
		if h.ID == userID {
			return h.Person()
		}
	}

	users, err := s.store.Users().GetUsers(ctx, []int64{userID})
	if err != nil || len(users) == 0 {
		s.log.Warn("organizer lookup failed", "user_id", userID, "error", err)
		return domain.Person{}
	}

	return users[0].Person()
}
