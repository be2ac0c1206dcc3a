package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/logging"
	"github.com/kirinyoku/slotbook/internal/repository"
	"github.com/kirinyoku/slotbook/internal/uow"
)

type rescheduleState int

const (
	stateLookup rescheduleState = iota
	stateReassign
	stateSupersede
	stateDone
	stateFailed
)

func (s rescheduleState) String() string {
	switch s {
	case stateLookup:
		return "LOOKUP"
	case stateReassign:
		return "REASSIGN"
	case stateSupersede:
		return "SUPERSEDE"
	case stateDone:
		return "DONE"
	default:
		return "FAILED"
	}
}

// rescheduleRun is the working state of one reschedule.
type rescheduleRun struct {
	*bookingRun

	state rescheduleState
	err   error

	original          *domain.Booking
	originalOrganizer domain.Person

	// target is the open seated slot the original's seats merge into.
	target *domain.Booking

	draft     *domain.Booking
	organizer domain.Person
	meeting   meetingAction
	reuseRef  *domain.BookingReference

	result *Result
}

func (r *rescheduleRun) fail(err error) rescheduleState {
	r.err = err
	return stateFailed
}

// reschedule moves a booking to a new window. The prior booking is only
// touched in SUPERSEDE, inside the same transaction that stores its
// replacement, so any earlier failure leaves it as it was.
func (s *Service) reschedule(ctx context.Context, base *bookingRun) (*Result, error) {
	const op = "service.booking.reschedule"

	run := &rescheduleRun{bookingRun: base, state: stateLookup}
	log := logging.ServiceLogger(ctx, s.log, "booking", "reschedule", "reschedule_uid", base.req.RescheduleUID)

	for {
		log.Debug("reschedule step", "state", run.state.String())

		switch run.state {
		case stateLookup:
			run.state = s.lookup(ctx, run)
		case stateReassign:
			run.state = s.reassign(ctx, run)
		case stateSupersede:
			run.state = s.supersede(ctx, run)
		case stateDone:
			return run.result, nil
		default:
			return nil, fmt.Errorf("%s:%w", op, run.err)
		}
	}
}

// lookup resolves the reschedule token, which is either a booking uid or
// the seat reference of one of its attendees.
func (s *Service) lookup(ctx context.Context, run *rescheduleRun) rescheduleState {
	token := run.req.RescheduleUID
	bookings := s.store.Bookings()

	original, err := bookings.GetByUID(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		original, err = bookings.GetBySeatReference(ctx, token)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return run.fail(ErrBookingNotFound)
		}
		return run.fail(err)
	}

	if original.Status == domain.BookingCancelled {
		return run.fail(ErrBookingNotReschedulable)
	}
	if original.EventTypeID != run.et.ID {
		return run.fail(&ValidationError{FieldErrors: map[string]string{
			"reschedule_uid": "belongs to another event type",
		}})
	}

	run.original = original
	run.originalOrganizer = s.personFor(ctx, run.hosts, original.OrganizerID)

	return stateReassign
}

// reassign runs availability and host selection against the new window,
// ignoring the booking being moved.
func (s *Service) reassign(ctx context.Context, run *rescheduleRun) rescheduleState {
	et, w, original := run.et, run.window, run.original

	target, err := s.seats.FindSlot(ctx, s.store.Bookings(), et, w, original.UID)
	if err != nil {
		return run.fail(err)
	}
	if target != nil {
		run.target = target
		run.organizer = s.personFor(ctx, run.hosts, target.OrganizerID)
		return stateSupersede
	}

	a, err := s.assigner.Assign(ctx, AssignInput{
		EventType:         et,
		Hosts:             run.hosts,
		Window:            w,
		TeamMemberEmail:   run.req.TeamMemberEmail,
		ContactOwnerEmail: run.req.ContactOwnerEmail,
		RoutedHostIDs:     run.req.RoutedHostIDs,
		FollowingWindows:  run.req.RecurringWindows,
		Reschedule: &RescheduleContext{
			OriginalUID:         original.UID,
			OriginalOrganizerID: original.OrganizerID,
			Rerouting:           run.req.rerouting(),
		},
	})
	if err != nil {
		return run.fail(err)
	}

	confirmed := IsConfirmedByDefault(et, w.Start, s.now(),
		equalEmail(run.booker.Email, a.Organizer.Email),
		equalEmail(run.booker.Email, run.originalOrganizer.Email),
	)

	draft := s.draft(run.bookingRun, a, statusFor(confirmed))
	draft.ICalSequence = original.ICalSequence + 1
	if original.ICalUID != "" {
		draft.ICalUID = original.ICalUID
	}
	draft.RescheduledFromUID = original.UID
	if !et.SeatsEnabled() {
		draft.Attendees = append(carriedGuests(original), draft.Attendees...)
	}

	run.draft = draft
	run.organizer = a.Organizer.Person()

	if len(original.References) > 0 && original.OrganizerID == draft.OrganizerID {
		ref := original.References[0]
		run.reuseRef = &ref
	}

	run.meeting, err = s.premeet(ctx, draft, run.reuseRef)
	if err != nil {
		return run.fail(err)
	}

	return stateSupersede
}

// supersede cancels the original and stores its replacement atomically.
func (s *Service) supersede(ctx context.Context, run *rescheduleRun) rescheduleState {
	original := run.original
	seated := original.SeatCapacity != nil

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		replacementUID := run.replacementUID()

		if err := tx.Bookings().Cancel(ctx, original.UID, repository.Cancellation{
			Reason:           rescheduledReason,
			RescheduledToUID: replacementUID,
		}); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBookingNotReschedulable
			}
			return err
		}

		if run.target == nil {
			if err := insert(ctx, tx, run.draft); err != nil {
				return err
			}
		}

		if seated {
			if err := tx.Bookings().MoveSeats(ctx, original.ID, run.replacementID()); err != nil {
				if errors.Is(err, repository.ErrNoSeatsLeft) {
					return ErrNoAvailableSeats
				}
				return err
			}
		}

		stored, err := tx.Bookings().GetByUID(ctx, replacementUID)
		if err != nil {
			return err
		}

		cancelled := *original
		cancelled.Status = domain.BookingCancelled
		cancelled.RescheduledToUID = replacementUID
		cancelled.CancellationReason = rescheduledReason

		e := effects{
			change: change{
				kind:              changeRescheduled,
				booking:           stored,
				organizer:         run.organizer,
				previous:          &cancelled,
				previousOrganizer: run.originalOrganizer,
			},
			rescheduleUID:    original.UID,
			linkHash:         run.linkHash,
			meeting:          run.meeting,
			cancelTriggersOf: original.UID,
		}
		if run.reuseRef != nil {
			e.meetingRef = *run.reuseRef
		} else {
			e.deleteMeetings = original.References
		}

		run.result = &Result{Booking: stored, IsNewBooking: run.target == nil}
		if seat, ok := stored.SeatAttendee(run.req.RescheduleUID); ok {
			run.result.SeatReferenceUID = seat.SeatReferenceUID
		}

		after(func(ctx context.Context) { s.emit(ctx, e) })
		return nil
	})
	if err != nil {
		s.dropPremade(ctx, run.draft)
		return run.fail(err)
	}

	return stateDone
}

func (r *rescheduleRun) replacementUID() string {
	if r.target != nil {
		return r.target.UID
	}
	return r.draft.UID
}

// replacementID is only known for a new draft once it has been inserted.
func (r *rescheduleRun) replacementID() int64 {
	if r.target != nil {
		return r.target.ID
	}
	return r.draft.ID
}

// carriedGuests copies the non-host attendees of b for a new booking.
func carriedGuests(b *domain.Booking) []domain.Attendee {
	guests := b.Guests()
	out := make([]domain.Attendee, 0, len(guests))
	for _, g := range guests {
		g.ID = 0
		g.SeatReferenceUID = ""
		out = append(out, g)
	}
	return out
}
