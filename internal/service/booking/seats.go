package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

// SeatResult is the outcome of placing one attendee on a seated slot.
type SeatResult struct {
	Booking      *domain.Booking
	Attendee     domain.Attendee
	IsNewBooking bool
}

// SeatManager places attendees on the shared booking of a seated slot.
type SeatManager struct{}

// FindSlot returns the accepted booking backing (event type, start), or nil
// when the slot has not been opened yet. excludeUID skips a booking that is
// being rescheduled away.
func (SeatManager) FindSlot(
	ctx context.Context,
	bookings repository.BookingRepository,
	et *domain.EventType,
	w domain.TimeWindow,
	excludeUID string,
) (*domain.Booking, error) {
	const op = "service.booking.SeatManager.FindSlot"

	if !et.SeatsEnabled() {
		return nil, nil
	}

	slot, err := bookings.FindSeatedSlot(ctx, et.ID, w.Start, excludeUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return slot, nil
}

// Attach takes one seat on slot for a. The seat counter is advanced with a
// conditional write, so concurrent requests cannot overfill the slot.
//
// Parameters:
//   - ctx: request-scoped context.
//   - bookings: repository bound to the current transaction.
//   - slot: booking backing the slot.
//   - a: attendee taking the seat.
//
// Returns:
//   - domain.Attendee: the stored attendee with its seat reference uid.
//   - error: booking.ErrNoAvailableSeats if the slot is full.
func (SeatManager) Attach(
	ctx context.Context,
	bookings repository.BookingRepository,
	slot *domain.Booking,
	a domain.Attendee,
) (domain.Attendee, error) {
	const op = "service.booking.SeatManager.Attach"

	for _, existing := range slot.Guests() {
		if existing.SeatReferenceUID != "" && equalEmail(existing.Email, a.Email) {
			return domain.Attendee{}, fmt.Errorf("%s:%w", op, ErrBookingConflict)
		}
	}

	seated := withSeat(a)
	if err := bookings.AttachSeats(ctx, slot.ID, []domain.Attendee{seated}); err != nil {
		if errors.Is(err, repository.ErrNoSeatsLeft) {
			return domain.Attendee{}, fmt.Errorf("%s:%w", op, ErrNoAvailableSeats)
		}
		if errors.Is(err, repository.ErrConflict) {
			return domain.Attendee{}, fmt.Errorf("%s:%w", op, ErrBookingConflict)
		}
		return domain.Attendee{}, fmt.Errorf("%s:%w", op, err)
	}

	slot.Attendees = append(slot.Attendees, seated)
	slot.SeatsTaken++

	return seated, nil
}

// AttachOrCreate joins the open slot for w if one exists and otherwise calls
// create to open it with a as its first occupant.
func (m SeatManager) AttachOrCreate(
	ctx context.Context,
	bookings repository.BookingRepository,
	et *domain.EventType,
	w domain.TimeWindow,
	a domain.Attendee,
	excludeUID string,
	create func(ctx context.Context, first domain.Attendee) (*domain.Booking, error),
) (SeatResult, error) {
	const op = "service.booking.SeatManager.AttachOrCreate"

	slot, err := m.FindSlot(ctx, bookings, et, w, excludeUID)
	if err != nil {
		return SeatResult{}, fmt.Errorf("%s:%w", op, err)
	}

	if slot != nil {
		seated, err := m.Attach(ctx, bookings, slot, a)
		if err != nil {
			return SeatResult{}, fmt.Errorf("%s:%w", op, err)
		}
		return SeatResult{Booking: slot, Attendee: seated}, nil
	}

	first := withSeat(a)
	b, err := create(ctx, first)
	if err != nil {
		return SeatResult{}, fmt.Errorf("%s:%w", op, err)
	}

	return SeatResult{Booking: b, Attendee: first, IsNewBooking: true}, nil
}

func withSeat(a domain.Attendee) domain.Attendee {
	a.SeatReferenceUID = uuid.NewString()
	a.IsHost = false
	return a
}
