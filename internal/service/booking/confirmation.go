package booking

import (
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
)

// IsConfirmedByDefault decides whether a booking is ACCEPTED without review.
//
// Without a threshold, a confirmation-gated event type only auto-confirms when
// the organizer reschedules a booking they originally organized; a fresh
// booking made by the organizer still lands as PENDING.
func IsConfirmedByDefault(
	et *domain.EventType,
	start, now time.Time,
	bookerIsOrganizer, rescheduleOriginalOrganizerIsBooker bool,
) bool {
	if !et.RequiresConfirmation {
		return true
	}

	if et.ConfirmationThreshold != nil {
		return start.Sub(now) >= et.ConfirmationThreshold.Duration()
	}

	return bookerIsOrganizer && rescheduleOriginalOrganizerIsBooker
}

func statusFor(confirmed bool) domain.BookingStatus {
	if confirmed {
		return domain.BookingAccepted
	}
	return domain.BookingPending
}
