package booking

import (
	"context"
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
)

// MeetingProvider creates the conferencing resource attached to a booking.
type MeetingProvider interface {
	CreateMeeting(ctx context.Context, b domain.Booking) (domain.BookingReference, error)
	UpdateMeeting(ctx context.Context, ref domain.BookingReference, b domain.Booking) (domain.BookingReference, error)
	DeleteMeeting(ctx context.Context, ref domain.BookingReference) error
}

// WebhookDispatcher schedules webhook triggers. Delivery is deduplicated by
// booking uid and trigger, so scheduling the same trigger twice is harmless.
type WebhookDispatcher interface {
	Schedule(ctx context.Context, w domain.Webhook) error
	// Cancel drops every pending trigger of the booking.
	Cancel(ctx context.Context, uid string) error
}

type NotificationDispatcher interface {
	Send(ctx context.Context, n domain.Notification) error
}

type EventTypeLoader interface {
	GetEventType(ctx context.Context, id int64) (*domain.EventType, error)
}

// LinkVerifier decodes a signed single-use booking link token.
type LinkVerifier interface {
	Verify(token string) (hash string, eventTypeID int64, err error)
}

type RateLimiter interface {
	Allow(ctx context.Context, caller string) (bool, int64, time.Duration, error)
}
