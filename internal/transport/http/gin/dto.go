package httpgin

import (
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/service/booking"
)

type PersonInput struct {
	Email       string `json:"email" binding:"required"`
	Name        string `json:"name"`
	TimeZone    string `json:"time_zone"`
	Locale      string `json:"locale"`
	PhoneNumber string `json:"phone_number"`
}

func (p PersonInput) booker() booking.Booker {
	return booking.Booker{
		Email:       p.Email,
		Name:        p.Name,
		TimeZone:    p.TimeZone,
		Locale:      p.Locale,
		PhoneNumber: p.PhoneNumber,
	}
}

type WindowInput struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

type CreateBookingRequest struct {
	EventTypeID       int64         `json:"event_type_id" binding:"required"`
	Start             time.Time     `json:"start" binding:"required"`
	End               time.Time     `json:"end" binding:"required"`
	TimeZone          string        `json:"time_zone" binding:"required"`
	Booker            PersonInput   `json:"booker" binding:"required"`
	Guests            []PersonInput `json:"guests" binding:"omitempty,dive"`
	TeamMemberEmail   string        `json:"team_member_email"`
	ContactOwnerEmail string        `json:"contact_owner_email"`
	RescheduleUID     string        `json:"reschedule_uid"`
	RoutedHostIDs     []int64       `json:"routed_host_ids"`
	Recurring         []WindowInput `json:"recurring" binding:"omitempty,dive"`
	HashedLink        string        `json:"hashed_link"`
	Reason            string        `json:"reason"`
}

func (r CreateBookingRequest) toService(rateLimitKey string) booking.CreateRequest {
	req := booking.CreateRequest{
		EventTypeID:        r.EventTypeID,
		Start:              r.Start,
		End:                r.End,
		TimeZone:           r.TimeZone,
		Booker:             r.Booker.booker(),
		TeamMemberEmail:    r.TeamMemberEmail,
		ContactOwnerEmail:  r.ContactOwnerEmail,
		RescheduleUID:      r.RescheduleUID,
		RoutedHostIDs:      r.RoutedHostIDs,
		HashedLinkToken:    r.HashedLink,
		CancellationReason: r.Reason,
		RateLimitKey:       rateLimitKey,
	}
	for _, g := range r.Guests {
		req.Guests = append(req.Guests, g.booker())
	}
	for _, w := range r.Recurring {
		req.RecurringWindows = append(req.RecurringWindows, domain.TimeWindow{Start: w.Start, End: w.End, TimeZone: r.TimeZone})
	}
	return req
}

type BookingResponse struct {
	Booking          *domain.Booking `json:"booking"`
	SeatReferenceUID string          `json:"seat_reference_uid,omitempty"`
	IsNewBooking     bool            `json:"is_new_booking"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	TimeZone string `json:"time_zone"`
	Locale   string `json:"locale"`
}

type CreateScheduleRequest struct {
	UserID       int64                     `json:"user_id" binding:"required"`
	Name         string                    `json:"name" binding:"required"`
	TimeZone     string                    `json:"time_zone"`
	Availability []domain.AvailabilityRule `json:"availability" binding:"required,min=1"`
}

type CreateHashedLinkRequest struct {
	TTLSec int `json:"ttl_sec" binding:"gte=0"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type CreatedResponse struct {
	ID int64 `json:"id"`
}

type CreateHashedLinkResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
