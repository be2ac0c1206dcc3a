package domain

import (
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingAccepted  BookingStatus = "ACCEPTED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Blocks reports whether a booking in this status occupies its hosts' time.
func (s BookingStatus) Blocks() bool {
	return s == BookingAccepted || s == BookingPending
}

type Attendee struct {
	ID               int64  `json:"id,omitempty"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	TimeZone         string `json:"time_zone"`
	Locale           string `json:"locale,omitempty"`
	PhoneNumber      string `json:"phone_number,omitempty"`
	SeatReferenceUID string `json:"seat_reference_uid,omitempty"`
	IsHost           bool   `json:"is_host,omitempty"`
}

func (a Attendee) Person() Person {
	return Person{Email: a.Email, Name: a.Name, TimeZone: a.TimeZone, Locale: a.Locale}
}

type BookingReference struct {
	Type       string `json:"type"`
	UID        string `json:"uid"`
	MeetingURL string `json:"meeting_url,omitempty"`
}

type Booking struct {
	ID                 int64              `json:"id"`
	UID                string             `json:"uid"`
	EventTypeID        int64              `json:"event_type_id"`
	Title              string             `json:"title"`
	Status             BookingStatus      `json:"status"`
	StartTime          time.Time          `json:"start_time"`
	EndTime            time.Time          `json:"end_time"`
	OrganizerID        int64              `json:"organizer_id"`
	Attendees          []Attendee         `json:"attendees"`
	References         []BookingReference `json:"references,omitempty"`
	SeatCapacity       *int               `json:"seat_capacity,omitempty"`
	SeatsTaken         int                `json:"seats_taken"`
	ICalUID            string             `json:"ical_uid"`
	ICalSequence       int                `json:"ical_sequence"`
	RescheduledFromUID string             `json:"rescheduled_from_uid,omitempty"`
	RescheduledToUID   string             `json:"rescheduled_to_uid,omitempty"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

func (b Booking) Window() TimeWindow {
	return TimeWindow{Start: b.StartTime, End: b.EndTime}
}

// SeatsRemaining is zero for bookings without seats.
func (b Booking) SeatsRemaining() int {
	if b.SeatCapacity == nil {
		return 0
	}
	if left := *b.SeatCapacity - b.SeatsTaken; left > 0 {
		return left
	}
	return 0
}

// Guests returns attendees that are not team members of the booking.
func (b Booking) Guests() []Attendee {
	var out []Attendee
	for _, a := range b.Attendees {
		if !a.IsHost {
			out = append(out, a)
		}
	}
	return out
}

func (b Booking) HostAttendees() []Attendee {
	var out []Attendee
	for _, a := range b.Attendees {
		if a.IsHost {
			out = append(out, a)
		}
	}
	return out
}

func (b Booking) SeatAttendee(seatUID string) (Attendee, bool) {
	for _, a := range b.Attendees {
		if a.SeatReferenceUID != "" && strings.EqualFold(a.SeatReferenceUID, seatUID) {
			return a, true
		}
	}
	return Attendee{}, false
}

// HashedLink is a private single-use booking link for an event type.
type HashedLink struct {
	Hash        string     `json:"hash"`
	EventTypeID int64      `json:"event_type_id"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (l HashedLink) Usable(now time.Time) bool {
	if l.UsedAt != nil {
		return false
	}
	return l.ExpiresAt == nil || now.Before(*l.ExpiresAt)
}
