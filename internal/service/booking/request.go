package booking

import (
	"net/mail"
	"strings"
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
)

// Booker is a person booking a slot.
type Booker struct {
	Email       string
	Name        string
	TimeZone    string
	Locale      string
	PhoneNumber string
}

func (b Booker) attendee() domain.Attendee {
	return domain.Attendee{
		Email:       strings.TrimSpace(b.Email),
		Name:        b.Name,
		TimeZone:    b.TimeZone,
		Locale:      b.Locale,
		PhoneNumber: b.PhoneNumber,
	}
}

// CreateRequest is a request to book, or rebook, a slot of an event type.
type CreateRequest struct {
	EventTypeID int64
	Start       time.Time
	End         time.Time
	TimeZone    string
	Booker      Booker
	Guests      []Booker

	// TeamMemberEmail picks the organizer of a collective booking.
	TeamMemberEmail string
	// ContactOwnerEmail short-circuits round-robin selection.
	ContactOwnerEmail string

	// RescheduleUID is the uid, or seat reference uid, of the booking being moved.
	RescheduleUID string
	// RoutedHostIDs restricts the round-robin pool to an externally routed
	// host list. A reschedule carrying it is a rerouting.
	RoutedHostIDs []int64

	// RecurringWindows are the windows following Start in a recurring series.
	RecurringWindows []domain.TimeWindow

	HashedLinkToken    string
	CancellationReason string

	// RateLimitKey identifies the caller for rate limiting, usually the client IP.
	RateLimitKey string
}

func (r CreateRequest) rerouting() bool {
	return len(r.RoutedHostIDs) > 0
}

func (r CreateRequest) validate() error {
	verr := &ValidationError{}

	if r.EventTypeID <= 0 {
		verr.add("event_type_id", "must be positive")
	}
	if r.Start.IsZero() {
		verr.add("start", "is required")
	}
	if r.End.IsZero() {
		verr.add("end", "is required")
	} else if !r.End.After(r.Start) {
		verr.add("end", "must be after start")
	}
	if r.TimeZone != "" {
		if _, err := time.LoadLocation(r.TimeZone); err != nil {
			verr.add("time_zone", "unknown time zone")
		}
	}

	validatePerson(verr, "booker", r.Booker)
	seen := map[string]struct{}{strings.ToLower(strings.TrimSpace(r.Booker.Email)): {}}
	for _, g := range r.Guests {
		validatePerson(verr, "guests", g)
		key := strings.ToLower(strings.TrimSpace(g.Email))
		if _, dup := seen[key]; dup {
			verr.add("guests", "duplicate email "+g.Email)
		}
		seen[key] = struct{}{}
	}

	for _, w := range r.RecurringWindows {
		if !w.End.After(w.Start) || !w.Start.After(r.Start) {
			verr.add("recurring_windows", "windows must follow the first slot")
			break
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func validatePerson(verr *ValidationError, field string, b Booker) {
	email := strings.TrimSpace(b.Email)
	if email == "" {
		verr.add(field+".email", "is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		verr.add(field+".email", "is not a valid address")
	}
	if strings.TrimSpace(b.Name) == "" {
		verr.add(field+".name", "is required")
	}
}

// Result is the outcome of a create or reschedule.
type Result struct {
	Booking *domain.Booking
	// SeatReferenceUID identifies the booker's seat on seated event types.
	SeatReferenceUID string
	// IsNewBooking is false when the booker was attached to an existing slot.
	IsNewBooking bool
}
