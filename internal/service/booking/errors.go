package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidEventLength      = errors.New("requested duration does not match the event type")
	ErrHostsUnavailable        = errors.New("required hosts are unavailable")
	ErrNoAvailableUsersFound   = errors.New("no available users found")
	ErrBookingConflict         = errors.New("booking conflicts with an existing booking")
	ErrNoAvailableSeats        = errors.New("no available seats")
	ErrEventTypeNotFound       = errors.New("event type not found")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrBookingNotReschedulable = errors.New("booking cannot be rescheduled")
	ErrBookingAlreadyCancelled = errors.New("booking is already cancelled")
	ErrHashedLinkInvalid       = errors.New("booking link is invalid or already used")
	ErrRateLimited             = errors.New("rate limited")
	ErrMeetingProvider         = errors.New("meeting provider failed")
)

// HostsUnavailableError names the required hosts that failed availability.
type HostsUnavailableError struct {
	UserIDs []int64
}

func (e HostsUnavailableError) Error() string {
	return fmt.Sprintf("required hosts are unavailable: %v", e.UserIDs)
}

func (e HostsUnavailableError) Is(target error) bool {
	return target == ErrHostsUnavailable
}

// RateLimitedError carries the delay after which the caller may retry.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

func (e RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// ValidationError aggregates field-level validation failures.
type ValidationError struct {
	FieldErrors map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.FieldErrors) == 0 {
		return "validation failed"
	}

	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e.FieldErrors[field])
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether at least one field error is present.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.FieldErrors) > 0
}

func (e *ValidationError) add(field, message string) {
	if e.FieldErrors == nil {
		e.FieldErrors = make(map[string]string)
	}
	if _, exists := e.FieldErrors[field]; !exists {
		e.FieldErrors[field] = message
	}
}

// ErrorKind maps err to a stable label for logs and metrics.
func ErrorKind(err error) string {
	var verr *ValidationError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, ErrInvalidEventLength):
		return "invalid_event_length"
	case errors.Is(err, ErrHostsUnavailable):
		return "hosts_unavailable"
	case errors.Is(err, ErrNoAvailableUsersFound):
		return "no_available_users"
	case errors.Is(err, ErrBookingConflict):
		return "booking_conflict"
	case errors.Is(err, ErrNoAvailableSeats):
		return "no_available_seats"
	case errors.Is(err, ErrEventTypeNotFound), errors.Is(err, ErrBookingNotFound):
		return "not_found"
	case errors.Is(err, ErrBookingNotReschedulable), errors.Is(err, ErrBookingAlreadyCancelled):
		return "booking_cancelled"
	case errors.Is(err, ErrHashedLinkInvalid):
		return "hashed_link_invalid"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMeetingProvider):
		return "meeting_provider"
	default:
		return "unexpected"
	}
}
