package domain

import "time"

type SchedulingType string

const (
	SchedulingIndividual SchedulingType = ""
	SchedulingCollective SchedulingType = "COLLECTIVE"
	SchedulingRoundRobin SchedulingType = "ROUND_ROBIN"
	SchedulingManaged    SchedulingType = "MANAGED"
)

type ThresholdUnit string

const (
	ThresholdMinutes ThresholdUnit = "minutes"
	ThresholdHours   ThresholdUnit = "hours"
	ThresholdDays    ThresholdUnit = "days"
)

// ConfirmationThreshold is the minimum notice after which a booking of an
// event type that requires confirmation is accepted without review.
type ConfirmationThreshold struct {
	Amount int           `json:"amount"`
	Unit   ThresholdUnit `json:"unit"`
}

func (t ConfirmationThreshold) Duration() time.Duration {
	switch t.Unit {
	case ThresholdHours:
		return time.Duration(t.Amount) * time.Hour
	case ThresholdDays:
		return time.Duration(t.Amount) * 24 * time.Hour
	default:
		return time.Duration(t.Amount) * time.Minute
	}
}

type LimitPeriod string

const (
	PerDay   LimitPeriod = "PER_DAY"
	PerWeek  LimitPeriod = "PER_WEEK"
	PerMonth LimitPeriod = "PER_MONTH"
	PerYear  LimitPeriod = "PER_YEAR"
)

// LimitPeriods lists periods from the narrowest to the widest.
var LimitPeriods = []LimitPeriod{PerDay, PerWeek, PerMonth, PerYear}

// Bounds returns the [from, to) period containing t in loc.
func (p LimitPeriod) Bounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	y, m, d := t.Date()

	switch p {
	case PerWeek:
		offset := (int(t.Weekday()) + 6) % 7
		from := time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 0, 7)
	case PerMonth:
		from := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0)
	case PerYear:
		from := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(1, 0, 0)
	default:
		from := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 0, 1)
	}
}

// BookingLimits caps the number of bookings per period.
type BookingLimits map[LimitPeriod]int

// DurationLimits caps the accumulated booked minutes per period.
type DurationLimits map[LimitPeriod]int

const (
	DefaultHostPriority = 2
	DefaultHostWeight   = 100
)

type HostRef struct {
	UserID   int64 `json:"user_id"`
	IsFixed  bool  `json:"is_fixed"`
	Priority *int  `json:"priority,omitempty"`
	Weight   *int  `json:"weight,omitempty"`
}

// EventType is the immutable configuration a booking request is evaluated
// against.
type EventType struct {
	ID                               int64                  `json:"id"`
	OwnerID                          int64                  `json:"owner_id"`
	Slug                             string                 `json:"slug"`
	Title                            string                 `json:"title"`
	SchedulingType                   SchedulingType         `json:"scheduling_type"`
	LengthMinutes                    int                    `json:"length_minutes"`
	MultipleDurations                []int                  `json:"multiple_durations,omitempty"`
	RequiresConfirmation             bool                   `json:"requires_confirmation"`
	ConfirmationThreshold            *ConfirmationThreshold `json:"confirmation_threshold,omitempty"`
	SeatsPerTimeSlot                 *int                   `json:"seats_per_time_slot,omitempty"`
	ScheduleID                       *int64                 `json:"schedule_id,omitempty"`
	BookingLimits                    BookingLimits          `json:"booking_limits,omitempty"`
	DurationLimits                   DurationLimits         `json:"duration_limits,omitempty"`
	RescheduleWithSameRoundRobinHost bool                   `json:"reschedule_with_same_round_robin_host"`
	Hosts                            []HostRef              `json:"hosts"`
}

func (e EventType) SeatsEnabled() bool {
	return e.SeatsPerTimeSlot != nil && *e.SeatsPerTimeSlot > 0
}

// AllowsDuration reports whether d matches the event length or one of the
// allowed alternative durations, within a one second tolerance.
func (e EventType) AllowsDuration(d time.Duration) bool {
	allowed := append([]int{e.LengthMinutes}, e.MultipleDurations...)
	for _, minutes := range allowed {
		diff := d - time.Duration(minutes)*time.Minute
		if diff < 0 {
			diff = -diff
		}
		if minutes > 0 && diff < time.Second {
			return true
		}
	}
	return false
}

func (e EventType) HostUserIDs() []int64 {
	ids := make([]int64, 0, len(e.Hosts))
	for _, h := range e.Hosts {
		ids = append(ids, h.UserID)
	}
	return ids
}
