package repository

import (
	"context"
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
)

type EventTypeRepository interface {
	GetEventType(ctx context.Context, id int64) (*domain.EventType, error)
	CreateEventType(ctx context.Context, et *domain.EventType) error
}

type UserRepository interface {
	// GetUsers returns the users in the order of ids. A missing id fails the
	// whole call with ErrNotFound.
	GetUsers(ctx context.Context, ids []int64) ([]domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
}

type AvailabilityQuery struct {
	UserID int64
	// ScheduleID overrides the user's default schedule when set.
	ScheduleID *int64
}

type ScheduleRepository interface {
	// GetAvailability returns the schedule that governs the user's time.
	// ErrNotFound means the user has no schedule at all.
	GetAvailability(ctx context.Context, q AvailabilityQuery) (*domain.Schedule, error)
	CreateSchedule(ctx context.Context, s *domain.Schedule) error
}

// OverlapQuery matches blocking bookings where the user organizes or the
// email attends.
type OverlapQuery struct {
	UserID     int64
	Email      string
	Window     domain.TimeWindow
	ExcludeUID string
}

type PeriodQuery struct {
	UserID      int64
	Email       string
	EventTypeID int64
	From        time.Time
	To          time.Time
	ExcludeUID  string
}

// RecentQuery counts accepted and pending bookings organized per user for an
// event type since an instant.
type RecentQuery struct {
	EventTypeID int64
	UserIDs     []int64
	Since       time.Time
	ExcludeUID  string
}

type PeriodUsage struct {
	Count   int
	Minutes int
}

type Cancellation struct {
	Reason           string
	RescheduledToUID string
}

type BookingRepository interface {
	FindOverlapping(ctx context.Context, q OverlapQuery) ([]domain.Booking, error)
	CountInPeriod(ctx context.Context, q PeriodQuery) (PeriodUsage, error)
	// CountRecent returns per-user counts for q. Users without bookings are
	// absent from the map.
	CountRecent(ctx context.Context, q RecentQuery) (map[int64]int, error)
	FindSeatedSlot(ctx context.Context, eventTypeID int64, start time.Time, excludeUID string) (*domain.Booking, error)
	GetByUID(ctx context.Context, uid string) (*domain.Booking, error)
	GetBySeatReference(ctx context.Context, seatUID string) (*domain.Booking, error)
	Create(ctx context.Context, b *domain.Booking) error
	Cancel(ctx context.Context, uid string, c Cancellation) error
	// AttachSeats takes len(attendees) seats with a single conditional write
	// and returns ErrNoSeatsLeft when the capacity would be exceeded.
	AttachSeats(ctx context.Context, bookingID int64, attendees []domain.Attendee) error
	// MoveSeats reassigns the seated attendees of one booking to another,
	// taking seats on the target under the same conditional write.
	MoveSeats(ctx context.Context, fromID, toID int64) error
	AddReference(ctx context.Context, bookingID int64, ref domain.BookingReference) error
}

type HashedLinkRepository interface {
	GetHashedLink(ctx context.Context, hash string) (*domain.HashedLink, error)
	CreateHashedLink(ctx context.Context, l *domain.HashedLink) error
	// MarkUsed succeeds once per link; later calls return ErrConflict.
	MarkUsed(ctx context.Context, hash string, at time.Time) error
}

// Repositories is the set of repositories bound to one database handle,
// either the pool or an open transaction.
type Repositories interface {
	EventTypes() EventTypeRepository
	Users() UserRepository
	Schedules() ScheduleRepository
	Bookings() BookingRepository
	HashedLinks() HashedLinkRepository
}

type Store interface {
	Repositories
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Ping(ctx context.Context) error
}
