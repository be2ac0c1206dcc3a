package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

const defaultResolveConcurrency = 8

// Resolution partitions the candidate hosts by availability, preserving the
// input order within each side.
type Resolution struct {
	Available   []domain.Host
	Unavailable []domain.Host
}

func (r Resolution) isAvailable(userID int64) bool {
	for _, h := range r.Available {
		if h.ID == userID {
			return true
		}
	}
	return false
}

// Resolver decides which hosts are free for a window.
type Resolver struct {
	repos       repository.Repositories
	concurrency int
}

func NewResolver(repos repository.Repositories, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = defaultResolveConcurrency
	}
	return &Resolver{repos: repos, concurrency: concurrency}
}

// Resolve checks every host against its schedule, its existing bookings and
// the event type's limits. Hosts listed twice are checked once.
//
// Parameters:
//   - ctx: request-scoped context.
//   - et: event type being booked.
//   - hosts: candidate hosts.
//   - w: requested window.
//   - excludeUID: uid of a booking being rescheduled, ignored as a conflict.
//
// Returns:
//   - Resolution: available and unavailable hosts.
//   - error: any repository error.
func (r *Resolver) Resolve(
	ctx context.Context,
	et *domain.EventType,
	hosts []domain.Host,
	w domain.TimeWindow,
	excludeUID string,
) (Resolution, error) {
	const op = "service.booking.Resolver.Resolve"

	seen := make(map[int64]struct{}, len(hosts))
	unique := make([]domain.Host, 0, len(hosts))
	for _, h := range hosts {
		if _, dup := seen[h.ID]; dup {
			continue
		}
		seen[h.ID] = struct{}{}
		unique = append(unique, h)
	}

	free := make([]bool, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, h := range unique {
		g.Go(func() error {
			ok, err := r.IsAvailable(gctx, et, h, w, excludeUID)
			if err != nil {
				return err
			}
			free[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Resolution{}, fmt.Errorf("%s:%w", op, err)
	}

	var res Resolution
	for i, h := range unique {
		if free[i] {
			res.Available = append(res.Available, h)
		} else {
			res.Unavailable = append(res.Unavailable, h)
		}
	}

	return res, nil
}

// IsAvailable reports whether a single host can take the window.
func (r *Resolver) IsAvailable(
	ctx context.Context,
	et *domain.EventType,
	h domain.Host,
	w domain.TimeWindow,
	excludeUID string,
) (bool, error) {
	const op = "service.booking.Resolver.IsAvailable"

	schedule, err := r.repos.Schedules().GetAvailability(ctx, repository.AvailabilityQuery{
		UserID:     h.ID,
		ScheduleID: et.ScheduleID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s:%w", op, err)
	}

	covered, err := schedule.Covers(w)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}
	if !covered {
		return false, nil
	}

	busy, err := r.repos.Bookings().FindOverlapping(ctx, repository.OverlapQuery{
		UserID:     h.ID,
		Email:      h.Email,
		Window:     w,
		ExcludeUID: excludeUID,
	})
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}
	for _, b := range busy {
		if !b.Status.Blocks() || !b.Window().Overlaps(w) {
			continue
		}
		if !joinableSeat(et, b, w) {
			return false, nil
		}
	}

	loc, err := schedule.Location()
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	within, err := r.withinLimits(ctx, et, h, w, loc, excludeUID)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return within, nil
}

// withinLimits checks every configured period, measured in the schedule's
// time zone, against the usage the new booking would add.
func (r *Resolver) withinLimits(
	ctx context.Context,
	et *domain.EventType,
	h domain.Host,
	w domain.TimeWindow,
	loc *time.Location,
	excludeUID string,
) (bool, error) {
	minutes := int(w.Duration() / time.Minute)

	for _, period := range domain.LimitPeriods {
		maxCount := et.BookingLimits[period]
		maxMinutes := et.DurationLimits[period]
		if maxCount <= 0 && maxMinutes <= 0 {
			continue
		}

		from, to := period.Bounds(w.Start, loc)
		usage, err := r.repos.Bookings().CountInPeriod(ctx, repository.PeriodQuery{
			UserID:      h.ID,
			Email:       h.Email,
			EventTypeID: et.ID,
			From:        from,
			To:          to,
			ExcludeUID:  excludeUID,
		})
		if err != nil {
			return false, err
		}

		if maxCount > 0 && usage.Count+1 > maxCount {
			return false, nil
		}
		if maxMinutes > 0 && usage.Minutes+minutes > maxMinutes {
			return false, nil
		}
	}

	return true, nil
}

// joinableSeat reports whether b is the seated slot the request would join,
// which does not make its host busy.
func joinableSeat(et *domain.EventType, b domain.Booking, w domain.TimeWindow) bool {
	return et.SeatsEnabled() &&
		b.EventTypeID == et.ID &&
		b.Status == domain.BookingAccepted &&
		b.SeatCapacity != nil &&
		b.Window().Start.Equal(w.Start)
}
