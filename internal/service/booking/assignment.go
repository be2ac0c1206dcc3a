package booking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

// Assignment is the in-flight result of host selection: one organizer plus
// the co-hosts that join the booking on behalf of the team.
type Assignment struct {
	Organizer domain.Host
	CoHosts   []domain.Host
}

// RescheduleContext describes the booking an assignment replaces.
type RescheduleContext struct {
	OriginalUID         string
	OriginalOrganizerID int64
	Rerouting           bool
}

// AssignInput carries everything host selection needs for one request.
type AssignInput struct {
	EventType         *domain.EventType
	Hosts             []domain.Host
	Window            domain.TimeWindow
	TeamMemberEmail   string
	ContactOwnerEmail string
	RoutedHostIDs     []int64
	FollowingWindows  []domain.TimeWindow
	Reschedule        *RescheduleContext
}

func (in AssignInput) excludeUID() string {
	if in.Reschedule == nil {
		return ""
	}
	return in.Reschedule.OriginalUID
}

// Assigner implements the collective and round-robin strategies.
type Assigner struct {
	resolver       *Resolver
	bookings       repository.BookingRepository
	fairnessWindow time.Duration
	lookahead      int
	now            func() time.Time
}

func NewAssigner(
	resolver *Resolver,
	bookings repository.BookingRepository,
	fairnessWindow time.Duration,
	lookahead int,
	now func() time.Time,
) *Assigner {
	return &Assigner{
		resolver:       resolver,
		bookings:       bookings,
		fairnessWindow: fairnessWindow,
		lookahead:      lookahead,
		now:            now,
	}
}

// Assign picks the organizer and co-hosts for the window.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: event type, loaded hosts, window and routing hints.
//
// Returns:
//   - Assignment: the selected organizer and co-hosts.
//   - error: HostsUnavailableError if a required host is busy.
//   - error: booking.ErrNoAvailableUsersFound if the round-robin pool is exhausted.
func (a *Assigner) Assign(ctx context.Context, in AssignInput) (Assignment, error) {
	const op = "service.booking.Assigner.Assign"

	if len(in.Hosts) == 0 {
		return Assignment{}, fmt.Errorf("%s:%w", op, ErrHostsUnavailable)
	}

	var (
		out Assignment
		err error
	)
	if in.EventType.SchedulingType == domain.SchedulingRoundRobin {
		out, err = a.roundRobin(ctx, in)
	} else {
		out, err = a.collective(ctx, in)
	}
	if err != nil {
		return Assignment{}, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// collective requires every configured host. Individual and managed event
// types go through here with their single host.
func (a *Assigner) collective(ctx context.Context, in AssignInput) (Assignment, error) {
	res, err := a.resolver.Resolve(ctx, in.EventType, in.Hosts, in.Window, in.excludeUID())
	if err != nil {
		return Assignment{}, err
	}
	if len(res.Unavailable) > 0 {
		return Assignment{}, unavailable(res.Unavailable)
	}

	organizer := 0
	for i, h := range in.Hosts {
		if h.HasEmail(in.TeamMemberEmail) {
			organizer = i
			break
		}
	}

	return split(in.Hosts, organizer), nil
}

func (a *Assigner) roundRobin(ctx context.Context, in AssignInput) (Assignment, error) {
	var fixed, pool []domain.Host
	for _, h := range in.Hosts {
		switch {
		case h.IsFixed:
			fixed = append(fixed, h)
		case len(in.RoutedHostIDs) == 0 || containsID(in.RoutedHostIDs, h.ID):
			pool = append(pool, h)
		}
	}

	res, err := a.resolver.Resolve(ctx, in.EventType, append(append([]domain.Host{}, fixed...), pool...), in.Window, in.excludeUID())
	if err != nil {
		return Assignment{}, err
	}

	var busyFixed []domain.Host
	for _, h := range fixed {
		if !res.isAvailable(h.ID) {
			busyFixed = append(busyFixed, h)
		}
	}
	if len(busyFixed) > 0 {
		return Assignment{}, unavailable(busyFixed)
	}

	if len(pool) == 0 {
		if len(fixed) == 0 {
			return Assignment{}, ErrNoAvailableUsersFound
		}
		return split(fixed, 0), nil
	}

	var candidates []domain.Host
	for _, h := range pool {
		if res.isAvailable(h.ID) {
			candidates = append(candidates, h)
		}
	}

	lucky, found, err := a.pickLucky(ctx, in, candidates)
	if err != nil {
		return Assignment{}, err
	}
	if !found {
		return Assignment{}, ErrNoAvailableUsersFound
	}

	return Assignment{Organizer: lucky, CoHosts: fixed}, nil
}

// pickLucky returns the selected pool host, or found=false when no candidate
// qualifies. The contact owner, then the original organizer of a reschedule,
// are preferred over fairness order; every pick must also be free for the
// following windows of a recurring series.
func (a *Assigner) pickLucky(ctx context.Context, in AssignInput, candidates []domain.Host) (domain.Host, bool, error) {
	if len(candidates) == 0 {
		return domain.Host{}, false, nil
	}

	following := in.FollowingWindows
	if len(following) > a.lookahead {
		following = following[:a.lookahead]
	}

	var preferred []domain.Host
	for _, h := range candidates {
		if h.HasEmail(in.ContactOwnerEmail) {
			preferred = append(preferred, h)
		}
	}
	if r := in.Reschedule; r != nil && !r.Rerouting && in.EventType.RescheduleWithSameRoundRobinHost {
		for _, h := range candidates {
			if h.ID == r.OriginalOrganizerID {
				preferred = append(preferred, h)
			}
		}
	}

	ordered, err := a.orderByFairness(ctx, in, candidates)
	if err != nil {
		return domain.Host{}, false, err
	}

	for _, h := range append(preferred, ordered...) {
		ok, err := a.freeForAll(ctx, in, h, following)
		if err != nil {
			return domain.Host{}, false, err
		}
		if ok {
			return h, true, nil
		}
	}

	return domain.Host{}, false, nil
}

// orderByFairness sorts by priority, then by recent bookings per unit of
// weight, then by user id.
func (a *Assigner) orderByFairness(ctx context.Context, in AssignInput, hosts []domain.Host) ([]domain.Host, error) {
	ids := make([]int64, 0, len(hosts))
	for _, h := range hosts {
		ids = append(ids, h.ID)
	}

	counts, err := a.bookings.CountRecent(ctx, repository.RecentQuery{
		EventTypeID: in.EventType.ID,
		UserIDs:     ids,
		Since:       a.now().Add(-a.fairnessWindow),
		ExcludeUID:  in.excludeUID(),
	})
	if err != nil {
		return nil, err
	}

	ordered := append([]domain.Host(nil), hosts...)
	sort.SliceStable(ordered, func(i, j int) bool {
		hi, hj := ordered[i], ordered[j]
		if hi.Priority != hj.Priority {
			return hi.Priority < hj.Priority
		}
		li := int64(counts[hi.ID]) * int64(hj.Weight)
		lj := int64(counts[hj.ID]) * int64(hi.Weight)
		if li != lj {
			return li < lj
		}
		return hi.ID < hj.ID
	})

	return ordered, nil
}

func (a *Assigner) freeForAll(ctx context.Context, in AssignInput, h domain.Host, windows []domain.TimeWindow) (bool, error) {
	for _, w := range windows {
		ok, err := a.resolver.IsAvailable(ctx, in.EventType, h, w, in.excludeUID())
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func split(hosts []domain.Host, organizer int) Assignment {
	out := Assignment{Organizer: hosts[organizer]}
	for i, h := range hosts {
		if i != organizer {
			out.CoHosts = append(out.CoHosts, h)
		}
	}
	return out
}

func unavailable(hosts []domain.Host) error {
	ids := make([]int64, 0, len(hosts))
	for _, h := range hosts {
		ids = append(ids, h.ID)
	}
	return HostsUnavailableError{UserIDs: ids}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
