package admin

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
	redisrepo "github.com/kirinyoku/slotbook/internal/repository/redis"
	"github.com/kirinyoku/slotbook/internal/uow"
)

// LinkIssuer mints the token of a new hashed link and the hash it is stored
// under.
type LinkIssuer interface {
	Issue(eventTypeID int64) (token, hash string, err error)
}

type Service struct {
	store repository.Store
	cache *redisrepo.Cache
	links LinkIssuer
	uow   *uow.UoW[repository.Repositories]
	now   func() time.Time
}

// New returns the configuration side of the engine. cache and links may be
// nil.
func New(store repository.Store, cache *redisrepo.Cache, links LinkIssuer) *Service {
	return &Service{
		store: store,
		cache: cache,
		links: links,
		uow:   uow.New[repository.Repositories](store, 5*time.Second),
		now:   time.Now,
	}
}

// CreateUser stores a user and fills in its ID.
//
// Parameters:
//   - ctx: request-scoped context.
//   - u: user to create; Email is required.
//
// Returns:
//   - error: admin.ErrInvalidInput if the email or time zone is malformed.
//   - error: admin.ErrUserConflict if the email is already taken.
func (s *Service) CreateUser(ctx context.Context, u *domain.User) error {
	const op = "service.admin.CreateUser"

	addr, err := mail.ParseAddress(u.Email)
	if err != nil {
		return fmt.Errorf("%s:%w: email: %v", op, ErrInvalidInput, err)
	}
	u.Email = strings.ToLower(addr.Address)

	if err := checkTimeZone(u.TimeZone); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%s:%w", op, ErrUserConflict)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// CreateSchedule stores an availability schedule. The first schedule of a
// user becomes its default.
//
// Parameters:
//   - ctx: request-scoped context.
//   - sc: schedule to create, with its rules.
//
// Returns:
//   - error: admin.ErrInvalidInput if a rule or the time zone is malformed.
//   - error: admin.ErrUserNotFound if the owner does not exist.
func (s *Service) CreateSchedule(ctx context.Context, sc *domain.Schedule) error {
	const op = "service.admin.CreateSchedule"

	if err := checkTimeZone(sc.TimeZone); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	for i, rule := range sc.Availability {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("%s:%w: availability[%d]: %v", op, ErrInvalidInput, i, err)
		}
	}

	return s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, _ func(uow.AfterCommit)) error {
		if err := requireUsers(ctx, tx, sc.UserID); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		if err := tx.Schedules().CreateSchedule(ctx, sc); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		return nil
	})
}

// CreateEventType validates and stores an event type. Without explicit
// hosts the owner becomes the single fixed host.
//
// Parameters:
//   - ctx: request-scoped context.
//   - et: event type to create.
//
// Returns:
//   - error: admin.ErrInvalidInput if the configuration is inconsistent.
//   - error: admin.ErrUserNotFound if the owner or a host does not exist.
//   - error: admin.ErrEventTypeConflict if the slug is already taken.
func (s *Service) CreateEventType(ctx context.Context, et *domain.EventType) error {
	const op = "service.admin.CreateEventType"

	if len(et.Hosts) == 0 {
		et.Hosts = []domain.HostRef{{UserID: et.OwnerID, IsFixed: true}}
	}
	if et.SchedulingType != domain.SchedulingRoundRobin {
		for i := range et.Hosts {
			et.Hosts[i].IsFixed = true
		}
	}

	if err := validateEventType(et); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	userIDs := append([]int64{et.OwnerID}, et.HostUserIDs()...)

	return s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		if err := requireUsers(ctx, tx, userIDs...); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := tx.EventTypes().CreateEventType(ctx, et); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrEventTypeConflict)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateEventType(ctx, et.ID)
			}
		})
		return nil
	})
}

// CreateHashedLink issues a private single-use booking link for an event
// type.
//
// Parameters:
//   - ctx: request-scoped context.
//   - eventTypeID: event type the link books.
//   - ttl: link lifetime; zero means the link never expires.
//
// Returns:
//   - string: the token to hand to the booker.
//   - *domain.HashedLink: the stored link.
//   - error: admin.ErrEventTypeNotFound if the event type does not exist.
func (s *Service) CreateHashedLink(ctx context.Context, eventTypeID int64, ttl time.Duration) (string, *domain.HashedLink, error) {
	const op = "service.admin.CreateHashedLink"

	if s.links == nil {
		return "", nil, fmt.Errorf("%s:%w", op, ErrLinksNotConfigured)
	}

	if _, err := s.store.EventTypes().GetEventType(ctx, eventTypeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, fmt.Errorf("%s:%w", op, ErrEventTypeNotFound)
		}
		return "", nil, fmt.Errorf("%s:%w", op, err)
	}

	token, hash, err := s.links.Issue(eventTypeID)
	if err != nil {
		return "", nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.now().UTC()
	link := &domain.HashedLink{Hash: hash, EventTypeID: eventTypeID, CreatedAt: now}
	if ttl > 0 {
		expires := now.Add(ttl)
		link.ExpiresAt = &expires
	}

	if err := s.store.HashedLinks().CreateHashedLink(ctx, link); err != nil {
		return "", nil, fmt.Errorf("%s:%w", op, err)
	}

	return token, link, nil
}

func validateEventType(et *domain.EventType) error {
	switch {
	case strings.TrimSpace(et.Slug) == "":
		return fmt.Errorf("%w: slug is required", ErrInvalidInput)
	case et.LengthMinutes <= 0:
		return fmt.Errorf("%w: length must be positive", ErrInvalidInput)
	case et.SeatsPerTimeSlot != nil && *et.SeatsPerTimeSlot <= 0:
		return fmt.Errorf("%w: seats per time slot must be positive", ErrInvalidInput)
	// seats are only taken on accepted bookings
	case et.SeatsEnabled() && et.RequiresConfirmation:
		return fmt.Errorf("%w: seated event types cannot require confirmation", ErrInvalidInput)
	}

	switch et.SchedulingType {
	case domain.SchedulingIndividual, domain.SchedulingCollective, domain.SchedulingRoundRobin:
	default:
		return fmt.Errorf("%w: unsupported scheduling type %q", ErrInvalidInput, et.SchedulingType)
	}

	for _, d := range et.MultipleDurations {
		if d <= 0 {
			return fmt.Errorf("%w: durations must be positive", ErrInvalidInput)
		}
	}

	for _, limits := range []map[domain.LimitPeriod]int{et.BookingLimits, et.DurationLimits} {
		for period, limit := range limits {
			if !isLimitPeriod(period) || limit < 0 {
				return fmt.Errorf("%w: invalid limit %s=%d", ErrInvalidInput, period, limit)
			}
		}
	}

	seen := make(map[int64]bool, len(et.Hosts))
	for _, h := range et.Hosts {
		if seen[h.UserID] {
			return fmt.Errorf("%w: host %d listed twice", ErrInvalidInput, h.UserID)
		}
		seen[h.UserID] = true
	}

	return nil
}

func isLimitPeriod(p domain.LimitPeriod) bool {
	for _, known := range domain.LimitPeriods {
		if p == known {
			return true
		}
	}
	return false
}

func checkTimeZone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: time zone %q", ErrInvalidInput, tz)
	}
	return nil
}

func requireUsers(ctx context.Context, tx repository.Repositories, ids ...int64) error {
	if _, err := tx.Users().GetUsers(ctx, ids); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
