package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
	redisrepo "github.com/kirinyoku/slotbook/internal/repository/redis"
)

type Config struct {
	EventTypeTTL time.Duration
}

type Service struct {
	store repository.Store
	cache *redisrepo.Cache
	cfg   Config
}

// New returns the read side of the engine. A nil cache reads straight from
// the store.
func New(store repository.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.EventTypeTTL <= 0 {
		cfg.EventTypeTTL = 60 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// GetEventType retrieves an event type by its ID, utilizing a caching layer
// to improve performance. The booking engine loads event types through it.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: ID of the event type to retrieve.
//
// Returns:
//   - *domain.EventType: the retrieved event type, or nil if not found.
//   - error: query.ErrEventTypeNotFound, also matching repository.ErrNotFound,
//     if the event type does not exist.
func (s *Service) GetEventType(ctx context.Context, id int64) (*domain.EventType, error) {
	const op = "service.query.GetEventType"

	load := func(ctx context.Context) (domain.EventType, error) {
		et, err := s.store.EventTypes().GetEventType(ctx, id)
		if err != nil {
			return domain.EventType{}, err
		}
		return *et, nil
	}

	var (
		et  domain.EventType
		err error
	)
	if s.cache == nil {
		et, err = load(ctx)
	} else {
		et, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyEventType(id), s.cfg.EventTypeTTL, load)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w:%w", op, ErrEventTypeNotFound, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &et, nil
}

// Booking retrieves a booking by its uid or by the seat reference of one of
// its attendees.
//
// Parameters:
//   - ctx: request-scoped context.
//   - uid: booking uid or seat reference uid.
//
// Returns:
//   - *domain.Booking: the booking with attendees and references.
//   - error: query.ErrBookingNotFound if neither lookup matches.
func (s *Service) Booking(ctx context.Context, uid string) (*domain.Booking, error) {
	const op = "service.query.Booking"

	b, err := s.store.Bookings().GetByUID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		b, err = s.store.Bookings().GetBySeatReference(ctx, uid)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}
