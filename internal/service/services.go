package service

import (
	"log/slog"

	"github.com/kirinyoku/slotbook/internal/repository"
	redis "github.com/kirinyoku/slotbook/internal/repository/redis"
	"github.com/kirinyoku/slotbook/internal/service/admin"
	"github.com/kirinyoku/slotbook/internal/service/booking"
	"github.com/kirinyoku/slotbook/internal/service/query"
)

type Services struct {
	Booking *booking.Service
	Query   *query.Service
	Admin   *admin.Service
}

type Config struct {
	Booking booking.Config
	Query   query.Config
}

// LinkCodec issues and verifies hashed link tokens.
type LinkCodec interface {
	admin.LinkIssuer
	booking.LinkVerifier
}

// Deps are the adapters shared by the services. Everything but Store may be
// nil.
type Deps struct {
	Store    repository.Store
	Cache    *redis.Cache
	Links    LinkCodec
	Meetings booking.MeetingProvider
	Webhooks booking.WebhookDispatcher
	Notifier booking.NotificationDispatcher
	Limiter  booking.RateLimiter
	Logger   *slog.Logger
}

// NewServices wires the engine. The booking service loads event types
// through the cached query service.
func NewServices(deps Deps, cfg Config) *Services {
	q := query.New(deps.Store, deps.Cache, cfg.Query)

	return &Services{
		Booking: booking.New(booking.Deps{
			Store:      deps.Store,
			EventTypes: q,
			Meetings:   deps.Meetings,
			Webhooks:   deps.Webhooks,
			Notifier:   deps.Notifier,
			Links:      deps.Links,
			Limiter:    deps.Limiter,
			Logger:     deps.Logger,
		}, cfg.Booking),
		Query: q,
		Admin: admin.New(deps.Store, deps.Cache, deps.Links),
	}
}
