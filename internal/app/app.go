package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/slotbook/internal/config"
	"github.com/kirinyoku/slotbook/internal/hashedlink"
	"github.com/kirinyoku/slotbook/internal/meeting"
	"github.com/kirinyoku/slotbook/internal/postgres"
	"github.com/kirinyoku/slotbook/internal/redis"
	"github.com/kirinyoku/slotbook/internal/repository"
	postgresrepo "github.com/kirinyoku/slotbook/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/slotbook/internal/repository/redis"
	"github.com/kirinyoku/slotbook/internal/repository/sqlite"
	"github.com/kirinyoku/slotbook/internal/service"
	"github.com/kirinyoku/slotbook/internal/service/booking"
	"github.com/kirinyoku/slotbook/internal/service/query"
	httpgin "github.com/kirinyoku/slotbook/internal/transport/http/gin"
)

// Store is a repository.Store that can create its own schema.
type Store interface {
	repository.Store
	Migrate(ctx context.Context) error
}

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      Store
	rdb        *goredis.Client
	relay      *Relay
	httpServer *http.Server
	closers    []func()
}

type Options struct {
	// Migrate applies the schema before serving.
	Migrate bool
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	if opts.Migrate {
		if err := store.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}

	rdb, err := redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	a.rdb = rdb
	a.closers = append(a.closers, func() { rdb.Close() })

	// Initialize redis components
	cache := redisrepo.NewCache(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "bookings", cfg.RateLimit.Limit, cfg.RateLimit.Window)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 24*time.Hour)
	webhooks := redisrepo.NewWebhookQueue(rdb, 0)
	notifications := redisrepo.NewNotificationStream(rdb, 0)
	a.relay = NewRelay(webhooks, redisrepo.NewWebhookPubSub(rdb), logger, time.Second)

	deps := service.Deps{
		Store:    store,
		Cache:    cache,
		Meetings: meeting.NewLinkProvider(cfg.Meeting.BaseURL),
		Webhooks: webhooks,
		Notifier: notifications,
		Limiter:  limiter,
		Logger:   logger,
	}
	if cfg.Links.Secret != "" {
		codec, err := hashedlink.NewCodec(cfg.Links.Secret)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize links: %w", err)
		}
		deps.Links = codec
	}

	// Initialize services
	services := service.NewServices(deps, service.Config{
		Booking: booking.Config{
			ICalDomain:         cfg.Booking.ICalDomain,
			RequestTimeout:     cfg.Booking.RequestTimeout,
			FairnessWindow:     cfg.Booking.FairnessWindow,
			RecurringLookahead: cfg.Booking.RecurringLookahead,
			FailOnMeetingError: cfg.Booking.FailOnMeetingError,
			SideEffectTimeout:  cfg.Booking.SideEffectTimeout,
		},
		Query: query.Config{},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// OpenStore connects the configured storage backend.
func OpenStore(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize sqlite: %w", err)
		}
		return store, func() { store.Close() }, nil
	default:
		pg := cfg.Postgres
		pool, err := postgres.New(ctx, postgres.Config{
			DSN:             postgres.DSN(pg.User, pg.Password, pg.Host, pg.Port, pg.Name, pg.SSLMode),
			MaxConns:        pg.MaxConns,
			ApplicationName: "slotbook",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		return postgresrepo.NewStore(pool), pool.Close, nil
	}
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.Close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Move due webhooks to the delivery channel
	g.Go(func() error {
		return a.relay.Run(gCtx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
