package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Postgres  PostgresConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Booking   BookingConfig
	RateLimit RateLimitConfig
	Links     LinksConfig
	Meeting   MeetingConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type StorageConfig struct {
	Driver string
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	MaxConns int32
}

type SQLiteConfig struct {
	DSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type BookingConfig struct {
	ICalDomain         string
	RequestTimeout     time.Duration
	FairnessWindow     time.Duration
	RecurringLookahead int
	FailOnMeetingError bool
	SideEffectTimeout  time.Duration
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

type LinksConfig struct {
	// Secret enables hashed links when set.
	Secret string
}

type MeetingConfig struct {
	BaseURL string
}

type LogConfig struct {
	Format string
	Level  string
}

// New loads .env when present and reads the configuration from the
// environment.
func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	var (
		cfg Config
		err error
	)

	cfg.Server.Host = getenv("SERVER_HOST", "localhost")
	if cfg.Server.Port, err = getInt("SERVER_PORT", 8080); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.Storage.Driver = strings.ToLower(getenv("STORAGE_DRIVER", DriverPostgres))
	switch cfg.Storage.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("%s: invalid STORAGE_DRIVER %q", op, cfg.Storage.Driver)
	}

	if cfg.Storage.Driver == DriverPostgres {
		if cfg.Postgres, err = loadPostgres(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	cfg.SQLite.DSN = getenv("SQLITE_DSN", "file:slotbook.db")

	cfg.Redis.Addr = getenv("REDIS_ADDR", "localhost:6380")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Booking, err = loadBooking(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.RateLimit.Limit, err = getInt("RATE_LIMIT", 10); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.RateLimit.Window, err = getDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.Links.Secret = os.Getenv("LINKS_SECRET")
	cfg.Meeting.BaseURL = getenv("MEETING_BASE_URL", "https://meet.slotbook.local")

	cfg.Log.Format = getenv("LOG_FORMAT", "text")
	cfg.Log.Level = getenv("LOG_LEVEL", "info")

	return &cfg, nil
}

func loadPostgres() (PostgresConfig, error) {
	pg := PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Name:     os.Getenv("POSTGRES_DB"),
		Host:     getenv("POSTGRES_HOST", "localhost"),
		SSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
	}

	if pg.User == "" {
		return pg, fmt.Errorf("missing POSTGRES_USER")
	}
	if pg.Password == "" {
		return pg, fmt.Errorf("missing POSTGRES_PASSWORD")
	}
	if pg.Name == "" {
		return pg, fmt.Errorf("missing POSTGRES_DB")
	}

	var err error
	if pg.Port, err = getInt("POSTGRES_PORT", 5432); err != nil {
		return pg, err
	}

	maxConns, err := getInt("POSTGRES_MAX_CONNS", 0)
	if err != nil {
		return pg, err
	}
	pg.MaxConns = int32(maxConns)

	return pg, nil
}

func loadBooking() (BookingConfig, error) {
	b := BookingConfig{
		ICalDomain: getenv("ICAL_DOMAIN", "slotbook.local"),
	}

	var err error
	if b.RequestTimeout, err = getDuration("BOOKING_REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return b, err
	}
	if b.FairnessWindow, err = getDuration("BOOKING_FAIRNESS_WINDOW", 30*24*time.Hour); err != nil {
		return b, err
	}
	if b.RecurringLookahead, err = getInt("BOOKING_RECURRING_LOOKAHEAD", 2); err != nil {
		return b, err
	}
	if b.FailOnMeetingError, err = getBool("BOOKING_FAIL_ON_MEETING_ERROR", false); err != nil {
		return b, err
	}
	if b.SideEffectTimeout, err = getDuration("BOOKING_SIDE_EFFECT_TIMEOUT", 15*time.Second); err != nil {
		return b, err
	}

	return b, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
