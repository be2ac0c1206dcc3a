package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirinyoku/slotbook/internal/repository"

	_ "modernc.org/sqlite"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

// Open opens the database at dsn. SQLite serializes writers, so the pool is
// pinned to a single connection; this also keeps ":memory:" databases alive
// for the lifetime of the store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	const op = "sqlite.Open"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repositories) error,
) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateDBErr(err)
	}

	defer tx.Rollback()

	if err := fn(ctx, txRepos{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", translateDBErr(err))
	}

	return nil
}

func (s *Store) EventTypes() repository.EventTypeRepository {
	return &EventTypeRepo{pool: s.db}
}

func (s *Store) Users() repository.UserRepository { return &UserRepo{pool: s.db} }

func (s *Store) Schedules() repository.ScheduleRepository {
	return &ScheduleRepo{pool: s.db}
}

func (s *Store) Bookings() repository.BookingRepository { return &BookingRepo{pool: s.db} }

func (s *Store) HashedLinks() repository.HashedLinkRepository {
	return &HashedLinkRepo{pool: s.db}
}

type txRepos struct {
	tx *sql.Tx
}

func (r txRepos) EventTypes() repository.EventTypeRepository {
	return (&EventTypeRepo{}).With(r.tx)
}

func (r txRepos) Users() repository.UserRepository { return (&UserRepo{}).With(r.tx) }

func (r txRepos) Schedules() repository.ScheduleRepository {
	return (&ScheduleRepo{}).With(r.tx)
}

func (r txRepos) Bookings() repository.BookingRepository { return (&BookingRepo{}).With(r.tx) }

func (r txRepos) HashedLinks() repository.HashedLinkRepository {
	return (&HashedLinkRepo{}).With(r.tx)
}
