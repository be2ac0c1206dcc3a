package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/slotbook/internal/repository"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// RunTx runs fn in a read committed transaction. Double booking is guarded by
// unique indexes and conditional updates rather than by isolation level.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repositories) error,
) error {
	return s.RunTxWithOpts(ctx, nil, fn)
}

func (s *Store) RunTxWithOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx repository.Repositories) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return translateDBErr(err)
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, txRepos{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", translateDBErr(err))
	}

	return nil
}

func (s *Store) EventTypes() repository.EventTypeRepository {
	return &EventTypeRepo{pool: s.pool}
}

func (s *Store) Users() repository.UserRepository { return &UserRepo{pool: s.pool} }

func (s *Store) Schedules() repository.ScheduleRepository {
	return &ScheduleRepo{pool: s.pool}
}

func (s *Store) Bookings() repository.BookingRepository { return &BookingRepo{pool: s.pool} }

func (s *Store) HashedLinks() repository.HashedLinkRepository {
	return &HashedLinkRepo{pool: s.pool}
}

type txRepos struct {
	tx pgx.Tx
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
