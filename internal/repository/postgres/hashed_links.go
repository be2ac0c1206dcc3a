package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

type HashedLinkRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *HashedLinkRepo) With(db DB) *HashedLinkRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *HashedLinkRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *HashedLinkRepo) GetHashedLink(ctx context.Context, hash string) (*domain.HashedLink, error) {
	const op = "postgres.HashedLinkRepo.GetHashedLink"

	var l domain.HashedLink
	err := r.handle().QueryRow(ctx,
		`SELECT hash, event_type_id, expires_at, used_at, created_at
		 FROM hashed_links WHERE hash = $1`,
		hash,
	).Scan(&l.Hash, &l.EventTypeID, &l.ExpiresAt, &l.UsedAt, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &l, nil
}

func (r *HashedLinkRepo) CreateHashedLink(ctx context.Context, l *domain.HashedLink) error {
	const op = "postgres.HashedLinkRepo.CreateHashedLink"

	err := r.handle().QueryRow(ctx,
		`INSERT INTO hashed_links(hash, event_type_id, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		l.Hash, l.EventTypeID, l.ExpiresAt,
	).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// MarkUsed consumes a single-use link.
//
// Returns:
//   - error: repository.ErrConflict if the link was already used or does not exist.
func (r *HashedLinkRepo) MarkUsed(ctx context.Context, hash string, at time.Time) error {
	const op = "postgres.HashedLinkRepo.MarkUsed"

	tag, err := r.handle().Exec(ctx,
		`UPDATE hashed_links SET used_at = $2 WHERE hash = $1 AND used_at IS NULL`,
		hash, at,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	return nil
}
